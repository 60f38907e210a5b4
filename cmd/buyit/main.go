package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ezrasisk/Buyit/internal/config"
	delivery "github.com/ezrasisk/Buyit/internal/delivery/http"
	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/ezrasisk/Buyit/internal/messaging"
	"github.com/ezrasisk/Buyit/internal/messaging/kafka"
	"github.com/ezrasisk/Buyit/internal/messaging/watermill"
	"github.com/ezrasisk/Buyit/internal/repository/memory"
	"github.com/ezrasisk/Buyit/internal/repository/postgres"
	"github.com/ezrasisk/Buyit/internal/service"
	"github.com/ezrasisk/Buyit/internal/worker"
)

const (
	snapLedger        = "ledger"
	snapListings      = "listings"
	snapReceipts      = "receipts"
	snapNotifications = "notifications"
	snapProfiles      = "profiles"
)

func main() {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	cfg := config.Load()

	// --- Stores ---
	ledger := memory.NewLedger()
	listings := memory.NewListings()
	receipts := memory.NewReceipts()
	notifications := memory.NewNotifications()
	profiles := memory.NewProfiles()

	// --- Snapshot persistence (optional) ---
	var snapshots *postgres.SnapshotStore
	if cfg.DatabaseURL != "" {
		var err error
		snapshots, err = postgres.Open(cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to open snapshot store", "err", err)
			os.Exit(1)
		}
		defer snapshots.Close()

		if err := restore(snapshots, ledger, listings, receipts, notifications, profiles); err != nil {
			slog.Error("Failed to restore snapshots", "err", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("No DATABASE_URL set, running without snapshot persistence")
	}

	// --- Messaging ---
	var (
		publisher  messaging.Publisher
		subscriber messaging.Subscriber
	)
	if len(cfg.KafkaBrokers) > 0 {
		broker := kafka.NewBroker(cfg.KafkaBrokers)
		defer broker.Close()
		publisher, subscriber = broker, broker
		slog.Info("Using Kafka broker", "brokers", cfg.KafkaBrokers)
	} else {
		bus := watermill.NewBus(slog.Default())
		defer bus.Close()
		publisher, subscriber = bus, bus
		slog.Info("Using in-process message bus")
	}

	// --- Services ---
	saga := service.NewPurchaseSaga(ledger, listings, receipts, notifications, publisher)
	market := service.NewMarketService(ledger, listings, receipts, notifications, profiles, publisher)

	// --- HTTP API ---
	handler := delivery.NewHandler(market, saga)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: delivery.EnableCORS(mux),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Consumer: purchases.completed → audit log for downstream systems.
	go subscriber.Consume(ctx, service.TopicPurchaseCompleted, "buyit-audit", func(ctx context.Context, payload []byte) error {
		var event entity.PurchaseCompleted
		if err := json.Unmarshal(payload, &event); err != nil {
			return err
		}
		slog.Info("Purchase completed event received",
			"transaction_id", event.TransactionID, "listing_id", event.ListingID, "amount", event.Amount)
		return nil
	})

	// --- Snapshot worker ---
	if snapshots != nil {
		snapshotter := worker.NewSnapshotter(snapshots, map[string]worker.Exporter{
			snapLedger:        worker.ExportFunc(func() any { return ledger.Export() }),
			snapListings:      worker.ExportFunc(func() any { return listings.Export() }),
			snapReceipts:      worker.ExportFunc(func() any { return receipts.Export() }),
			snapNotifications: worker.ExportFunc(func() any { return notifications.Export() }),
			snapProfiles:      worker.ExportFunc(func() any { return profiles.Export() }),
		}, cfg.SnapshotInterval)
		go snapshotter.Run(ctx)
	}

	go func() {
		slog.Info("HTTP server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")
	httpServer.Shutdown(context.Background())
}

func restore(
	snapshots *postgres.SnapshotStore,
	ledger *memory.Ledger,
	listings *memory.Listings,
	receipts *memory.Receipts,
	notifications *memory.Notifications,
	profiles *memory.Profiles,
) error {
	ctx := context.Background()

	var ledgerSnap entity.LedgerSnapshot
	if ok, err := snapshots.Load(ctx, snapLedger, &ledgerSnap); err != nil {
		return err
	} else if ok {
		ledger.Import(ledgerSnap)
	}

	var listingSnap entity.ListingSnapshot
	if ok, err := snapshots.Load(ctx, snapListings, &listingSnap); err != nil {
		return err
	} else if ok {
		listings.Import(listingSnap)
	}

	var receiptSnap entity.ReceiptSnapshot
	if ok, err := snapshots.Load(ctx, snapReceipts, &receiptSnap); err != nil {
		return err
	} else if ok {
		receipts.Import(receiptSnap)
	}

	var notificationSnap entity.NotificationSnapshot
	if ok, err := snapshots.Load(ctx, snapNotifications, &notificationSnap); err != nil {
		return err
	} else if ok {
		notifications.Import(notificationSnap)
	}

	var profileSnap entity.ProfileSnapshot
	if ok, err := snapshots.Load(ctx, snapProfiles, &profileSnap); err != nil {
		return err
	} else if ok {
		profiles.Import(profileSnap)
	}

	slog.Info("Snapshots restored")
	return nil
}
