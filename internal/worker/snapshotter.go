package worker

import (
	"context"
	"log/slog"
	"time"
)

// Exporter is a store that can dump its full state (records plus next-id
// counter) for persistence.
type Exporter interface {
	Export() any
}

// SnapshotSink persists exported store state keyed by store name.
type SnapshotSink interface {
	Save(ctx context.Context, store string, state any) error
}

// exporterFunc adapts a typed Export method to the Exporter interface.
type exporterFunc func() any

func (f exporterFunc) Export() any { return f() }

// ExportFunc wraps a typed Export method, e.g.
// worker.ExportFunc(func() any { return ledger.Export() }).
func ExportFunc(f func() any) Exporter { return exporterFunc(f) }

// Snapshotter periodically saves every registered store's snapshot. A final
// save runs when the context is cancelled, so a graceful shutdown never
// loses more than in-flight work.
type Snapshotter struct {
	sink     SnapshotSink
	stores   map[string]Exporter
	interval time.Duration
}

// NewSnapshotter creates a snapshot worker over the given stores.
func NewSnapshotter(sink SnapshotSink, stores map[string]Exporter, interval time.Duration) *Snapshotter {
	return &Snapshotter{sink: sink, stores: stores, interval: interval}
}

// Run blocks, saving snapshots on every tick, until ctx is cancelled.
func (s *Snapshotter) Run(ctx context.Context) {
	slog.Info("Snapshot worker started", "interval", s.interval, "stores", len(s.stores))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Last save on the way out; use a fresh context since ctx is
			// already cancelled.
			s.SaveAll(context.Background())
			slog.Info("Snapshot worker stopped")
			return
		case <-ticker.C:
			s.SaveAll(ctx)
		}
	}
}

// SaveAll saves every store's snapshot. Failures are logged per store; one
// failing store never blocks the others.
func (s *Snapshotter) SaveAll(ctx context.Context) {
	for name, store := range s.stores {
		if err := s.sink.Save(ctx, name, store.Export()); err != nil {
			slog.Error("Failed to save snapshot", "store", name, "err", err)
		}
	}
}
