package watermill

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversPublishedEvents(t *testing.T) {
	bus := NewBus(slog.Default())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan entity.PurchaseCompleted, 1)
	go bus.Consume(ctx, "purchases.completed", "test", func(ctx context.Context, payload []byte) error {
		var event entity.PurchaseCompleted
		if err := json.Unmarshal(payload, &event); err != nil {
			return err
		}
		received <- event
		return nil
	})

	// Give the subscriber a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	sent := entity.PurchaseCompleted{TransactionID: 7, Buyer: "buyer", Seller: "seller", Amount: 40, ListingID: 1}
	require.NoError(t, bus.PublishEvent(ctx, "purchases.completed", "7", sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.TransactionID, got.TransactionID)
		assert.Equal(t, sent.Buyer, got.Buyer)
		assert.Equal(t, sent.Amount, got.Amount)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBusPublishUnmarshalableEvent(t *testing.T) {
	bus := NewBus(slog.Default())
	defer bus.Close()

	err := bus.PublishEvent(context.Background(), "topic", "key", func() {})
	assert.Error(t, err, "functions cannot be marshalled to JSON")
}
