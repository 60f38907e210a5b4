package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/ezrasisk/Buyit/internal/repository"
)

// Notifications is the in-memory notification store: an append-only ordered
// queue per recipient, read by client-side polling.
type Notifications struct {
	mu     sync.Mutex
	queues map[entity.Principal][]entity.Notification
	nextID uint64

	// now is swappable in tests.
	now func() time.Time
}

// NewNotifications creates an empty notification store.
func NewNotifications() *Notifications {
	return &Notifications{
		queues: make(map[entity.Principal][]entity.Notification),
		now:    time.Now,
	}
}

var _ repository.NotificationStore = (*Notifications)(nil)

func (s *Notifications) Enqueue(ctx context.Context, recipient entity.Principal, message string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.queues[recipient] = append(s.queues[recipient], entity.Notification{
		ID:        id,
		Recipient: recipient,
		Message:   message,
		Timestamp: s.now(),
	})
	s.nextID++
	return id, nil
}

func (s *Notifications) Poll(ctx context.Context, recipient entity.Principal, limit int) ([]entity.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queues[recipient]
	if limit > 0 && limit < len(queue) {
		queue = queue[len(queue)-limit:]
	}
	out := make([]entity.Notification, len(queue))
	copy(out, queue)
	return out, nil
}

// Export returns a copy of the full store state for snapshotting.
func (s *Notifications) Export() entity.NotificationSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := entity.NotificationSnapshot{
		Queues: make(map[entity.Principal][]entity.Notification, len(s.queues)),
		NextID: s.nextID,
	}
	for p, queue := range s.queues {
		copied := make([]entity.Notification, len(queue))
		copy(copied, queue)
		snap.Queues[p] = copied
	}
	return snap
}

// Import restores a snapshot without ever lowering the id counter.
func (s *Notifications) Import(snap entity.NotificationSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queues = make(map[entity.Principal][]entity.Notification, len(snap.Queues))
	for p, queue := range snap.Queues {
		copied := make([]entity.Notification, len(queue))
		copy(copied, queue)
		s.queues[p] = copied
		for _, n := range queue {
			if n.ID >= s.nextID {
				s.nextID = n.ID + 1
			}
		}
	}
	if snap.NextID > s.nextID {
		s.nextID = snap.NextID
	}
}
