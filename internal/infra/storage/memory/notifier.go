package memory

import (
	"context"
	"sync"
)

// Delivery is one recorded notification.
type Delivery struct {
	UserID  string
	Type    string
	Title   string
	Body    string
	Payload map[string]string
}

// Notifier records notifications instead of delivering them. Err, when set,
// is returned from every call to exercise the ledger's best-effort handling.
type Notifier struct {
	mu         sync.Mutex
	deliveries []Delivery

	Err error
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Notify(ctx context.Context, userID, typeTag, title, body string, payload map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, Delivery{UserID: userID, Type: typeTag, Title: title, Body: body, Payload: payload})
	return n.Err
}

func (n *Notifier) Deliveries() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Delivery, len(n.deliveries))
	copy(out, n.deliveries)
	return out
}
