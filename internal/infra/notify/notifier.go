package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"covach/internal/app/policies"
)

// StoreNotifier persists a notification document per delivery and logs it.
// The ledger treats delivery as fire-and-forget, so errors returned here are
// logged by the caller and never fail a reservation transition.
type StoreNotifier struct {
	col    *mongo.Collection
	logger *slog.Logger
}

func NewStoreNotifier(db *mongo.Database, logger *slog.Logger) *StoreNotifier {
	return &StoreNotifier{col: db.Collection("user_notifications"), logger: logger}
}

func (n *StoreNotifier) Notify(ctx context.Context, userID, typeTag, title, body string, payload map[string]string) error {
	doc := notificationDocument{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typeTag,
		Title:     title,
		Body:      body,
		Payload:   payload,
		CreatedAt: time.Now().UTC().UnixMilli(),
	}
	if _, err := n.col.InsertOne(ctx, doc); err != nil {
		return err
	}
	if n.logger != nil {
		n.logger.Info("notification stored", "user_id", userID, "type", typeTag)
	}
	return nil
}

type notificationDocument struct {
	ID        string            `bson:"_id"`
	UserID    string            `bson:"user_id"`
	Type      string            `bson:"type"`
	Title     string            `bson:"title"`
	Body      string            `bson:"body"`
	Payload   map[string]string `bson:"payload,omitempty"`
	Read      bool              `bson:"read"`
	CreatedAt int64             `bson:"created_at"`
}

// LogNotifier only logs deliveries; used in memory mode.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, userID, typeTag, title, body string, payload map[string]string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "user_id", userID, "type", typeTag, "title", title)
	return nil
}

var _ policies.Notifier = (*StoreNotifier)(nil)
var _ policies.Notifier = LogNotifier{}
