package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainreservation "covach/internal/domain/reservation"
)

// EventLog stores reservation audit entries. Documents are insert-only;
// nothing updates or deletes them.
type EventLog struct {
	col *mongo.Collection
}

func NewEventLog(db *mongo.Database) *EventLog {
	col := db.Collection("reservation_events")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "reservation_id", Value: 1}, {Key: "created_at", Value: -1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &EventLog{col: col}
}

func (l *EventLog) Append(ctx context.Context, entry domainreservation.LogEntry) error {
	doc := logDocument{
		ID:            entry.ID,
		ReservationID: string(entry.ReservationID),
		ActorID:       entry.ActorID,
		Type:          entry.Type,
		Message:       entry.Message,
		Metadata:      entry.Metadata,
		CreatedAt:     entry.CreatedAt.UnixMilli(),
	}
	_, err := l.col.InsertOne(ctx, doc)
	return err
}

func (l *EventLog) ByReservation(ctx context.Context, id domainreservation.ReservationID) ([]domainreservation.LogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := l.col.Find(ctx, bson.M{"reservation_id": string(id)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []domainreservation.LogEntry
	for cursor.Next(ctx) {
		var doc logDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, domainreservation.LogEntry{
			ID:            doc.ID,
			ReservationID: domainreservation.ReservationID(doc.ReservationID),
			ActorID:       doc.ActorID,
			Type:          doc.Type,
			Message:       doc.Message,
			Metadata:      doc.Metadata,
			CreatedAt:     timestampToTime(doc.CreatedAt),
		})
	}
	return out, cursor.Err()
}

type logDocument struct {
	ID            string            `bson:"_id"`
	ReservationID string            `bson:"reservation_id"`
	ActorID       string            `bson:"actor_id"`
	Type          string            `bson:"type"`
	Message       string            `bson:"message"`
	Metadata      map[string]string `bson:"metadata,omitempty"`
	CreatedAt     int64             `bson:"created_at"`
}
