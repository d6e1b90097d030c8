package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"covach/internal/app/policies"
)

// HostProfileDirectory answers host-profile status lookups from the accounts
// collection. A missing profile is reported as "none", not an error.
type HostProfileDirectory struct {
	col *mongo.Collection
}

func NewHostProfileDirectory(db *mongo.Database) *HostProfileDirectory {
	return &HostProfileDirectory{col: db.Collection("host_profiles")}
}

func (d *HostProfileDirectory) Status(ctx context.Context, userID string) (policies.HostProfileStatus, error) {
	var doc struct {
		Status string `bson:"status"`
	}
	err := d.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return policies.HostProfileNone, nil
	}
	if err != nil {
		return policies.HostProfileNone, err
	}
	switch policies.HostProfileStatus(doc.Status) {
	case policies.HostProfilePending, policies.HostProfileApproved, policies.HostProfileRejected:
		return policies.HostProfileStatus(doc.Status), nil
	default:
		return policies.HostProfileNone, nil
	}
}
