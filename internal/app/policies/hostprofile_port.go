package policies

import "context"

type HostProfileStatus string

const (
	HostProfileNone     HostProfileStatus = "none"
	HostProfilePending  HostProfileStatus = "pending"
	HostProfileApproved HostProfileStatus = "approved"
	HostProfileRejected HostProfileStatus = "rejected"
)

// HostProfiles answers whether a user has an approved host profile. Users
// without a profile report HostProfileNone rather than an error.
type HostProfiles interface {
	Status(ctx context.Context, userID string) (HostProfileStatus, error)
}
