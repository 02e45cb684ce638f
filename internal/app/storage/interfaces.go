package storage

import (
	"context"
	"errors"

	"github.com/Gogul11/oriyam/internal/app/domain/interest"
	"github.com/Gogul11/oriyam/internal/app/domain/land"
	"github.com/Gogul11/oriyam/internal/app/domain/lease"
	"github.com/Gogul11/oriyam/internal/app/domain/user"
)

// ErrNotFound is returned when a record does not exist. Store
// implementations wrap it so callers can match with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint is violated.
var ErrConflict = errors.New("conflict")

// ErrVersionMismatch is returned by UpdateLease when the lease row changed
// since it was read. Callers re-read and retry.
var ErrVersionMismatch = errors.New("version mismatch")

// UserStore persists registered identities.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByMobile(ctx context.Context, mobile string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// LandStore persists parcel listings.
type LandStore interface {
	CreateLand(ctx context.Context, l land.Land) (land.Land, error)
	UpdateLand(ctx context.Context, l land.Land) (land.Land, error)
	GetLand(ctx context.Context, id string) (land.Land, error)
	ListLands(ctx context.Context) ([]land.Land, error)
	ListLandsByOwner(ctx context.Context, ownerID string) ([]land.Land, error)
	// ListAvailableLandsExcluding returns available parcels not owned by the
	// given user, newest first.
	ListAvailableLandsExcluding(ctx context.Context, ownerID string) ([]land.Land, error)
}

// InterestStore persists expressions of interest.
type InterestStore interface {
	CreateInterest(ctx context.Context, in interest.Interest) (interest.Interest, error)
	GetInterest(ctx context.Context, id string) (interest.Interest, error)
	GetInterestByLandAndUser(ctx context.Context, landID, userID string) (interest.Interest, error)
	// ListInterestsByLand returns interests for a parcel, newest first.
	ListInterestsByLand(ctx context.Context, landID string) ([]interest.Interest, error)
	ListInterestsByUser(ctx context.Context, userID string) ([]interest.Interest, error)
}

// LeaseStore persists lease agreements and their payment ledgers.
type LeaseStore interface {
	CreateLease(ctx context.Context, l lease.Lease) (lease.Lease, error)
	// UpdateLease applies the change only when the stored Version equals
	// l.Version, then increments it. ErrVersionMismatch on a lost race.
	UpdateLease(ctx context.Context, l lease.Lease) (lease.Lease, error)
	GetLease(ctx context.Context, id string) (lease.Lease, error)
	ListLeasesByBuyer(ctx context.Context, buyerID string) ([]lease.Lease, error)
	ListLeasesBySeller(ctx context.Context, sellerID string) ([]lease.Lease, error)
	// ListOpenLeasesByLand returns leases on a parcel that are not completed.
	ListOpenLeasesByLand(ctx context.Context, landID string) ([]lease.Lease, error)
}
