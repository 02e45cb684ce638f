// Package leases manages the lease lifecycle: a seller initiates against an
// interested buyer, the buyer activates it by paying the deposit, monthly
// dues settle strictly in order and the final payment completes the lease
// and releases the land.
package leases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gogul11/oriyam/internal/app/domain/lease"
	"github.com/Gogul11/oriyam/internal/app/services"
	"github.com/Gogul11/oriyam/internal/app/storage"
	"github.com/Gogul11/oriyam/pkg/logger"
)

// ErrNotSeller is returned when someone other than the land owner initiates.
var ErrNotSeller = errors.New("only the land owner can initiate a lease")

// ErrNotBuyer is returned when someone other than the lease buyer pays.
var ErrNotBuyer = errors.New("only the lease buyer can pay")

// ErrNotParty is returned when a non-participant reads a lease.
var ErrNotParty = errors.New("not a party to this lease")

// ErrNoInterest is returned when the chosen buyer never expressed interest.
var ErrNoInterest = errors.New("buyer has not expressed interest in this land")

// ErrLandUnavailable is returned when the parcel is already held.
var ErrLandUnavailable = errors.New("land is not available")

// ErrWrongState is returned when a transition does not apply to the lease's
// current status.
var ErrWrongState = errors.New("lease is not in the required state")

// ErrAmountMismatch is returned when a payment does not match the agreed sum.
var ErrAmountMismatch = errors.New("payment amount does not match")

// ErrWrongMonth is returned when a monthly payment arrives out of order.
var ErrWrongMonth = errors.New("months must be paid in order")

// Service manages lease agreements.
type Service struct {
	store     storage.LeaseStore
	lands     storage.LandStore
	interests storage.InterestStore
	log       *logger.Logger
}

// New constructs a lease service.
func New(store storage.LeaseStore, lands storage.LandStore, interests storage.InterestStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("leases")
	}
	return &Service{
		store:     store,
		lands:     lands,
		interests: interests,
		log:       log,
	}
}

// Input carries the terms of a new lease.
type Input struct {
	LandID      string
	BuyerID     string
	Deposit     float64
	MonthlyDue  float64
	TotalMonths int
	StartDate   string
	EndDate     string
}

// Initiate creates a lease. Only the land owner may initiate, only against
// a buyer who expressed interest, and only while the land is available.
// The seller's approval is implicit in initiating.
func (s *Service) Initiate(ctx context.Context, sellerID string, in Input) (lease.Lease, error) {
	if in.Deposit <= 0 {
		return lease.Lease{}, services.Invalidf("deposit must be positive")
	}
	if in.MonthlyDue <= 0 {
		return lease.Lease{}, services.Invalidf("monthly_due must be positive")
	}
	if in.TotalMonths <= 0 {
		return lease.Lease{}, services.Invalidf("total_months must be positive")
	}
	if in.BuyerID == sellerID {
		return lease.Lease{}, services.Invalidf("buyer and seller cannot be the same user")
	}

	l, err := s.lands.GetLand(ctx, in.LandID)
	if err != nil {
		return lease.Lease{}, err
	}
	if l.OwnerID != sellerID {
		return lease.Lease{}, ErrNotSeller
	}
	if !l.Available {
		return lease.Lease{}, ErrLandUnavailable
	}

	if _, err := s.interests.GetInterestByLandAndUser(ctx, in.LandID, in.BuyerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return lease.Lease{}, ErrNoInterest
		}
		return lease.Lease{}, err
	}

	open, err := s.store.ListOpenLeasesByLand(ctx, in.LandID)
	if err != nil {
		return lease.Lease{}, err
	}
	for _, existing := range open {
		if existing.BuyerID == in.BuyerID {
			return lease.Lease{}, fmt.Errorf("an open lease with this buyer already exists: %w", storage.ErrConflict)
		}
	}

	created, err := s.store.CreateLease(ctx, lease.Lease{
		LandID:         in.LandID,
		BuyerID:        in.BuyerID,
		SellerID:       sellerID,
		Deposit:        in.Deposit,
		MonthlyDue:     in.MonthlyDue,
		TotalMonths:    in.TotalMonths,
		Status:         lease.StatusInitiated,
		SellerApproved: true,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
	})
	if err != nil {
		return lease.Lease{}, err
	}

	s.log.WithField("lease_id", created.ID).
		WithField("land_id", in.LandID).
		WithField("buyer_id", in.BuyerID).
		Info("lease initiated")
	return created, nil
}

// PayDeposit records the buyer's deposit, activates the lease and takes the
// land off the market. A competing lease may have claimed the land since
// initiation, so availability is checked again here; at most one lease per
// parcel ever reaches the active state.
func (s *Service) PayDeposit(ctx context.Context, buyerID, leaseID string, amount float64) (lease.Lease, error) {
	updated, err := s.update(ctx, leaseID, func(l *lease.Lease) error {
		if l.BuyerID != buyerID {
			return ErrNotBuyer
		}
		if l.Status != lease.StatusInitiated {
			return ErrWrongState
		}
		parcel, err := s.lands.GetLand(ctx, l.LandID)
		if err != nil {
			return err
		}
		if !parcel.Available {
			return ErrLandUnavailable
		}
		if amount != l.Deposit {
			return ErrAmountMismatch
		}
		l.BuyerApproved = true
		l.Status = lease.StatusActive
		return nil
	})
	if err != nil {
		return lease.Lease{}, err
	}

	if err := s.setLandAvailability(ctx, updated.LandID, false); err != nil {
		s.log.WithError(err).WithField("land_id", updated.LandID).Error("failed to mark land unavailable")
	}

	s.log.WithField("lease_id", updated.ID).Info("deposit paid, lease active")
	return updated, nil
}

// PayMonth records one monthly payment. Months settle strictly in order and
// the last payment completes the lease and releases the land.
func (s *Service) PayMonth(ctx context.Context, buyerID, leaseID string, month int, amount float64) (lease.Lease, error) {
	updated, err := s.update(ctx, leaseID, func(l *lease.Lease) error {
		if l.BuyerID != buyerID {
			return ErrNotBuyer
		}
		if l.Status != lease.StatusActive {
			return ErrWrongState
		}
		next := l.NextMonth()
		if next == 0 || month != next {
			return ErrWrongMonth
		}
		if amount != l.MonthlyDue {
			return ErrAmountMismatch
		}
		l.Payments = append(l.Payments, lease.Payment{Month: month, Amount: amount, PaidAt: time.Now().UTC()})
		if l.PaidMonths() == l.TotalMonths {
			l.Status = lease.StatusCompleted
		}
		return nil
	})
	if err != nil {
		return lease.Lease{}, err
	}

	if updated.Status == lease.StatusCompleted {
		if err := s.setLandAvailability(ctx, updated.LandID, true); err != nil {
			s.log.WithError(err).WithField("land_id", updated.LandID).Error("failed to release land")
		}
		s.log.WithField("lease_id", updated.ID).Info("lease completed")
	}
	return updated, nil
}

// update applies fn under the optimistic version guard, retrying once on a
// lost race with freshly read state.
func (s *Service) update(ctx context.Context, leaseID string, fn func(*lease.Lease) error) (lease.Lease, error) {
	for attempt := 0; attempt < 2; attempt++ {
		l, err := s.store.GetLease(ctx, leaseID)
		if err != nil {
			return lease.Lease{}, err
		}
		if err := fn(&l); err != nil {
			return lease.Lease{}, err
		}
		updated, err := s.store.UpdateLease(ctx, l)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, storage.ErrVersionMismatch) || attempt == 1 {
			return lease.Lease{}, err
		}
	}
	return lease.Lease{}, storage.ErrVersionMismatch
}

func (s *Service) setLandAvailability(ctx context.Context, landID string, available bool) error {
	l, err := s.lands.GetLand(ctx, landID)
	if err != nil {
		return err
	}
	l.Available = available
	_, err = s.lands.UpdateLand(ctx, l)
	return err
}

// Get returns a lease to one of its parties.
func (s *Service) Get(ctx context.Context, userID, leaseID string) (lease.Lease, error) {
	l, err := s.store.GetLease(ctx, leaseID)
	if err != nil {
		return lease.Lease{}, err
	}
	if l.BuyerID != userID && l.SellerID != userID {
		return lease.Lease{}, ErrNotParty
	}
	return l, nil
}

// AsBuyer returns the leases where the user is the buyer, newest first.
func (s *Service) AsBuyer(ctx context.Context, userID string) ([]lease.Lease, error) {
	return s.store.ListLeasesByBuyer(ctx, userID)
}

// AsSeller returns the leases where the user is the seller, newest first.
func (s *Service) AsSeller(ctx context.Context, userID string) ([]lease.Lease, error) {
	return s.store.ListLeasesBySeller(ctx, userID)
}
