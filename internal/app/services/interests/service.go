// Package interests manages expressions of intent against land listings.
package interests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gogul11/oriyam/internal/app/domain/interest"
	"github.com/Gogul11/oriyam/internal/app/services"
	"github.com/Gogul11/oriyam/internal/app/storage"
	"github.com/Gogul11/oriyam/pkg/logger"
)

// ErrOwnLand is returned when a user expresses interest in their own parcel.
var ErrOwnLand = errors.New("cannot express interest in your own land")

// ErrLandUnavailable is returned when the parcel is not open for lease.
var ErrLandUnavailable = errors.New("land is not available")

// ErrNotOwner is returned when a non-owner reads a parcel's interest list.
var ErrNotOwner = errors.New("not the land owner")

// Service manages interest submissions.
type Service struct {
	store storage.InterestStore
	lands storage.LandStore
	users storage.UserStore
	log   *logger.Logger
}

// New constructs an interest service.
func New(store storage.InterestStore, lands storage.LandStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("interests")
	}
	return &Service{
		store: store,
		lands: lands,
		users: users,
		log:   log,
	}
}

// Express records a user's interest in a parcel. At most one interest per
// user per parcel; owners cannot express interest in their own land.
func (s *Service) Express(ctx context.Context, userID, landID string, monthlyBudget float64, rentPeriodMonths int, reason string) (interest.Interest, error) {
	reason = strings.TrimSpace(reason)

	if monthlyBudget <= 0 {
		return interest.Interest{}, services.Invalidf("monthly_budget must be positive")
	}
	if rentPeriodMonths <= 0 {
		return interest.Interest{}, services.Invalidf("rent_period_months must be positive")
	}

	l, err := s.lands.GetLand(ctx, landID)
	if err != nil {
		return interest.Interest{}, err
	}
	if l.OwnerID == userID {
		return interest.Interest{}, ErrOwnLand
	}
	if !l.Available {
		return interest.Interest{}, ErrLandUnavailable
	}

	created, err := s.store.CreateInterest(ctx, interest.Interest{
		LandID:           landID,
		UserID:           userID,
		MonthlyBudget:    monthlyBudget,
		RentPeriodMonths: rentPeriodMonths,
		Reason:           reason,
	})
	if err != nil {
		return interest.Interest{}, err
	}

	s.log.WithField("interest_id", created.ID).
		WithField("land_id", landID).
		WithField("user_id", userID).
		Info("interest expressed")
	return created, nil
}

// ForLand returns the interests on a parcel joined with each submitter's
// public profile. Only the parcel owner may read them.
func (s *Service) ForLand(ctx context.Context, requesterID, landID string) ([]interest.WithSubmitter, error) {
	l, err := s.lands.GetLand(ctx, landID)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != requesterID {
		return nil, ErrNotOwner
	}

	list, err := s.store.ListInterestsByLand(ctx, landID)
	if err != nil {
		return nil, err
	}

	result := make([]interest.WithSubmitter, 0, len(list))
	for _, in := range list {
		u, err := s.users.GetUser(ctx, in.UserID)
		if err != nil {
			return nil, fmt.Errorf("load submitter %s: %w", in.UserID, err)
		}
		result = append(result, interest.WithSubmitter{Interest: in, Submitter: u.PublicProfile()})
	}
	return result, nil
}

// Mine returns the user's own submissions joined with each parcel's headline
// fields.
func (s *Service) Mine(ctx context.Context, userID string) ([]interest.WithLand, error) {
	list, err := s.store.ListInterestsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]interest.WithLand, 0, len(list))
	for _, in := range list {
		l, err := s.lands.GetLand(ctx, in.LandID)
		if err != nil {
			return nil, fmt.Errorf("load land %s: %w", in.LandID, err)
		}
		result = append(result, interest.WithLand{
			Interest:      in,
			LandTitle:     l.Title,
			LandAvailable: l.Available,
		})
	}
	return result, nil
}
