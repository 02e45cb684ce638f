package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Gogul11/oriyam/internal/app/domain/interest"
	"github.com/Gogul11/oriyam/internal/app/domain/land"
	"github.com/Gogul11/oriyam/internal/app/domain/lease"
	"github.com/Gogul11/oriyam/internal/app/domain/user"
	"github.com/Gogul11/oriyam/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu              sync.RWMutex
	nextID          int64
	users           map[string]user.User
	usersByUsername map[string]string
	usersByEmail    map[string]string
	usersByMobile   map[string]string
	usersByGovID    map[string]string
	lands           map[string]land.Land
	interests       map[string]interest.Interest
	interestsByPair map[string]string
	leases          map[string]lease.Lease
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.LandStore = (*Store)(nil)
var _ storage.InterestStore = (*Store)(nil)
var _ storage.LeaseStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:          1,
		users:           make(map[string]user.User),
		usersByUsername: make(map[string]string),
		usersByEmail:    make(map[string]string),
		usersByMobile:   make(map[string]string),
		usersByGovID:    make(map[string]string),
		lands:           make(map[string]land.Land),
		interests:       make(map[string]interest.Interest),
		interestsByPair: make(map[string]string),
		leases:          make(map[string]lease.Lease),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func pairKey(landID, userID string) string {
	return landID + "/" + userID
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists: %w", u.ID, storage.ErrConflict)
	}

	usernameKey := strings.ToLower(u.Username)
	emailKey := strings.ToLower(u.Email)
	if _, exists := s.usersByUsername[usernameKey]; exists {
		return user.User{}, fmt.Errorf("username %s taken: %w", u.Username, storage.ErrConflict)
	}
	if _, exists := s.usersByEmail[emailKey]; exists {
		return user.User{}, fmt.Errorf("email %s taken: %w", u.Email, storage.ErrConflict)
	}
	if _, exists := s.usersByMobile[u.Mobile]; exists {
		return user.User{}, fmt.Errorf("mobile %s taken: %w", u.Mobile, storage.ErrConflict)
	}
	if u.GovernmentID != "" {
		if _, exists := s.usersByGovID[u.GovernmentID]; exists {
			return user.User{}, fmt.Errorf("government id already registered: %w", storage.ErrConflict)
		}
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByUsername[usernameKey] = u.ID
	s.usersByEmail[emailKey] = u.ID
	s.usersByMobile[u.Mobile] = u.ID
	if u.GovernmentID != "" {
		s.usersByGovID[u.GovernmentID] = u.ID
	}
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}

	newUsername := strings.ToLower(u.Username)
	newEmail := strings.ToLower(u.Email)
	if id, exists := s.usersByUsername[newUsername]; exists && id != u.ID {
		return user.User{}, fmt.Errorf("username %s taken: %w", u.Username, storage.ErrConflict)
	}
	if id, exists := s.usersByEmail[newEmail]; exists && id != u.ID {
		return user.User{}, fmt.Errorf("email %s taken: %w", u.Email, storage.ErrConflict)
	}
	if id, exists := s.usersByMobile[u.Mobile]; exists && id != u.ID {
		return user.User{}, fmt.Errorf("mobile %s taken: %w", u.Mobile, storage.ErrConflict)
	}

	// Government ID is immutable once registered.
	u.GovernmentID = original.GovernmentID
	u.GovernmentIDType = original.GovernmentIDType
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	delete(s.usersByUsername, strings.ToLower(original.Username))
	delete(s.usersByEmail, strings.ToLower(original.Email))
	delete(s.usersByMobile, original.Mobile)
	s.users[u.ID] = u
	s.usersByUsername[newUsername] = u.ID
	s.usersByEmail[newEmail] = u.ID
	s.usersByMobile[u.Mobile] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByMobile(_ context.Context, mobile string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.usersByMobile[mobile]; ok {
		return s.users[id], nil
	}
	return user.User{}, fmt.Errorf("user with mobile %s: %w", mobile, storage.ErrNotFound)
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.usersByEmail[strings.ToLower(email)]; ok {
		return s.users[id], nil
	}
	return user.User{}, fmt.Errorf("user with email %s: %w", email, storage.ErrNotFound)
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// LandStore implementation ----------------------------------------------------

func (s *Store) CreateLand(_ context.Context, l land.Land) (land.Land, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = s.nextIDLocked()
	} else if _, exists := s.lands[l.ID]; exists {
		return land.Land{}, fmt.Errorf("land %s already exists: %w", l.ID, storage.ErrConflict)
	}
	if _, exists := s.users[l.OwnerID]; !exists {
		return land.Land{}, fmt.Errorf("owner %s: %w", l.OwnerID, storage.ErrNotFound)
	}

	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.Coordinates = append([]land.Point(nil), l.Coordinates...)
	l.PhotoKeys = append([]string(nil), l.PhotoKeys...)

	s.lands[l.ID] = l
	return cloneLand(l), nil
}

func (s *Store) UpdateLand(_ context.Context, l land.Land) (land.Land, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.lands[l.ID]
	if !ok {
		return land.Land{}, fmt.Errorf("land %s: %w", l.ID, storage.ErrNotFound)
	}

	l.OwnerID = original.OwnerID
	l.CreatedAt = original.CreatedAt
	l.UpdatedAt = time.Now().UTC()
	l.Coordinates = append([]land.Point(nil), l.Coordinates...)
	l.PhotoKeys = append([]string(nil), l.PhotoKeys...)

	s.lands[l.ID] = l
	return cloneLand(l), nil
}

func (s *Store) GetLand(_ context.Context, id string) (land.Land, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lands[id]
	if !ok {
		return land.Land{}, fmt.Errorf("land %s: %w", id, storage.ErrNotFound)
	}
	return cloneLand(l), nil
}

func (s *Store) ListLands(_ context.Context) ([]land.Land, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]land.Land, 0, len(s.lands))
	for _, l := range s.lands {
		result = append(result, cloneLand(l))
	}
	sortLandsNewestFirst(result)
	return result, nil
}

func (s *Store) ListLandsByOwner(_ context.Context, ownerID string) ([]land.Land, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]land.Land, 0)
	for _, l := range s.lands {
		if l.OwnerID == ownerID {
			result = append(result, cloneLand(l))
		}
	}
	sortLandsNewestFirst(result)
	return result, nil
}

func (s *Store) ListAvailableLandsExcluding(_ context.Context, ownerID string) ([]land.Land, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]land.Land, 0)
	for _, l := range s.lands {
		if l.Available && l.OwnerID != ownerID {
			result = append(result, cloneLand(l))
		}
	}
	sortLandsNewestFirst(result)
	return result, nil
}

// InterestStore implementation ------------------------------------------------

func (s *Store) CreateInterest(_ context.Context, in interest.Interest) (interest.Interest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.ID == "" {
		in.ID = s.nextIDLocked()
	} else if _, exists := s.interests[in.ID]; exists {
		return interest.Interest{}, fmt.Errorf("interest %s already exists: %w", in.ID, storage.ErrConflict)
	}
	if _, exists := s.lands[in.LandID]; !exists {
		return interest.Interest{}, fmt.Errorf("land %s: %w", in.LandID, storage.ErrNotFound)
	}
	if _, exists := s.users[in.UserID]; !exists {
		return interest.Interest{}, fmt.Errorf("user %s: %w", in.UserID, storage.ErrNotFound)
	}
	key := pairKey(in.LandID, in.UserID)
	if _, exists := s.interestsByPair[key]; exists {
		return interest.Interest{}, fmt.Errorf("interest already submitted for land %s: %w", in.LandID, storage.ErrConflict)
	}

	in.CreatedAt = time.Now().UTC()
	s.interests[in.ID] = in
	s.interestsByPair[key] = in.ID
	return in, nil
}

func (s *Store) GetInterest(_ context.Context, id string) (interest.Interest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.interests[id]
	if !ok {
		return interest.Interest{}, fmt.Errorf("interest %s: %w", id, storage.ErrNotFound)
	}
	return in, nil
}

func (s *Store) GetInterestByLandAndUser(_ context.Context, landID, userID string) (interest.Interest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.interestsByPair[pairKey(landID, userID)]; ok {
		return s.interests[id], nil
	}
	return interest.Interest{}, fmt.Errorf("interest for land %s by user %s: %w", landID, userID, storage.ErrNotFound)
}

func (s *Store) ListInterestsByLand(_ context.Context, landID string) ([]interest.Interest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]interest.Interest, 0)
	for _, in := range s.interests {
		if in.LandID == landID {
			result = append(result, in)
		}
	}
	sortInterestsNewestFirst(result)
	return result, nil
}

func (s *Store) ListInterestsByUser(_ context.Context, userID string) ([]interest.Interest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]interest.Interest, 0)
	for _, in := range s.interests {
		if in.UserID == userID {
			result = append(result, in)
		}
	}
	sortInterestsNewestFirst(result)
	return result, nil
}

// LeaseStore implementation ---------------------------------------------------

func (s *Store) CreateLease(_ context.Context, l lease.Lease) (lease.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = s.nextIDLocked()
	} else if _, exists := s.leases[l.ID]; exists {
		return lease.Lease{}, fmt.Errorf("lease %s already exists: %w", l.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.Version = 1
	l.Payments = append([]lease.Payment(nil), l.Payments...)

	s.leases[l.ID] = l
	return cloneLease(l), nil
}

func (s *Store) UpdateLease(_ context.Context, l lease.Lease) (lease.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.leases[l.ID]
	if !ok {
		return lease.Lease{}, fmt.Errorf("lease %s: %w", l.ID, storage.ErrNotFound)
	}
	if original.Version != l.Version {
		return lease.Lease{}, fmt.Errorf("lease %s: %w", l.ID, storage.ErrVersionMismatch)
	}

	l.LandID = original.LandID
	l.BuyerID = original.BuyerID
	l.SellerID = original.SellerID
	l.CreatedAt = original.CreatedAt
	l.UpdatedAt = time.Now().UTC()
	l.Version = original.Version + 1
	l.Payments = append([]lease.Payment(nil), l.Payments...)

	s.leases[l.ID] = l
	return cloneLease(l), nil
}

func (s *Store) GetLease(_ context.Context, id string) (lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leases[id]
	if !ok {
		return lease.Lease{}, fmt.Errorf("lease %s: %w", id, storage.ErrNotFound)
	}
	return cloneLease(l), nil
}

func (s *Store) ListLeasesByBuyer(_ context.Context, buyerID string) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]lease.Lease, 0)
	for _, l := range s.leases {
		if l.BuyerID == buyerID {
			result = append(result, cloneLease(l))
		}
	}
	sortLeasesNewestFirst(result)
	return result, nil
}

func (s *Store) ListLeasesBySeller(_ context.Context, sellerID string) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]lease.Lease, 0)
	for _, l := range s.leases {
		if l.SellerID == sellerID {
			result = append(result, cloneLease(l))
		}
	}
	sortLeasesNewestFirst(result)
	return result, nil
}

func (s *Store) ListOpenLeasesByLand(_ context.Context, landID string) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]lease.Lease, 0)
	for _, l := range s.leases {
		if l.LandID == landID && l.Status != lease.StatusCompleted {
			result = append(result, cloneLease(l))
		}
	}
	return result, nil
}

// Helpers ---------------------------------------------------------------------

func cloneLand(l land.Land) land.Land {
	l.Coordinates = append([]land.Point(nil), l.Coordinates...)
	l.PhotoKeys = append([]string(nil), l.PhotoKeys...)
	return l
}

func cloneLease(l lease.Lease) lease.Lease {
	l.Payments = append([]lease.Payment(nil), l.Payments...)
	return l
}

func sortLandsNewestFirst(lands []land.Land) {
	sort.Slice(lands, func(i, j int) bool {
		if lands[i].CreatedAt.Equal(lands[j].CreatedAt) {
			return lands[i].ID > lands[j].ID
		}
		return lands[i].CreatedAt.After(lands[j].CreatedAt)
	})
}

func sortInterestsNewestFirst(interests []interest.Interest) {
	sort.Slice(interests, func(i, j int) bool {
		if interests[i].CreatedAt.Equal(interests[j].CreatedAt) {
			return interests[i].ID > interests[j].ID
		}
		return interests[i].CreatedAt.After(interests[j].CreatedAt)
	})
}

func sortLeasesNewestFirst(leases []lease.Lease) {
	sort.Slice(leases, func(i, j int) bool {
		if leases[i].CreatedAt.Equal(leases[j].CreatedAt) {
			return leases[i].ID > leases[j].ID
		}
		return leases[i].CreatedAt.After(leases[j].CreatedAt)
	})
}
