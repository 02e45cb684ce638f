package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Gogul11/oriyam/internal/app/domain/interest"
	"github.com/Gogul11/oriyam/internal/app/domain/land"
	"github.com/Gogul11/oriyam/internal/app/domain/lease"
	"github.com/Gogul11/oriyam/internal/app/domain/user"
	"github.com/Gogul11/oriyam/internal/app/storage"
)

// Store is a PostgreSQL-backed implementation of the storage interfaces.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.LandStore = (*Store)(nil)
var _ storage.InterestStore = (*Store)(nil)
var _ storage.LeaseStore = (*Store)(nil)

// New wraps an open database handle. The caller owns the handle's lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// UserStore implementation ----------------------------------------------------

const userColumns = `id, username, email, mobile, password_hash, age, government_id, government_id_type, date_of_birth, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, mobile, password_hash, age, government_id, government_id_type, date_of_birth, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Username, strings.ToLower(u.Email), u.Mobile, u.PasswordHash, u.Age,
		u.GovernmentID, u.GovernmentIDType, u.DateOfBirth, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, fmt.Errorf("create user: %w", storage.ErrConflict)
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET username = $2, email = $3, mobile = $4, password_hash = $5, age = $6, date_of_birth = $7, updated_at = $8
		WHERE id = $1`,
		u.ID, u.Username, strings.ToLower(u.Email), u.Mobile, u.PasswordHash, u.Age, u.DateOfBirth, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, fmt.Errorf("update user: %w", storage.ErrConflict)
		}
		return user.User{}, fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return user.User{}, fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByMobile(ctx context.Context, mobile string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE mobile = $1`, mobile)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Mobile, &u.PasswordHash, &u.Age,
		&u.GovernmentID, &u.GovernmentIDType, &u.DateOfBirth, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user: %w", storage.ErrNotFound)
	}
	if err != nil {
		return user.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// LandStore implementation ----------------------------------------------------

const landColumns = `id, owner_id, title, description, area, area_unit, monthly_rent, soil_type, water_source, available_from, available_to, coordinates, photo_keys, available, created_at, updated_at`

func (s *Store) CreateLand(ctx context.Context, l land.Land) (land.Land, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	coords, err := json.Marshal(l.Coordinates)
	if err != nil {
		return land.Land{}, fmt.Errorf("marshal coordinates: %w", err)
	}
	photos, err := json.Marshal(l.PhotoKeys)
	if err != nil {
		return land.Land{}, fmt.Errorf("marshal photo keys: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lands (id, owner_id, title, description, area, area_unit, monthly_rent, soil_type, water_source, available_from, available_to, coordinates, photo_keys, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		l.ID, l.OwnerID, l.Title, l.Description, l.Area, l.AreaUnit, l.MonthlyRent,
		l.SoilType, l.WaterSource, l.AvailableFrom, l.AvailableTo, coords, photos,
		l.Available, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return land.Land{}, fmt.Errorf("create land: %w", err)
	}
	return l, nil
}

func (s *Store) UpdateLand(ctx context.Context, l land.Land) (land.Land, error) {
	l.UpdatedAt = time.Now().UTC()

	coords, err := json.Marshal(l.Coordinates)
	if err != nil {
		return land.Land{}, fmt.Errorf("marshal coordinates: %w", err)
	}
	photos, err := json.Marshal(l.PhotoKeys)
	if err != nil {
		return land.Land{}, fmt.Errorf("marshal photo keys: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE lands SET title = $2, description = $3, area = $4, area_unit = $5, monthly_rent = $6, soil_type = $7, water_source = $8, available_from = $9, available_to = $10, coordinates = $11, photo_keys = $12, available = $13, updated_at = $14
		WHERE id = $1`,
		l.ID, l.Title, l.Description, l.Area, l.AreaUnit, l.MonthlyRent, l.SoilType,
		l.WaterSource, l.AvailableFrom, l.AvailableTo, coords, photos, l.Available, l.UpdatedAt)
	if err != nil {
		return land.Land{}, fmt.Errorf("update land: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return land.Land{}, fmt.Errorf("update land: %w", err)
	}
	if affected == 0 {
		return land.Land{}, fmt.Errorf("land %s: %w", l.ID, storage.ErrNotFound)
	}
	return s.GetLand(ctx, l.ID)
}

func (s *Store) GetLand(ctx context.Context, id string) (land.Land, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+landColumns+` FROM lands WHERE id = $1`, id)
	return scanLand(row)
}

func (s *Store) ListLands(ctx context.Context) ([]land.Land, error) {
	return s.queryLands(ctx, `SELECT `+landColumns+` FROM lands ORDER BY created_at DESC`)
}

func (s *Store) ListLandsByOwner(ctx context.Context, ownerID string) ([]land.Land, error) {
	return s.queryLands(ctx, `SELECT `+landColumns+` FROM lands WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (s *Store) ListAvailableLandsExcluding(ctx context.Context, ownerID string) ([]land.Land, error) {
	return s.queryLands(ctx, `SELECT `+landColumns+` FROM lands WHERE available = TRUE AND owner_id <> $1 ORDER BY created_at DESC`, ownerID)
}

func (s *Store) queryLands(ctx context.Context, query string, args ...interface{}) ([]land.Land, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lands: %w", err)
	}
	defer rows.Close()

	var result []land.Land
	for rows.Next() {
		l, err := scanLand(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func scanLand(row rowScanner) (land.Land, error) {
	var l land.Land
	var coords, photos []byte
	err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Area, &l.AreaUnit,
		&l.MonthlyRent, &l.SoilType, &l.WaterSource, &l.AvailableFrom, &l.AvailableTo,
		&coords, &photos, &l.Available, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return land.Land{}, fmt.Errorf("land: %w", storage.ErrNotFound)
	}
	if err != nil {
		return land.Land{}, fmt.Errorf("scan land: %w", err)
	}
	if len(coords) > 0 {
		if err := json.Unmarshal(coords, &l.Coordinates); err != nil {
			return land.Land{}, fmt.Errorf("unmarshal coordinates: %w", err)
		}
	}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &l.PhotoKeys); err != nil {
			return land.Land{}, fmt.Errorf("unmarshal photo keys: %w", err)
		}
	}
	return l, nil
}

// InterestStore implementation ------------------------------------------------

const interestColumns = `id, land_id, user_id, monthly_budget, rent_period_months, reason, created_at`

func (s *Store) CreateInterest(ctx context.Context, in interest.Interest) (interest.Interest, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	in.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interests (id, land_id, user_id, monthly_budget, rent_period_months, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		in.ID, in.LandID, in.UserID, in.MonthlyBudget, in.RentPeriodMonths, in.Reason, in.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return interest.Interest{}, fmt.Errorf("create interest: %w", storage.ErrConflict)
		}
		return interest.Interest{}, fmt.Errorf("create interest: %w", err)
	}
	return in, nil
}

func (s *Store) GetInterest(ctx context.Context, id string) (interest.Interest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+interestColumns+` FROM interests WHERE id = $1`, id)
	return scanInterest(row)
}

func (s *Store) GetInterestByLandAndUser(ctx context.Context, landID, userID string) (interest.Interest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+interestColumns+` FROM interests WHERE land_id = $1 AND user_id = $2`, landID, userID)
	return scanInterest(row)
}

func (s *Store) ListInterestsByLand(ctx context.Context, landID string) ([]interest.Interest, error) {
	return s.queryInterests(ctx, `SELECT `+interestColumns+` FROM interests WHERE land_id = $1 ORDER BY created_at DESC`, landID)
}

func (s *Store) ListInterestsByUser(ctx context.Context, userID string) ([]interest.Interest, error) {
	return s.queryInterests(ctx, `SELECT `+interestColumns+` FROM interests WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (s *Store) queryInterests(ctx context.Context, query string, args ...interface{}) ([]interest.Interest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interests: %w", err)
	}
	defer rows.Close()

	var result []interest.Interest
	for rows.Next() {
		in, err := scanInterest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, in)
	}
	return result, rows.Err()
}

func scanInterest(row rowScanner) (interest.Interest, error) {
	var in interest.Interest
	err := row.Scan(&in.ID, &in.LandID, &in.UserID, &in.MonthlyBudget, &in.RentPeriodMonths, &in.Reason, &in.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return interest.Interest{}, fmt.Errorf("interest: %w", storage.ErrNotFound)
	}
	if err != nil {
		return interest.Interest{}, fmt.Errorf("scan interest: %w", err)
	}
	return in, nil
}

// LeaseStore implementation ---------------------------------------------------

const leaseColumns = `id, land_id, buyer_id, seller_id, deposit, monthly_due, total_months, status, seller_approved, buyer_approved, start_date, end_date, payments, version, created_at, updated_at`

func (s *Store) CreateLease(ctx context.Context, l lease.Lease) (lease.Lease, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.Version = 1

	payments, err := json.Marshal(l.Payments)
	if err != nil {
		return lease.Lease{}, fmt.Errorf("marshal payments: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leases (id, land_id, buyer_id, seller_id, deposit, monthly_due, total_months, status, seller_approved, buyer_approved, start_date, end_date, payments, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		l.ID, l.LandID, l.BuyerID, l.SellerID, l.Deposit, l.MonthlyDue, l.TotalMonths,
		string(l.Status), l.SellerApproved, l.BuyerApproved, l.StartDate, l.EndDate,
		payments, l.Version, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return lease.Lease{}, fmt.Errorf("create lease: %w", err)
	}
	return l, nil
}

func (s *Store) UpdateLease(ctx context.Context, l lease.Lease) (lease.Lease, error) {
	l.UpdatedAt = time.Now().UTC()

	payments, err := json.Marshal(l.Payments)
	if err != nil {
		return lease.Lease{}, fmt.Errorf("marshal payments: %w", err)
	}

	// The version predicate makes the read-modify-write atomic: a lost race
	// touches zero rows.
	res, err := s.db.ExecContext(ctx, `
		UPDATE leases SET deposit = $3, monthly_due = $4, total_months = $5, status = $6, seller_approved = $7, buyer_approved = $8, start_date = $9, end_date = $10, payments = $11, version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $2`,
		l.ID, l.Version, l.Deposit, l.MonthlyDue, l.TotalMonths, string(l.Status),
		l.SellerApproved, l.BuyerApproved, l.StartDate, l.EndDate, payments, l.UpdatedAt)
	if err != nil {
		return lease.Lease{}, fmt.Errorf("update lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return lease.Lease{}, fmt.Errorf("update lease: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetLease(ctx, l.ID); errors.Is(getErr, storage.ErrNotFound) {
			return lease.Lease{}, fmt.Errorf("lease %s: %w", l.ID, storage.ErrNotFound)
		}
		return lease.Lease{}, fmt.Errorf("lease %s: %w", l.ID, storage.ErrVersionMismatch)
	}
	return s.GetLease(ctx, l.ID)
}

func (s *Store) GetLease(ctx context.Context, id string) (lease.Lease, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leaseColumns+` FROM leases WHERE id = $1`, id)
	return scanLease(row)
}

func (s *Store) ListLeasesByBuyer(ctx context.Context, buyerID string) ([]lease.Lease, error) {
	return s.queryLeases(ctx, `SELECT `+leaseColumns+` FROM leases WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

func (s *Store) ListLeasesBySeller(ctx context.Context, sellerID string) ([]lease.Lease, error) {
	return s.queryLeases(ctx, `SELECT `+leaseColumns+` FROM leases WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
}

func (s *Store) ListOpenLeasesByLand(ctx context.Context, landID string) ([]lease.Lease, error) {
	return s.queryLeases(ctx, `SELECT `+leaseColumns+` FROM leases WHERE land_id = $1 AND status <> 'completed'`, landID)
}

func (s *Store) queryLeases(ctx context.Context, query string, args ...interface{}) ([]lease.Lease, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leases: %w", err)
	}
	defer rows.Close()

	var result []lease.Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func scanLease(row rowScanner) (lease.Lease, error) {
	var l lease.Lease
	var status string
	var payments []byte
	err := row.Scan(&l.ID, &l.LandID, &l.BuyerID, &l.SellerID, &l.Deposit, &l.MonthlyDue,
		&l.TotalMonths, &status, &l.SellerApproved, &l.BuyerApproved, &l.StartDate,
		&l.EndDate, &payments, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return lease.Lease{}, fmt.Errorf("lease: %w", storage.ErrNotFound)
	}
	if err != nil {
		return lease.Lease{}, fmt.Errorf("scan lease: %w", err)
	}
	l.Status = lease.Status(status)
	if len(payments) > 0 {
		if err := json.Unmarshal(payments, &l.Payments); err != nil {
			return lease.Lease{}, fmt.Errorf("unmarshal payments: %w", err)
		}
	}
	return l, nil
}
