package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Gogul11/oriyam/internal/app/domain/lease"
	"github.com/Gogul11/oriyam/internal/app/domain/user"
	"github.com/Gogul11/oriyam/internal/app/storage"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return New(db), mock, func() { db.Close() }
}

func TestCreateUserInsertsRow(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := store.CreateUser(context.Background(), testUser())
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(errors.New("pq: duplicate key value violates unique constraint"))

	// A plain error is not a conflict; only pq code 23505 is.
	_, err := store.CreateUser(context.Background(), testUser())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, storage.ErrConflict) {
		t.Fatal("generic error must not map to conflict")
	}
}

func TestGetUserNotFound(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateLeaseVersionPredicate(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	l := lease.Lease{
		ID:          "lease-1",
		LandID:      "land-1",
		BuyerID:     "buyer-1",
		SellerID:    "seller-1",
		Status:      lease.StatusActive,
		TotalMonths: 6,
		Version:     3,
	}

	mock.ExpectExec(`UPDATE leases SET .+ WHERE id = \$1 AND version = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM leases WHERE id`).
		WithArgs("lease-1").
		WillReturnRows(leaseRows(l, 4))

	updated, err := store.UpdateLease(context.Background(), l)
	if err != nil {
		t.Fatalf("update lease: %v", err)
	}
	if updated.Version != 4 {
		t.Fatalf("expected version 4 after update, got %d", updated.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateLeaseStaleVersion(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	l := lease.Lease{ID: "lease-1", Status: lease.StatusActive, Version: 2}

	mock.ExpectExec(`UPDATE leases SET .+ WHERE id = \$1 AND version = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM leases WHERE id`).
		WithArgs("lease-1").
		WillReturnRows(leaseRows(l, 5))

	_, err := store.UpdateLease(context.Background(), l)
	if !errors.Is(err, storage.ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestUpdateLeaseMissingRow(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	l := lease.Lease{ID: "gone", Status: lease.StatusActive, Version: 1}

	mock.ExpectExec(`UPDATE leases SET .+ WHERE id = \$1 AND version = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM leases WHERE id`).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)

	_, err := store.UpdateLease(context.Background(), l)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testUser() user.User {
	return user.User{
		Username:     "ravi",
		Email:        "ravi@example.com",
		Mobile:       "9876543210",
		PasswordHash: "hash",
		Age:          30,
	}
}

func leaseRows(l lease.Lease, version int64) *sqlmock.Rows {
	payments, _ := json.Marshal(l.Payments)
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "land_id", "buyer_id", "seller_id", "deposit", "monthly_due",
		"total_months", "status", "seller_approved", "buyer_approved",
		"start_date", "end_date", "payments", "version", "created_at", "updated_at",
	}).AddRow(
		l.ID, l.LandID, l.BuyerID, l.SellerID, l.Deposit, l.MonthlyDue,
		l.TotalMonths, string(l.Status), l.SellerApproved, l.BuyerApproved,
		l.StartDate, l.EndDate, payments, version, now, now,
	)
}
