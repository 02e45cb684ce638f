package users

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Gogul11/oriyam/internal/app/auth"
	"github.com/Gogul11/oriyam/internal/app/otp"
	"github.com/Gogul11/oriyam/internal/app/storage"
	"github.com/Gogul11/oriyam/internal/app/storage/memory"
)

type captureSender struct {
	to   string
	body string
}

func (c *captureSender) Send(to, _, body string) error {
	c.to = to
	c.body = body
	return nil
}

func newService() (*Service, *captureSender, *memory.Store) {
	store := memory.New()
	sender := &captureSender{}
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	svc := New(store, otp.NewMemoryStore(), sender, issuer, nil)
	return svc, sender, store
}

func validInput() RegisterInput {
	return RegisterInput{
		Username: "ravi",
		Email:    "ravi@example.com",
		Mobile:   "9876543210",
		Password: "password123",
		Age:      30,
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"empty username", func(in *RegisterInput) { in.Username = "" }},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"short mobile", func(in *RegisterInput) { in.Mobile = "12345" }},
		{"short password", func(in *RegisterInput) { in.Password = "short" }},
		{"underage", func(in *RegisterInput) { in.Age = 17 }},
		{"gov id without type", func(in *RegisterInput) { in.GovernmentID = "ABC123" }},
	}
	for _, tc := range cases {
		in := validInput()
		tc.mutate(&in)
		if _, err := svc.Register(ctx, in); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	created, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.PasswordHash == "password123" {
		t.Fatal("password must be hashed")
	}

	u, token, err := svc.Login(ctx, "9876543210", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != created.ID {
		t.Fatalf("expected user %s, got %s", created.ID, u.ID)
	}
	if token == "" {
		t.Fatal("expected a bearer token")
	}

	if _, _, err := svc.Login(ctx, "9876543210", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "0000000000", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown mobile, got %v", err)
	}
}

func TestRegisterDuplicateMobile(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	dup := validInput()
	dup.Username = "other"
	dup.Email = "other@example.com"
	if _, err := svc.Register(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, sender, _ := newService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.ForgotPassword(ctx, "ravi@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	if sender.to != "ravi@example.com" {
		t.Fatalf("expected mail to ravi@example.com, got %s", sender.to)
	}

	code := extractCode(t, sender.body)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if err := svc.VerifyOTP(ctx, "ravi@example.com", wrong); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected invalid OTP, got %v", err)
	}
	if err := svc.ResetPassword(ctx, "ravi@example.com", "newpassword1"); !errors.Is(err, ErrOTPNotVerified) {
		t.Fatalf("expected unverified OTP to block reset, got %v", err)
	}

	if err := svc.VerifyOTP(ctx, "ravi@example.com", code); err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	if err := svc.ResetPassword(ctx, "ravi@example.com", "newpassword1"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	if _, _, err := svc.Login(ctx, "9876543210", "newpassword1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "9876543210", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to be rejected, got %v", err)
	}

	// The code was consumed; a second reset must fail.
	if err := svc.ResetPassword(ctx, "ravi@example.com", "anotherpass1"); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected consumed OTP to read as expired, got %v", err)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, _, _ := newService()

	err := svc.ForgotPassword(context.Background(), "nobody@example.com")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyOTPExpired(t *testing.T) {
	svc, _, _ := newService()

	err := svc.VerifyOTP(context.Background(), "ravi@example.com", "123456")
	if !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected OTP expired for missing record, got %v", err)
	}
}

func TestUpdateProfileKeepsGovernmentID(t *testing.T) {
	svc, _, store := newService()
	ctx := context.Background()

	in := validInput()
	in.GovernmentID = "GOV-42"
	in.GovernmentIDType = "aadhaar"
	created, err := svc.Register(ctx, in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	profile, err := svc.UpdateProfile(ctx, created.ID, "newname", "", "")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if profile.Username != "newname" {
		t.Fatalf("expected updated username, got %s", profile.Username)
	}

	u, err := store.GetUser(ctx, created.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.GovernmentID != "GOV-42" {
		t.Fatal("government id must be immutable")
	}
	if u.Email != "ravi@example.com" {
		t.Fatalf("empty email must keep current value, got %s", u.Email)
	}
}

func extractCode(t *testing.T, body string) string {
	t.Helper()
	for _, field := range strings.Fields(body) {
		trimmed := strings.Trim(field, ".")
		if len(trimmed) == 6 && strings.Trim(trimmed, "0123456789") == "" {
			return trimmed
		}
	}
	t.Fatalf("no code found in mail body %q", body)
	return ""
}
