// Package users covers registration, login, profile management and the
// OTP-based password reset flow.
package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Gogul11/oriyam/internal/app/auth"
	"github.com/Gogul11/oriyam/internal/app/domain/user"
	"github.com/Gogul11/oriyam/internal/app/mailer"
	"github.com/Gogul11/oriyam/internal/app/otp"
	"github.com/Gogul11/oriyam/internal/app/services"
	"github.com/Gogul11/oriyam/internal/app/storage"
	"github.com/Gogul11/oriyam/pkg/logger"
)

// ErrInvalidCredentials is returned when login fails. The message never
// reveals whether the mobile number or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid mobile number or password")

// ErrInvalidOTP is returned when the submitted code does not match.
var ErrInvalidOTP = errors.New("invalid OTP")

// ErrOTPExpired is returned when no live code exists for the account.
var ErrOTPExpired = errors.New("OTP expired")

// ErrOTPNotVerified is returned when a reset is attempted before the code
// was verified.
var ErrOTPNotVerified = errors.New("OTP not verified")

var (
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	mobilePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username         string
	Email            string
	Mobile           string
	Password         string
	Age              int
	GovernmentID     string
	GovernmentIDType string
	DateOfBirth      string
}

// Service manages user accounts.
type Service struct {
	store  storage.UserStore
	otps   otp.Store
	mail   mailer.Sender
	issuer *auth.TokenIssuer
	log    *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, otps otp.Store, mail mailer.Sender, issuer *auth.TokenIssuer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{
		store:  store,
		otps:   otps,
		mail:   mail,
		issuer: issuer,
		log:    log,
	}
}

// Register creates a new account. All uniqueness checks ride on the store so
// concurrent registrations cannot slip past validation.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.GovernmentID = strings.TrimSpace(in.GovernmentID)
	in.GovernmentIDType = strings.TrimSpace(in.GovernmentIDType)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)

	if in.Username == "" {
		return user.User{}, services.Invalidf("username is required")
	}
	if !emailPattern.MatchString(in.Email) {
		return user.User{}, services.Invalidf("email is invalid")
	}
	if !mobilePattern.MatchString(in.Mobile) {
		return user.User{}, services.Invalidf("mobile must be a 10 digit number")
	}
	if len(in.Password) < 8 {
		return user.User{}, services.Invalidf("password must be at least 8 characters")
	}
	if in.Age < 18 {
		return user.User{}, services.Invalidf("age must be at least 18")
	}
	if in.GovernmentID != "" && in.GovernmentIDType == "" {
		return user.User{}, services.Invalidf("government_id_type is required with government_id")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return user.User{}, err
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Username:         in.Username,
		Email:            in.Email,
		Mobile:           in.Mobile,
		PasswordHash:     hash,
		Age:              in.Age,
		GovernmentID:     in.GovernmentID,
		GovernmentIDType: in.GovernmentIDType,
		DateOfBirth:      in.DateOfBirth,
	})
	if err != nil {
		return user.User{}, err
	}

	s.log.WithField("user_id", created.ID).
		WithField("username", created.Username).
		Info("user registered")
	return created, nil
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, mobile, password string) (user.User, string, error) {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" || password == "" {
		return user.User{}, "", ErrInvalidCredentials
	}

	u, err := s.store.GetUserByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, "", ErrInvalidCredentials
		}
		return user.User{}, "", err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		s.log.WithField("user_id", u.ID).Warn("failed login attempt")
		return user.User{}, "", ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(u.ID, "")
	if err != nil {
		return user.User{}, "", err
	}
	return u, token, nil
}

// Profile returns the public profile of a user.
func (s *Service) Profile(ctx context.Context, userID string) (user.Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return user.Profile{}, err
	}
	return u.PublicProfile(), nil
}

// UpdateProfile changes the mutable account fields. Empty fields keep their
// current value; the government identity is immutable.
func (s *Service) UpdateProfile(ctx context.Context, userID, username, email, mobile string) (user.Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return user.Profile{}, err
	}

	if v := strings.TrimSpace(username); v != "" {
		u.Username = v
	}
	if v := strings.TrimSpace(strings.ToLower(email)); v != "" {
		if !emailPattern.MatchString(v) {
			return user.Profile{}, services.Invalidf("email is invalid")
		}
		u.Email = v
	}
	if v := strings.TrimSpace(mobile); v != "" {
		if !mobilePattern.MatchString(v) {
			return user.Profile{}, services.Invalidf("mobile must be a 10 digit number")
		}
		u.Mobile = v
	}

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.Profile{}, err
	}
	return updated.PublicProfile(), nil
}

// ForgotPassword issues a reset code to a registered email. The code is
// delivered out of band and expires after five minutes.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return services.Invalidf("email is required")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err != nil {
		return err
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return err
	}
	rec := otp.Record{Code: code, ExpiresAt: time.Now().Add(otp.TTL)}
	if err := s.otps.Put(ctx, email, rec); err != nil {
		return err
	}

	body := fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, int(otp.TTL.Minutes()))
	if err := s.mail.Send(email, "Password reset code", body); err != nil {
		return fmt.Errorf("deliver otp: %w", err)
	}

	s.log.WithField("email", email).Info("password reset code issued")
	return nil
}

// VerifyOTP checks a submitted code and marks it for a subsequent reset.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	code = strings.TrimSpace(code)

	rec, err := s.otps.Get(ctx, email)
	if err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			return ErrOTPExpired
		}
		return err
	}
	if rec.Code != code {
		return ErrInvalidOTP
	}
	return s.otps.MarkVerified(ctx, email)
}

// ResetPassword sets a new password. It requires a previously verified code
// and consumes it, so each code resets at most one password.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if len(newPassword) < 8 {
		return services.Invalidf("password must be at least 8 characters")
	}

	rec, err := s.otps.Get(ctx, email)
	if err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			return ErrOTPExpired
		}
		return err
	}
	if !rec.Verified {
		return ErrOTPNotVerified
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if _, err := s.store.UpdateUser(ctx, u); err != nil {
		return err
	}

	if err := s.otps.Delete(ctx, email); err != nil {
		s.log.WithError(err).WithField("email", email).Warn("failed to consume otp")
	}

	s.log.WithField("user_id", u.ID).Info("password reset")
	return nil
}

// List returns every registered account, for the operator surface.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// Get returns one account, for the operator surface.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}
