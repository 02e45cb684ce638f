// Package app wires the marketplace services together behind one
// Application value. Missing dependencies fall back to in-memory
// implementations so tests and local runs need no external services.
package app

import (
	"context"
	"time"

	"github.com/Gogul11/oriyam/internal/app/auth"
	"github.com/Gogul11/oriyam/internal/app/mailer"
	"github.com/Gogul11/oriyam/internal/app/objectstore"
	"github.com/Gogul11/oriyam/internal/app/otp"
	"github.com/Gogul11/oriyam/internal/app/services/interests"
	"github.com/Gogul11/oriyam/internal/app/services/lands"
	"github.com/Gogul11/oriyam/internal/app/services/leases"
	"github.com/Gogul11/oriyam/internal/app/services/users"
	"github.com/Gogul11/oriyam/internal/app/storage"
	"github.com/Gogul11/oriyam/internal/app/storage/memory"
	"github.com/Gogul11/oriyam/pkg/logger"
)

// Stores bundles the persistence interfaces the services depend on.
type Stores struct {
	Users     storage.UserStore
	Lands     storage.LandStore
	Interests storage.InterestStore
	Leases    storage.LeaseStore
}

// Options configures a new Application. Zero-value fields get in-memory
// defaults.
type Options struct {
	Stores  Stores
	OTP     otp.Store
	Mailer  mailer.Sender
	Objects objectstore.Store
	Issuer  *auth.TokenIssuer
	Logger  *logger.Logger
	// Health reports backing-store liveness; nil means always healthy.
	Health func(context.Context) error
}

// Application bundles the marketplace services.
type Application struct {
	Users     *users.Service
	Lands     *lands.Service
	Interests *interests.Service
	Leases    *leases.Service
	Issuer    *auth.TokenIssuer
	Log       *logger.Logger
	Health    func(context.Context) error
}

// New constructs an Application from the given options.
func New(opts Options) *Application {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("oriyam")
	}

	stores := opts.Stores
	if stores.Users == nil || stores.Lands == nil || stores.Interests == nil || stores.Leases == nil {
		mem := memory.New()
		if stores.Users == nil {
			stores.Users = mem
		}
		if stores.Lands == nil {
			stores.Lands = mem
		}
		if stores.Interests == nil {
			stores.Interests = mem
		}
		if stores.Leases == nil {
			stores.Leases = mem
		}
	}

	otpStore := opts.OTP
	if otpStore == nil {
		mem := otp.NewMemoryStore()
		mem.StartSweeper(context.Background(), time.Minute)
		otpStore = mem
	}

	mail := opts.Mailer
	if mail == nil {
		mail = mailer.NewLogSender(log)
	}

	objects := opts.Objects
	if objects == nil {
		objects = objectstore.NewMemoryStore()
	}

	issuer := opts.Issuer
	if issuer == nil {
		issuer = auth.NewTokenIssuer("dev-only-secret", time.Hour)
	}

	return &Application{
		Users:     users.New(stores.Users, otpStore, mail, issuer, log.WithField("component", "users")),
		Lands:     lands.New(stores.Lands, objects, log.WithField("component", "lands")),
		Interests: interests.New(stores.Interests, stores.Lands, stores.Users, log.WithField("component", "interests")),
		Leases:    leases.New(stores.Leases, stores.Lands, stores.Interests, log.WithField("component", "leases")),
		Issuer:    issuer,
		Log:       log,
		Health:    opts.Health,
	}
}
