package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	app "github.com/Gogul11/oriyam/internal/app"
	"github.com/Gogul11/oriyam/internal/app/auth"
	"github.com/Gogul11/oriyam/internal/app/httpapi"
	"github.com/Gogul11/oriyam/internal/app/mailer"
	"github.com/Gogul11/oriyam/internal/app/metrics"
	"github.com/Gogul11/oriyam/internal/app/objectstore"
	"github.com/Gogul11/oriyam/internal/app/otp"
	"github.com/Gogul11/oriyam/internal/app/storage/postgres"
	"github.com/Gogul11/oriyam/internal/config"
	"github.com/Gogul11/oriyam/internal/platform/database"
	"github.com/Gogul11/oriyam/internal/platform/migrations"
	"github.com/Gogul11/oriyam/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	store := postgres.New(db)

	var otpStore otp.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		defer client.Close()
		otpStore = otp.NewRedisStore(client)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis otp store")
	} else {
		mem := otp.NewMemoryStore()
		mem.StartSweeper(ctx, time.Minute)
		otpStore = mem
		log.Warn("REDIS_ADDR not set, otp codes are held in memory")
	}

	var mail mailer.Sender
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTPSender(cfg.SMTP)
	} else {
		mail = mailer.NewLogSender(log.WithField("component", "mailer"))
		log.Warn("SMTP_HOST not set, otp mail is written to the log")
	}

	objects := objectstore.NewDiskStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	application := app.New(app.Options{
		Stores: app.Stores{
			Users:     store,
			Lands:     store,
			Interests: store,
			Leases:    store,
		},
		OTP:     otpStore,
		Mailer:  mail,
		Objects: objects,
		Issuer:  issuer,
		Logger:  log,
		Health:  db.PingContext,
	})

	limiter := httpapi.NewRateLimiter(20, 40, issuer)

	root := http.NewServeMux()
	root.Handle(cfg.Storage.PublicBaseURL+"/", http.StripPrefix(cfg.Storage.PublicBaseURL+"/",
		http.FileServer(http.Dir(cfg.Storage.Dir))))
	root.Handle("/", httpapi.NewHandler(application))

	handler := metrics.InstrumentHandler(httpapi.CORS(limiter.Handler(root)))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
