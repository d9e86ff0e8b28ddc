package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"edushelf/internal/config"
	"edushelf/pkg/mailer"
	"edushelf/pkg/storage"
	"edushelf/pkg/store"

	"github.com/redis/go-redis/v9"
)

const defaultMonthlyBookLimit = 10

// Config holds runtime dependencies for the core application.
// Store, Objects, OTPs, Tokens, and Mail may be pre-built (tests do this);
// anything nil is constructed from the file config.
type Config struct {
	File    config.FileConfig
	Logger  *slog.Logger
	Store   store.Store
	Objects storage.ObjectStore
	OTPs    *store.OTPStore
	Tokens  *store.TokenIssuer
	Mail    mailer.Mailer
}

// App wires storage, tokens, OTP state, and mail into the portal's
// business logic.
type App struct {
	store   store.Store
	objects storage.ObjectStore
	otps    *store.OTPStore
	tokens  *store.TokenIssuer
	mail    mailer.Mailer
	logger  *slog.Logger
}

// New constructs the application, building any dependency not injected.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.File.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.File.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	otps := cfg.OTPs
	if otps == nil {
		if strings.TrimSpace(cfg.File.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for otp storage")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.File.RedisAddr,
			Password: cfg.File.RedisPassword,
		})
		var err error
		otps, err = store.NewOTPStore(client, 0, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("init otp store: %w", err)
		}
	}

	tokens := cfg.Tokens
	if tokens == nil {
		accessTTL, err := config.ParseTTL(cfg.File.AccessTTL, 7*24*time.Hour)
		if err != nil {
			return nil, err
		}
		refreshTTL, err := config.ParseTTL(cfg.File.RefreshTTL, 30*24*time.Hour)
		if err != nil {
			return nil, err
		}
		tokens, err = store.NewTokenIssuer(cfg.File.JWTSecret, cfg.File.JWTRefreshSecret, accessTTL, refreshTTL)
		if err != nil {
			return nil, fmt.Errorf("init token issuer: %w", err)
		}
	}

	objects := cfg.Objects
	if objects == nil {
		var err error
		switch cfg.File.StorageBackend {
		case "minio":
			objects, err = storage.NewMinioStore(
				cfg.File.MinioEndpoint,
				cfg.File.MinioAccessKey,
				cfg.File.MinioSecretKey,
				cfg.File.MinioBucket,
				cfg.File.MinioUseSSL,
			)
		default:
			baseURL := strings.TrimRight(cfg.File.PublicBaseURL, "/") + "/uploads"
			objects, err = storage.NewFileStore(cfg.File.UploadDir, baseURL)
		}
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
	}

	mail := cfg.Mail
	if mail == nil {
		if strings.TrimSpace(cfg.File.SMTPHost) != "" {
			var err error
			mail, err = mailer.NewSMTPMailer(
				cfg.File.SMTPHost,
				cfg.File.SMTPPort,
				cfg.File.SMTPUser,
				cfg.File.SMTPPass,
				cfg.File.MailFrom,
			)
			if err != nil {
				return nil, fmt.Errorf("init smtp mailer: %w", err)
			}
		} else {
			mail = mailer.NewLogMailer(logger)
		}
	}

	return &App{
		store:   dataStore,
		objects: objects,
		otps:    otps,
		tokens:  tokens,
		mail:    mail,
		logger:  logger,
	}, nil
}

// Store exposes the data store for server-level wiring.
func (a *App) Store() store.Store {
	return a.store
}

// Objects exposes the asset store for server-level wiring.
func (a *App) Objects() storage.ObjectStore {
	return a.objects
}
