// Package app wires configuration into the services both binaries share.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/gymbuddy-notify/internal/application/email"
	"github.com/gymbuddy-notify/internal/application/maintenance"
	"github.com/gymbuddy-notify/internal/application/notification"
	"github.com/gymbuddy-notify/internal/application/preference"
	"github.com/gymbuddy-notify/internal/application/push"
	"github.com/gymbuddy-notify/internal/application/realtime"
	"github.com/gymbuddy-notify/internal/config"
	"github.com/gymbuddy-notify/internal/infrastructure/awscfg"
	"github.com/gymbuddy-notify/internal/infrastructure/broadcast"
	"github.com/gymbuddy-notify/internal/infrastructure/dynamo"
	"github.com/gymbuddy-notify/internal/infrastructure/expo"
	jwtinfra "github.com/gymbuddy-notify/internal/infrastructure/jwt"
	"github.com/gymbuddy-notify/internal/infrastructure/postmark"
	s3infra "github.com/gymbuddy-notify/internal/infrastructure/s3"
	"github.com/gymbuddy-notify/internal/infrastructure/smtp"
	"github.com/gymbuddy-notify/internal/infrastructure/sns"
	"github.com/gymbuddy-notify/internal/pkg/i18n"
)

// Options toggles startup side effects per binary.
type Options struct {
	// Bootstrap creates missing DynamoDB tables.
	Bootstrap bool
	// RequireVerifier fails startup when the JWT public key cannot be read.
	RequireVerifier bool
}

// App is the assembled service graph.
type App struct {
	Notifications notification.Service
	Push          push.Service
	Preferences   preference.Service
	Maintenance   maintenance.Service
	Hub           broadcast.Hub
	Verifier      *jwtinfra.Provider
	Translator    *i18n.Translator

	closeOnce sync.Once
	closeErr  error
	closers   []func() error
}

// New builds every repository, channel and service from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{}

	awsCfg, err := awscfg.Load(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	db := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
	if opts.Bootstrap {
		dynamo.Bootstrap(ctx, db, cfg.DynamoTables)
	}
	tables := cfg.DynamoTables
	notifications := dynamo.NewNotificationRepo(db, tables.Notifications)
	tokens := dynamo.NewDeviceTokenRepo(db, tables.DeviceTokens)
	prefs := dynamo.NewPreferenceRepo(db, tables.Preferences)
	users := dynamo.NewUserRepo(db, tables.Users)
	logs := dynamo.NewDeliveryLogRepo(db, tables.DeliveryLogs)
	records := dynamo.NewRecordRepo(db, dynamo.RecordTables{
		Posts:    tables.Posts,
		Programs: tables.Programs,
		Workouts: tables.Workouts,
		Gyms:     tables.Gyms,
	})

	a.Translator, err = loadTranslator(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	a.Verifier, err = jwtinfra.NewProvider(cfg)
	if err != nil {
		if opts.RequireVerifier {
			return nil, fmt.Errorf("jwt provider: %w", err)
		}
		slog.Warn("JWT provider not available", "error", err)
		a.Verifier = nil
	}

	mailer, err := a.openTransports(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var events sns.EventPublisher = sns.NopPublisher{}
	if cfg.SNSEventsTopicARN != "" {
		snsCfg := awsCfg.Copy()
		snsCfg.Region = cfg.SNSRegion
		events = sns.NewPublisher(snsCfg, cfg.AWSEndpointURL, cfg.SNSEventsTopicARN)
	}

	a.Preferences = preference.NewService(prefs)
	a.Push = push.NewService(push.ServiceDeps{
		Tokens: tokens,
		Gateway: expo.NewClient(cfg.ExpoPushURL,
			expo.WithAccessToken(cfg.ExpoAccessToken),
			expo.WithRateLimit(cfg.ExpoRatePerSec)),
		Gate:       a.Preferences,
		Translator: a.Translator,
	})

	channels := []notification.Deliverer{
		realtime.NewChannel(a.Hub, a.Translator),
		a.Push,
	}
	if mailer != nil {
		channels = append(channels, email.NewChannel(mailer, a.Translator))
	}
	a.Notifications = notification.NewService(notification.ServiceDeps{
		Repo:           notifications,
		Users:          users,
		Records:        records,
		Logs:           logs,
		Preferences:    a.Preferences,
		Events:         events,
		Translator:     a.Translator,
		Channels:       channels,
		ChannelTimeout: cfg.ChannelTimeout,
		LogTTL:         cfg.DeliveryLogTTL,
	})
	a.Maintenance = maintenance.NewService(maintenance.ServiceDeps{
		Tokens:        tokens,
		Notifications: notifications,
	})
	return a, nil
}

// Close releases the realtime backend and its connections. Open event
// streams end when it runs. Later calls return the first result.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		for _, c := range a.closers {
			errs = append(errs, c())
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

// openTransports connects the realtime hub and the email sender. Anything
// already opened is closed again when a later step fails.
func (a *App) openTransports(ctx context.Context, cfg *config.Config) (email.Sender, error) {
	hub, err := newHub(ctx, cfg, a)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.Hub = hub
	mailer, err := newEmailSender(cfg)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return mailer, nil
}

// loadTranslator reads the embedded catalogs and overlays the optional S3
// bundle. A failing overlay is logged; the embedded catalogs still serve.
func loadTranslator(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (*i18n.Translator, error) {
	tables, err := i18n.LoadEmbedded()
	if err != nil {
		return nil, err
	}
	if cfg.TranslationsBucket != "" && cfg.TranslationsKey != "" {
		store := s3infra.NewStore(s3infra.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.TranslationsBucket)
		if data, err := store.Read(ctx, cfg.TranslationsKey); err != nil {
			slog.Warn("translation overlay not loaded", "key", cfg.TranslationsKey, "error", err)
		} else if overlay, err := i18n.ParseBundle(data); err != nil {
			slog.Warn("translation overlay unreadable", "key", cfg.TranslationsKey, "error", err)
		} else {
			tables = i18n.Merge(tables, overlay)
			slog.Info("translation overlay loaded", "key", cfg.TranslationsKey, "languages", len(overlay))
		}
	}
	return i18n.New(tables, i18n.WithDefaultLanguage(cfg.DefaultLanguage)), nil
}

func newHub(ctx context.Context, cfg *config.Config, a *App) (broadcast.Hub, error) {
	switch strings.ToLower(cfg.RealtimeBackend) {
	case "", "memory":
		hub := broadcast.NewMemoryHub(broadcast.DefaultBufferSize)
		a.closers = append(a.closers, hub.Close)
		return hub, nil
	case "redis":
		client, err := broadcast.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		hub := broadcast.NewRedisHub(client, broadcast.DefaultBufferSize)
		a.closers = append(a.closers, hub.Close, client.Close)
		return hub, nil
	default:
		return nil, fmt.Errorf("unknown REALTIME_BACKEND %q", cfg.RealtimeBackend)
	}
}

// emailSenders maps EMAIL_PROVIDER values to transports.
var emailSenders = map[string]func(*config.Config) (email.Sender, error){
	"smtp": func(cfg *config.Config) (email.Sender, error) { return smtp.NewMailer(cfg), nil },
	"postmark": func(cfg *config.Config) (email.Sender, error) {
		s, err := postmark.NewSender(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	},
}

// newEmailSender returns nil when email delivery is switched off.
func newEmailSender(cfg *config.Config) (email.Sender, error) {
	provider := strings.ToLower(cfg.EmailProvider)
	if provider == "none" || provider == "" {
		slog.Info("email channel disabled")
		return nil, nil
	}
	factory, ok := emailSenders[provider]
	if !ok {
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
	return factory(cfg)
}
