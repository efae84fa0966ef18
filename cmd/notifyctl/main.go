// Command notifyctl runs maintenance jobs against the notification tables.
//
//	notifyctl cleanup-tokens -days 90
//	notifyctl cleanup-notifications -days 30
//	notifyctl backfill-keys
//	notifyctl send-test -user USER_ID -category like
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gymbuddy-notify/internal/app"
	"github.com/gymbuddy-notify/internal/application/maintenance"
	"github.com/gymbuddy-notify/internal/application/notification"
	"github.com/gymbuddy-notify/internal/config"
	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/observability/logging"
	"github.com/joho/godotenv"
)

var errUsage = errors.New("usage: notifyctl <cleanup-tokens|cleanup-notifications|backfill-keys|send-test> [flags]")

// services is what the subcommands need from the assembled app.
type services struct {
	Maintenance   maintenance.Service
	Notifications notification.Service
}

type command func(ctx context.Context, svc services, out io.Writer) error

func main() {
	_ = godotenv.Load()

	cmd, err := parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		slog.Error("assemble services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := cmd(ctx, services{Maintenance: a.Maintenance, Notifications: a.Notifications}, os.Stdout); err != nil {
		slog.Error("command failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}

// parse maps argv to a runnable command without touching any backend.
func parse(args []string) (command, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch args[0] {
	case "cleanup-tokens", "cleanup-notifications":
		days := fs.Int("days", 0, "age threshold in days")
		if err := fs.Parse(args[1:]); err != nil {
			return nil, err
		}
		if *days < 1 {
			return nil, fmt.Errorf("%s: -days must be at least 1", args[0])
		}
		if args[0] == "cleanup-tokens" {
			return func(ctx context.Context, svc services, out io.Writer) error {
				return report(out, "cleanup-tokens")(svc.Maintenance.CleanupTokens(ctx, *days))
			}, nil
		}
		return func(ctx context.Context, svc services, out io.Writer) error {
			return report(out, "cleanup-notifications")(svc.Maintenance.CleanupNotifications(ctx, *days))
		}, nil

	case "backfill-keys":
		if err := fs.Parse(args[1:]); err != nil {
			return nil, err
		}
		return func(ctx context.Context, svc services, out io.Writer) error {
			return report(out, "backfill-keys")(svc.Maintenance.BackfillKeys(ctx))
		}, nil

	case "send-test":
		user := fs.String("user", "", "recipient user ID")
		category := fs.String("category", string(domain.CategorySystemUpdate), "notification category")
		sender := fs.String("sender", "", "optional sender user ID")
		if err := fs.Parse(args[1:]); err != nil {
			return nil, err
		}
		if *user == "" {
			return nil, errors.New("send-test: -user is required")
		}
		return func(ctx context.Context, svc services, out io.Writer) error {
			n, err := svc.Notifications.Create(ctx, notification.CreateInput{
				UserID:          *user,
				Category:        domain.Category(*category),
				SenderID:        *sender,
				Params:          map[string]string{"source": "notifyctl"},
				FallbackContent: "Test notification",
			})
			if err != nil {
				return fmt.Errorf("send-test: %w", err)
			}
			return json.NewEncoder(out).Encode(n)
		}, nil
	}
	return nil, errUsage
}

func report(out io.Writer, job string) func(maintenance.Report, error) error {
	return func(r maintenance.Report, err error) error {
		if err != nil {
			return fmt.Errorf("%s: %w", job, err)
		}
		slog.Info("job finished", "job", job, "scanned", r.Scanned, "affected", r.Affected, "failed", r.Failed)
		return json.NewEncoder(out).Encode(r)
	}
}
