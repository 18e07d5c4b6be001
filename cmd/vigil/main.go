package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigilbot/vigil/store"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "vigil",
		Usage:   "group chat moderation daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "telegram-token",
			Usage:    "Bot API token",
			Required: true,
			EnvVars:  []string{"TELEGRAM_TOKEN", "VIGIL_TELEGRAM_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/vigil/vigil.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; enables persistent counters and update cursor",
			EnvVars: []string{"VIGIL_REDIS_URL", "REDIS_URL"},
		},
		&cli.Int64SliceFlag{
			Name:    "admin-ids",
			Usage:   "user IDs exempt from moderation and allowed privileged commands",
			EnvVars: []string{"VIGIL_ADMIN_IDS"},
		},
		&cli.IntFlag{
			Name:    "ban-threshold",
			Usage:   "warning count at which a user is banned",
			Value:   3,
			EnvVars: []string{"VIGIL_BAN_THRESHOLD"},
		},
		&cli.StringSliceFlag{
			Name:    "allowed-domains",
			Usage:   "link domains (and their subdomains) that are never treated as violations",
			EnvVars: []string{"VIGIL_ALLOWED_DOMAINS"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"VIGIL_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "webhook-bind",
			Usage:   "IP or address, and port, to receive webhook updates on; empty means long polling",
			EnvVars: []string{"VIGIL_WEBHOOK_BIND"},
		},
		&cli.StringFlag{
			Name:    "webhook-secret",
			Usage:   "expected X-Telegram-Bot-Api-Secret-Token header value",
			EnvVars: []string{"VIGIL_WEBHOOK_SECRET"},
		},
		&cli.DurationFlag{
			Name:    "poll-timeout",
			Usage:   "long poll duration for getUpdates",
			Value:   30 * time.Second,
			EnvVars: []string{"VIGIL_POLL_TIMEOUT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := store.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}

		srv, err := NewServer(
			ctx,
			db,
			Config{
				TelegramToken:  cctx.String("telegram-token"),
				RedisURL:       cctx.String("redis-url"),
				AdminIDs:       cctx.Int64Slice("admin-ids"),
				BanThreshold:   cctx.Int("ban-threshold"),
				AllowedDomains: cctx.StringSlice("allowed-domains"),
				WebhookBind:    cctx.String("webhook-bind"),
				WebhookSecret:  cctx.String("webhook-secret"),
				PollTimeout:    cctx.Duration("poll-timeout"),
				Logger:         logger,
			},
		)
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}
