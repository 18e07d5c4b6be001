package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vigilbot/vigil/moderation"
	"github.com/vigilbot/vigil/moderation/countstore"
	"github.com/vigilbot/vigil/moderation/rules"
	"github.com/vigilbot/vigil/moderation/wordlist"
	"github.com/vigilbot/vigil/store"
	"github.com/vigilbot/vigil/telegram"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Server struct {
	logger  *slog.Logger
	engine  *moderation.Engine
	poller  *telegram.Poller
	webhook *telegram.Webhook
}

type Config struct {
	TelegramToken  string
	RedisURL       string
	AdminIDs       []int64
	BanThreshold   int
	AllowedDomains []string
	WebhookBind    string
	WebhookSecret  string
	PollTimeout    time.Duration
	Logger         *slog.Logger
}

func NewServer(ctx context.Context, db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	st, err := store.NewGormStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	var counters countstore.CountStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		// generic client, for cursor state
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		_, err = rdb.Ping(ctx).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt
	} else {
		counters = countstore.NewMemCountStore()
	}

	words := wordlist.NewCache()
	snap, err := words.Load(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("loading initial keyword list: %w", err)
	}
	logger.Info("keyword list loaded", "count", len(snap.Entries))

	allowed := make(map[string]bool, len(config.AllowedDomains))
	for _, d := range config.AllowedDomains {
		allowed[strings.ToLower(d)] = true
	}

	client := telegram.NewClient(config.TelegramToken, logger)
	me, err := client.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("verifying bot token: %w", err)
	}
	logger.Info("connected to Bot API", "username", me.Username, "id", me.ID)

	engine := &moderation.Engine{
		Logger:           logger,
		Store:            st,
		Wordlist:         words,
		Counters:         counters,
		Actions:          &telegram.BotActions{Client: client},
		Admins:           moderation.NewAdminSet(config.AdminIDs),
		Links:            rules.LinkPolicy{AllowedDomains: allowed},
		BanThreshold:     config.BanThreshold,
		SelfID:           me.ID,
		ActivityDebounce: expirable.NewLRU[int64, bool](100_000, nil, time.Minute),
	}

	s := &Server{
		logger: logger,
		engine: engine,
	}

	if config.WebhookBind != "" {
		s.webhook = telegram.NewWebhook(engine, logger, config.WebhookBind, config.WebhookSecret)
	} else {
		// polling mode requires no webhook registered upstream
		if err := client.DeleteWebhook(ctx, false); err != nil {
			logger.Warn("clearing webhook registration failed", "err", err)
		}
		s.poller = &telegram.Poller{
			Client:      client,
			Handler:     engine,
			Logger:      logger,
			PollTimeout: config.PollTimeout,
			RDB:         rdb,
		}
	}

	return s, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (s *Server) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	if s.webhook != nil {
		eg.Go(func() error {
			return s.webhook.Run()
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.webhook.Shutdown(shutCtx)
		})
	} else {
		eg.Go(func() error {
			return s.poller.Run(ctx)
		})
		eg.Go(func() error {
			return s.poller.RunPersistCursor(ctx)
		})
	}

	return eg.Wait()
}
