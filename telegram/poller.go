package telegram

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vigilbot/vigil/moderation/event"
)

// Handler is the dispatch surface the poller delivers events to. The
// moderation engine implements it.
type Handler interface {
	ProcessMessage(ctx context.Context, evt *event.MessageEvent) error
	ProcessNewMember(ctx context.Context, evt *event.NewMemberEvent) error
	ProcessCommand(ctx context.Context, evt *event.CommandEvent) error
}

var cursorKey = "vigil/offset"

// Poller is the long-poll update consumer. It tracks the highest update ID
// seen and, when redis is configured, persists it so a restart resumes
// where the previous process left off.
type Poller struct {
	Client      *Client
	Handler     Handler
	Logger      *slog.Logger
	PollTimeout time.Duration

	// RDB is optional; without it the cursor only lives in process memory.
	RDB *redis.Client

	lastSeq atomic.Int64
}

func (p *Poller) ReadLastCursor(ctx context.Context) (int64, error) {
	// if redis isn't configured, just skip
	if p.RDB == nil {
		p.Logger.Info("redis not configured, skipping cursor read")
		return 0, nil
	}

	val, err := p.RDB.Get(ctx, cursorKey).Int64()
	if err == redis.Nil {
		p.Logger.Info("no pre-existing cursor in redis")
		return 0, nil
	}
	p.Logger.Info("successfully found prior update cursor in redis", "offset", val)
	return val, err
}

func (p *Poller) PersistCursor(ctx context.Context) error {
	// if redis isn't configured, just skip
	if p.RDB == nil {
		return nil
	}
	seq := p.lastSeq.Load()
	if seq <= 0 {
		return nil
	}
	return p.RDB.Set(ctx, cursorKey, seq, 14*24*time.Hour).Err()
}

// this method runs in a loop, persisting the current cursor state every 5 seconds
func (p *Poller) RunPersistCursor(ctx context.Context) error {

	// if redis isn't configured, just skip
	if p.RDB == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	for {
		select {
		case <-ctx.Done():
			if p.lastSeq.Load() >= 1 {
				p.Logger.Info("persisting final cursor offset", "offset", p.lastSeq.Load())
				err := p.PersistCursor(context.Background())
				if err != nil {
					p.Logger.Error("failed to persist cursor", "err", err, "offset", p.lastSeq.Load())
				}
			}
			return nil
		case <-ticker.C:
			if p.lastSeq.Load() >= 1 {
				err := p.PersistCursor(ctx)
				if err != nil {
					p.Logger.Error("failed to persist cursor", "err", err, "offset", p.lastSeq.Load())
				}
			}
		}
	}
}

// Dispatch routes one translated update to the handler. Errors are logged,
// not returned: one bad update must not stall the consumer.
func Dispatch(ctx context.Context, h Handler, t Translated, logger *slog.Logger) {
	var err error
	switch {
	case t.Command != nil:
		err = h.ProcessCommand(ctx, t.Command)
	case t.NewMember != nil:
		err = h.ProcessNewMember(ctx, t.NewMember)
	case t.Message != nil:
		err = h.ProcessMessage(ctx, t.Message)
	default:
		updatesSkipped.Inc()
		return
	}
	if err != nil {
		logger.Error("failed to process update", "err", err)
	}
}

// Run long-polls for updates until ctx is cancelled. Each update is
// handled in its own goroutine; ordering within a chat is not guaranteed,
// which the engine's atomic warning counts are built to tolerate.
func (p *Poller) Run(ctx context.Context) error {
	timeout := p.PollTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	offset, err := p.ReadLastCursor(ctx)
	if err != nil {
		return err
	}
	if offset > 0 {
		p.lastSeq.Store(offset)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := p.Client.GetUpdates(ctx, p.lastSeq.Load()+1, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			pollErrors.Inc()
			p.Logger.Warn("getUpdates failed, backing off", "err", err)
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		for i := range updates {
			up := updates[i]
			updatesReceived.Inc()
			if up.UpdateID > p.lastSeq.Load() {
				p.lastSeq.Store(up.UpdateID)
			}
			t := Translate(&up)
			go Dispatch(ctx, p.Handler, t, p.Logger)
		}
	}
}
