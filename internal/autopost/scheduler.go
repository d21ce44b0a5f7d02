package autopost

import (
	"context"
	"sync"
	"time"

	"cantinabot/internal/menu"
	"cantinabot/internal/metrics"
	"cantinabot/internal/storage"
	"cantinabot/internal/transport"
	logx "cantinabot/pkg/logx"
)

// Config tunes the posting loop.
type Config struct {
	// DefaultChannel is the chat to post into when no manual interaction has
	// pinned a destination yet.
	DefaultChannel int64
	// RetryDelay is how long to wait after a failed attempt. Default 5m.
	RetryDelay time.Duration
	// PollInterval caps how long the loop sleeps between wakeups so a clock
	// jump or config change is noticed promptly. Default 60s.
	PollInterval time.Duration
}

// Scheduler drives autonomous menu posting for the auto-post cafeteria. It
// keeps exactly one armed target timestamp; every attempt, successful or not,
// replaces it with the next one.
type Scheduler struct {
	cfg      Config
	cantina  *menu.Cantina
	pipeline *menu.Pipeline
	adapter  transport.Adapter
	store    storage.Store
	met      *metrics.Metrics
	log      logx.Logger

	nowFn func() time.Time
	loc   *time.Location

	mu       sync.Mutex
	nextAt   time.Time
	lastChat transport.ChatTarget
}

func NewScheduler(cfg Config, c *menu.Cantina, p *menu.Pipeline, a transport.Adapter, st storage.Store, met *metrics.Metrics, loc *time.Location, log logx.Logger) *Scheduler {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 || cfg.PollInterval > time.Minute {
		cfg.PollInterval = time.Minute
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cfg:      cfg,
		cantina:  c,
		pipeline: p,
		adapter:  a,
		store:    st,
		met:      met,
		log:      log,
		loc:      loc,
		nowFn:    time.Now,
	}
}

func (s *Scheduler) now() time.Time { return s.nowFn().In(s.loc) }

// Apply updates the retry and poll tunables. The default channel is fixed at
// construction; changing it requires a restart.
func (s *Scheduler) Apply(retryDelay, pollInterval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if retryDelay > 0 {
		s.cfg.RetryDelay = retryDelay
	}
	if pollInterval > 0 && pollInterval <= time.Minute {
		s.cfg.PollInterval = pollInterval
	}
}

func (s *Scheduler) tunables() (time.Duration, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.RetryDelay, s.cfg.PollInterval
}

// NextAttempt reports the currently armed target, if any.
func (s *Scheduler) NextAttempt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextAt, !s.nextAt.IsZero()
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.nextAt = t
	s.mu.Unlock()
	s.met.SetNextAutoPost(t)
	s.log.Info("next auto post scheduled", logx.Time("at", t))
}

// NoteManualSuccess is called when an interactive command successfully posted
// today's menu for the auto-post cafeteria. The armed attempt for the same day
// becomes redundant, so it is replaced with the next weekday's opening time.
func (s *Scheduler) NoteManualSuccess(now time.Time, chat transport.ChatTarget) {
	now = now.In(s.loc)

	s.mu.Lock()
	if !chat.IsZero() {
		s.lastChat = chat
	}
	sameDay := !s.nextAt.IsZero() && menu.SameDay(s.nextAt, now)
	s.mu.Unlock()

	if sameDay {
		s.setNext(NextDayAttempt(now))
	}
}

// Run blocks until ctx is cancelled. Each iteration is panic-guarded: a panic
// is logged and the loop keeps going after a fallback sleep, so one bad
// attempt never kills autonomous posting.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cantina == nil || !s.cantina.AutoPost {
		s.log.Warn("auto post disabled: cafeteria does not auto-post")
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.iterate(ctx) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Minute):
			}
		}
	}
}

// iterate runs one wakeup. It returns false when the iteration panicked and
// the caller should back off before retrying.
func (s *Scheduler) iterate(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("auto post iteration panicked", logx.Any("panic", r))
			ok = false
		}
	}()

	now := s.now()

	s.mu.Lock()
	if s.nextAt.IsZero() {
		s.nextAt = InitialAttempt(now)
		s.met.SetNextAutoPost(s.nextAt)
		s.log.Info("auto post armed", logx.Time("at", s.nextAt))
	}
	target := s.nextAt
	s.mu.Unlock()

	retryDelay, pollInterval := s.tunables()

	if remaining := target.Sub(now); remaining > 0 {
		sleep := remaining
		if sleep > pollInterval {
			sleep = pollInterval
		}
		select {
		case <-ctx.Done():
		case <-time.After(sleep):
		}
		return true
	}

	if s.attempt(ctx, target) {
		s.setNext(NextDayAttempt(target))
	} else {
		s.setNext(RetryAttempt(s.now(), retryDelay))
	}
	return true
}

// attempt resolves and delivers the menu for exactly the target's calendar
// day. Any other date would be stale by the time the channel reads it, so
// there is no fallback here; the retry schedule handles transient failures.
func (s *Scheduler) attempt(ctx context.Context, target time.Time) bool {
	day := menu.Midnight(target)

	chat, ok := s.destination(ctx)
	if !ok {
		s.log.Warn("auto post skipped: no destination chat")
		s.met.Post("auto", "failure")
		return false
	}

	res, err := s.pipeline.Resolve(ctx, s.cantina, day)
	if err != nil {
		s.log.Warn("auto post resolution failed",
			logx.String("cantina", s.cantina.Key),
			logx.Time("date", day),
			logx.Err(err))
		s.met.Post("auto", "failure")
		return false
	}

	caption := menu.BuildMessage(s.cantina, menu.PostContext{
		Scenario:    menu.ScenarioAuto,
		RequestDate: day,
		ActualDate:  day,
		FromCache:   res.FromCache,
	})
	if err := s.adapter.SendAlbum(ctx, chat, caption, menu.PageFiles(s.cantina, day, res.Pages)); err != nil {
		s.log.Warn("auto post delivery failed",
			logx.Int64("chat", chat.ChatID),
			logx.Err(err))
		s.met.Post("auto", "failure")
		return false
	}

	s.met.Post("auto", "success")
	s.log.Info("auto post delivered",
		logx.String("cantina", s.cantina.Key),
		logx.Time("date", day),
		logx.Int("pages", len(res.Pages)),
		logx.Bool("from_cache", res.FromCache))
	s.record(ctx, day, chat, res)
	return true
}

// destination prefers the chat of the last manual interaction and falls back
// to the configured channel.
func (s *Scheduler) destination(ctx context.Context) (transport.ChatTarget, bool) {
	s.mu.Lock()
	last := s.lastChat
	s.mu.Unlock()
	if !last.IsZero() {
		return last, true
	}
	if s.cfg.DefaultChannel == 0 {
		return transport.ChatTarget{}, false
	}
	return s.adapter.ChatByID(ctx, s.cfg.DefaultChannel)
}

func (s *Scheduler) record(ctx context.Context, day time.Time, chat transport.ChatTarget, res menu.Result) {
	if s.store == nil {
		return
	}
	err := s.store.AppendPost(ctx, storage.PostRecord{
		At:        s.now(),
		Cantina:   s.cantina.Key,
		MenuDate:  day.Format("2006-01-02"),
		ChatID:    chat.ChatID,
		Pages:     len(res.Pages),
		FromCache: res.FromCache,
		Source:    "auto",
	})
	if err != nil {
		s.log.Warn("post history write failed", logx.Err(err))
	}
}
