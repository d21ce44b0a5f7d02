package menu

import (
	"context"
	"errors"
	"sync"
	"time"

	"cantinabot/internal/metrics"
	logx "cantinabot/pkg/logx"
)

var (
	// ErrNoCandidates means the builder produced nothing to try.
	ErrNoCandidates = errors.New("no candidate urls")
	// ErrUnresolvable means every candidate failed across every retry round.
	ErrUnresolvable = errors.New("menu unresolvable")
)

// Result is one successful resolution.
type Result struct {
	Pages     [][]byte
	FromCache bool
}

// PipelineConfig tunes retry behavior.
type PipelineConfig struct {
	// Retries is the number of full candidate rounds. Default 3.
	Retries int
	// RoundDelay is the sleep between rounds. Default 5s.
	RoundDelay time.Duration
}

// Pipeline turns a (cantina, date) pair into rendered pages, consulting the
// cache first and populating it on success. Failures are absorbed here:
// callers only ever observe resolved-or-not.
type Pipeline struct {
	cache    *PageCache
	fetch    Fetcher
	render   Renderer
	discover *Discoverer // optional; nil disables index discovery
	met      *metrics.Metrics
	log      logx.Logger

	// mu guards the tunables, which config hot-reload can change mid-flight.
	mu         sync.Mutex
	retries    int
	roundDelay time.Duration
}

func NewPipeline(cache *PageCache, fetch Fetcher, render Renderer, cfg PipelineConfig, met *metrics.Metrics, log logx.Logger) *Pipeline {
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	delay := cfg.RoundDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Pipeline{
		cache:      cache,
		fetch:      fetch,
		render:     render,
		met:        met,
		log:        log,
		retries:    retries,
		roundDelay: delay,
	}
}

// SetDiscoverer enables index-page candidate discovery.
func (p *Pipeline) SetDiscoverer(d *Discoverer) { p.discover = d }

// Apply updates the retry tunables. In-flight resolutions keep the values they
// started with.
func (p *Pipeline) Apply(cfg PipelineConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.Retries > 0 {
		p.retries = cfg.Retries
	}
	if cfg.RoundDelay > 0 {
		p.roundDelay = cfg.RoundDelay
	}
}

func (p *Pipeline) tunables() (int, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retries, p.roundDelay
}

// Cache exposes the underlying page cache (for status reporting).
func (p *Pipeline) Cache() *PageCache { return p.cache }

// Resolve returns the rendered pages for the cafeteria on the given calendar
// date. The cache is checked first; otherwise each candidate URL is tried in
// order for up to the configured number of rounds, sleeping between rounds.
// Only a successful non-empty render is cached; failures are never remembered.
func (p *Pipeline) Resolve(ctx context.Context, c *Cantina, day time.Time) (Result, error) {
	day = Midnight(day)

	if pages, ok := p.cache.Get(c.Key, day); ok {
		p.met.CacheHit(c.Key)
		return Result{Pages: pages, FromCache: true}, nil
	}

	urls := c.Candidates(day)
	if p.discover != nil {
		urls = mergeCandidates(urls, p.discover.Discover(ctx, c, day))
	}
	if len(urls) == 0 {
		p.log.Warn("no candidate urls", logx.String("cantina", c.Key), logx.Time("date", day))
		return Result{}, ErrNoCandidates
	}

	retries, roundDelay := p.tunables()
	for attempt := 1; attempt <= retries; attempt++ {
		for i, u := range urls {
			p.met.FetchAttempt(c.Key)
			pages, err := p.fetchAndRender(ctx, u)
			if err != nil {
				p.met.FetchFailure(c.Key)
				p.log.Debug("candidate failed",
					logx.String("cantina", c.Key),
					logx.Int("round", attempt),
					logx.Int("variant", i+1),
					logx.String("url", u),
					logx.Err(err))
				continue
			}

			p.cache.Put(c.Key, day, pages)
			p.log.Info("menu fetched and cached",
				logx.String("cantina", c.Key),
				logx.Time("date", day),
				logx.String("url", u),
				logx.Int("pages", len(pages)))
			return Result{Pages: pages, FromCache: false}, nil
		}

		if attempt < retries {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(roundDelay):
			}
		}
	}

	p.log.Warn("all candidates exhausted",
		logx.String("cantina", c.Key),
		logx.Time("date", day),
		logx.Int("rounds", retries),
		logx.Int("candidates", len(urls)))
	return Result{}, ErrUnresolvable
}

func (p *Pipeline) fetchAndRender(ctx context.Context, url string) ([][]byte, error) {
	data, err := p.fetch.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	pages, err := p.render.Render(data)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}
	return pages, nil
}

// ResolveAcrossDates tries each candidate date in order and returns the first
// success. Weekends and duplicates are filtered defensively even when the
// caller already did. Remaining dates are not attempted after a hit.
func (p *Pipeline) ResolveAcrossDates(ctx context.Context, c *Cantina, dates []time.Time) (time.Time, Result, error) {
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		d = Midnight(d)
		key := d.Format("2006-01-02")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if IsWeekend(d) {
			continue
		}

		res, err := p.Resolve(ctx, c, d)
		if err != nil {
			if ctx.Err() != nil {
				return time.Time{}, Result{}, ctx.Err()
			}
			continue
		}
		return d, res, nil
	}
	return time.Time{}, Result{}, ErrUnresolvable
}

// mergeCandidates appends extras after base, preserving order and dropping
// duplicates and empties.
func mergeCandidates(base, extras []string) []string {
	if len(extras) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base)+len(extras))
	out := make([]string, 0, len(base)+len(extras))
	for _, u := range base {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, u := range extras {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
