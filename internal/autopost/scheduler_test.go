package autopost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cantinabot/internal/menu"
	"cantinabot/internal/transport"
	logx "cantinabot/pkg/logx"
)

type fakeAdapter struct {
	mu     sync.Mutex
	albums []struct {
		to      transport.ChatTarget
		caption string
		pages   int
	}
	texts   []string
	sendErr error
	noChat  bool
}

func (a *fakeAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (a *fakeAdapter) Stop(context.Context) error                          { return nil }

func (a *fakeAdapter) SendText(_ context.Context, _ transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	a.mu.Lock()
	a.texts = append(a.texts, text)
	a.mu.Unlock()
	return transport.MessageRef{}, nil
}

func (a *fakeAdapter) SendAlbum(_ context.Context, to transport.ChatTarget, caption string, files []transport.File) error {
	if a.sendErr != nil {
		return a.sendErr
	}
	a.mu.Lock()
	a.albums = append(a.albums, struct {
		to      transport.ChatTarget
		caption string
		pages   int
	}{to, caption, len(files)})
	a.mu.Unlock()
	return nil
}

func (a *fakeAdapter) ChatByID(_ context.Context, id int64) (transport.ChatTarget, bool) {
	if a.noChat {
		return transport.ChatTarget{}, false
	}
	return transport.ChatTarget{ChatID: id}, true
}

func (a *fakeAdapter) albumCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.albums)
}

type okFetcher struct{}

func (okFetcher) Fetch(context.Context, string) ([]byte, error) { return []byte("pdf"), nil }

type failFetcher struct{}

func (failFetcher) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("down")
}

type oneRender struct{}

func (oneRender) Render(data []byte) ([][]byte, error) {
	return [][]byte{append([]byte(nil), data...)}, nil
}

func testScheduler(f menu.Fetcher, ad transport.Adapter) *Scheduler {
	p := menu.NewPipeline(menu.NewPageCache(), f, oneRender{}, menu.PipelineConfig{
		Retries:    1,
		RoundDelay: time.Millisecond,
	}, nil, logx.Nop())
	return NewScheduler(Config{
		DefaultChannel: 42,
		RetryDelay:     5 * time.Minute,
		PollInterval:   10 * time.Millisecond,
	}, menu.Default(), p, ad, nil, nil, time.UTC, logx.Nop())
}

func TestIterateFiresAndSchedulesNextDay(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	s := testScheduler(okFetcher{}, ad)

	target := at(2024, time.March, 5, 11, 30)
	now := at(2024, time.March, 5, 11, 31)
	s.nowFn = func() time.Time { return now }
	s.nextAt = target

	if !s.iterate(context.Background()) {
		t.Fatal("iterate reported panic")
	}
	if ad.albumCount() != 1 {
		t.Fatalf("albums sent = %d, want 1", ad.albumCount())
	}
	if ad.albums[0].to.ChatID != 42 {
		t.Fatalf("posted to chat %d, want 42", ad.albums[0].to.ChatID)
	}

	next, ok := s.NextAttempt()
	if !ok || !next.Equal(at(2024, time.March, 6, 11, 30)) {
		t.Fatalf("next attempt = %v (%v), want Wednesday 11:30", next, ok)
	}
}

func TestIterateFailureSchedulesRetry(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	s := testScheduler(failFetcher{}, ad)

	now := at(2024, time.March, 5, 11, 31)
	s.nowFn = func() time.Time { return now }
	s.nextAt = at(2024, time.March, 5, 11, 30)

	if !s.iterate(context.Background()) {
		t.Fatal("iterate reported panic")
	}
	if ad.albumCount() != 0 {
		t.Fatal("failed attempt still delivered an album")
	}

	next, ok := s.NextAttempt()
	if !ok || !next.Equal(now.Add(5*time.Minute)) {
		t.Fatalf("next attempt = %v (%v), want now+5m", next, ok)
	}
}

func TestIterateDeliveryFailureSchedulesRetry(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{sendErr: errors.New("blocked")}
	s := testScheduler(okFetcher{}, ad)

	now := at(2024, time.March, 5, 11, 31)
	s.nowFn = func() time.Time { return now }
	s.nextAt = at(2024, time.March, 5, 11, 30)

	s.iterate(context.Background())
	next, ok := s.NextAttempt()
	if !ok || !next.Equal(now.Add(5*time.Minute)) {
		t.Fatalf("next attempt = %v (%v), want now+5m", next, ok)
	}
}

func TestIterateMissingChatSchedulesRetry(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{noChat: true}
	s := testScheduler(okFetcher{}, ad)

	now := at(2024, time.March, 5, 11, 31)
	s.nowFn = func() time.Time { return now }
	s.nextAt = at(2024, time.March, 5, 11, 30)

	s.iterate(context.Background())
	if ad.albumCount() != 0 {
		t.Fatal("posted despite missing destination chat")
	}
	if next, ok := s.NextAttempt(); !ok || !next.Equal(now.Add(5*time.Minute)) {
		t.Fatalf("next attempt = %v, want now+5m", next)
	}
}

func TestIterateArmsLazily(t *testing.T) {
	t.Parallel()
	s := testScheduler(okFetcher{}, &fakeAdapter{})
	now := at(2024, time.March, 5, 9, 0)
	s.nowFn = func() time.Time { return now }

	if _, ok := s.NextAttempt(); ok {
		t.Fatal("scheduler armed before first iteration")
	}
	s.iterate(context.Background())
	next, ok := s.NextAttempt()
	if !ok || !next.Equal(at(2024, time.March, 5, 11, 30)) {
		t.Fatalf("armed target = %v (%v), want today 11:30", next, ok)
	}
}

func TestIterateSleepIsBounded(t *testing.T) {
	t.Parallel()
	s := testScheduler(okFetcher{}, &fakeAdapter{})
	now := at(2024, time.March, 5, 9, 0)
	s.nowFn = func() time.Time { return now }

	start := time.Now()
	s.iterate(context.Background()) // target hours away; must sleep only PollInterval
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("iterate slept %v, want about the poll interval", elapsed)
	}
}

func TestNoteManualSuccessResetsSameDay(t *testing.T) {
	t.Parallel()
	s := testScheduler(okFetcher{}, &fakeAdapter{})
	now := at(2024, time.March, 5, 12, 0)
	s.nowFn = func() time.Time { return now }
	s.nextAt = at(2024, time.March, 5, 12, 5) // pending retry for today

	chat := transport.ChatTarget{ChatID: 7}
	s.NoteManualSuccess(now, chat)

	next, ok := s.NextAttempt()
	if !ok || !next.Equal(at(2024, time.March, 6, 11, 30)) {
		t.Fatalf("next attempt = %v (%v), want tomorrow 11:30", next, ok)
	}

	// The manual chat becomes the preferred destination.
	got, ok := s.destination(context.Background())
	if !ok || got.ChatID != 7 {
		t.Fatalf("destination = %v (%v), want chat 7", got, ok)
	}
}

func TestNoteManualSuccessIgnoresOtherDays(t *testing.T) {
	t.Parallel()
	s := testScheduler(okFetcher{}, &fakeAdapter{})
	now := at(2024, time.March, 5, 12, 0)
	s.nowFn = func() time.Time { return now }
	armed := at(2024, time.March, 6, 11, 30)
	s.nextAt = armed

	s.NoteManualSuccess(now, transport.ChatTarget{ChatID: 7})
	if next, _ := s.NextAttempt(); !next.Equal(armed) {
		t.Fatalf("next attempt moved to %v, want unchanged %v", next, armed)
	}
}
