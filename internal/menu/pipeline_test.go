package menu

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "cantinabot/pkg/logx"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	// ok maps a URL to the bytes it should return; anything else fails.
	ok map[string][]byte
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if b, ok := f.ok[url]; ok {
		return b, nil
	}
	return nil, &StatusError{URL: url, Code: 404}
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRenderer struct {
	pagesPerDoc int
	err         error
}

func (r fakeRenderer) Render(data []byte) ([][]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	pages := make([][]byte, r.pagesPerDoc)
	for i := range pages {
		pages[i] = append([]byte(nil), data...)
	}
	return pages, nil
}

func testCantina(urls ...string) *Cantina {
	return &Cantina{
		Key:         "test",
		DisplayName: "Test",
		CloseTime:   ClockTime{Hour: 14, Minute: 45},
		BuildURLs: func(time.Time) []string {
			return urls
		},
	}
}

func newTestPipeline(f Fetcher, r Renderer, retries int) *Pipeline {
	return NewPipeline(NewPageCache(), f, r, PipelineConfig{
		Retries:    retries,
		RoundDelay: time.Millisecond,
	}, nil, logx.Nop())
}

func TestResolveSuccessPopulatesCache(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{ok: map[string][]byte{"http://a/ok.pdf": []byte("pdf")}}
	p := newTestPipeline(f, fakeRenderer{pagesPerDoc: 2}, 3)
	c := testCantina("http://a/miss.pdf", "http://a/ok.pdf")
	day := date(2024, time.March, 5)

	res, err := p.Resolve(context.Background(), c, day)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.FromCache || len(res.Pages) != 2 {
		t.Fatalf("unexpected result: from_cache=%v pages=%d", res.FromCache, len(res.Pages))
	}

	// Second call must come from the cache: no new fetches.
	before := f.count()
	res2, err := p.Resolve(context.Background(), c, day)
	if err != nil {
		t.Fatalf("Resolve (cached): %v", err)
	}
	if !res2.FromCache {
		t.Fatal("second resolve not served from cache")
	}
	if f.count() != before {
		t.Fatalf("cache hit still fetched: %d -> %d calls", before, f.count())
	}
}

func TestResolveRetryBound(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{}
	p := newTestPipeline(f, fakeRenderer{pagesPerDoc: 1}, 3)
	c := testCantina("http://a/x.pdf", "http://a/y.pdf")

	_, err := p.Resolve(context.Background(), c, date(2024, time.March, 5))
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("err = %v, want ErrUnresolvable", err)
	}
	// 3 rounds times 2 candidates, no more.
	if f.count() != 6 {
		t.Fatalf("fetch attempts = %d, want 6", f.count())
	}
}

func TestResolveNoCandidates(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(&fakeFetcher{}, fakeRenderer{pagesPerDoc: 1}, 3)
	c := testCantina()

	_, err := p.Resolve(context.Background(), c, date(2024, time.March, 5))
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("err = %v, want ErrNoCandidates", err)
	}
}

func TestResolveEmptyRenderIsFailure(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{ok: map[string][]byte{"http://a/empty.pdf": []byte("pdf")}}
	p := newTestPipeline(f, fakeRenderer{pagesPerDoc: 0, err: ErrEmptyDocument}, 2)
	c := testCantina("http://a/empty.pdf")

	_, err := p.Resolve(context.Background(), c, date(2024, time.March, 5))
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("err = %v, want ErrUnresolvable", err)
	}
	if p.Cache().Len() != 0 {
		t.Fatal("failed resolution was cached")
	}
}

func TestResolveHonorsContextBetweenRounds(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{}
	p := NewPipeline(NewPageCache(), f, fakeRenderer{pagesPerDoc: 1}, PipelineConfig{
		Retries:    3,
		RoundDelay: time.Hour,
	}, nil, logx.Nop())
	c := testCantina("http://a/x.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := p.Resolve(ctx, c, date(2024, time.March, 5))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestResolveAcrossDatesFirstHitWins(t *testing.T) {
	t.Parallel()
	day1 := date(2024, time.March, 5)
	day2 := date(2024, time.March, 4)
	f := &fakeFetcher{ok: map[string][]byte{"http://a/2024-03-04.pdf": []byte("pdf")}}
	c := &Cantina{
		Key: "test",
		BuildURLs: func(d time.Time) []string {
			return []string{"http://a/" + d.Format("2006-01-02") + ".pdf"}
		},
	}
	p := newTestPipeline(f, fakeRenderer{pagesPerDoc: 1}, 1)

	got, res, err := p.ResolveAcrossDates(context.Background(), c, []time.Time{day1, day2, date(2024, time.March, 1)})
	if err != nil {
		t.Fatalf("ResolveAcrossDates: %v", err)
	}
	if !got.Equal(day2) {
		t.Fatalf("resolved date = %v, want %v", got, day2)
	}
	if len(res.Pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(res.Pages))
	}
	// March 1 must not have been attempted after the hit.
	for _, u := range f.calls {
		if u == "http://a/2024-03-01.pdf" {
			t.Fatal("dates after the first hit were still attempted")
		}
	}
}

func TestResolveAcrossDatesSkipsWeekendsAndDuplicates(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{}
	c := &Cantina{
		Key: "test",
		BuildURLs: func(d time.Time) []string {
			return []string{"http://a/" + d.Format("2006-01-02") + ".pdf"}
		},
	}
	p := newTestPipeline(f, fakeRenderer{pagesPerDoc: 1}, 1)

	sat := date(2024, time.March, 9)
	mon := date(2024, time.March, 11)
	_, _, err := p.ResolveAcrossDates(context.Background(), c, []time.Time{sat, mon, mon})
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("err = %v, want ErrUnresolvable", err)
	}
	if f.count() != 1 {
		t.Fatalf("fetch attempts = %d, want 1 (weekend and duplicate skipped)", f.count())
	}
}

func TestApplyChangesRetryBound(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{}
	p := newTestPipeline(f, fakeRenderer{pagesPerDoc: 1}, 3)
	p.Apply(PipelineConfig{Retries: 1})
	c := testCantina("http://a/x.pdf")

	_, err := p.Resolve(context.Background(), c, date(2024, time.March, 5))
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("err = %v, want ErrUnresolvable", err)
	}
	if f.count() != 1 {
		t.Fatalf("fetch attempts = %d, want 1 after Apply", f.count())
	}
}

func TestMergeCandidates(t *testing.T) {
	t.Parallel()
	got := mergeCandidates(
		[]string{"a", "b"},
		[]string{"b", "", "c"},
	)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
