package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "cantinabot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", "NONE"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) returned a store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := st.AppendPost(ctx, PostRecord{
			At:       time.Date(2024, time.March, 4+i, 11, 30, 0, 0, time.UTC),
			Cantina:  "gau",
			MenuDate: time.Date(2024, time.March, 4+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			ChatID:   42,
			Pages:    2,
			Source:   "auto",
		})
		if err != nil {
			t.Fatalf("AppendPost: %v", err)
		}
	}

	got, err := st.RecentPosts(ctx, 2)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].MenuDate != "2024-03-06" || got[1].MenuDate != "2024-03-05" {
		t.Fatalf("unexpected order: %s, %s", got[0].MenuDate, got[1].MenuDate)
	}
	if got[0].Cantina != "gau" || got[0].ChatID != 42 || got[0].Pages != 2 || got[0].Source != "auto" {
		t.Fatalf("record round-trip mismatch: %+v", got[0])
	}
}

func TestPrunePosts(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	old := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	recent := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{old, recent} {
		if err := st.AppendPost(ctx, PostRecord{At: at, Cantina: "gau", MenuDate: at.Format("2006-01-02"), Source: "auto"}); err != nil {
			t.Fatalf("AppendPost: %v", err)
		}
	}

	n, err := st.PrunePosts(ctx, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PrunePosts: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}

	got, err := st.RecentPosts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(got) != 1 || got[0].MenuDate != "2024-03-05" {
		t.Fatalf("unexpected survivors: %+v", got)
	}
}
