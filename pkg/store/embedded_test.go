package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/celerix-dev/celerix-store/internal/storage"
	"github.com/celerix-dev/celerix-store/pkg/domain"
	"github.com/celerix-dev/celerix-store/pkg/store"
	"github.com/celerix-dev/celerix-store/pkg/store/storetest"
)

func openFile(t *testing.T, dir string) *store.Handle {
	t.Helper()
	s, err := store.Open(context.Background(), storage.DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestEmbedded_Conformance(t *testing.T) {
	for _, backend := range []string{storage.BackendFile, storage.BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			storetest.Run(t, func(t *testing.T) store.Store {
				cfg := storage.DefaultConfig(t.TempDir())
				cfg.Backend = backend
				cfg.Badger.GCInterval = 0
				s, err := store.Open(context.Background(), cfg)
				if err != nil {
					t.Fatal(err)
				}
				return s
			})
		})
	}
}

func TestEmbedded_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := openFile(t, dir)
	if err := s.Set(ctx, "alice", "ui", "theme", "dark"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "alice", "ui.json"))
	if err != nil {
		t.Fatalf("app file missing: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil || onDisk["theme"] != "dark" {
		t.Errorf("on-disk snapshot = %s", data)
	}

	reopened := openFile(t, dir)
	defer reopened.Close()
	if v, err := reopened.Get(ctx, "alice", "ui", "theme"); err != nil || v != "dark" {
		t.Errorf("Get after reopen = %v, %v", v, err)
	}
}

func TestEmbedded_Closed(t *testing.T) {
	s := openFile(t, t.TempDir())
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := s.Set(context.Background(), "p", "a", "k", 1); !errors.Is(err, domain.ErrClosed) {
		t.Errorf("Set after Close = %v, want ErrClosed", err)
	}
}

func TestEmbedded_CanceledContext(t *testing.T) {
	s := openFile(t, t.TempDir())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Set(ctx, "p", "a", "k", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Set with canceled ctx = %v", err)
	}
}

func TestEmbedded_CorruptApp(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openFile(t, dir)
	defer s.Close()

	if err := os.MkdirAll(filepath.Join(dir, "p"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "p", "broken.json"), []byte("{oops"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "p", "broken", "k"); !errors.Is(err, domain.ErrCorruption) {
		t.Errorf("Get = %v, want ErrCorruption", err)
	}
	if err := s.Set(ctx, "p", "broken", "k", 1); !errors.Is(err, domain.ErrCorruption) {
		t.Errorf("Set = %v, want ErrCorruption", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "p", "broken.json"))
	if string(data) != "{oops" {
		t.Error("corrupt file was overwritten")
	}
}

func TestEmbedded_ConcurrentMixedApps(t *testing.T) {
	ctx := context.Background()
	s := openFile(t, t.TempDir())
	defer s.Close()

	apps := []string{"a", "b", "c"}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			app := apps[i%len(apps)]
			if err := s.Set(ctx, "p", app, string(rune('A'+i)), i); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, app := range apps {
		all, err := s.GetAppStore(ctx, "p", app)
		if err != nil {
			t.Fatal(err)
		}
		total += len(all)
	}
	if total != 30 {
		t.Errorf("total keys = %d, want 30", total)
	}
}

func TestEmbedded_ConcurrentMoves(t *testing.T) {
	ctx := context.Background()
	s := openFile(t, t.TempDir())
	defer s.Close()

	for i := 0; i < 20; i++ {
		if err := s.Set(ctx, "left", "box", string(rune('a'+i)), i); err != nil {
			t.Fatal(err)
		}
		if err := s.Set(ctx, "right", "box", string(rune('A'+i)), i); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(k string) {
			defer wg.Done()
			if err := s.Move(ctx, "left", "right", "box", k); err != nil {
				t.Error(err)
			}
		}(string(rune('a' + i)))
		go func(k string) {
			defer wg.Done()
			if err := s.Move(ctx, "right", "left", "box", k); err != nil {
				t.Error(err)
			}
		}(string(rune('A' + i)))
	}
	wg.Wait()

	left, _ := s.GetAppStore(ctx, "left", "box")
	right, _ := s.GetAppStore(ctx, "right", "box")
	if len(left) != 20 || len(right) != 20 {
		t.Errorf("after swaps left=%d right=%d, want 20/20", len(left), len(right))
	}
}

func BenchmarkEmbedded_Set(b *testing.B) {
	s, err := store.Open(context.Background(), storage.DefaultConfig(b.TempDir()))
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Set(ctx, "bench", "app", "k", i); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEmbedded_Get(b *testing.B) {
	s, err := store.Open(context.Background(), storage.DefaultConfig(b.TempDir()))
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	if err := s.Set(ctx, "bench", "app", "k", "v"); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Get(ctx, "bench", "app", "k"); err != nil {
			b.Fatal(err)
		}
	}
}
