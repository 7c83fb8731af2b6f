package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/domain"
)

func newBadger(t *testing.T, dir string, key []byte) *BadgerBackend {
	t.Helper()
	cfg := DefaultBadgerConfig()
	cfg.GCInterval = 0
	cfg.CacheSize = 1 << 20
	b, err := NewBadgerBackend(dir, key, cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBadgerBackend_BasicOperations(t *testing.T) {
	ctx := context.Background()
	b := newBadger(t, t.TempDir(), nil)
	defer b.Close()

	t.Run("Load missing app", func(t *testing.T) {
		got, err := b.Load(ctx, "p", "missing")
		if err != nil || len(got) != 0 {
			t.Errorf("Load = %v, %v", got, err)
		}
	})

	t.Run("Save and Load", func(t *testing.T) {
		want := codec.Snapshot{"a": json.RawMessage(`1`), "b": json.RawMessage(`{"x":[true]}`)}
		if err := b.Save(ctx, "p", "app", want); err != nil {
			t.Fatal(err)
		}
		got, err := b.Load(ctx, "p", "app")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Load (-want +got):\n%s", diff)
		}
	})

	t.Run("Save empty removes", func(t *testing.T) {
		if err := b.Save(ctx, "p", "gone", codec.Snapshot{"k": json.RawMessage(`0`)}); err != nil {
			t.Fatal(err)
		}
		if err := b.Save(ctx, "p", "gone", nil); err != nil {
			t.Fatal(err)
		}
		apps, _ := b.ListApps(ctx, "p")
		if diff := cmp.Diff([]string{"app"}, apps); diff != "" {
			t.Errorf("ListApps (-want +got):\n%s", diff)
		}
	})
}

func TestBadgerBackend_Enumeration(t *testing.T) {
	ctx := context.Background()
	b := newBadger(t, t.TempDir(), nil)
	defer b.Close()

	one := codec.Snapshot{"k": json.RawMessage(`1`)}
	for _, pa := range [][2]string{{"ab", "x"}, {"a", "z"}, {"a", "y"}, {"b", "w"}} {
		if err := b.Save(ctx, pa[0], pa[1], one); err != nil {
			t.Fatal(err)
		}
	}

	personas, err := b.ListPersonas(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "ab", "b"}, personas); diff != "" {
		t.Errorf("ListPersonas (-want +got):\n%s", diff)
	}

	apps, err := b.ListApps(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"y", "z"}, apps); diff != "" {
		t.Errorf("ListApps (-want +got):\n%s", diff)
	}
}

func TestBadgerBackend_Corruption(t *testing.T) {
	ctx := context.Background()
	b := newBadger(t, t.TempDir(), nil)
	defer b.Close()

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(appKey("p", "bad"), []byte("not json"))
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Load(ctx, "p", "bad"); !errors.Is(err, domain.ErrCorruption) {
		t.Errorf("Load error = %v, want ErrCorruption", err)
	}
}

func TestBadgerBackend_EncryptedReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 3)
	}

	b := newBadger(t, dir, key)
	if err := b.Save(ctx, "p", "a", codec.Snapshot{"secret": json.RawMessage(`"s"`)}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := newBadger(t, dir, key)
	defer reopened.Close()
	got, err := reopened.Load(ctx, "p", "a")
	if err != nil || string(got["secret"]) != `"s"` {
		t.Errorf("Load after reopen = %v, %v", got, err)
	}
}

func TestBadgerBackend_Metrics(t *testing.T) {
	b := newBadger(t, t.TempDir(), nil)
	defer b.Close()

	reg := prometheus.NewRegistry()
	if err := b.RegisterMetrics(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := b.GC(context.Background()); err != nil {
		t.Fatal(err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"celerix_badger_lsm_size_bytes", "celerix_badger_gc_runs_total"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}
