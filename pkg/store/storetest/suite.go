// Package storetest provides a conformance suite for store.Store
// implementations. Embedded and remote stores must both pass it.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/celerix-dev/celerix-store/pkg/domain"
	"github.com/celerix-dev/celerix-store/pkg/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes every conformance test against stores from newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, store.Store)
	}{
		{"Ping", testPing},
		{"RoundTrip", testRoundTrip},
		{"Overwrite", testOverwrite},
		{"NotFound", testNotFound},
		{"DeleteIsIdempotent", testDeleteIdempotent},
		{"EmptyAppNotListed", testEmptyApp},
		{"InvalidArguments", testInvalidArguments},
		{"InvalidUTF8Key", testInvalidUTF8Key},
		{"Enumeration", testEnumeration},
		{"DumpAndGlobal", testDumpAndGlobal},
		{"Move", testMove},
		{"Vault", testVault},
		{"ConcurrentWriters", testConcurrentWriters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func testPing(t *testing.T, s store.Store) {
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Ping(ctx); err == nil {
		t.Error("Ping with a cancelled context succeeded")
	}
}

func testRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	values := map[string]any{
		"string": "hello",
		"number": float64(3.25),
		"int":    int64(42),
		"bigint": int64(9007199254740993),
		"bool":   true,
		"null":   nil,
		"list":   []any{"a", int64(1)},
		"object": map[string]any{"nested": map[string]any{"ok": true}},
	}
	for k, v := range values {
		if err := s.Set(ctx, "alice", "prefs", k, v); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	for k, want := range values {
		got, err := s.Get(ctx, "alice", "prefs", k)
		if err != nil {
			t.Fatalf("Get(%s): %v", k, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Get(%s) (-want +got):\n%s", k, diff)
		}
	}

	type theme struct {
		Name  string `json:"name"`
		Scale int    `json:"scale"`
	}
	if err := s.Set(ctx, "alice", "prefs", "theme", theme{"dark", 2}); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetAs[theme](ctx, s, "alice", "prefs", "theme")
	if err != nil || got != (theme{"dark", 2}) {
		t.Errorf("GetAs = %+v, %v", got, err)
	}
}

func testOverwrite(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.Set(ctx, "p", "a", "k", i); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Get(ctx, "p", "a", "k")
	if err != nil || got != int64(2) {
		t.Errorf("Get = %v, %v, want last write", got, err)
	}
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.Get(ctx, "ghost", "app", "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown persona: %v", err)
	}
	if err := s.Set(ctx, "p", "a", "present", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "p", "a", "absent"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown key: %v", err)
	}
	if _, _, err := s.GetGlobal(ctx, "a", "absent"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetGlobal unknown key: %v", err)
	}
	v, err := store.GetOr(ctx, s, "p", "a", "absent", "fallback")
	if err != nil || v != "fallback" {
		t.Errorf("GetOr = %v, %v", v, err)
	}
}

func testDeleteIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "p", "a", "k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "p", "a", "other", "v"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Delete(ctx, "p", "a", "k"); err != nil {
			t.Fatalf("Delete #%d: %v", i+1, err)
		}
	}
	if err := s.Delete(ctx, "nobody", "nothing", "k"); err != nil {
		t.Errorf("Delete on unknown app: %v", err)
	}
	if _, err := s.Get(ctx, "p", "a", "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get after Delete: %v", err)
	}
	if v, err := s.Get(ctx, "p", "a", "other"); err != nil || v != "v" {
		t.Errorf("sibling key lost: %v, %v", v, err)
	}
}

func testEmptyApp(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "p", "temp", "k", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "p", "keep", "k", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "p", "temp", "k"); err != nil {
		t.Fatal(err)
	}
	apps, err := s.GetApps(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"keep"}, apps); diff != "" {
		t.Errorf("GetApps (-want +got):\n%s", diff)
	}
	all, err := s.GetAppStore(ctx, "p", "temp")
	if err != nil || len(all) != 0 {
		t.Errorf("GetAppStore(empty) = %v, %v", all, err)
	}
}

func testInvalidArguments(t *testing.T, s store.Store) {
	ctx := context.Background()
	cases := []struct{ persona, app, key string }{
		{"", "a", "k"},
		{"p", "", "k"},
		{"p", "a", ""},
		{"../etc", "a", "k"},
		{"p", "a/b", "k"},
	}
	for _, c := range cases {
		if err := s.Set(ctx, c.persona, c.app, c.key, 1); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Set(%q,%q,%q) = %v, want ErrInvalidArgument", c.persona, c.app, c.key, err)
		}
		if _, err := s.Get(ctx, c.persona, c.app, c.key); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Get(%q,%q,%q) = %v, want ErrInvalidArgument", c.persona, c.app, c.key, err)
		}
	}
	if err := s.Set(ctx, "p", "a", "k", make(chan int)); !errors.Is(err, domain.ErrInvalidValue) {
		t.Errorf("Set(chan) = %v, want ErrInvalidValue", err)
	}
}

func testInvalidUTF8Key(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "p", "a", "k\ufffd", "kept"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "p", "a", "k\xff", "clobber"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Set(invalid utf8 key) = %v, want ErrInvalidArgument", err)
	}
	got, err := s.Get(ctx, "p", "a", "k\ufffd")
	if err != nil || got != "kept" {
		t.Errorf("Get(k\\ufffd) = %v, %v, want kept", got, err)
	}
	app, err := s.GetAppStore(ctx, "p", "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(app) != 1 {
		t.Errorf("app has %d keys, want 1: %v", len(app), app)
	}
}

func testEnumeration(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, addr := range [][2]string{{"bob", "mail"}, {"alice", "ui"}, {"alice", "api"}, {domain.SystemPersona, "config"}} {
		if err := s.Set(ctx, addr[0], addr[1], "k", 1); err != nil {
			t.Fatal(err)
		}
	}

	personas, err := s.GetPersonas(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{domain.SystemPersona, "alice", "bob"}, personas); diff != "" {
		t.Errorf("GetPersonas (-want +got):\n%s", diff)
	}

	apps, err := s.GetApps(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"api", "ui"}, apps); diff != "" {
		t.Errorf("GetApps (-want +got):\n%s", diff)
	}

	none, err := s.GetApps(ctx, "nobody")
	if err != nil || len(none) != 0 {
		t.Errorf("GetApps(unknown) = %v, %v", none, err)
	}
}

func testDumpAndGlobal(t *testing.T, s store.Store) {
	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.Set(ctx, "alice", "shared", "url", "a.example"))
	must(s.Set(ctx, "alice", "shared", "port", 80))
	must(s.Set(ctx, "bob", "shared", "url", "b.example"))
	must(s.Set(ctx, "bob", "private", "url", "hidden"))

	app, err := s.GetAppStore(ctx, "alice", "shared")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"url": "a.example", "port": int64(80)}, app); diff != "" {
		t.Errorf("GetAppStore (-want +got):\n%s", diff)
	}

	dump, err := s.DumpApp(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]map[string]any{
		"alice": {"url": "a.example", "port": int64(80)},
		"bob":   {"url": "b.example"},
	}
	if diff := cmp.Diff(want, dump); diff != "" {
		t.Errorf("DumpApp (-want +got):\n%s", diff)
	}

	v, persona, err := s.GetGlobal(ctx, "shared", "url")
	if err != nil || v != "a.example" || persona != "alice" {
		t.Errorf("GetGlobal = %v, %q, %v", v, persona, err)
	}
}

func testMove(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "alice", "inbox", "msg", "hi"); err != nil {
		t.Fatal(err)
	}
	if err := s.Move(ctx, "alice", "bob", "inbox", "msg"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := s.Get(ctx, "alice", "inbox", "msg"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("source still has key: %v", err)
	}
	if v, err := s.Get(ctx, "bob", "inbox", "msg"); err != nil || v != "hi" {
		t.Errorf("destination = %v, %v", v, err)
	}
	if err := s.Move(ctx, "alice", "bob", "inbox", "msg"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Move of missing key = %v, want ErrNotFound", err)
	}
	if err := s.Move(ctx, "bob", "bob", "inbox", "msg"); err != nil {
		t.Errorf("Move to same persona = %v", err)
	}
	if v, err := s.Get(ctx, "bob", "inbox", "msg"); err != nil || v != "hi" {
		t.Errorf("self move lost value: %v, %v", v, err)
	}
}

func testVault(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(200 - i)
	}
	scope := s.App("alice", "secrets")
	v, err := scope.Vault(key)
	if err != nil {
		t.Fatal(err)
	}

	if err := v.Set(ctx, "db", "p4ssw0rd"); err != nil {
		t.Fatalf("vault Set: %v", err)
	}
	got, err := v.GetString(ctx, "db")
	if err != nil || got != "p4ssw0rd" {
		t.Errorf("vault Get = %q, %v", got, err)
	}

	stored, err := scope.Get(ctx, "db")
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(stored) == "p4ssw0rd" {
		t.Error("plain scope sees plaintext")
	}

	other := make([]byte, 32)
	wrong, _ := scope.Vault(other)
	if _, err := wrong.Get(ctx, "db"); !errors.Is(err, domain.ErrAuthenticationFailure) {
		t.Errorf("wrong key = %v, want ErrAuthenticationFailure", err)
	}

	if err := scope.Set(ctx, "plain", "not sealed"); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Get(ctx, "plain"); !errors.Is(err, domain.ErrAuthenticationFailure) {
		t.Errorf("plain value through vault = %v, want ErrAuthenticationFailure", err)
	}
	if _, err := v.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing vault key = %v, want ErrNotFound", err)
	}
	if _, err := scope.Vault(key[:16]); !errors.Is(err, domain.ErrInvalidVaultKey) {
		t.Errorf("short vault key = %v", err)
	}
}

func testConcurrentWriters(t *testing.T, s store.Store) {
	ctx := context.Background()
	const writers = 50

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Set(ctx, "p", "hot", fmt.Sprintf("k%02d", i), i); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Set: %v", err)
	}

	all, err := s.GetAppStore(ctx, "p", "hot")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != writers {
		t.Fatalf("GetAppStore has %d keys, want %d (lost updates)", len(all), writers)
	}
	for i := 0; i < writers; i++ {
		if all[fmt.Sprintf("k%02d", i)] != int64(i) {
			t.Errorf("k%02d = %v", i, all[fmt.Sprintf("k%02d", i)])
		}
	}
}
