package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/crypto/adaptive"
	"github.com/celerix-dev/celerix-store/pkg/domain"
)

func newStore(t *testing.T, c adaptive.Cipher) *Store {
	t.Helper()
	s, err := New(Config{Dir: t.TempDir(), Cipher: c})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func snap(kv ...string) codec.Snapshot {
	s := codec.Snapshot{}
	for i := 0; i+1 < len(kv); i += 2 {
		s[kv[i]] = json.RawMessage(kv[i+1])
	}
	return s
}

func testCipher(t *testing.T, seed byte) adaptive.Cipher {
	t.Helper()
	key := bytes.Repeat([]byte{seed}, 32)
	c, err := adaptive.NewWithType(key, adaptive.CipherAESGCM)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil)

	want := snap("theme", `"dark"`, "limits", `{"max":3}`)
	if err := s.Save(ctx, "alice", "ui", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "alice", "ui")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(), "alice", "ui.json"))
	if err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}
	if !json.Valid(data) {
		t.Errorf("snapshot file is not plain json: %s", data)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := newStore(t, nil)
	got, err := s.Load(context.Background(), "nobody", "nothing")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Load(missing) = %v, want empty snapshot", got)
	}
}

func TestStore_SaveEmptyRemovesApp(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil)

	if err := s.Save(ctx, "p", "a", snap("k", "1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "p", "a", codec.Snapshot{}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "p", "a.json")); !os.IsNotExist(err) {
		t.Errorf("app file should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "p")); err != nil {
		t.Errorf("persona dir should be kept: %v", err)
	}
	if err := s.Remove(ctx, "p", "a"); err != nil {
		t.Errorf("second Remove should be a no-op: %v", err)
	}
}

func TestStore_CrashBeforeRename(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil)

	before := snap("k", `"v1"`)
	if err := s.Save(ctx, "p", "a", before); err != nil {
		t.Fatal(err)
	}

	crash := errors.New("power loss")
	var sawTemp bool
	s.beforeRename = func(tmpPath, finalPath string) error {
		data, err := os.ReadFile(tmpPath)
		sawTemp = err == nil && bytes.Contains(data, []byte("v2"))
		return crash
	}

	err := s.Save(ctx, "p", "a", snap("k", `"v2"`))
	if !errors.Is(err, domain.ErrStorageIO) {
		t.Fatalf("Save error = %v, want ErrStorageIO", err)
	}
	if !sawTemp {
		t.Error("temp file was not fully written and synced before the rename point")
	}

	s.beforeRename = nil
	got, err := s.Load(ctx, "p", "a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(before, got); diff != "" {
		t.Errorf("prior snapshot not intact (-want +got):\n%s", diff)
	}

	entries, _ := os.ReadDir(filepath.Join(s.Dir(), "p"))
	for _, e := range entries {
		if strings.Contains(e.Name(), tempMarker) {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStore_Cleanup(t *testing.T) {
	s := newStore(t, nil)
	if err := s.Save(context.Background(), "p", "a", snap("k", "1")); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(s.Dir(), "p", ".a.json.tmp-12345")
	if err := os.WriteFile(stale, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}

	n, err := s.Cleanup()
	if err != nil || n != 1 {
		t.Fatalf("Cleanup() = %d, %v", n, err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file still present")
	}
	apps, _ := s.ListApps(context.Background(), "p")
	if diff := cmp.Diff([]string{"a"}, apps); diff != "" {
		t.Errorf("ListApps after Cleanup (-want +got):\n%s", diff)
	}
}

func TestStore_Corruption(t *testing.T) {
	s := newStore(t, nil)
	dir := filepath.Join(s.Dir(), "p")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}

	for name, content := range map[string]string{
		"truncated": `{"k": 1`,
		"array":     `[1,2,3]`,
		"garbage":   "\x00\x01binary",
	} {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := s.Load(context.Background(), "p", name)
			if !errors.Is(err, domain.ErrCorruption) {
				t.Errorf("Load error = %v, want ErrCorruption", err)
			}
		})
	}
}

func TestStore_Encrypted(t *testing.T) {
	ctx := context.Background()
	c := testCipher(t, 0x11)
	s := newStore(t, c)

	want := snap("password", `"hunter2"`)
	if err := s.Save(ctx, "p", "creds", want); err != nil {
		t.Fatal(err)
	}

	raw, _ := os.ReadFile(filepath.Join(s.Dir(), "p", "creds.json"))
	if !bytes.HasPrefix(raw, magicBytes) || bytes.Contains(raw, []byte("hunter2")) {
		t.Fatal("file is not encrypted at rest")
	}

	got, err := s.Load(ctx, "p", "creds")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	t.Run("wrong key", func(t *testing.T) {
		other, _ := New(Config{Dir: s.Dir(), Cipher: testCipher(t, 0x22)})
		if _, err := other.Load(ctx, "p", "creds"); !errors.Is(err, domain.ErrAuthenticationFailure) {
			t.Errorf("error = %v, want ErrAuthenticationFailure", err)
		}
	})

	t.Run("no key", func(t *testing.T) {
		plain, _ := New(Config{Dir: s.Dir()})
		if _, err := plain.Load(ctx, "p", "creds"); !errors.Is(err, domain.ErrAuthenticationFailure) {
			t.Errorf("error = %v, want ErrAuthenticationFailure", err)
		}
	})

	t.Run("moved to another app", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(s.Dir(), "p", "other.json"), raw, 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Load(ctx, "p", "other"); !errors.Is(err, domain.ErrAuthenticationFailure) {
			t.Errorf("error = %v, want ErrAuthenticationFailure", err)
		}
	})

	t.Run("plain file still readable", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(s.Dir(), "p", "legacy.json"), []byte(`{"a":1}`), 0o600); err != nil {
			t.Fatal(err)
		}
		got, err := s.Load(ctx, "p", "legacy")
		if err != nil || string(got["a"]) != "1" {
			t.Errorf("Load(plain) = %v, %v", got, err)
		}
	})
}

func TestStore_Enumeration(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil)

	for _, pa := range [][2]string{{"bob", "z"}, {"bob", "a"}, {"alice", "m"}, {"carol", "x"}} {
		if err := s.Save(ctx, pa[0], pa[1], snap("k", "1")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Save(ctx, "carol", "x", nil); err != nil {
		t.Fatal(err)
	}

	personas, err := s.ListPersonas(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"alice", "bob"}, personas); diff != "" {
		t.Errorf("ListPersonas (-want +got):\n%s", diff)
	}

	apps, err := s.ListApps(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "z"}, apps); diff != "" {
		t.Errorf("ListApps (-want +got):\n%s", diff)
	}

	none, err := s.ListApps(ctx, "nobody")
	if err != nil || len(none) != 0 {
		t.Errorf("ListApps(unknown) = %v, %v", none, err)
	}
}

func TestStore_ImportLegacy(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil)

	legacy := `{"app1":{"k1":"v1","k2":2},"app2":{"flag":true},"../bad":{"x":1}}`
	if err := os.WriteFile(filepath.Join(s.Dir(), "dave.json"), []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "dave", "app2", snap("flag", "false")); err != nil {
		t.Fatal(err)
	}

	n, err := s.ImportLegacy(ctx)
	if err != nil {
		t.Fatalf("ImportLegacy: %v", err)
	}
	if n != 1 {
		t.Errorf("imported %d apps, want 1", n)
	}

	app1, _ := s.Load(ctx, "dave", "app1")
	if diff := cmp.Diff(snap("k1", `"v1"`, "k2", "2"), app1); diff != "" {
		t.Errorf("app1 (-want +got):\n%s", diff)
	}
	app2, _ := s.Load(ctx, "dave", "app2")
	if string(app2["flag"]) != "false" {
		t.Errorf("existing app2 was overwritten: %s", app2["flag"])
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "dave.json.migrated")); err != nil {
		t.Errorf("legacy file not renamed: %v", err)
	}

	n, err = s.ImportLegacy(ctx)
	if err != nil || n != 0 {
		t.Errorf("second ImportLegacy = %d, %v", n, err)
	}
}
