package repl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"get alice notes title", []string{"get", "alice", "notes", "title"}},
		{"  set   a  b  ", []string{"set", "a", "b"}},
		{`set a b k "hello world"`, []string{"set", "a", "b", "k", "hello world"}},
		{`set a b k '{"x": [1, 2]}'`, []string{"set", "a", "b", "k", `{"x": [1, 2]}`}},
		{`say "she said \"hi\""`, []string{"say", `she said "hi"`}},
		{`one\ word`, []string{"one word"}},
		{`empty ''`, []string{"empty", ""}},
		{`mi"x"'ed'`, []string{"mixed"}},
		{"tab\tsep", []string{"tab", "sep"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Split(tt.line)
			if err != nil {
				t.Fatalf("Split(%q): %v", tt.line, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Split(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestSplit_Unterminated(t *testing.T) {
	for _, line := range []string{`"open`, `'open`, `trailing\`} {
		if _, err := Split(line); !errors.Is(err, ErrUnterminatedQuote) {
			t.Errorf("Split(%q) error = %v, want ErrUnterminatedQuote", line, err)
		}
	}
}

func TestCompleter(t *testing.T) {
	c := NewCompleter([]string{"get", "get-global", "set", "get"})

	if diff := cmp.Diff([]string{"get", "get-global"}, c.Complete("get")); diff != "" {
		t.Errorf("Complete(get) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"help", "history"}, c.Complete("h")); diff != "" {
		t.Errorf("Complete(h) mismatch (-want +got):\n%s", diff)
	}
	if got := c.Complete("zzz"); got != nil {
		t.Errorf("Complete(zzz) = %v, want nil", got)
	}
	if got := len(c.Complete("")); got != 7 {
		t.Errorf("Complete(\"\") returned %d names, want 7", got)
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory("")
	h.maxSize = 3
	for _, cmd := range []string{"a", "b", "b", "c", "d"} {
		h.Add(cmd)
	}

	if diff := cmp.Diff([]string{"b", "c", "d"}, h.Entries()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if got := h.Get(0); got != "d" {
		t.Errorf("Get(0) = %q, want d", got)
	}
	if got := h.Get(2); got != "b" {
		t.Errorf("Get(2) = %q, want b", got)
	}
	if got := h.Get(3); got != "" {
		t.Errorf("Get(3) = %q, want empty", got)
	}
	if got := h.Get(-1); got != "" {
		t.Errorf("Get(-1) = %q, want empty", got)
	}
}

func TestHistory_SaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "history")

	h := NewHistory(file)
	h.Add("personas")
	h.Add("get alice notes title")
	if err := h.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	loaded := NewHistory(file)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(h.Entries(), loaded.Entries()); diff != "" {
		t.Errorf("loaded mismatch (-want +got):\n%s", diff)
	}
}

func TestHistory_LoadMissing(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "nope"))
	if err := h.Load(); err != nil {
		t.Errorf("Load missing file: %v", err)
	}
	if len(h.Entries()) != 0 {
		t.Errorf("entries = %v", h.Entries())
	}
}

func TestREPL_Run(t *testing.T) {
	var calls [][]string
	exec := func(_ context.Context, args []string) error {
		calls = append(calls, args)
		if args[0] == "fail" {
			return errors.New("nope")
		}
		return nil
	}

	in := strings.NewReader(strings.Join([]string{
		"get alice notes title",
		"",
		"# comment",
		`set alice notes title "a b"`,
		"fail",
		`bad "quote`,
		"help ge",
		"history",
		"exit",
		"get never reached",
	}, "\n"))
	var out bytes.Buffer

	r := New(exec, WithIO(in, &out), WithCommands([]string{"get", "set"}))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := [][]string{
		{"get", "alice", "notes", "title"},
		{"set", "alice", "notes", "title", "a b"},
		{"fail"},
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("executed commands mismatch (-want +got):\n%s", diff)
	}

	got := out.String()
	for _, s := range []string{
		DefaultPrompt,
		"Error: nope",
		"Error: unterminated quote",
		"get\n",
		"   1  get alice notes title",
	} {
		if !strings.Contains(got, s) {
			t.Errorf("output missing %q:\n%s", s, got)
		}
	}
}

func TestREPL_EOF(t *testing.T) {
	var out bytes.Buffer
	r := New(func(context.Context, []string) error { return nil },
		WithIO(strings.NewReader("get a b c"), &out),
		WithPrompt("> "))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(out.String(), "> ") {
		t.Errorf("output = %q", out.String())
	}
}

func TestREPL_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	r := New(func(context.Context, []string) error { called = true; return nil },
		WithIO(strings.NewReader("get a b c\n"), &bytes.Buffer{}))
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("executor ran after cancellation")
	}
}

func TestREPL_PersistsHistory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history")
	r := New(func(context.Context, []string) error { return nil },
		WithIO(strings.NewReader("personas\nquit\n"), &bytes.Buffer{}),
		WithHistory(NewHistory(file)))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "personas\nquit\n" {
		t.Errorf("history file = %q", data)
	}
}
