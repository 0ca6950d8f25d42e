package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/tutorhub/internal/app"
	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/geocoder89/tutorhub/internal/realtime"
	"github.com/geocoder89/tutorhub/internal/repo/memory"
)

type scripted struct {
	answers []string
}

func (s *scripted) next() (string, error) {
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scripted) Prompt(string) (string, error)         { return s.next() }
func (s *scripted) PasswordPrompt(string) (string, error) { return s.next() }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestShell(t *testing.T) (*shell, *scripted, *syncBuffer) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := realtime.NewLocalBroker(logger)
	t.Cleanup(func() { _ = broker.Close() })

	svc := backend.NewService(backend.Deps{
		Users:       memory.NewUsersRepo(),
		Credentials: memory.NewCredentialsRepo(),
		Chats:       memory.NewChatRepo(),
		Broker:      broker,
		Logger:      logger,
	})

	in := &scripted{}
	out := &syncBuffer{}
	sh := newShell(in, out, false)
	sh.ctrl = app.New(backend.NewSession(svc), svc, app.NewFileThemeStore(filepath.Join(t.TempDir(), "prefs.yaml")), app.Options{
		Logger:   logger,
		OnChange: sh.markDirty,
		OnTheme:  sh.setDark,
	})
	if err := sh.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(sh.ctrl.Close)
	t.Cleanup(sh.close)

	return sh, in, out
}

func (s *shell) mustRun(t *testing.T, line string) {
	t.Helper()
	err := s.exec(context.Background(), line)
	if err != nil {
		t.Fatalf("%q error: %v", line, err)
	}
	s.settle(context.Background(), nil)
}

func waitFor(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output never contained %q:\n%s", want, out.String())
}

func TestSplitArgs(t *testing.T) {
	cases := map[string][]string{
		"":                          nil,
		"  help ":                   {"help"},
		`search "linear algebra"`:   {"search", "linear algebra"},
		`profile bio='it''s fine'`:  {"profile", "bio=its fine"},
		`send ""`:                   {"send", ""},
		"review 2 5 great\tteacher": {"review", "2", "5", "great", "teacher"},
	}

	for line, want := range cases {
		got, err := splitArgs(line)
		if err != nil {
			t.Fatalf("splitArgs(%q) error: %v", line, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("splitArgs(%q) = %q, want %q", line, got, want)
		}
	}

	if _, err := splitArgs(`send "oops`); err == nil {
		t.Fatalf("expected an error for an unterminated quote")
	}
}

func TestParsePatch(t *testing.T) {
	p, err := parsePatch([]string{"headline=Algebra coach", "subjects=Mathematics, Physics,", "rate=42.5"})
	if err != nil {
		t.Fatalf("parsePatch error: %v", err)
	}
	if *p.Headline != "Algebra coach" || *p.HourlyRate != 42.5 {
		t.Fatalf("unexpected patch %+v", p)
	}
	if !reflect.DeepEqual(*p.Subjects, []string{"Mathematics", "Physics"}) {
		t.Fatalf("subjects = %q", *p.Subjects)
	}

	for _, bad := range [][]string{{"rate=cheap"}, {"email=x@example.com"}, {"headline"}} {
		if _, err := parsePatch(bad); err == nil {
			t.Fatalf("parsePatch(%q) should fail", bad)
		}
	}
}

func TestComplete(t *testing.T) {
	if got := complete("se"); !reflect.DeepEqual(got, []string{"search", "send"}) {
		t.Fatalf("complete(se) = %q", got)
	}
	if got := complete("go chat"); !reflect.DeepEqual(got, []string{"go chat-list", "go chat"}) {
		t.Fatalf("complete(go chat) = %q", got)
	}
}

func TestShell_UnknownCommandAndUsage(t *testing.T) {
	sh, _, _ := newTestShell(t)

	if err := sh.exec(context.Background(), "dance"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("got %v", err)
	}
	if err := sh.exec(context.Background(), "signup wizard"); err == nil || !strings.Contains(err.Error(), "usage: signup") {
		t.Fatalf("got %v", err)
	}
	if err := sh.exec(context.Background(), "quit"); err != errQuit {
		t.Fatalf("quit returned %v", err)
	}
}

func TestShell_SignedOutSeesHome(t *testing.T) {
	sh, _, out := newTestShell(t)

	sh.mustRun(t, "go search")
	if !strings.Contains(out.String(), "== Home ==") {
		t.Fatalf("signed-out search should render home:\n%s", out.String())
	}
	if sh.prompt() != "tutorhub> " {
		t.Fatalf("prompt = %q", sh.prompt())
	}
}

func TestShell_BadLoginShowsToast(t *testing.T) {
	sh, in, out := newTestShell(t)

	in.answers = []string{"wrong-password"}
	err := sh.exec(context.Background(), "login nobody@example.com")
	sh.settle(context.Background(), err)

	if !strings.Contains(out.String(), "! Email or password is incorrect.") {
		t.Fatalf("expected the toast, got:\n%s", out.String())
	}
}

func TestShell_TeacherStudentChat(t *testing.T) {
	sh, in, out := newTestShell(t)

	in.answers = []string{"Ada Lovelace", "ada@example.com", "password123"}
	sh.mustRun(t, "signup teacher")
	if !strings.Contains(out.String(), "== Your teaching profile ==") {
		t.Fatalf("teacher should land on onboarding:\n%s", out.String())
	}
	sh.mustRun(t, `profile headline="Algebra coach" subjects=Mathematics rate=40`)
	sh.mustRun(t, "logout")

	in.answers = []string{"Sam", "sam@example.com", "password123"}
	sh.mustRun(t, "signup student")
	if sh.prompt() != "Sam (student)> " {
		t.Fatalf("prompt = %q", sh.prompt())
	}

	sh.mustRun(t, "search algebra Mathematics")
	waitFor(t, out, " 1. Ada Lovelace")

	sh.mustRun(t, "view 1")
	waitFor(t, out, "Algebra coach")

	sh.mustRun(t, "chat 1")
	waitFor(t, out, "with Ada Lovelace")

	sh.mustRun(t, "send hello there")
	waitFor(t, out, "you: hello there")

	sh.mustRun(t, "chats")
	waitFor(t, out, " 1. Ada Lovelace")

	sh.mustRun(t, "logout")
	sh.mu.Lock()
	following := sh.subConv
	sh.mu.Unlock()
	if following != "" {
		t.Fatalf("stream should close on logout, still following %q", following)
	}
}

func TestShell_PrintsEachMessageOnce(t *testing.T) {
	sh, _, out := newTestShell(t)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := chat.Message{ID: "m2", ConversationID: "c1", SenderID: "t1", Text: "second", Timestamp: at, Seq: 2}
	earlier := chat.Message{ID: "m1", ConversationID: "c1", SenderID: "t1", Text: "first", Timestamp: at, Seq: 1}

	sh.mu.Lock()
	sh.subConv = "c1"
	sh.mu.Unlock()

	sh.printMessages("c1", []chat.Message{later})
	// a lower sequence number that sorts after an already printed message
	sh.printMessages("c1", []chat.Message{later, earlier})
	sh.printMessages("c1", []chat.Message{later, earlier})

	got := out.String()
	if strings.Count(got, "second") != 1 || strings.Count(got, "first") != 1 {
		t.Fatalf("each message should print exactly once:\n%s", got)
	}
}

func TestShell_ThemeToggle(t *testing.T) {
	sh, _, _ := newTestShell(t)

	sh.mustRun(t, "theme")
	if !sh.dark.Load() {
		t.Fatalf("expected dark after toggling")
	}
	sh.mustRun(t, "theme")
	if sh.dark.Load() {
		t.Fatalf("expected light after toggling twice")
	}
}
