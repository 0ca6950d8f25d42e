package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/realtime"
	"github.com/geocoder89/tutorhub/internal/repo/memory"
)

type harness struct {
	svc    *backend.Service
	sess   *backend.Session
	ctrl   *Controller
	themes *FileThemeStore
	dark   *bool
}

func newHarness(t *testing.T) harness {
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
	sess := backend.NewSession(svc)

	themes := NewFileThemeStore(filepath.Join(t.TempDir(), "prefs.yaml"))
	dark := new(bool)

	ctrl := New(sess, svc, themes, Options{
		Logger:  logger,
		OnTheme: func(d bool) { *dark = d },
	})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(ctrl.Close)

	return harness{svc: svc, sess: sess, ctrl: ctrl, themes: themes, dark: dark}
}

func (h harness) signUp(t *testing.T, name, email string, role user.Role) user.Profile {
	t.Helper()
	if err := h.ctrl.SignUp(context.Background(), user.SignUpRequest{Name: name, Email: email, Password: "password123", Role: role}); err != nil {
		t.Fatalf("SignUp(%s) error: %v", email, err)
	}
	return h.ctrl.CurrentUser()
}

func TestController_StartsOnHome(t *testing.T) {
	h := newHarness(t)

	if h.ctrl.Page() != PageHome || h.ctrl.View().Page != PageHome {
		t.Fatalf("expected Home, got %s", h.ctrl.Page())
	}
	if h.ctrl.Theme() != ThemeLight || *h.dark {
		t.Fatalf("expected light theme by default")
	}
}

func TestController_LoggedOutGuard(t *testing.T) {
	h := newHarness(t)

	for _, p := range Pages() {
		h.ctrl.NavigateTo(p)
		got := h.ctrl.View().Page
		if got != PageHome && got != PageAuth {
			t.Fatalf("logged out navigation to %s rendered %s", p, got)
		}
		if p == PageAuth && got != PageAuth {
			t.Fatalf("Auth must be reachable while logged out")
		}
	}
}

func TestController_ThemeToggleIsIdempotentUnderDoubleApplication(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.ToggleTheme(); err != nil {
		t.Fatalf("ToggleTheme error: %v", err)
	}
	saved, ok, _ := h.themes.Load()
	if !ok || saved != ThemeDark || !h.ctrl.DarkMode() || !*h.dark {
		t.Fatalf("expected dark everywhere, saved=%q dark=%v", saved, h.ctrl.DarkMode())
	}

	if err := h.ctrl.ToggleTheme(); err != nil {
		t.Fatalf("ToggleTheme error: %v", err)
	}
	saved, _, _ = h.themes.Load()
	if saved != ThemeLight || h.ctrl.Theme() != ThemeLight || *h.dark {
		t.Fatalf("expected light after double toggle, saved=%q shown=%q", saved, h.ctrl.Theme())
	}
}

func TestController_ThemeLoadedOnStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := NewFileThemeStore(path).Save(ThemeDark); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	h := newHarness(t)
	ctrl := New(h.sess, h.svc, NewFileThemeStore(path), Options{})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer ctrl.Close()

	if !ctrl.DarkMode() {
		t.Fatalf("expected persisted dark theme to be applied")
	}
}

func TestController_PrefersDarkWithoutSavedTheme(t *testing.T) {
	h := newHarness(t)
	ctrl := New(h.sess, h.svc, NewFileThemeStore(filepath.Join(t.TempDir(), "prefs.yaml")), Options{PrefersDark: true})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer ctrl.Close()

	if !ctrl.DarkMode() {
		t.Fatalf("expected the dark preference to apply when nothing is saved")
	}
}

func TestController_AuthTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.signUp(t, "Ada", "ada@example.com", user.RoleTeacher)
	if h.ctrl.Page() != PageTeacherOnboarding {
		t.Fatalf("teacher should land on onboarding, got %s", h.ctrl.Page())
	}

	if err := h.ctrl.Logout(ctx); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if h.ctrl.Page() != PageHome || h.ctrl.CurrentUser() != nil {
		t.Fatalf("logout should return Home, got %s", h.ctrl.Page())
	}

	h.signUp(t, "Sam", "sam@example.com", user.RoleStudent)
	if h.ctrl.Page() != PageSearch {
		t.Fatalf("student should land on search, got %s", h.ctrl.Page())
	}

	// directory was re-fetched on the auth change
	if len(h.ctrl.Teachers()) != 1 {
		t.Fatalf("expected the teacher in the directory, got %d", len(h.ctrl.Teachers()))
	}
}

func TestController_LoginFailureShowsToast(t *testing.T) {
	h := newHarness(t)

	err := h.ctrl.Login(context.Background(), "nobody@example.com", "password123")
	if !errors.Is(err, user.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if msg := h.ctrl.Toast(); msg == "" {
		t.Fatalf("expected a toast")
	}
	if h.ctrl.Toast() != "" {
		t.Fatalf("toast should clear after reading")
	}
}

func TestController_RoleMismatchedPagesFallBackToSearch(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "Sam", "sam@example.com", user.RoleStudent)

	h.ctrl.NavigateTo(PageTeacherOnboarding)
	if got := h.ctrl.View().Page; got != PageSearch {
		t.Fatalf("student on onboarding should render Search, got %s", got)
	}

	h.ctrl.NavigateTo(PageStudentProfile)
	if got := h.ctrl.View().Page; got != PageStudentProfile {
		t.Fatalf("student profile should render, got %s", got)
	}

	h.ctrl.SelectTeacher(context.Background(), "missing")
	if got := h.ctrl.View().Page; got != PageSearch {
		t.Fatalf("unknown teacher should render Search, got %s", got)
	}

	h.ctrl.NavigateTo(PageChat)
	if got := h.ctrl.View().Page; got != PageChatList {
		t.Fatalf("chat without active conversation should render ChatList, got %s", got)
	}
}

func TestController_SaveProfileTransitionsAndRefetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t, "Ada", "ada@example.com", user.RoleTeacher)

	rate := 42.0
	headline := "Calculus made simple"
	if err := h.ctrl.SaveProfile(ctx, user.Patch{HourlyRate: &rate, Headline: &headline}); err != nil {
		t.Fatalf("SaveProfile error: %v", err)
	}
	if h.ctrl.Page() != PageTeacherOnboarding {
		t.Fatalf("teacher save should go to onboarding, got %s", h.ctrl.Page())
	}

	teachers := h.ctrl.Teachers()
	if len(teachers) != 1 || teachers[0].HourlyRate != 42 || teachers[0].Headline != headline {
		t.Fatalf("directory not refreshed after save: %+v", teachers)
	}

	_ = h.ctrl.Logout(ctx)
	h.signUp(t, "Sam", "sam@example.com", user.RoleStudent)

	goals := "Pass the exam"
	if err := h.ctrl.SaveProfile(ctx, user.Patch{LearningGoals: &goals}); err != nil {
		t.Fatalf("SaveProfile error: %v", err)
	}
	if h.ctrl.Page() != PageStudentProfile {
		t.Fatalf("student save should go to student profile, got %s", h.ctrl.Page())
	}
	if s := h.ctrl.CurrentUser().(*user.Student); s.LearningGoals != goals {
		t.Fatalf("current user not updated: %+v", s)
	}
}

// blockingData holds UpdateUserProfile until release is closed.
type blockingData struct {
	*backend.Service
	entered chan struct{}
	release chan struct{}
}

func (d *blockingData) UpdateUserProfile(ctx context.Context, id string, patch user.Patch) (user.Profile, error) {
	close(d.entered)
	<-d.release
	return d.Service.UpdateUserProfile(ctx, id, patch)
}

func TestController_SaveAfterLogoutIsDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	data := &blockingData{Service: h.svc, entered: make(chan struct{}), release: make(chan struct{})}
	ctrl := New(h.sess, data, h.themes, Options{})
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer ctrl.Close()

	if err := ctrl.SignUp(ctx, user.SignUpRequest{Name: "Ada", Email: "ada@example.com", Password: "password123", Role: user.RoleTeacher}); err != nil {
		t.Fatalf("SignUp error: %v", err)
	}

	headline := "Late edit"
	done := make(chan error, 1)
	go func() { done <- ctrl.SaveProfile(ctx, user.Patch{Headline: &headline}) }()

	<-data.entered
	if err := ctrl.Logout(ctx); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	close(data.release)

	if err := <-done; !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
	if ctrl.CurrentUser() != nil || h.sess.Current() != nil {
		t.Fatalf("save resurrected a signed-out user")
	}
	if got := ctrl.View().Page; got != PageHome {
		t.Fatalf("expected Home after logout, got %s", got)
	}
}

func TestController_SaveProfileReloadsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t, "Sam", "sam@example.com", user.RoleStudent)

	goals := "Pass the exam"
	if err := h.ctrl.SaveProfile(ctx, user.Patch{LearningGoals: &goals}); err != nil {
		t.Fatalf("SaveProfile error: %v", err)
	}

	if s, ok := h.sess.Current().(*user.Student); !ok || s.LearningGoals != goals {
		t.Fatalf("session still holds the sign-in profile: %+v", h.sess.Current())
	}
	if h.ctrl.Page() != PageStudentProfile {
		t.Fatalf("reload should keep the profile page, got %s", h.ctrl.Page())
	}

	var seen user.Profile
	sub := h.sess.SubscribeAuthState(func(p user.Profile) { seen = p })
	defer sub.Unsubscribe()
	if s, ok := seen.(*user.Student); !ok || s.LearningGoals != goals {
		t.Fatalf("late subscriber got %+v", seen)
	}
}

func TestController_SaveProfileInvalid(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "Ada", "ada@example.com", user.RoleTeacher)

	rate := 0.0
	err := h.ctrl.SaveProfile(context.Background(), user.Patch{HourlyRate: &rate})
	if !errors.Is(err, user.ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
	if h.ctrl.Toast() == "" {
		t.Fatalf("expected a toast for invalid input")
	}
}

func TestController_StudentStartsChatScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	teacher := h.signUp(t, "Ada Lovelace", "ada@example.com", user.RoleTeacher)
	_ = h.ctrl.Logout(ctx)
	student := h.signUp(t, "Sam", "sam@example.com", user.RoleStudent)

	h.ctrl.SelectTeacher(ctx, teacher.Account().ID)
	v := h.ctrl.View()
	if v.Page != PageTeacherProfile || v.Teacher == nil || v.Teacher.ID != teacher.Account().ID {
		t.Fatalf("unexpected teacher profile view: %+v", v)
	}

	if err := h.ctrl.StartChat(ctx, teacher.Account().ID); err != nil {
		t.Fatalf("StartChat error: %v", err)
	}
	conv, ok := h.ctrl.ActiveConversation()
	if !ok {
		t.Fatalf("expected active conversation")
	}
	want := [2]string{student.Account().ID, teacher.Account().ID}
	if want[1] < want[0] {
		want[0], want[1] = want[1], want[0]
	}
	if conv.ParticipantIDs != want {
		t.Fatalf("participants %v, want %v", conv.ParticipantIDs, want)
	}

	v = h.ctrl.View()
	if v.Page != PageChat || v.Err != nil || v.Counterpart.Account().Name != "Ada Lovelace" {
		t.Fatalf("unexpected chat view: %+v", v)
	}

	if err := h.ctrl.Send(ctx, "Hello"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	msgs, _ := h.svc.ListMessages(ctx, conv.ID)
	if len(msgs) != 1 || msgs[0].SenderID != student.Account().ID || msgs[0].Text != "Hello" {
		t.Fatalf("unexpected messages %+v", msgs)
	}

	entries, err := h.ctrl.ChatList(ctx)
	if err != nil {
		t.Fatalf("ChatList error: %v", err)
	}
	if len(entries) != 1 || entries[0].Counterpart.Account().Name != "Ada Lovelace" {
		t.Fatalf("unexpected chat list %+v", entries)
	}

	if err := h.ctrl.Send(ctx, "  "); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestController_TeachersCannotStartChats(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "Ada", "ada@example.com", user.RoleTeacher)

	if err := h.ctrl.StartChat(context.Background(), "anyone"); !errors.Is(err, ErrStudentsOnly) {
		t.Fatalf("expected ErrStudentsOnly, got %v", err)
	}
}

func TestController_ChatWithUnknownCounterpart(t *testing.T) {
	h := newHarness(t)
	me := h.signUp(t, "Sam", "sam@example.com", user.RoleStudent)

	h.ctrl.SelectConversation(chat.Conversation{ID: "c1", ParticipantIDs: [2]string{me.Account().ID, "zzz-ghost"}})

	v := h.ctrl.View()
	if v.Page != PageChat || !errors.Is(v.Err, ErrCounterpartNotFound) {
		t.Fatalf("expected counterpart error view, got %+v", v)
	}
}
