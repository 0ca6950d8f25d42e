package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/geocoder89/tutorhub/internal/domain/user"
)

var (
	ErrCounterpartNotFound = errors.New("chat partner not found")
	ErrNotSignedIn         = errors.New("sign in first")
	ErrStudentsOnly        = errors.New("only students can start a chat")
)

// Auth is the per-client session the controller drives.
type Auth interface {
	SubscribeAuthState(fn func(user.Profile)) *backend.Subscription
	SignIn(ctx context.Context, email, password string) (user.Profile, error)
	SignUp(ctx context.Context, req user.SignUpRequest) (user.Profile, error)
	SignInFederated(ctx context.Context, code, state string) (user.Profile, error)
	SignOut(ctx context.Context) error
	// Reload re-resolves the signed-in profile and notifies subscribers.
	Reload(ctx context.Context) (user.Profile, error)
}

// Data is the slice of the facade the controller reads and writes through.
type Data interface {
	ListAllUsers(ctx context.Context) ([]user.Profile, error)
	UpdateUserProfile(ctx context.Context, id string, patch user.Patch) (user.Profile, error)
	RecordProfileView(ctx context.Context, teacherID string) error
	FindOrCreateConversation(ctx context.Context, userA, userB string) (chat.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]chat.Conversation, error)
	SubscribeMessages(ctx context.Context, conversationID string, fn func([]chat.Message)) (*backend.Subscription, error)
	SendMessage(ctx context.Context, conversationID, text, senderID string) (chat.Message, error)
	AddReview(ctx context.Context, teacherID string, req user.NewReviewRequest) (*user.Teacher, error)
}

type Options struct {
	Logger *slog.Logger
	// OnChange runs after any state change, outside the controller lock.
	OnChange func()
	// OnTheme runs with the new dark flag whenever the theme is applied.
	OnTheme func(dark bool)
	// PrefersDark picks the theme when nothing has been saved yet.
	PrefersDark bool
}

// Controller owns all application state. It is the only writer of the
// directory snapshot. The lock is never held across a facade call.
type Controller struct {
	auth   Auth
	data   Data
	themes ThemeStore
	logger *slog.Logger

	onChange func()
	onTheme  func(dark bool)
	fallback Theme

	mu         sync.Mutex
	ctx        context.Context
	current    user.Profile
	authGen    uint64 // bumped whenever the signed-in account changes
	page       Page
	theme      Theme
	directory  []user.Profile
	dirVersion uint64
	selectedID string
	active     *chat.Conversation
	toast      string
	authSub    *backend.Subscription
}

func New(auth Auth, data Data, themes ThemeStore, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fallback := ThemeLight
	if opts.PrefersDark {
		fallback = ThemeDark
	}

	return &Controller{
		auth:     auth,
		data:     data,
		themes:   themes,
		logger:   logger,
		onChange: opts.OnChange,
		onTheme:  opts.OnTheme,
		fallback: fallback,
		ctx:      context.Background(),
		page:     PageHome,
		theme:    ThemeLight,
	}
}

// Start loads the saved theme and subscribes to auth state. The first auth
// delivery happens before Start returns.
func (c *Controller) Start(ctx context.Context) error {
	theme, ok, err := c.themes.Load()
	if err != nil {
		c.logger.Warn("could not read preferences", "err", err)
	}
	if !ok {
		theme = c.fallback
	}

	c.mu.Lock()
	c.ctx = ctx
	c.theme = theme
	c.mu.Unlock()
	c.applyTheme(theme)

	sub := c.auth.SubscribeAuthState(c.onAuth)

	c.mu.Lock()
	c.authSub = sub
	c.mu.Unlock()
	return nil
}

func (c *Controller) Close() {
	c.mu.Lock()
	sub := c.authSub
	c.authSub = nil
	c.mu.Unlock()

	sub.Unsubscribe()
}

func (c *Controller) onAuth(p user.Profile) {
	c.mu.Lock()
	if p != nil && c.current != nil && p.Account().ID == c.current.Account().ID {
		// same account re-resolved: keep the page
		c.current = p
		c.mu.Unlock()
		c.changed()
		return
	}
	c.authGen++
	c.current = p
	switch p.(type) {
	case *user.Student:
		c.page = PageSearch
	case *user.Teacher:
		c.page = PageTeacherOnboarding
	default:
		c.page = PageHome
		c.active = nil
		c.selectedID = ""
	}
	ctx := c.ctx
	c.mu.Unlock()

	c.changed()

	if err := c.RefreshDirectory(ctx); err != nil {
		c.fail("Could not load the teacher directory.", err)
	}
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Controller) fail(msg string, err error) {
	c.logger.Warn(msg, "err", err)
	c.mu.Lock()
	c.toast = msg
	c.mu.Unlock()
	c.changed()
}

// Navigation

func (c *Controller) NavigateTo(p Page) {
	c.mu.Lock()
	c.page = p
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) Page() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

func (c *Controller) CurrentUser() user.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return user.Clone(c.current)
}

// Toast returns and clears the pending transient message.
func (c *Controller) Toast() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.toast
	c.toast = ""
	return t
}

// Auth

func (c *Controller) Login(ctx context.Context, email, password string) error {
	if _, err := c.auth.SignIn(ctx, email, password); err != nil {
		c.fail(authMessage(err), err)
		return err
	}
	return nil
}

func (c *Controller) SignUp(ctx context.Context, req user.SignUpRequest) error {
	if _, err := c.auth.SignUp(ctx, req); err != nil {
		c.fail(authMessage(err), err)
		return err
	}
	return nil
}

func (c *Controller) LoginFederated(ctx context.Context, code, state string) error {
	if _, err := c.auth.SignInFederated(ctx, code, state); err != nil {
		c.fail(authMessage(err), err)
		return err
	}
	return nil
}

func (c *Controller) Logout(ctx context.Context) error {
	if err := c.auth.SignOut(ctx); err != nil {
		c.fail("Could not sign out.", err)
		return err
	}
	return nil
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, user.ErrInvalidCredentials):
		return "Email or password is incorrect."
	case errors.Is(err, user.ErrEmailTaken):
		return "Email is already in use."
	case errors.Is(err, backend.ErrInvalidRequest):
		return "Please fill in every field."
	case errors.Is(err, user.ErrProviderUnavailable):
		return "Single sign-on is not available."
	default:
		return "Authentication failed."
	}
}

// Theme

func (c *Controller) Theme() Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

func (c *Controller) DarkMode() bool {
	return c.Theme() == ThemeDark
}

func (c *Controller) ToggleTheme() error {
	c.mu.Lock()
	next := c.theme.Toggle()
	c.theme = next
	c.mu.Unlock()

	c.applyTheme(next)
	c.changed()

	if err := c.themes.Save(next); err != nil {
		c.fail("Could not save your theme.", err)
		return err
	}
	return nil
}

func (c *Controller) applyTheme(t Theme) {
	if c.onTheme != nil {
		c.onTheme(t == ThemeDark)
	}
}

// Directory

// RefreshDirectory re-reads every profile. A fetch that finishes after a
// newer one started is discarded.
func (c *Controller) RefreshDirectory(ctx context.Context) error {
	c.mu.Lock()
	c.dirVersion++
	version := c.dirVersion
	c.mu.Unlock()

	all, err := c.data.ListAllUsers(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if version == c.dirVersion {
		c.directory = all
	}
	c.mu.Unlock()

	c.changed()
	return nil
}

func (c *Controller) Directory() []user.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]user.Profile, 0, len(c.directory))
	for _, p := range c.directory {
		out = append(out, user.Clone(p))
	}
	return out
}

func (c *Controller) Teachers() []*user.Teacher {
	return user.Teachers(c.Directory())
}

func (c *Controller) Search(term, subject string) []*user.Teacher {
	return user.SearchTeachers(c.Directory(), term, subject)
}

// SelectTeacher opens a teacher's profile page and counts the view.
func (c *Controller) SelectTeacher(ctx context.Context, teacherID string) {
	c.mu.Lock()
	c.selectedID = teacherID
	c.page = PageTeacherProfile
	c.mu.Unlock()
	c.changed()

	if err := c.data.RecordProfileView(ctx, teacherID); err != nil {
		c.logger.Debug("profile view not recorded", "teacher_id", teacherID, "err", err)
	}
}

func (c *Controller) ReviewTeacher(ctx context.Context, teacherID string, rating int, comment string) error {
	me := c.CurrentUser()
	if me == nil {
		return ErrNotSignedIn
	}

	_, err := c.data.AddReview(ctx, teacherID, user.NewReviewRequest{
		StudentName: me.Account().Name,
		Rating:      rating,
		Comment:     comment,
	})
	if err != nil {
		c.fail("Could not post your review.", err)
		return err
	}
	return c.RefreshDirectory(ctx)
}

// Profile

// SaveProfile applies the patch locally before the write is confirmed. A
// failed write surfaces as a toast and is not rolled back; the next
// directory fetch shows the stored state. A save that completes after the
// account signed out or changed is not applied.
func (c *Controller) SaveProfile(ctx context.Context, patch user.Patch) error {
	c.mu.Lock()
	me := c.current
	gen := c.authGen
	c.mu.Unlock()
	if me == nil {
		return ErrNotSignedIn
	}

	id := me.Account().ID
	normalized, err := patch.Normalize(me.Account().Role)
	if err != nil {
		c.fail("Please check the highlighted fields.", err)
		return err
	}

	optimistic := user.Apply(me, normalized)
	applied := c.ifSameAccount(gen, func() {
		c.current = optimistic
		c.replaceInDirectory(optimistic)
	})
	if !applied {
		return ErrNotSignedIn
	}
	c.changed()

	saved, err := c.data.UpdateUserProfile(ctx, id, patch)
	if err != nil {
		c.fail("Could not save your profile.", err)
		return err
	}

	applied = c.ifSameAccount(gen, func() {
		c.current = saved
		switch saved.(type) {
		case *user.Teacher:
			c.page = PageTeacherOnboarding
		case *user.Student:
			c.page = PageStudentProfile
		}
	})
	if !applied {
		return ErrNotSignedIn
	}
	c.changed()

	// keep the session's copy in step so later auth deliveries carry the save
	if _, err := c.auth.Reload(ctx); err != nil {
		c.logger.WarnContext(ctx, "could not reload session profile", "user_id", id, "err", err)
	}

	return c.RefreshDirectory(ctx)
}

// ifSameAccount runs fn under c.mu when no sign-in or sign-out happened
// since gen was read.
func (c *Controller) ifSameAccount(gen uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authGen != gen || c.current == nil {
		return false
	}
	fn()
	return true
}

// caller holds c.mu
func (c *Controller) replaceInDirectory(p user.Profile) {
	for i, existing := range c.directory {
		if existing.Account().ID == p.Account().ID {
			c.directory[i] = p
			return
		}
	}
}

// Chat

// StartChat opens (or creates) the conversation between the signed-in student
// and a teacher.
func (c *Controller) StartChat(ctx context.Context, teacherID string) error {
	me := c.CurrentUser()
	if me == nil {
		return ErrNotSignedIn
	}
	if _, ok := me.(*user.Student); !ok {
		return ErrStudentsOnly
	}

	conv, err := c.data.FindOrCreateConversation(ctx, me.Account().ID, teacherID)
	if err != nil {
		c.fail("Could not start the chat.", err)
		return err
	}

	c.SelectConversation(conv)
	return nil
}

func (c *Controller) SelectConversation(conv chat.Conversation) {
	c.mu.Lock()
	c.active = &conv
	c.page = PageChat
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) ActiveConversation() (chat.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return chat.Conversation{}, false
	}
	return *c.active, true
}

// ChatEntry is one row of the chat list.
type ChatEntry struct {
	Conversation chat.Conversation
	Counterpart  user.Profile
}

// ChatList lists the signed-in user's conversations, most recent first.
// Conversations whose partner is not in the directory are skipped.
func (c *Controller) ChatList(ctx context.Context) ([]ChatEntry, error) {
	me := c.CurrentUser()
	if me == nil {
		return nil, ErrNotSignedIn
	}

	convs, err := c.data.ListConversationsForUser(ctx, me.Account().ID)
	if err != nil {
		c.fail("Could not load your chats.", err)
		return nil, err
	}

	dir := c.Directory()
	out := make([]ChatEntry, 0, len(convs))
	for _, conv := range convs {
		otherID, ok := conv.Counterpart(me.Account().ID)
		if !ok {
			continue
		}
		other, ok := user.Find(dir, otherID)
		if !ok {
			continue
		}
		out = append(out, ChatEntry{Conversation: conv, Counterpart: other})
	}
	return out, nil
}

// SubscribeActiveChat streams the active conversation's messages.
func (c *Controller) SubscribeActiveChat(ctx context.Context, fn func([]chat.Message)) (*backend.Subscription, error) {
	conv, ok := c.ActiveConversation()
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	return c.data.SubscribeMessages(ctx, conv.ID, fn)
}

func (c *Controller) Send(ctx context.Context, text string) error {
	if err := chat.ValidateText(text); err != nil {
		return err
	}

	me := c.CurrentUser()
	if me == nil {
		return ErrNotSignedIn
	}
	conv, ok := c.ActiveConversation()
	if !ok {
		return chat.ErrConversationNotFound
	}

	if _, err := c.data.SendMessage(ctx, conv.ID, text, me.Account().ID); err != nil {
		c.fail("Could not send your message.", err)
		return err
	}
	return nil
}
