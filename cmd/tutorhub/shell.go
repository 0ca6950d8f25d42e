package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/geocoder89/tutorhub/internal/app"
	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/geocoder89/tutorhub/internal/domain/user"
)

var (
	errQuit  = errors.New("quit")
	errUsage = errors.New("bad arguments")
)

// input is the part of liner.State the shell prompts through.
type input interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
}

type command struct {
	usage string
	help  string
	run   func(s *shell, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":      {"help", "list commands", cmdHelp},
		"signup":    {"signup student|teacher", "create an account", cmdSignUp},
		"login":     {"login [email]", "sign in with email and password", cmdLogin},
		"federated": {"federated <code> [state]", "sign in with an identity provider code", cmdFederated},
		"logout":    {"logout", "sign out", cmdLogout},
		"go":        {"go <page>", "navigate to a page", cmdGo},
		"theme":     {"theme", "toggle light and dark", cmdTheme},
		"me":        {"me", "show your profile", cmdMe},
		"profile":   {"profile field=value ...", "edit your profile (name avatar grade goals headline subjects bio rate resume)", cmdProfile},
		"teachers":  {"teachers", "list every teacher", cmdTeachers},
		"search":    {"search [term] [subject]", "search teachers by name, headline or subject", cmdSearch},
		"view":      {"view <n|id>", "open a teacher's profile", cmdView},
		"review":    {"review <n|id> <1-5> [comment]", "review a teacher", cmdReview},
		"chat":      {"chat <n|id>", "start or resume a chat with a teacher", cmdChat},
		"chats":     {"chats", "list your conversations", cmdChats},
		"open":      {"open <n>", "open a conversation from the last chats listing", cmdOpen},
		"send":      {"send <text>", "send a message in the open conversation", cmdSend},
		"quit":      {"quit", "leave", cmdQuit},
		"exit":      {"exit", "leave", cmdQuit},
	}
}

// shell turns command lines into controller calls and prints what changed.
// Controller callbacks and chat snapshots arrive on other goroutines, so every
// write to out goes through mu.
type shell struct {
	ctrl  *app.Controller
	in    input
	out   io.Writer
	color bool

	dirty atomic.Bool
	dark  atomic.Bool

	mu      sync.Mutex
	listed  []*user.Teacher
	chats   []app.ChatEntry
	sub     *backend.Subscription
	subConv string
	shown   map[string]struct{} // message ids already printed for subConv
}

func newShell(in input, out io.Writer, color bool) *shell {
	return &shell{in: in, out: out, color: color}
}

func (s *shell) markDirty()        { s.dirty.Store(true) }
func (s *shell) setDark(dark bool) { s.dark.Store(dark) }

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *shell) prompt() string {
	me := s.ctrl.CurrentUser()
	if me == nil {
		return "tutorhub> "
	}
	return fmt.Sprintf("%s (%s)> ", me.Account().Name, strings.ToLower(string(me.Account().Role)))
}

// exec runs one command line. errQuit ends the session.
func (s *shell) exec(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", args[0])
	}

	err = cmd.run(s, ctx, args[1:])
	if errors.Is(err, errUsage) {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return err
}

// settle follows the active conversation and prints the outcome of the last
// command. A pending toast is shown in place of the raw error.
func (s *shell) settle(ctx context.Context, err error) {
	s.syncChat(ctx)

	if toast := s.ctrl.Toast(); toast != "" {
		s.printf("! %s\n", toast)
	} else if err != nil {
		s.printf("! %v\n", err)
	}

	if s.dirty.Swap(false) {
		s.render()
	}
}

func (s *shell) close() {
	s.mu.Lock()
	sub := s.sub
	s.sub, s.subConv = nil, ""
	s.mu.Unlock()
	sub.Unsubscribe()
}

// syncChat keeps exactly one message stream open, for the active
// conversation of the signed-in user.
func (s *shell) syncChat(ctx context.Context) {
	conv, ok := s.ctrl.ActiveConversation()
	if s.ctrl.CurrentUser() == nil {
		ok = false
	}

	s.mu.Lock()
	if ok && conv.ID == s.subConv {
		s.mu.Unlock()
		return
	}
	old := s.sub
	s.sub, s.subConv, s.shown = nil, "", nil
	if ok {
		s.subConv = conv.ID
	}
	s.mu.Unlock()

	old.Unsubscribe()
	if !ok {
		return
	}

	sub, err := s.ctrl.SubscribeActiveChat(ctx, func(msgs []chat.Message) {
		s.printMessages(conv.ID, msgs)
	})
	if err != nil {
		s.printf("! could not follow the conversation: %v\n", err)
		s.mu.Lock()
		if s.subConv == conv.ID {
			s.subConv = ""
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.subConv != conv.ID {
		// switched away while subscribing
		s.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	s.sub = sub
	s.mu.Unlock()
}

// printMessages prints the part of a snapshot not shown yet.
func (s *shell) printMessages(convID string, msgs []chat.Message) {
	me := s.ctrl.CurrentUser()
	dir := s.ctrl.Directory()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subConv != convID {
		return
	}

	if s.shown == nil {
		s.shown = make(map[string]struct{}, len(msgs))
	}
	for _, m := range msgs {
		if _, ok := s.shown[m.ID]; ok {
			continue
		}
		s.shown[m.ID] = struct{}{}

		from := "?"
		if me != nil && m.SenderID == me.Account().ID {
			from = "you"
		} else if p, ok := user.Find(dir, m.SenderID); ok {
			from = p.Account().Name
		}
		fmt.Fprintf(s.out, "%s %s: %s\n", s.paint(dimStyle, m.Timestamp.Local().Format("15:04")), from, m.Text)
	}
}

// teacherID accepts a 1-based index into the last listing or a raw id.
func (s *shell) teacherID(arg string) string {
	if n, err := strconv.Atoi(arg); err == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if n >= 1 && n <= len(s.listed) {
			return s.listed[n-1].ID
		}
	}
	return arg
}

func (s *shell) remember(ts []*user.Teacher) {
	s.mu.Lock()
	s.listed = ts
	s.mu.Unlock()
}

// Commands

func cmdHelp(s *shell, _ context.Context, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(s.out, "  %-32s %s\n", c.usage, c.help)
	}
	fmt.Fprintf(s.out, "  pages: %s\n", joinPages(app.Pages()))
	return nil
}

func cmdSignUp(s *shell, ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	var role user.Role
	switch strings.ToLower(args[0]) {
	case "student":
		role = user.RoleStudent
	case "teacher":
		role = user.RoleTeacher
	default:
		return errUsage
	}

	name, err := s.in.Prompt("name: ")
	if err != nil {
		return err
	}
	email, err := s.in.Prompt("email: ")
	if err != nil {
		return err
	}
	password, err := s.in.PasswordPrompt("password: ")
	if err != nil {
		return err
	}

	return s.ctrl.SignUp(ctx, user.SignUpRequest{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Password: password,
		Role:     role,
	})
}

func cmdLogin(s *shell, ctx context.Context, args []string) error {
	if len(args) > 1 {
		return errUsage
	}

	var email string
	if len(args) == 1 {
		email = args[0]
	} else {
		var err error
		if email, err = s.in.Prompt("email: "); err != nil {
			return err
		}
	}
	password, err := s.in.PasswordPrompt("password: ")
	if err != nil {
		return err
	}

	return s.ctrl.Login(ctx, strings.TrimSpace(email), password)
}

func cmdFederated(s *shell, ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	state := ""
	if len(args) == 2 {
		state = args[1]
	}
	return s.ctrl.LoginFederated(ctx, args[0], state)
}

func cmdLogout(s *shell, ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	return s.ctrl.Logout(ctx)
}

func cmdGo(s *shell, _ context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	p, ok := app.ParsePage(strings.ToLower(args[0]))
	if !ok {
		return fmt.Errorf("unknown page %q, pages: %s", args[0], joinPages(app.Pages()))
	}
	s.ctrl.NavigateTo(p)
	return nil
}

func cmdTheme(s *shell, _ context.Context, _ []string) error {
	return s.ctrl.ToggleTheme()
}

func cmdMe(s *shell, _ context.Context, _ []string) error {
	me := s.ctrl.CurrentUser()
	if me == nil {
		return app.ErrNotSignedIn
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeProfile(me)
	return nil
}

func cmdProfile(s *shell, ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	patch, err := parsePatch(args)
	if err != nil {
		return err
	}
	return s.ctrl.SaveProfile(ctx, patch)
}

func cmdTeachers(s *shell, _ context.Context, _ []string) error {
	ts := s.ctrl.Teachers()
	s.remember(ts)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeTeachers(ts)
	return nil
}

func cmdSearch(s *shell, _ context.Context, args []string) error {
	if len(args) > 2 {
		return errUsage
	}
	term, subject := "", ""
	if len(args) > 0 {
		term = args[0]
	}
	if len(args) > 1 {
		subject = args[1]
	}

	ts := s.ctrl.Search(term, subject)
	s.remember(ts)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeTeachers(ts)
	return nil
}

func cmdView(s *shell, ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	s.ctrl.SelectTeacher(ctx, s.teacherID(args[0]))
	return nil
}

func cmdReview(s *shell, ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return errUsage
	}
	return s.ctrl.ReviewTeacher(ctx, s.teacherID(args[0]), rating, strings.Join(args[2:], " "))
}

func cmdChat(s *shell, ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	return s.ctrl.StartChat(ctx, s.teacherID(args[0]))
}

func cmdChats(s *shell, ctx context.Context, _ []string) error {
	entries, err := s.ctrl.ChatList(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = entries
	s.writeChats(entries)
	return nil
}

func cmdOpen(s *shell, _ context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return errUsage
	}

	s.mu.Lock()
	if n < 1 || n > len(s.chats) {
		s.mu.Unlock()
		return fmt.Errorf("no conversation %d, run chats first", n)
	}
	conv := s.chats[n-1].Conversation
	s.mu.Unlock()

	s.ctrl.SelectConversation(conv)
	return nil
}

func cmdSend(s *shell, ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	return s.ctrl.Send(ctx, strings.Join(args, " "))
}

func cmdQuit(*shell, context.Context, []string) error {
	return errQuit
}

// parsePatch reads field=value pairs. Subjects are comma separated.
func parsePatch(args []string) (user.Patch, error) {
	var p user.Patch
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return user.Patch{}, fmt.Errorf("expected field=value, got %q", arg)
		}
		v := val

		switch strings.ToLower(key) {
		case "name":
			p.Name = &v
		case "avatar":
			p.AvatarURL = &v
		case "grade":
			p.GradeLevel = &v
		case "goals":
			p.LearningGoals = &v
		case "headline":
			p.Headline = &v
		case "bio":
			p.Bio = &v
		case "resume":
			p.ResumeURL = &v
		case "subjects":
			var subjects []string
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					subjects = append(subjects, part)
				}
			}
			p.Subjects = &subjects
		case "rate":
			rate, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return user.Patch{}, fmt.Errorf("rate must be a number, got %q", v)
			}
			p.HourlyRate = &rate
		default:
			return user.Patch{}, fmt.Errorf("unknown field %q", key)
		}
	}
	return p, nil
}

// splitArgs splits on blanks and honours single and double quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		inToken bool
	)

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				args = append(args, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}

	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inToken {
		args = append(args, cur.String())
	}
	return args, nil
}

// complete suggests command names, and page names after "go".
func complete(line string) []string {
	if rest, ok := strings.CutPrefix(line, "go "); ok {
		var out []string
		for _, p := range app.Pages() {
			if strings.HasPrefix(string(p), rest) {
				out = append(out, "go "+string(p))
			}
		}
		return out
	}

	var out []string
	for name := range commands {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func joinPages(ps []app.Page) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, " ")
}
