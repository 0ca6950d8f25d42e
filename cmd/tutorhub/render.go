package main

import (
	"fmt"
	"strings"

	"github.com/geocoder89/tutorhub/internal/app"
	"github.com/geocoder89/tutorhub/internal/domain/user"
)

type style int

const (
	headingStyle style = iota
	dimStyle
	accentStyle
)

var palettes = map[bool]map[style]string{
	// light
	false: {headingStyle: "\x1b[1;34m", dimStyle: "\x1b[90m", accentStyle: "\x1b[35m"},
	// dark
	true: {headingStyle: "\x1b[1;96m", dimStyle: "\x1b[37m", accentStyle: "\x1b[93m"},
}

func (s *shell) paint(st style, text string) string {
	if !s.color {
		return text
	}
	return palettes[s.dark.Load()][st] + text + "\x1b[0m"
}

var pageTitles = map[app.Page]string{
	app.PageHome:              "Home",
	app.PageAuth:              "Sign in",
	app.PageSearch:            "Find a teacher",
	app.PageTeacherProfile:    "Teacher",
	app.PageTeacherOnboarding: "Your teaching profile",
	app.PageStudentProfile:    "Your learning profile",
	app.PageChatList:          "Chats",
	app.PageChat:              "Chat",
}

// render prints the page the controller says to show.
func (s *shell) render() {
	v := s.ctrl.View()

	var teachers []*user.Teacher
	if v.Page == app.PageSearch {
		teachers = s.ctrl.Teachers()
		s.remember(teachers)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.out, "\n%s\n", s.paint(headingStyle, "== "+pageTitles[v.Page]+" =="))

	switch v.Page {
	case app.PageHome, app.PageAuth:
		if v.User == nil {
			fmt.Fprintln(s.out, "Find a tutor or share what you know. Use signup or login to begin.")
		} else {
			fmt.Fprintf(s.out, "Welcome back, %s.\n", v.User.Account().Name)
		}

	case app.PageSearch:
		s.writeTeachers(teachers)

	case app.PageTeacherProfile:
		s.writeProfile(v.Teacher)

	case app.PageTeacherOnboarding, app.PageStudentProfile:
		s.writeProfile(v.User)
		fmt.Fprintln(s.out, s.paint(dimStyle, "edit with: profile field=value ..."))

	case app.PageChatList:
		fmt.Fprintln(s.out, s.paint(dimStyle, "run chats to list your conversations"))

	case app.PageChat:
		if v.Err != nil {
			fmt.Fprintf(s.out, "! %v\n", v.Err)
			return
		}
		fmt.Fprintf(s.out, "with %s\n", s.paint(accentStyle, v.Counterpart.Account().Name))
	}
}

// The write helpers expect s.mu to be held.

func (s *shell) writeTeachers(ts []*user.Teacher) {
	if len(ts) == 0 {
		fmt.Fprintln(s.out, "no teachers match")
		return
	}
	for i, t := range ts {
		fmt.Fprintf(s.out, "%2d. %s  %s  $%.2f/h  %s\n",
			i+1,
			s.paint(accentStyle, t.Name),
			stars(t.Rating),
			t.HourlyRate,
			strings.Join(t.Subjects, ", "),
		)
		if t.Headline != "" {
			fmt.Fprintf(s.out, "    %s\n", s.paint(dimStyle, t.Headline))
		}
	}
}

func (s *shell) writeProfile(p user.Profile) {
	if p == nil {
		return
	}
	b := p.Account()
	fmt.Fprintf(s.out, "%s <%s> %s\n", s.paint(accentStyle, b.Name), b.Email, s.paint(dimStyle, string(b.Role)+" "+b.ID))

	switch prof := p.(type) {
	case *user.Student:
		fmt.Fprintf(s.out, "grade: %s\n", prof.GradeLevel)
		if prof.LearningGoals != "" {
			fmt.Fprintf(s.out, "goals: %s\n", prof.LearningGoals)
		}

	case *user.Teacher:
		fmt.Fprintf(s.out, "%s\n", prof.Headline)
		fmt.Fprintf(s.out, "subjects: %s\n", strings.Join(prof.Subjects, ", "))
		fmt.Fprintf(s.out, "rate: $%.2f/h  rating: %s  views: %d\n", prof.HourlyRate, stars(prof.Rating), prof.ProfileViews)
		if prof.Bio != "" {
			fmt.Fprintf(s.out, "\n%s\n", prof.Bio)
		}
		if prof.ResumeURL != "" {
			fmt.Fprintf(s.out, "resume: %s\n", prof.ResumeURL)
		}
		for _, r := range prof.Reviews {
			fmt.Fprintf(s.out, "  %s %s: %s\n", stars(float64(r.Rating)), r.StudentName, r.Comment)
		}
	}
}

func (s *shell) writeChats(entries []app.ChatEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "no conversations yet")
		return
	}
	for i, e := range entries {
		last := "no messages"
		if e.Conversation.LastMessageAt != nil {
			last = e.Conversation.LastMessageAt.Local().Format("Jan 2 15:04")
		}
		fmt.Fprintf(s.out, "%2d. %s  %s\n", i+1, s.paint(accentStyle, e.Counterpart.Account().Name), s.paint(dimStyle, last))
	}
}

func stars(rating float64) string {
	if rating <= 0 {
		return "unrated"
	}
	return fmt.Sprintf("%.1f/5", rating)
}
