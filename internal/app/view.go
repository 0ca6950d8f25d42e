package app

import (
	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/geocoder89/tutorhub/internal/domain/user"
)

// View is what should be rendered right now. Page can differ from the
// requested page when the request cannot be honoured.
type View struct {
	Page Page
	User user.Profile

	// set for PageTeacherProfile
	Teacher *user.Teacher

	// set for PageChat
	Conversation *chat.Conversation
	Counterpart  user.Profile

	// Err is set instead of failing when the chat partner cannot be resolved.
	Err error
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{Page: c.page}
	if c.current != nil {
		v.User = user.Clone(c.current)
	}

	if c.current == nil {
		if !c.page.public() {
			v.Page = PageHome
		}
		return v
	}

	switch c.page {
	case PageTeacherProfile:
		p, ok := user.Find(c.directory, c.selectedID)
		t, isTeacher := p.(*user.Teacher)
		if !ok || !isTeacher {
			v.Page = PageSearch
			return v
		}
		v.Teacher = user.Clone(t).(*user.Teacher)

	case PageTeacherOnboarding:
		if _, ok := c.current.(*user.Teacher); !ok {
			v.Page = PageSearch
		}

	case PageStudentProfile:
		if _, ok := c.current.(*user.Student); !ok {
			v.Page = PageSearch
		}

	case PageChat:
		if c.active == nil {
			v.Page = PageChatList
			return v
		}
		conv := *c.active
		v.Conversation = &conv

		otherID, _ := conv.Counterpart(c.current.Account().ID)
		other, ok := user.Find(c.directory, otherID)
		if !ok {
			v.Err = ErrCounterpartNotFound
			return v
		}
		v.Counterpart = user.Clone(other)
	}
	return v
}
