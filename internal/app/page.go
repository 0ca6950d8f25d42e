package app

type Page string

const (
	PageHome              Page = "home"
	PageAuth              Page = "auth"
	PageSearch            Page = "search"
	PageTeacherProfile    Page = "teacher-profile"
	PageTeacherOnboarding Page = "teacher-onboarding"
	PageStudentProfile    Page = "student-profile"
	PageChatList          Page = "chat-list"
	PageChat              Page = "chat"
)

func Pages() []Page {
	return []Page{
		PageHome, PageAuth, PageSearch, PageTeacherProfile,
		PageTeacherOnboarding, PageStudentProfile, PageChatList, PageChat,
	}
}

func ParsePage(s string) (Page, bool) {
	for _, p := range Pages() {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// public pages are the only ones reachable while signed out
func (p Page) public() bool {
	return p == PageHome || p == PageAuth
}
