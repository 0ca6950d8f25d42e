package chat

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSelfConversation     = errors.New("a conversation needs two distinct participants")
	ErrNotParticipant       = errors.New("user is not a participant of this conversation")
	ErrEmptyMessage         = errors.New("message text must not be empty")
)

type Conversation struct {
	ID             string     `json:"id"`
	ParticipantIDs [2]string  `json:"participantIds"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastMessageAt  *time.Time `json:"lastMessageTimestamp"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	Seq            int64     `json:"seq"`
}

// Pair is a canonical participant pair: A < B.
type Pair struct {
	A string
	B string
}

// CanonicalPair orders two user ids so a pair maps to one conversation
// regardless of who starts it.
func CanonicalPair(a, b string) (Pair, error) {
	if a == "" || b == "" || a == b {
		return Pair{}, ErrSelfConversation
	}
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}, nil
}

func (p Pair) IDs() [2]string { return [2]string{p.A, p.B} }

func (p Pair) Key() string { return p.A + "|" + p.B }

func (c Conversation) HasParticipant(id string) bool {
	return c.ParticipantIDs[0] == id || c.ParticipantIDs[1] == id
}

// Counterpart returns the other participant's id.
func (c Conversation) Counterpart(id string) (string, bool) {
	switch id {
	case c.ParticipantIDs[0]:
		return c.ParticipantIDs[1], true
	case c.ParticipantIDs[1]:
		return c.ParticipantIDs[0], true
	default:
		return "", false
	}
}

// ActivityAt is the sort key for conversation lists: the last message time,
// or the creation marker before the first message.
func (c Conversation) ActivityAt() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// SortByActivity orders conversations most recent first.
func SortByActivity(cs []Conversation) {
	sort.SliceStable(cs, func(i, j int) bool {
		ai, aj := cs[i].ActivityAt(), cs[j].ActivityAt()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return cs[i].ID < cs[j].ID
	})
}

// SortMessages orders messages by timestamp, then insertion sequence.
func SortMessages(ms []Message) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].Timestamp.Equal(ms[j].Timestamp) {
			return ms[i].Timestamp.Before(ms[j].Timestamp)
		}
		return ms[i].Seq < ms[j].Seq
	})
}

// ValidateText rejects blank messages before anything is sent.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	return nil
}

type SendMessageRequest struct {
	Text string `json:"text" binding:"required,max=4000"`
}

type StartConversationRequest struct {
	CounterpartID string `json:"counterpartId" binding:"required"`
}
