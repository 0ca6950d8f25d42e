package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/google/uuid"
)

// ChatRepo holds conversations and their messages behind one lock, so a sent
// message and the conversation's activity marker move together.
type ChatRepo struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	byPair        map[string]string
	messages      map[string][]chat.Message
	seq           int64

	// now is swappable in tests to force timestamp ties.
	now func() time.Time
}

func NewChatRepo() *ChatRepo {
	return &ChatRepo{
		conversations: make(map[string]chat.Conversation),
		byPair:        make(map[string]string),
		messages:      make(map[string][]chat.Message),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source.
func (r *ChatRepo) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

func (r *ChatRepo) FindOrCreate(_ context.Context, pair chat.Pair) (chat.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byPair[pair.Key()]; ok {
		return r.conversations[id], false, nil
	}

	c := chat.Conversation{
		ID:             uuid.NewString(),
		ParticipantIDs: pair.IDs(),
		CreatedAt:      r.now(),
	}

	r.conversations[c.ID] = c
	r.byPair[pair.Key()] = c.ID
	return c, true, nil
}

func (r *ChatRepo) Get(_ context.Context, id string) (chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	return c, nil
}

func (r *ChatRepo) ListForUser(_ context.Context, userID string) ([]chat.Conversation, error) {
	r.mu.RLock()
	out := make([]chat.Conversation, 0)
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()

	chat.SortByActivity(out)
	return out, nil
}

func (r *ChatRepo) Append(_ context.Context, conversationID, senderID, text string) (chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return chat.Message{}, chat.ErrConversationNotFound
	}
	if !c.HasParticipant(senderID) {
		return chat.Message{}, chat.ErrNotParticipant
	}

	r.seq++
	ts := r.now()

	m := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Timestamp:      ts,
		Seq:            r.seq,
	}
	r.messages[conversationID] = append(r.messages[conversationID], m)

	if c.LastMessageAt == nil || ts.After(*c.LastMessageAt) {
		c.LastMessageAt = &ts
		r.conversations[conversationID] = c
	}
	return m, nil
}

func (r *ChatRepo) List(_ context.Context, conversationID string) ([]chat.Message, error) {
	r.mu.RLock()
	if _, ok := r.conversations[conversationID]; !ok {
		r.mu.RUnlock()
		return nil, chat.ErrConversationNotFound
	}
	out := append([]chat.Message{}, r.messages[conversationID]...)
	r.mu.RUnlock()

	chat.SortMessages(out)
	return out, nil
}
