package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewChatRepo(pool *pgxpool.Pool, prom *observability.Prom) *ChatRepo {
	return &ChatRepo{pool: pool, prom: prom}
}

func scanConversation(row pgx.Row) (chat.Conversation, error) {
	var c chat.Conversation
	err := row.Scan(&c.ID, &c.ParticipantIDs[0], &c.ParticipantIDs[1], &c.CreatedAt, &c.LastMessageAt)
	return c, err
}

// FindOrCreate relies on the unique (participant_a, participant_b) index: the
// loser of a concurrent insert reads back the winner's row.
func (r *ChatRepo) FindOrCreate(ctx context.Context, pair chat.Pair) (chat.Conversation, bool, error) {
	var c chat.Conversation

	err := r.prom.ObserveDB(ctx, "conversations.insert", func() error {
		var err error
		c, err = scanConversation(r.pool.QueryRow(ctx, `
			INSERT INTO conversations (id, participant_a, participant_b, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (participant_a, participant_b) DO NOTHING
			RETURNING id, participant_a, participant_b, created_at, last_message_at`,
			uuid.NewString(), pair.A, pair.B,
		))
		return err
	})
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return chat.Conversation{}, false, err
	}

	err = r.prom.ObserveDB(ctx, "conversations.get_by_pair", func() error {
		var err error
		c, err = scanConversation(r.pool.QueryRow(ctx, `
			SELECT id, participant_a, participant_b, created_at, last_message_at
			FROM conversations
			WHERE participant_a = $1 AND participant_b = $2`,
			pair.A, pair.B,
		))
		return err
	})
	if err != nil {
		return chat.Conversation{}, false, err
	}
	return c, false, nil
}

func (r *ChatRepo) Get(ctx context.Context, id string) (chat.Conversation, error) {
	var c chat.Conversation

	err := r.prom.ObserveDB(ctx, "conversations.get", func() error {
		var err error
		c, err = scanConversation(r.pool.QueryRow(ctx, `
			SELECT id, participant_a, participant_b, created_at, last_message_at
			FROM conversations
			WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chat.Conversation{}, chat.ErrConversationNotFound
		}
		return chat.Conversation{}, err
	}
	return c, nil
}

func (r *ChatRepo) ListForUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	out := make([]chat.Conversation, 0)

	err := r.prom.ObserveDB(ctx, "conversations.list_for_user", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT id, participant_a, participant_b, created_at, last_message_at
			FROM conversations
			WHERE participant_a = $1 OR participant_b = $1
			ORDER BY COALESCE(last_message_at, created_at) DESC, id ASC`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanConversation(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Append inserts the message and advances the conversation's activity marker
// in one transaction. The marker never moves backwards.
func (r *ChatRepo) Append(ctx context.Context, conversationID, senderID, text string) (chat.Message, error) {
	var m chat.Message

	err := r.prom.ObserveDB(ctx, "messages.append", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		c, err := scanConversation(tx.QueryRow(ctx, `
			SELECT id, participant_a, participant_b, created_at, last_message_at
			FROM conversations
			WHERE id = $1
			FOR UPDATE`, conversationID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return chat.ErrConversationNotFound
			}
			return err
		}
		if !c.HasParticipant(senderID) {
			return chat.ErrNotParticipant
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, text, sent_at)
			VALUES ($1, $2, $3, $4, clock_timestamp())
			RETURNING id, conversation_id, sender_id, text, sent_at, seq`,
			uuid.NewString(), conversationID, senderID, text,
		).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.Timestamp, &m.Seq)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE conversations
			SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2)
			WHERE id = $1`, conversationID, m.Timestamp)
		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (r *ChatRepo) List(ctx context.Context, conversationID string) ([]chat.Message, error) {
	if _, err := r.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	out := make([]chat.Message, 0)
	err := r.prom.ObserveDB(ctx, "messages.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT id, conversation_id, sender_id, text, sent_at, seq
			FROM messages
			WHERE conversation_id = $1
			ORDER BY sent_at ASC, seq ASC`, conversationID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m chat.Message
			if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.Timestamp, &m.Seq); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
