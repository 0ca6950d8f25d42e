package handlers

import (
	"context"
	"time"

	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePongWait     = 60 * time.Second
	livePingEvery    = livePongWait * 9 / 10
	liveReadLimit    = 512
)

type liveFrame struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversationId"`
	Items          []chat.Message `json:"items"`
	Count          int            `json:"count"`
}

// Live upgrades to a websocket and pushes the full ordered message list on
// connect and after every change. Clients only read; anything they send is
// discarded.
func (h *ConversationsHandler) Live(ctx *gin.Context) {
	c, ok := h.participantConversation(ctx)
	if !ok {
		return
	}

	ws, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// the upgrader has already answered the request
		h.log.WarnContext(ctx.Request.Context(), "live upgrade failed", "conversation_id", c.ID, "err", err)
		return
	}
	defer ws.Close()

	// each snapshot is complete, so a slow socket only needs the newest one
	snapshots := make(chan []chat.Message, 1)
	push := func(msgs []chat.Message) {
		select {
		case snapshots <- msgs:
		default:
			select {
			case <-snapshots:
			default:
			}
			snapshots <- msgs
		}
	}

	sub, err := h.svc.SubscribeMessages(context.WithoutCancel(ctx.Request.Context()), c.ID, push)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "live subscribe failed", "conversation_id", c.ID, "err", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(liveWriteTimeout))
		return
	}
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		readUntilClosed(ws)
	}()

	ticker := time.NewTicker(livePingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Request.Context().Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(liveWriteTimeout))
			return
		case msgs := <-snapshots:
			_ = ws.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			frame := liveFrame{Type: "snapshot", ConversationID: c.ID, Items: msgs, Count: len(msgs)}
			if err := ws.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(liveWriteTimeout))
			return
		}
	}
}

// readUntilClosed keeps control frames flowing and returns once the peer
// goes away or stops answering pings.
func readUntilClosed(ws *websocket.Conn) {
	ws.SetReadLimit(liveReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(livePongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		if _, _, err := ws.NextReader(); err != nil {
			return
		}
	}
}
