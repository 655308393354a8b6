package forms

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/booking-cascade/internal/cascade"
)

// InboundMessage is what the page sends over the event stream.
type InboundMessage struct {
	Type  string        `json:"type"` // "ping", "select"
	Field cascade.Field `json:"field,omitempty"`
	Value string        `json:"value,omitempty"`
}

// OutboundMessage is what the page receives over the event stream.
type OutboundMessage struct {
	Type   string             `json:"type"` // "snapshot", "event", "pong", "error", "closed"
	FormID string             `json:"form_id,omitempty"`
	State  *cascade.FormState `json:"state,omitempty"`
	Event  *cascade.Event     `json:"event,omitempty"`
	Error  string             `json:"error,omitempty"`
}

type eventConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *eventConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// HandleEvents upgrades to WebSocket and streams field updates for a form.
// GET /forms/{formID}/events
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveEvents(conn, session)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveEvents(conn *websocket.Conn, session *Session) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ec := &eventConn{conn: conn}

	events, unsubscribe, err := session.Controller.Subscribe(ctx)
	if err != nil {
		_ = ec.send(OutboundMessage{Type: "error", Error: err.Error()})
		return
	}
	defer unsubscribe()

	state, err := session.Controller.Snapshot(ctx)
	if err != nil {
		_ = ec.send(OutboundMessage{Type: "error", Error: err.Error()})
		return
	}
	if err := ec.send(OutboundMessage{Type: "snapshot", FormID: session.ID, State: &state}); err != nil {
		return
	}

	h.logger.Info("form events: connection opened", "form_id", session.ID)

	// left is closed when the page goes away, before the subscription ends.
	left := make(chan struct{})
	defer close(left)

	go func() {
		for ev := range events {
			if err := ec.send(OutboundMessage{Type: "event", Event: &ev}); err != nil {
				h.logger.Debug("form events: send failed", "form_id", session.ID, "error", err)
				break
			}
		}
		select {
		case <-session.Controller.Done():
			_ = ec.send(OutboundMessage{Type: "closed", FormID: session.ID})
		case <-left:
		}
		_ = conn.Close()
	}()

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("form events: connection closed", "form_id", session.ID, "error", err)
			return
		}
		h.manager.touch(session)

		switch msg.Type {
		case "ping":
			_ = ec.send(OutboundMessage{Type: "pong"})
		case "select":
			if err := h.applySelection(ctx, session.Controller, msg.Field, strings.TrimSpace(msg.Value)); err != nil {
				_ = ec.send(OutboundMessage{Type: "error", Error: err.Error()})
			}
		}
	}
}

func (h *Handler) applySelection(ctx context.Context, c *cascade.Controller, field cascade.Field, value string) error {
	switch field {
	case cascade.FieldSpecialty:
		return c.SpecialtyChanged(ctx, value)
	case cascade.FieldProvider:
		return c.ProviderChanged(ctx, value)
	case cascade.FieldDate:
		return c.DateChanged(ctx, value)
	case cascade.FieldTime:
		return c.TimeChanged(ctx, value)
	}
	return cascade.ErrUnknownOption
}
