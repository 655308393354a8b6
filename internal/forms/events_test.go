package forms

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/booking-cascade/internal/cascade"
)

func dialEvents(t *testing.T, srv *httptest.Server, formID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/forms/" + formID + "/events"
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

// receiveUntil reads messages until match returns true.
func receiveUntil(t *testing.T, conn *websocket.Conn, match func(OutboundMessage) bool) OutboundMessage {
	t.Helper()
	for {
		msg := receive(t, conn)
		if match(msg) {
			return msg
		}
	}
}

func TestEventsStreamSnapshotAndUpdates(t *testing.T) {
	h := newTestHost(t, HandlerConfig{})
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	id := h.create("").ID
	conn := dialEvents(t, srv, id)

	first := receive(t, conn)
	assert.Equal(t, "snapshot", first.Type)
	assert.Equal(t, id, first.FormID)
	require.NotNil(t, first.State)
	assert.Equal(t, cascade.StatusPopulated, first.State.Specialty.Status)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "select", Field: cascade.FieldSpecialty, Value: "2"}))

	msg := receiveUntil(t, conn, func(m OutboundMessage) bool {
		return m.Type == "event" && m.Event.Field == cascade.FieldProvider && m.Event.State.Status == cascade.StatusPopulated
	})
	assert.Equal(t, []string{"20"}, optionValues(*msg.Event.State))

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	receiveUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "pong" })
}

func TestEventsStreamReportsRejectedSelection(t *testing.T) {
	h := newTestHost(t, HandlerConfig{})
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	id := h.create("").ID
	conn := dialEvents(t, srv, id)
	receive(t, conn)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "select", Field: cascade.FieldTime, Value: "15:00"}))
	msg := receiveUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "error" })
	assert.Contains(t, msg.Error, "disabled")
}

func TestEventsStreamClosesWithForm(t *testing.T) {
	h := newTestHost(t, HandlerConfig{})
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	id := h.create("").ID
	conn := dialEvents(t, srv, id)
	receive(t, conn)

	require.NoError(t, h.manager.Close(id))
	msg := receiveUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "closed" })
	assert.Equal(t, id, msg.FormID)
}

func TestEventsUnknownForm(t *testing.T) {
	h := newTestHost(t, HandlerConfig{})
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/forms/missing/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
