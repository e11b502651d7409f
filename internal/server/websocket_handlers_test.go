package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	messages []WebSocketMessage
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.messages = append(c.messages, msg)
	return nil
}

func dialSplit(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(newTestMux(t, Config{}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/split" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var msg WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readSplit collects region messages up to and including "done".
func readSplit(t *testing.T, conn *websocket.Conn) ([]WebSocketMessage, WebSocketMessage) {
	t.Helper()
	var regions []WebSocketMessage
	for {
		msg := readMessage(t, conn)
		switch msg.Type {
		case "region":
			regions = append(regions, msg)
		case "done":
			return regions, msg
		default:
			t.Fatalf("unexpected message %+v", msg)
		}
	}
}

func TestWebSocket_StreamsRegions(t *testing.T) {
	conn := dialSplit(t, "?mode=rows")
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, gridPNG(t)))

	regions, done := readSplit(t, conn)
	require.Len(t, regions, 3)
	for i, m := range regions {
		require.NotNil(t, m.Region)
		assert.Equal(t, i+1, m.Region.Index)
		assert.Equal(t, "81x30", m.Region.Text)
		assert.Equal(t, done.RequestID, m.RequestID)
	}
	require.NotNil(t, done.Summary)
	assert.Equal(t, 3, done.Summary.Regions)
	assert.Equal(t, 3, done.Summary.Rows)
	assert.Zero(t, done.Summary.Failed)
}

func TestWebSocket_OptionsMessage(t *testing.T) {
	conn := dialSplit(t, "?mode=rows")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"options","mode":"grid"}`)))
	ack := readMessage(t, conn)
	assert.Equal(t, "options", ack.Type)
	require.NotNil(t, ack.Options)
	assert.Equal(t, "grid", ack.Options.Mode)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, gridPNG(t)))
	regions, done := readSplit(t, conn)
	assert.Len(t, regions, 6)
	assert.Equal(t, []int{2, 2, 2}, done.Summary.Columns)
}

func TestWebSocket_Errors(t *testing.T) {
	conn := dialSplit(t, "")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("not an image")))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "invalid_image", msg.ErrorType)
	assert.NotEmpty(t, msg.RequestID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	msg = readMessage(t, conn)
	assert.Equal(t, "invalid_request", msg.ErrorType)

	// the connection survives errors
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, gridPNG(t)))
	regions, _ := readSplit(t, conn)
	assert.Len(t, regions, 6)
}

func TestWebSocket_BadQuery(t *testing.T) {
	ts := httptest.NewServer(newTestMux(t, Config{}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/split?ratio=abc"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleWebSocketControl(t *testing.T) {
	s := newTestServer(t, Config{})
	current := RequestOptions{Mode: "rows"}

	tests := []struct {
		name      string
		data      string
		wantType  string
		wantError string
		wantMode  string
	}{
		{"options", `{"type":"options","mode":"grid","ratio":0.9}`, "options", "", "grid"},
		{"bad json", `{`, "error", "invalid_request", "rows"},
		{"unknown type", `{"type":"split"}`, "error", "invalid_request", "rows"},
		{"invalid options", `{"type":"options","mode":"cells"}`, "error", "invalid_options", "rows"},
		{"zero ratio", `{"type":"options","mode":"grid","ratio":0}`, "error", "invalid_options", "rows"},
		{"zero sample fraction", `{"type":"options","mode":"grid","sample_fraction":0}`, "error", "invalid_options", "rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &recordingConn{}
			got := s.handleWebSocketControl(conn, []byte(tt.data), current)
			assert.Equal(t, tt.wantMode, got.Mode)
			require.Len(t, conn.messages, 1)
			assert.Equal(t, tt.wantType, conn.messages[0].Type)
			assert.Equal(t, tt.wantError, conn.messages[0].ErrorType)
		})
	}
}
