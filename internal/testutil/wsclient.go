package testutil

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a websocket test client for gateway integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials the given websocket URL and returns a test client.
//
// Precondition: url must be a ws:// URL with a listening gateway.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Send writes v as a JSON message.
//
// Postcondition: v is written to the connection or the test fails.
func (c *WSClient) Send(v any) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("sending %+v: %v", v, err)
	}
}

// ReadRaw reads one message and returns its raw bytes.
func (c *WSClient) ReadRaw(timeout time.Duration) []byte {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading message: %v", err)
	}
	return data
}

// ReadUntil reads JSON messages until one whose "type" field matches
// msgType arrives, unmarshals it into out, and returns its raw bytes.
// Messages of other types are discarded.
//
// Precondition: msgType must be non-empty.
// Postcondition: out holds the matching message, or the test fails on
// timeout.
func (c *WSClient) ReadUntil(msgType string, timeout time.Duration, out any) []byte {
	c.t.Helper()
	deadline := time.Now().Add(timeout)

	var seen []string
	for time.Now().Before(deadline) {
		_ = c.conn.SetReadDeadline(deadline)
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("reading until %q: saw [%s], error: %v", msgType, strings.Join(seen, ", "), err)
		}
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.t.Fatalf("unmarshaling message %q: %v", data, err)
		}
		if envelope.Type != msgType {
			seen = append(seen, envelope.Type)
			continue
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				c.t.Fatalf("unmarshaling %q message: %v", msgType, err)
			}
		}
		return data
	}
	c.t.Fatalf("timed out waiting for %q: saw [%s]", msgType, strings.Join(seen, ", "))
	return nil
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.conn.Close()
}
