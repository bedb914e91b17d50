package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
)

// Event is one real-time message: a type such as "pickup:created" and its payload
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Stream is an open real-time connection
type Stream struct {
	conn *websocket.Conn
}

// Dial opens the real-time channel. The server places the connection into
// rooms from the token's principal.
func (c *Client) Dial(ctx context.Context) (*Stream, error) {
	url := c.baseURL + "/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "websocket handshake refused"}
		}
		return nil, errors.Wrap(err, "dial websocket")
	}
	return &Stream{conn: conn}, nil
}

// Next blocks until the next event arrives or the connection fails
func (s *Stream) Next() (Event, error) {
	var ev Event
	if err := s.conn.ReadJSON(&ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (s *Stream) Close() error {
	return s.conn.Close()
}
