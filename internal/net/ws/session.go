package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// session serializes writes to one websocket connection. It is the
// relay.Sender handed to the room layer.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newSession(conn *websocket.Conn) *session {
	return &session{conn: conn}
}

// Send marshals and writes one text frame under the write deadline.
func (s *session) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) close() {
	s.conn.Close()
}
