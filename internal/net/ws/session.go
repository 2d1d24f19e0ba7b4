package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer = 256
	writeWait  = 5 * time.Second
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrSendBufferFull = errors.New("session send buffer full")
)

type frame struct {
	kind int
	data []byte
}

// Session is the write side of one websocket connection. Frames are queued
// without blocking and written by a single pump goroutine.
type Session struct {
	conn *websocket.Conn
	out  chan frame
	done chan struct{}
	once sync.Once
}

func newSession(conn *websocket.Conn) *Session {
	s := &Session{
		conn: conn,
		out:  make(chan frame, sendBuffer),
		done: make(chan struct{}),
	}
	go s.writePump()
	return s
}

// Send queues a binary packet.
func (s *Session) Send(packet []byte) error {
	return s.enqueue(frame{kind: websocket.BinaryMessage, data: packet})
}

// SendText queues a JSON control message.
func (s *Session) SendText(data []byte) error {
	return s.enqueue(frame{kind: websocket.TextMessage, data: data})
}

func (s *Session) enqueue(f frame) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- f:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close stops the pump and closes the connection. It is safe to call more
// than once.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case f := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(f.kind, f.data); err != nil {
				s.Close()
				return
			}
		}
	}
}
