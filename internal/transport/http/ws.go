package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"quizee-service/internal/logger"
	"quizee-service/internal/stream"
)

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// outbox serialises every write to one connection. Subscription callbacks
// push into it from whichever goroutine published; a single writer drains it.
type outbox struct {
	conn   *websocket.Conn
	log    *logger.Logger
	send   chan outboundMessage
	closed chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newOutbox(conn *websocket.Conn, log *logger.Logger) *outbox {
	o := &outbox{
		conn:   conn,
		log:    log,
		send:   make(chan outboundMessage, 64),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go o.write()
	return o
}

func (o *outbox) push(typ string, payload any) {
	select {
	case o.send <- outboundMessage{Type: typ, Payload: payload}:
	case <-o.closed:
	}
}

func (o *outbox) pushError(err error) {
	o.push("error", toErrorPayload(err))
}

// close stops accepting messages, drains what is queued and waits for the
// writer.
func (o *outbox) close() {
	o.once.Do(func() { close(o.closed) })
	<-o.done
}

func (o *outbox) write() {
	defer close(o.done)
	for {
		select {
		case msg := <-o.send:
			if err := o.conn.WriteJSON(msg); err != nil {
				o.log.Warn("ws write error", "error", err)
				_ = o.conn.Close()
				o.once.Do(func() { close(o.closed) })
				return
			}
		case <-o.closed:
			for {
				select {
				case msg := <-o.send:
					if err := o.conn.WriteJSON(msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// forward pushes every value of src as a typ message, starting with the
// replayed one.
func forward[T any](out *outbox, src stream.Source[T], typ string) func() {
	return src.Subscribe(func(v T) {
		out.push(typ, v)
	})
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
