package feed

import (
	"context"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Relay streams every message on a topic to websocket clients, one
// subscription per connection.
type Relay struct {
	bus      *Bus
	topic    string
	upgrader websocket.Upgrader
}

// NewRelay accepts any origin when allowed is empty.
func NewRelay(bus *Bus, topic string, allowed []string) *Relay {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}
	return &Relay{
		bus:   bus,
		topic: topic,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return len(origins) == 0 || o == "" || origins[o] || origins["*"]
			},
		},
	}
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.Warn().Err(err).Msg("feed: websocket upgrade failed")
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	msgs, err := rl.bus.Subscribe(ctx, rl.topic)
	if err != nil {
		log.Error().Err(err).Msg("feed: subscribe failed")
		_ = conn.Close()
		return
	}
	log.Debug().Str("remote", r.RemoteAddr).Msg("feed: client connected")

	go rl.readPump(conn, cancel)
	rl.writePump(ctx, conn, msgs)
	log.Debug().Str("remote", r.RemoteAddr).Msg("feed: client disconnected")
}

// readPump discards client frames and cancels the subscription once the
// connection goes away.
func (rl *Relay) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("feed: unexpected websocket close")
			}
			return
		}
	}
}

func (rl *Relay) writePump(ctx context.Context, conn *websocket.Conn, msgs <-chan *message.Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.TextMessage, m.Payload)
			m.Ack()
			if err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
