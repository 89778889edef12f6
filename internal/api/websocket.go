package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stakepilot/stakepilot/internal/logging"
	"github.com/stakepilot/stakepilot/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to loopback; browsers are not the audience
		return true
	},
}

// transitionEvent is the wire form of an operation state change.
type transitionEvent struct {
	Type   string    `json:"type"`
	Kind   string    `json:"kind"`
	State  string    `json:"state"`
	TxHash string    `json:"tx_hash,omitempty"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// handleEvents streams operation transitions over a WebSocket. One
// subscription per connection; the subscription ends when either side
// closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		s.writeError(w, http.StatusServiceUnavailable, "chain not supported")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", logging.Err(err), logging.Component("api"))
		return
	}
	defer conn.Close()

	transitions, unsubscribe := s.orch.Subscribe()
	defer unsubscribe()

	// Reader goroutine: its only job is to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case tr, ok := <-transitions:
			if !ok {
				// Orchestrator is shutting down
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteJSON(toEvent(tr)); err != nil {
				return
			}
		}
	}
}

func toEvent(tr orchestrator.Transition) transitionEvent {
	ev := transitionEvent{
		Type:   "transition",
		Kind:   tr.Kind.String(),
		State:  tr.State.String(),
		TxHash: tr.TxHash,
		Time:   tr.Time,
	}
	if tr.Err != nil {
		ev.Error = tr.Err.Error()
	}
	return ev
}
