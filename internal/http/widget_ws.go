package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/example/ride-ops-console/internal/session"
)

var upgrader = websocket.Upgrader{}

// clientFrame is one command from the widget.
type clientFrame struct {
	Op     string `json:"op"` // toggle, close, select, send
	RideID int64  `json:"ride_id,omitempty"`
	Text   string `json:"text,omitempty"`
}

// serverFrame is one push to the widget: either a full render state or a
// send failure surfaced back to the initiating client.
type serverFrame struct {
	Type   string               `json:"type"` // render, send_error
	Render *session.RenderState `json:"render,omitempty"`
	RideID int64                `json:"ride_id,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// handleWidgetWS attaches a chat session to a widget connection. Render
// states flow out, commands flow in; the session ends when the socket
// does.
func (s *Server) handleWidgetWS(w http.ResponseWriter, r *http.Request) {
	actor := s.auth.ActorFromRequest(r)
	if !actor.Authenticated {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}

	// out is drained by a single writer goroutine; renders are coalesced
	// rather than ever blocking the session's event loop
	out := make(chan serverFrame, 64)
	push := func(f serverFrame) {
		for {
			select {
			case out <- f:
				return
			default:
			}
			select {
			case <-out:
			default:
			}
		}
	}

	ctl := s.hub.Attach(r.Context(), actor, func(st session.RenderState) {
		push(serverFrame{Type: "render", Render: &st})
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for f := range out {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
	}()

	defer func() {
		s.hub.Detach(ctl)
		close(out)
		<-writerDone
		_ = conn.Close()
	}()

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		s.dispatch(r.Context(), ctl, frame, push)
	}
}

func (s *Server) dispatch(ctx context.Context, ctl *session.Controller, frame clientFrame, push func(serverFrame)) {
	switch frame.Op {
	case "toggle":
		ctl.Toggle()
	case "close":
		ctl.CloseWidget()
	case "select":
		ctl.SelectRide(frame.RideID)
	case "send":
		if err := ctl.Send(ctx, frame.RideID, frame.Text); err != nil {
			s.logger.Warn("message send failed", "ride", frame.RideID, "error", err)
			push(serverFrame{Type: "send_error", RideID: frame.RideID, Error: "message could not be sent"})
		}
	default:
		s.logger.Debug("unknown widget op", "op", frame.Op)
	}
}
