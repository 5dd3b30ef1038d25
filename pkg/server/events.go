package server

import (
	"context"
	"time"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/alokranjan04/admin-voice-agent/pkg/utils/logging"
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const volumeInterval = 100 * time.Millisecond

// Event is one message on the /api/events stream.
type Event struct {
	Type   string             `json:"type"`
	State  model.SessionState `json:"state,omitempty"`
	Volume *float64           `json:"volume,omitempty"`
	Log    *model.LogEntry    `json:"log,omitempty"`
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		logging.From(c.Request.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	// the client never sends; CloseRead cancels ctx once it goes away
	ctx := conn.CloseRead(c.Request.Context())
	if err := s.streamEvents(ctx, conn); err != nil && ctx.Err() == nil {
		logging.From(ctx).Debug("event stream ended", "error", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn) error {
	sub := s.ctrl.Subscribe()
	defer sub.Unsubscribe()

	ticker := time.NewTicker(volumeInterval)
	defer ticker.Stop()

	var volume float64
	var volumeDirty bool

	for {
		var ev *Event
		select {
		case <-ctx.Done():
			return ctx.Err()

		case state, ok := <-sub.Status:
			if !ok {
				return nil
			}
			ev = &Event{Type: "status", State: state}

		case entry, ok := <-sub.Log:
			if !ok {
				return nil
			}
			ev = &Event{Type: "log", Log: &entry}

		case v, ok := <-sub.Volume:
			if !ok {
				return nil
			}
			volume, volumeDirty = v, true
			continue

		case <-ticker.C:
			if !volumeDirty {
				continue
			}
			v := volume
			volumeDirty = false
			ev = &Event{Type: "volume", Volume: &v}
		}

		if err := wsjson.Write(ctx, conn, ev); err != nil {
			return err
		}
	}
}
