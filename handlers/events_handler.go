package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"aijudge-backend/notify"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	eventBacklog      = 64
	eventWriteTimeout = 5 * time.Second
)

// Client message types on the event stream
const (
	MessageJoinCase  = "joinCase"
	MessageLeaveCase = "leaveCase"
)

type clientMessage struct {
	Type   string `json:"type"`
	CaseID string `json:"caseId"`
}

// EventsHandler streams case events over a websocket. A connection may be
// joined to any number of cases at once.
type EventsHandler struct {
	bus            *notify.Bus
	originPatterns []string
	logger         *zap.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewEventsHandler creates an event stream handler. allowedOrigins is a
// comma separated list of host patterns; empty means same-origin only.
func NewEventsHandler(bus *notify.Bus, allowedOrigins string, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		bus:            bus,
		originPatterns: originPatterns(allowedOrigins),
		logger:         logger,
		closing:        make(chan struct{}),
	}
}

// Shutdown ends every open stream. http.Server.Shutdown does not wait for
// hijacked connections, so register this with RegisterOnShutdown.
func (h *EventsHandler) Shutdown() {
	h.closeOnce.Do(func() {
		close(h.closing)
	})
}

// Stream handles GET /api/events
func (h *EventsHandler) Stream(c *gin.Context) {
	// gin's writer refuses to hijack once the 101 status has been written
	var w http.ResponseWriter = c.Writer
	if u, ok := w.(interface{ Unwrap() http.ResponseWriter }); ok {
		w = u.Unwrap()
	}
	conn, err := websocket.Accept(w, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Debug("Websocket upgrade rejected", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := make(chan notify.Event, eventBacklog)
	subs := map[string]notify.Subscription{}
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()

	messages := make(chan clientMessage)
	readErr := make(chan error, 1)
	go func() {
		for {
			var msg clientMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				readErr <- err
				return
			}
			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-h.closing:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case msg := <-messages:
			caseID := strings.TrimSpace(msg.CaseID)
			if caseID == "" {
				continue
			}
			switch msg.Type {
			case MessageJoinCase:
				if _, joined := subs[caseID]; joined {
					continue
				}
				sub := h.bus.Join(caseID)
				subs[caseID] = sub
				go forward(ctx, sub, out)
				h.logger.Debug("Client joined case", zap.String("case_id", caseID))
			case MessageLeaveCase:
				if sub, joined := subs[caseID]; joined {
					sub.Close()
					delete(subs, caseID)
					h.logger.Debug("Client left case", zap.String("case_id", caseID))
				}
			}
		case evt := <-out:
			writeCtx, cancelWrite := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(writeCtx, conn, evt)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

// forward copies one subscription into the connection's outbound queue
// until the subscription is closed.
func forward(ctx context.Context, sub notify.Subscription, out chan<- notify.Event) {
	for {
		select {
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func originPatterns(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimPrefix(p, "https://")
		p = strings.TrimPrefix(p, "http://")
		p = strings.TrimSuffix(p, "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
