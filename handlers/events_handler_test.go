package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aijudge-backend/models"
	"aijudge-backend/notify"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventStreamJoinReceiveLeave(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := notify.NewBus()
	h := NewEventsHandler(bus, "", nil)

	r := gin.New()
	r.Use(Recover(zap.NewNop()), RequestLogger(zap.NewNop()))
	r.GET("/api/events", h.Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, clientMessage{Type: MessageJoinCase, CaseID: "c1"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "join", func() bool { return bus.Subscribers("c1") == 1 })

	// only the joined case reaches the client
	bus.Publish(notify.ArgumentAdded("c2", models.Argument{Side: models.SideB, Argument: "elsewhere", ArgumentNumber: 1}))
	bus.Publish(notify.ArgumentAdded("c1", models.Argument{Side: models.SideA, Argument: "rent was paid late", ArgumentNumber: 1}))

	var evt notify.Event
	if err := wsjson.Read(ctx, conn, &evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	if evt.Type != notify.EventArgumentAdded || evt.CaseID != "c1" || evt.ArgumentNumber != 1 || evt.Side != models.SideA {
		t.Fatalf("event = %+v", evt)
	}

	if err := wsjson.Write(ctx, conn, clientMessage{Type: MessageLeaveCase, CaseID: "c1"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "leave", func() bool { return bus.Subscribers("c1") == 0 })

	h.Shutdown()
	err = wsjson.Read(ctx, conn, &evt)
	if status := websocket.CloseStatus(err); status != websocket.StatusGoingAway {
		t.Fatalf("close status = %v (err %v)", status, err)
	}
}
