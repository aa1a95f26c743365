package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
	"github.com/phantomscan/phantomscan/internal/store"
)

func testHub() (*Hub, *store.Store) {
	pol := policy.Default()
	st := store.New(time.Hour)
	return New(st, func() *policy.Policy { return pol }, 50*time.Millisecond), st
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHubSendsFeedOnConnect(t *testing.T) {
	hub, st := testHub()
	st.Put(model.ScoredCandidate{
		Candidate: model.Candidate{Ecosystem: model.EcosystemNPM, Name: "evil-pkg"},
		Score:     0.9,
		RiskLevel: "high",
	})

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Event != "feed" {
		t.Errorf("event = %q, want feed", msg.Event)
	}
	if len(msg.Data) != 1 || msg.Data[0].Candidate.Name != "evil-pkg" {
		t.Errorf("data = %+v", msg.Data)
	}
}

func TestHubCount(t *testing.T) {
	hub, _ := testHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	if hub.Count() != 0 {
		t.Fatalf("count = %d, want 0", hub.Count())
	}

	conn := dial(t, srv)

	waitFor(t, func() bool { return hub.Count() == 1 })
	conn.Close()
	waitFor(t, func() bool { return hub.Count() == 0 })
}

func TestHubBroadcast(t *testing.T) {
	hub, st := testHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	// Drain the on-connect snapshot (empty feed).
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	st.Put(model.ScoredCandidate{
		Candidate: model.Candidate{Ecosystem: model.EcosystemPyPI, Name: "new-pkg"},
		Score:     0.6,
	})
	waitFor(t, func() bool { return hub.Count() == 1 })
	hub.broadcast()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	if len(msg.Data) != 1 || msg.Data[0].Candidate.Name != "new-pkg" {
		t.Errorf("broadcast data = %+v", msg.Data)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
