package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/abakirov/taskhub/internal/domain"
	"github.com/abakirov/taskhub/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeVerifier maps one accepted token string to a user ID.
type fakeVerifier struct {
	accept string
	userID string
}

func (v *fakeVerifier) VerifyAccess(tokenString string) (*token.Claims, error) {
	if tokenString != v.accept {
		return nil, domain.ErrTokenInvalid
	}
	return &token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: v.userID},
	}, nil
}

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	hub := NewHub(&fakeVerifier{accept: "good-token", userID: "user-1"}, logger)

	r := gin.New()
	r.GET("/ws", hub.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

// waitForConnections polls until the hub has n live connections for userID.
func waitForConnections(t *testing.T, hub *Hub, userID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		got := len(hub.users[userID])
		hub.mu.RUnlock()
		if got == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d connections for %q", n, userID)
}

func TestHandle_MissingToken_Returns401(t *testing.T) {
	_, srv := newTestHub(t)

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHandle_InvalidToken_RejectsBeforeUpgrade(t *testing.T) {
	_, srv := newTestHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=bad-token"), nil)
	if err == nil {
		t.Fatal("dial succeeded with an invalid token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("handshake response = %+v, want 401", resp)
	}
}

func TestNotify_DeliversToConnectedClient(t *testing.T) {
	hub, srv := newTestHub(t)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=good-token"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	waitForConnections(t, hub, "user-1", 1)

	hub.Notify("user-1", "task.created", "Task created", map[string]string{"id": "task-1"})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Name != "task.created" {
		t.Errorf("event = %q, want task.created", ev.Name)
	}
	if ev.Message != "Task created" {
		t.Errorf("message = %q", ev.Message)
	}
}

func TestNotify_OtherUserGetsNothing(t *testing.T) {
	hub, srv := newTestHub(t)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=good-token"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	waitForConnections(t, hub, "user-1", 1)

	hub.Notify("user-2", "task.created", "Task created", nil)

	ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("received an event addressed to another user")
	}
}

func TestNotify_NoConnections_DoesNotPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	hub := NewHub(&fakeVerifier{}, logger)

	hub.Notify("nobody", "task.created", "Task created", nil)
	hub.BroadcastAll("maintenance", "Back in five", nil)
}

func TestBroadcastAll_ReachesEveryConnection(t *testing.T) {
	hub, srv := newTestHub(t)

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=good-token"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=good-token"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer second.Close()
	waitForConnections(t, hub, "user-1", 2)

	hub.BroadcastAll("maintenance", "Back in five", nil)

	for _, ws := range []*websocket.Conn{first, second} {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.Name != "maintenance" {
			t.Errorf("event = %q, want maintenance", ev.Name)
		}
	}
}

func TestDisconnect_Unregisters(t *testing.T) {
	hub, srv := newTestHub(t)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=good-token"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForConnections(t, hub, "user-1", 1)

	ws.Close()
	waitForConnections(t, hub, "user-1", 0)
}
