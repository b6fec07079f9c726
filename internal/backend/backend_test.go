package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"smarthome_sync/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (f *fakeUsers) Create(_ context.Context, username, hash string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.users == nil {
		f.users = map[string]models.User{}
	}
	id := len(f.users) + 1
	f.users[username] = models.User{ID: id, Username: username, PasswordHash: hash}
	return id, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type testBackend struct {
	sim    *Simulator
	router *gin.Engine
	clock  *clockwork.FakeClock
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	sim, err := New(context.Background(), &fakeUsers{}, Config{
		JWTSecret: "test-secret",
		TokenTTL:  time.Minute,
		Users:     map[string]string{"demo": "demo"},
		Clock:     clock,
		Seed:      true,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testBackend{sim: sim, router: sim.Router(), clock: clock}
}

func (b *testBackend) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)
	return w
}

func (b *testBackend) signIn(t *testing.T) string {
	t.Helper()
	w := b.do(t, http.MethodPost, "/auth/sign-in", "", models.Credentials{Username: "demo", Password: "demo"})
	if w.Code != http.StatusOK {
		t.Fatalf("sign-in: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct{ Token string }
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("sign-in: bad body %s", w.Body.String())
	}
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func TestSignIn_WrongPassword(t *testing.T) {
	b := newTestBackend(t)
	w := b.do(t, http.MethodPost, "/auth/sign-in", "", models.Credentials{Username: "demo", Password: "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
	w = b.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{"username": "demo"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for missing password, got %d", w.Code)
	}
}

func TestProtectedRoutes_Unauthorized(t *testing.T) {
	b := newTestBackend(t)
	cases := []struct {
		name   string
		header string
		errMsg string
	}{
		{"missing header", "", "missing Authorization header"},
		{"invalid scheme", "Token abc", "invalid Authorization header format"},
		{"bearer without token", "Bearer", "invalid Authorization header format"},
		{"garbage token", "Bearer garbage", "invalid or expired token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			b.router.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("want 401, got %d", w.Code)
			}
			if got := decode[map[string]string](t, w)["error"]; got != tc.errMsg {
				t.Fatalf("want error %q, got %q", tc.errMsg, got)
			}
		})
	}
}

func TestToken_ExpiresWithClock(t *testing.T) {
	b := newTestBackend(t)
	token := b.signIn(t)

	if w := b.do(t, http.MethodGet, "/api/v1/devices", token, nil); w.Code != http.StatusOK {
		t.Fatalf("fresh token: want 200, got %d", w.Code)
	}
	b.clock.Advance(2 * time.Minute)
	if w := b.do(t, http.MethodGet, "/api/v1/devices", token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: want 401, got %d", w.Code)
	}
}

func TestDevices_ServerCoercesValues(t *testing.T) {
	b := newTestBackend(t)
	token := b.signIn(t)

	w := b.do(t, http.MethodPut, "/api/v1/devices/1/temperature", token, map[string]int{"value": 45})
	if w.Code != http.StatusOK {
		t.Fatalf("temperature: status %d", w.Code)
	}
	if d := decode[models.Device](t, w); d.Temperature != 30 {
		t.Fatalf("want clamped 30, got %d", d.Temperature)
	}

	w = b.do(t, http.MethodPut, "/api/v1/devices/1/fan-speed", token, map[string]int{"value": 9})
	if d := decode[models.Device](t, w); d.FanSpeed != models.MaxFanSpeed {
		t.Fatalf("want clamped fan speed, got %d", d.FanSpeed)
	}

	w = b.do(t, http.MethodPut, "/api/v1/devices/2/power", token, map[string]bool{"value": true})
	d := decode[models.Device](t, w)
	if !d.Power || d.Mode != models.ModeHeat || d.Temperature != 21 {
		t.Fatalf("power-on should report mode and temperature, got %+v", d)
	}

	w = b.do(t, http.MethodPut, "/api/v1/devices/1/mode", token, map[string]string{"value": "TURBO"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid mode: want 400, got %d", w.Code)
	}
	w = b.do(t, http.MethodPut, "/api/v1/devices/99/power", token, map[string]bool{"value": true})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown device: want 404, got %d", w.Code)
	}
	w = b.do(t, http.MethodPut, "/api/v1/devices/1/swing", token, map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing value: want 400, got %d", w.Code)
	}
}

func TestLights_ToggleAndLevel(t *testing.T) {
	b := newTestBackend(t)
	token := b.signIn(t)

	w := b.do(t, http.MethodPost, "/api/v1/lights/1/toggle", token, nil)
	if l := decode[models.Light](t, w); !l.IsActive {
		t.Fatalf("toggle should activate light 1: %+v", l)
	}
	w = b.do(t, http.MethodPost, "/api/v1/lights/1/toggle", token, nil)
	if l := decode[models.Light](t, w); l.IsActive {
		t.Fatalf("second toggle should deactivate light 1: %+v", l)
	}

	w = b.do(t, http.MethodPut, "/api/v1/lights/3/level", token, map[string]int{"value": 0})
	l := decode[models.Light](t, w)
	if l.Level != models.MinLightLevel || l.IsActive {
		t.Fatalf("level clamps to 1 and leaves active untouched: %+v", l)
	}
}

func TestEquipment_UniquenessAndDelete(t *testing.T) {
	b := newTestBackend(t)
	token := b.signIn(t)

	w := b.do(t, http.MethodGet, "/api/v1/automations/1/equipment", token, nil)
	existing := decode[[]models.Association](t, w)
	if len(existing) != 1 {
		t.Fatalf("seed should hold one association, got %d", len(existing))
	}

	body := map[string]any{"target_type": "light", "target_id": 1}
	if w := b.do(t, http.MethodPost, "/api/v1/automations/1/equipment", token, body); w.Code != http.StatusConflict {
		t.Fatalf("duplicate: want 409, got %d", w.Code)
	}
	body = map[string]any{"target_type": "device", "target_id": 2, "action": map[string]any{"power": true}}
	w = b.do(t, http.MethodPost, "/api/v1/automations/1/equipment", token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: want 201, got %d", w.Code)
	}
	created := decode[models.Association](t, w)
	if created.OwnerID != 1 || created.Key() != (models.TargetKey{Type: models.TargetDevice, ID: 2}) {
		t.Fatalf("unexpected association %+v", created)
	}
	body = map[string]any{"target_type": "light", "target_id": 404}
	if w := b.do(t, http.MethodPost, "/api/v1/automations/1/equipment", token, body); w.Code != http.StatusNotFound {
		t.Fatalf("unknown target: want 404, got %d", w.Code)
	}

	path := "/api/v1/equipment/" + strconv.Itoa(existing[0].ID)
	if w := b.do(t, http.MethodDelete, path, token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: want 204, got %d", w.Code)
	}
	if w := b.do(t, http.MethodDelete, path, token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: want 404, got %d", w.Code)
	}
}

func TestAutomations_ScheduleValidated(t *testing.T) {
	b := newTestBackend(t)
	token := b.signIn(t)

	w := b.do(t, http.MethodPut, "/api/v1/automations/1/schedule", token, map[string]string{"schedule": "0 30 9 ? * SUN"})
	if a := decode[models.Automation](t, w); a.Schedule != "0 30 9 ? * SUN" {
		t.Fatalf("schedule not stored: %+v", a)
	}
	w = b.do(t, http.MethodPut, "/api/v1/automations/1/schedule", token, map[string]string{"schedule": "every day"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid schedule: want 400, got %d", w.Code)
	}
	w = b.do(t, http.MethodPost, "/api/v1/automations", token, map[string]string{"name": "Morning", "schedule": "0 0 7 * * ?"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: want 201, got %d", w.Code)
	}
}

func TestInjectFault_OneShot(t *testing.T) {
	b := newTestBackend(t)
	token := b.signIn(t)
	b.sim.Handler.InjectFault(http.MethodPut, "/api/v1/devices/1/power", http.StatusServiceUnavailable)

	if w := b.do(t, http.MethodPut, "/api/v1/devices/1/power", token, map[string]bool{"value": true}); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("want injected 503, got %d", w.Code)
	}
	if w := b.do(t, http.MethodPut, "/api/v1/devices/1/power", token, map[string]bool{"value": true}); w.Code != http.StatusOK {
		t.Fatalf("fault must be consumed, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	b := newTestBackend(t)
	w := b.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || decode[map[string]string](t, w)["status"] != statusOK {
		t.Fatalf("unexpected health response %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestWebSocket_SnapshotThenChanges(t *testing.T) {
	b := newTestBackend(t)
	token := b.signIn(t)
	srv := httptest.NewServer(b.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token: want 401, got resp=%v err=%v", resp, err)
	}

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	type envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	// two devices and three lights
	for i := 0; i < 5; i++ {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read snapshot %d: %v", i, err)
		}
	}

	if _, err := b.sim.Home.UpdateLight(2, func(l *models.Light) error { l.Level = 55; return nil }); err != nil {
		t.Fatalf("update: %v", err)
	}
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read change: %v", err)
	}
	var l models.Light
	if err := json.Unmarshal(env.Data, &l); err != nil {
		t.Fatalf("decode change: %v", err)
	}
	if env.Type != "light" || l.ID != 2 || l.Level != 55 {
		t.Fatalf("unexpected change %s %+v", env.Type, l)
	}
}
