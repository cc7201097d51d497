package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valarieck/waconcierge/internal/api/router"
	"github.com/valarieck/waconcierge/internal/channel"
	"github.com/valarieck/waconcierge/internal/engine"
	"github.com/valarieck/waconcierge/internal/http/handlers"
	"github.com/valarieck/waconcierge/internal/lookup"
	"github.com/valarieck/waconcierge/internal/menu"
	"github.com/valarieck/waconcierge/internal/session"
	"github.com/valarieck/waconcierge/pkg/logging"
)

const testAdminSecret = "test-admin-secret"

type fakeBridge struct {
	status  string
	sent    []sentFrame
	sendErr error
}

type sentFrame struct {
	UserID, Text, MediaURL string
}

func (f *fakeBridge) Status() string { return f.status }

func (f *fakeBridge) Send(userID, text, mediaURL string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentFrame{userID, text, mediaURL})
	return nil
}

type fakeAIHealth struct {
	ok     bool
	detail string
}

func (f *fakeAIHealth) Healthy(context.Context) (bool, string) { return f.ok, f.detail }

type fixture struct {
	server  *httptest.Server
	bridge  *fakeBridge
	history *channel.History
	store   *session.MemoryStore
}

func newFixture(t *testing.T, bridge *fakeBridge, aiHealth handlers.AIHealthChecker) *fixture {
	t.Helper()
	store := session.NewMemoryStore()
	eng := engine.New(store, nil, nil, engine.Config{
		Registry: menu.LookupMenu(),
		Family:   menu.FamilyLookup,
		Timeout:  2 * time.Minute,
		SearchKinds: map[session.State]lookup.Kind{
			session.StateAwaitingID: lookup.KindID,
		},
		ExitTokens: []string{"0", "salir"},
	}, nil, logging.New("error"))

	history := channel.NewHistory(50)
	var b handlers.Bridge
	if bridge != nil {
		b = bridge
	}
	gateway := handlers.NewGatewayHandler(eng, b, aiHealth, history, logging.New("error"))

	handler := router.New(&router.Config{
		Gateway:         gateway,
		AdminAuthSecret: testAdminSecret,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &fixture{server: server, bridge: bridge, history: history, store: store}
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAdminSecret))
	require.NoError(t, err)
	return token
}

func (f *fixture) request(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t, nil, nil)
	resp := f.request(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestStatusReportsBridgeState(t *testing.T) {
	f := newFixture(t, &fakeBridge{status: channel.StatusConnected}, nil)
	resp := f.request(t, http.MethodGet, "/status", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "connected", body["bridge"])
	assert.EqualValues(t, 0, body["history_size"])
}

func TestStatusWithoutBridge(t *testing.T) {
	f := newFixture(t, nil, nil)
	resp := f.request(t, http.MethodGet, "/status", nil, "")
	assert.Equal(t, "disabled", decodeBody(t, resp)["bridge"])
}

func TestAdminRoutesRejectMissingOrBadToken(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := f.request(t, http.MethodPost, "/messages/handle", handleBody("u1", "menu"), "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.request(t, http.MethodPost, "/messages/handle", handleBody("u1", "menu"), "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func handleBody(userID, text string) map[string]string {
	return map[string]string{"user_id": userID, "text": text}
}

func TestHandleMessageRunsATurn(t *testing.T) {
	f := newFixture(t, nil, nil)
	token := adminToken(t)

	resp := f.request(t, http.MethodPost, "/messages/handle", handleBody("u1", "menu"), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body["text"], "¿Cómo deseas buscar?")

	// The turn left the user on the root menu.
	s, err := f.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, session.StateMenuSelect, s.State)

	// Both directions were recorded.
	assert.Equal(t, 2, f.history.Len())
}

func TestHandleMessageValidation(t *testing.T) {
	f := newFixture(t, nil, nil)
	token := adminToken(t)

	resp := f.request(t, http.MethodPost, "/messages/handle", map[string]string{"text": "hola"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMessagesListAndClear(t *testing.T) {
	f := newFixture(t, nil, nil)
	token := adminToken(t)

	f.request(t, http.MethodPost, "/messages/handle", handleBody("u1", "menu"), token)

	resp := f.request(t, http.MethodGet, "/messages", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Len(t, body["messages"], 2)

	resp = f.request(t, http.MethodDelete, "/messages", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, decodeBody(t, resp)["removed"])
	assert.Equal(t, 0, f.history.Len())
}

func TestSendThroughBridge(t *testing.T) {
	bridge := &fakeBridge{status: channel.StatusConnected}
	f := newFixture(t, bridge, nil)
	token := adminToken(t)

	resp := f.request(t, http.MethodPost, "/send", map[string]string{
		"user_id": "u1", "text": "hola", "media_url": "https://x.example/a.jpg",
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, bridge.sent, 1)
	assert.Equal(t, sentFrame{"u1", "hola", "https://x.example/a.jpg"}, bridge.sent[0])
}

func TestSendWithoutBridge(t *testing.T) {
	f := newFixture(t, nil, nil)
	resp := f.request(t, http.MethodPost, "/send", map[string]string{"user_id": "u1", "text": "hola"}, adminToken(t))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStartMenuPushesWhenBridgeUp(t *testing.T) {
	bridge := &fakeBridge{status: channel.StatusConnected}
	f := newFixture(t, bridge, nil)

	resp := f.request(t, http.MethodPost, "/menu/start", map[string]string{"user_id": "u1"}, adminToken(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body["text"], "¿Cómo deseas buscar?")
	assert.Equal(t, true, body["delivered"])
	require.Len(t, bridge.sent, 1)
}

func TestStartMenuUnknownMenu(t *testing.T) {
	f := newFixture(t, nil, nil)
	resp := f.request(t, http.MethodPost, "/menu/start", map[string]string{"user_id": "u1", "menu_id": "NOPE"}, adminToken(t))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	f := newFixture(t, nil, nil)
	token := adminToken(t)

	resp := f.request(t, http.MethodGet, "/sessions/u1", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeBody(t, resp)["active"])

	f.request(t, http.MethodPost, "/menu/start", map[string]string{"user_id": "u1"}, token)

	resp = f.request(t, http.MethodGet, "/sessions/u1", nil, token)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["active"])
	menuInfo, ok := body["menu"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PRINCIPAL", menuInfo["id"])

	resp = f.request(t, http.MethodDelete, "/sessions/u1", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.request(t, http.MethodGet, "/sessions/u1", nil, token)
	assert.Equal(t, false, decodeBody(t, resp)["active"])
}

func TestAIHealth(t *testing.T) {
	f := newFixture(t, nil, &fakeAIHealth{ok: true, detail: "pong"})
	resp := f.request(t, http.MethodGet, "/ai/health", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "pong", body["detail"])
}

func TestAIHealthDown(t *testing.T) {
	f := newFixture(t, nil, &fakeAIHealth{ok: false, detail: "unreachable"})
	resp := f.request(t, http.MethodGet, "/ai/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAIHealthDisabled(t *testing.T) {
	f := newFixture(t, nil, nil)
	resp := f.request(t, http.MethodGet, "/ai/health", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeBody(t, resp)["enabled"])
}
