package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/pushdeck/agent/internal/api"
	"github.com/pushdeck/agent/internal/auth"
	"github.com/pushdeck/agent/internal/bus"
	httphandler "github.com/pushdeck/agent/internal/http"
	"github.com/pushdeck/agent/internal/http/handlers"
	"github.com/pushdeck/agent/internal/inbox"
	"github.com/pushdeck/agent/internal/kv"
)

// validCode is the OTP the stub auth provider accepts.
const validCode = "123456"

// Static review credentials the test agent is configured with.
const (
	reviewEmail = "review@test.com"
	reviewCode  = "999999"
)

// signBackendToken builds the bearer token the stub backend hands out at
// registration.
func signBackendToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expiry)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("e2e-secret"))
	require.NoError(t, err)
	return token
}

// fakeDevices serves a fixed device identity immediately.
type fakeDevices struct {
	id string
}

func (d *fakeDevices) CurrentID() (string, bool) { return d.id, d.id != "" }

func (d *fakeDevices) OnIDAvailable(func(string)) func() { return func() {} }

// backendState records what the stub product backend saw. Token is the
// bearer it returns on registration, set once before the server starts.
type backendState struct {
	Token string

	mu         sync.Mutex
	registered [][2]string // email, device_id
	settings   map[string]json.RawMessage
}

func (s *backendState) recordRegister(email, deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, [2]string{email, deviceID})
}

func (s *backendState) Registered() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][2]string, len(s.registered))
	copy(out, s.registered)
	return out
}

// testAgent wires a full agent over stub external services.
type testAgent struct {
	Server  *httptest.Server
	Store   *kv.MemoryStore
	Bus     *bus.Bus
	Cache   *inbox.Cache
	Backend *backendState
}

// newOtpStubServer mimics the hosted OTP service: any email gets a code,
// only validCode verifies.
func newOtpStubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/otp", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/auth/v1/verify", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Token != validCode {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error_code":"invalid_token","msg":"invalid"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "otp-session", "expires_in": 3600})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newBackendStubServer mimics the product backend.
func newBackendStubServer(t *testing.T, state *backendState) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user/create", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			DeviceID string `json:"device_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		state.recordRegister(body.Email, body.DeviceID)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"message": "Usuário criado com sucesso",
			"token":   state.Token,
		})
	})
	mux.HandleFunc("/user/settings/", func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		defer state.mu.Unlock()
		email := r.URL.Path[len("/user/settings/"):]
		switch r.Method {
		case http.MethodGet:
			raw, ok := state.settings[email]
			if !ok {
				raw = json.RawMessage(`{}`)
			}
			_, _ = w.Write(raw)
		case http.MethodPut:
			var raw json.RawMessage
			_ = json.NewDecoder(r.Body).Decode(&raw)
			state.settings[email] = raw
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestAgent assembles the agent with stub providers and a memory store.
func newTestAgent(t *testing.T) *testAgent {
	t.Helper()

	otpSrv := newOtpStubServer(t)
	state := &backendState{
		Token:    signBackendToken(t, time.Now().Add(time.Hour)),
		settings: make(map[string]json.RawMessage),
	}
	backendSrv := newBackendStubServer(t, state)

	store := kv.NewMemoryStore()
	eventBus := bus.New()
	cache := inbox.New(store, eventBus)

	backend := api.New(backendSrv.URL, "", "", store)
	otpProvider := auth.NewOtpHTTP(otpSrv.URL, "test-anon-key")
	devices := &fakeDevices{id: "dev-abc"}
	flow := auth.NewFlow(otpProvider, devices, backend, store, time.Second, auth.ReviewCredentials{
		Email: reviewEmail,
		Code:  reviewCode,
	})

	authHandler := handlers.NewAuthHandler(flow, cache, backend)
	messagesHandler := handlers.NewMessagesHandler(cache)
	settingsHandler := handlers.NewSettingsHandler(backend)

	router := httphandler.NewRouter(authHandler, messagesHandler, settingsHandler, store)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testAgent{
		Server:  server,
		Store:   store,
		Bus:     eventBus,
		Cache:   cache,
		Backend: state,
	}
}
