package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/config"
	apphttp "github.com/geocoder89/tutorhub/internal/http"
	"github.com/geocoder89/tutorhub/internal/realtime"
	"github.com/geocoder89/tutorhub/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		Store:               "memory",
		Broker:              "local",
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		JWTRefreshTTLDays:   7,
		CORSOrigins:         []string{"http://localhost:5173"},
	}
}

type testApp struct {
	router http.Handler
	svc    *backend.Service
}

func setupTestRouter(t *testing.T) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := testConfig()

	broker := realtime.NewLocalBroker(logger)
	t.Cleanup(func() { _ = broker.Close() })

	svc := backend.NewService(backend.Deps{
		Users:       memory.NewUsersRepo(),
		Credentials: memory.NewCredentialsRepo(),
		Chats:       memory.NewChatRepo(),
		Broker:      broker,
		Logger:      logger,
	})

	router := apphttp.NewRouter(apphttp.RouterDeps{
		Config:        cfg,
		Logger:        logger,
		Service:       svc,
		JWT:           auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL()),
		RefreshTokens: memory.NewRefreshTokensRepo(),
		DirectoryTTL:  time.Minute,
	})

	return testApp{router: router, svc: svc}
}

// helpers

type sessionResponse struct {
	AccessToken string          `json:"accessToken"`
	UserID      string          `json:"userId"`
	User        json.RawMessage `json:"user"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func extractRefreshCookie(t *testing.T, response *http.Response) *http.Cookie {
	t.Helper()

	for _, c := range response.Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}

	t.Fatalf("refresh_token cookie not found in response")

	return nil
}

// doRequest runs a request and returns the recorder plus the parsed response for cookies.
func doRequest(router http.Handler, method, path, token, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, *http.Response) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w, w.Result()
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func signUp(t *testing.T, router http.Handler, name, email, role string) sessionResponse {
	t.Helper()

	body := `{"name":"` + name + `","email":"` + email + `","password":"password123","role":"` + role + `"}`
	w, _ := doRequest(router, http.MethodPost, "/auth/signup", "", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %s got status %d, body=%s", email, w.Code, w.Body.String())
	}

	var s sessionResponse
	mustReadJSON(t, w, &s)
	if s.AccessToken == "" || s.UserID == "" {
		t.Fatalf("signup %s returned an empty session: %s", email, w.Body.String())
	}
	return s
}

func newRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
