package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"wardalert/internal/config"
	"wardalert/internal/core"
)

func testServiceAccountJSON(t *testing.T, tokenURI string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshalling key: %v", err)
	}
	raw, err := json.Marshal(map[string]string{
		"project_id":   "ward-project",
		"client_email": "svc@ward-project.iam.gserviceaccount.com",
		"private_key":  string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		"token_uri":    tokenURI,
	})
	if err != nil {
		t.Fatalf("marshalling credential: %v", err)
	}
	return string(raw)
}

func testConfig(serviceAccount, pushBase string) *config.Config {
	return &config.Config{
		Environment: "local",
		LogLevel:    "error",
		Server:      config.ServerConfig{Port: "0", RequestTimeout: 5 * time.Second, CorsAllowedOrigins: []string{"*"}},
		Push: config.PushConfig{
			ServiceAccountJSON: config.SecretString(serviceAccount),
			Scope:              "https://www.googleapis.com/auth/cloud-platform",
			BaseURL:            pushBase,
			HTTPTimeout:        5 * time.Second,
		},
		AWS: config.AWSConfig{Region: "us-east-1"},
	}
}

func buildTestServer(t *testing.T, cfg *config.Config) *core.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := buildServer(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	return srv
}

// TestNotifyOnPost_EndToEnd drives the webhook through the fully wired
// server against stubbed token and push endpoints.
func TestNotifyOnPost_EndToEnd(t *testing.T) {
	var pushCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"access_token":"tok123","token_type":"Bearer","expires_in":3599}`))
	})
	mux.HandleFunc("/v1/projects/ward-project/messages:send", func(w http.ResponseWriter, r *http.Request) {
		pushCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var env struct {
			Message struct {
				Topic string `json:"topic"`
			} `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&env)
		if env.Message.Topic != "ward_7" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"name":"projects/ward-project/messages/42"}`))
	})
	upstream := httptest.NewServer(mux)
	defer upstream.Close()

	srv := buildTestServer(t, testConfig(testServiceAccountJSON(t, upstream.URL+"/token"), upstream.URL))

	body := `{"type":"INSERT","table":"posts","schema":"public","record":{"id":"p1","content":"pothole on main road please fix","category":"pothole","ward_no":7}}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/notify-on-post", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Result  struct {
			Name string `json:"name"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success || resp.Result.Name != "projects/ward-project/messages/42" {
		t.Errorf("unexpected response %s", rec.Body.String())
	}
	if pushCalls.Load() != 1 {
		t.Errorf("expected one push call, got %d", pushCalls.Load())
	}
}

func TestBuildServer_InvalidCredentialFailsFast(t *testing.T) {
	cfg := testConfig(`{"project_id":"ward-project"}`, "https://fcm.example.test")
	_, err := buildServer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("expected error for incomplete credential")
	}
}

func TestBuildServer_InfrastructureRoutes(t *testing.T) {
	srv := buildTestServer(t, testConfig(testServiceAccountJSON(t, ""), "https://fcm.example.test"))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodOptions, "/v1/notify-on-post", http.StatusOK},
		// Without a database the account and cleanup routes are not mounted.
		{http.MethodPost, "/v1/account/delete", http.StatusNotFound},
		{http.MethodPost, "/v1/cleanup-videos", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s: got %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}
