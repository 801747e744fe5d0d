// Package httpmsg implements the Message adapter contract as a chi
// router, grounded on internal/api/router.go's middleware stack and
// handler/writeJSON conventions: an inbound webhook decodes a
// platform-neutral JSON envelope and feeds the thought process, an
// outbound callback URL receives dispatched envelopes, and the same
// router serves /health and /version (there is no /logs route).
package httpmsg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

// Config tunes the HTTP adapter.
type Config struct {
	Addr        string
	APIKey      string
	CallbackURL string
	Version     string
}

// inboundEnvelope is the platform-neutral JSON shape the webhook route
// decodes into a model.Message.
type inboundEnvelope struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	UserID   string            `json:"user_id"`
	UserName string            `json:"user_name"`
	RoomID   string            `json:"room_id"`
	RoomName string            `json:"room_name"`
}

// outboundEnvelope is what Dispatch POSTs to CallbackURL.
type outboundEnvelope struct {
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id"`
	Method  string `json:"method"`
	Text    string `json:"text"`
	Payload any    `json:"payload,omitempty"`
}

// Adapter is a chi-router-backed MessageAdapter.
type Adapter struct {
	cfg      Config
	logger   *slog.Logger
	router   chi.Router
	server   *http.Server
	receiver adapter.Receiver
	client   *http.Client
}

// New constructs an Adapter and builds its router. The HTTP server itself
// is started in Start.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{cfg: cfg, logger: logger, client: &http.Client{Timeout: 10 * time.Second}}
	a.setupRouter()
	return a
}

// Factory adapts New to adapter.Factory, registered under "httpmsg".
func Factory(fc adapter.FactoryContext) (adapter.Adapter, error) {
	cfg := Config{
		Addr:        fc.Settings["addr"],
		APIKey:      fc.Settings["api_key"],
		CallbackURL: fc.Settings["callback_url"],
		Version:     fc.Settings["version"],
	}
	return New(cfg, fc.Logger), nil
}

func (a *Adapter) setupRouter() {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if a.cfg.APIKey != "" {
		r.Use(a.apiKeyAuth)
	}

	r.Get("/health", a.handleHealth)
	r.Get("/version", a.handleVersion)
	r.Post("/webhook", a.handleWebhook)

	a.router = r
}

func (a *Adapter) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/version" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != a.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": a.cfg.Version, "service": "relay"})
}

func (a *Adapter) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var env inboundEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if a.receiver == nil {
		writeError(w, http.StatusServiceUnavailable, "no receiver registered")
		return
	}

	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	user := model.NewUser(env.UserID, env.UserName)
	user.RoomID = env.RoomID
	room := model.NewRoom(env.RoomID, env.RoomName)
	msg := model.NewTextMessage(env.ID, env.Text, user, room)

	a.receiver.Receive(r.Context(), msg)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (a *Adapter) Name() string { return "httpmsg" }

func (a *Adapter) SetReceiver(r adapter.Receiver) { a.receiver = r }

func (a *Adapter) Start(ctx context.Context) error {
	a.server = &http.Server{Addr: a.cfg.Addr, Handler: a.router}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("httpmsg: server failed", "error", err)
		}
	}()
	return nil
}

func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Dispatch POSTs the envelope to the configured callback URL. Without a
// callback URL configured, dispatch is a logged no-op so an httpmsg
// adapter can still be used purely as an inbound webhook receiver.
func (a *Adapter) Dispatch(ctx context.Context, env *state.Envelope) error {
	if a.cfg.CallbackURL == "" {
		a.logger.Debug("httpmsg: dispatch skipped, no callback_url configured", "text", env.Text())
		return nil
	}

	payload, err := json.Marshal(outboundEnvelope{
		RoomID:  env.RoomID,
		UserID:  env.UserID,
		Method:  string(env.Method()),
		Text:    env.Text(),
		Payload: env.Payload(),
	})
	if err != nil {
		return fmt.Errorf("httpmsg: marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.CallbackURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("httpmsg: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpmsg: dispatch request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("httpmsg: callback returned status %d", resp.StatusCode)
	}
	return nil
}
