package apitest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/cvmcloud/deploy-client/api"
	"github.com/cvmcloud/deploy-client/cryptoutils"
)

// Server is an in-process fake of the CVM provisioning API. It holds a real
// X25519 keypair so tests can decrypt submitted secret envelopes, scripts
// status sequences for polling tests, and captures every submission payload.
type Server struct {
	*httptest.Server

	// Privkey decrypts envelopes encrypted against PubkeyHex.
	Privkey   []byte
	PubkeyHex string

	// AppIDSalt is returned with every encryption key response.
	AppIDSalt string

	log     *slog.Logger
	isReady atomic.Bool

	statusIdx      atomic.Int64
	statusRequests atomic.Int64
	statusFailures atomic.Int64
	networkFails   atomic.Bool

	mu        sync.Mutex
	pools     []api.Pool
	statusSeq []string
	keyReqs   []api.VMConfig
	created   []api.CreateDeploymentRequest
	upgrades  []api.UpgradeRequest
}

// NewServer starts a fake provisioning API with a fresh encryption keypair.
// The server is ready and reports a single available pool by default.
func NewServer(log *slog.Logger) (*Server, error) {
	privkey, pubkeyHex, err := cryptoutils.NewEnvKeypair()
	if err != nil {
		return nil, fmt.Errorf("could not generate server keypair: %w", err)
	}

	s := &Server{
		Privkey:   privkey,
		PubkeyHex: pubkeyHex,
		AppIDSalt: uuid.NewString(),
		log:       log,
		pools: []api.Pool{
			{ID: 1, Name: "default", Region: "eu-1", Available: true, Online: true},
		},
		statusSeq: []string{"running"},
	}
	s.isReady.Store(true)
	s.Server = httptest.NewServer(s.router())
	return s, nil
}

func (s *Server) router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(func(next http.Handler) http.Handler {
		return httplogger.LoggingMiddlewareSlog(s.log, next)
	})
	mux.Use(s.readiness)

	mux.Get("/api/v1/auth/me", s.handleUser)
	mux.Get("/api/v1/pools", s.handlePools)
	mux.Post("/api/v1/cvms/encryption-key", s.handleEncryptionKey)
	mux.Post("/api/v1/cvms", s.handleCreate)
	mux.Get("/api/v1/cvms/{app_id}", s.handleStatus)
	mux.Get("/api/v1/cvms/{app_id}/compose", s.handleGetCompose)
	mux.Put("/api/v1/cvms/{app_id}/compose", s.handleReplaceCompose)
	mux.Get("/api/v1/cvms/{app_id}/network", s.handleNetwork)
	return mux
}

// SetReady toggles readiness; while not ready every request returns 503,
// which exercises the transport retry path.
func (s *Server) SetReady(ready bool) { s.isReady.Store(ready) }

// SetPools replaces the pool list returned by the pools endpoint.
func (s *Server) SetPools(pools ...api.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools = pools
}

// ScriptStatuses sets the status sequence served by the status endpoint, one
// entry per query. The last entry is sticky.
func (s *Server) ScriptStatuses(statuses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusSeq = statuses
	s.statusIdx.Store(0)
}

// FailStatusQueries makes the next n status queries return 500.
func (s *Server) FailStatusQueries(n int) { s.statusFailures.Store(int64(n)) }

// FailNetworkInfo makes the network endpoint return 500, for testing that
// enrichment stays best-effort.
func (s *Server) FailNetworkInfo(fail bool) { s.networkFails.Store(fail) }

// KeyRequests returns the configurations encryption keys were requested for.
func (s *Server) KeyRequests() []api.VMConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.VMConfig(nil), s.keyReqs...)
}

// CreatedDeployments returns every captured create payload.
func (s *Server) CreatedDeployments() []api.CreateDeploymentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.CreateDeploymentRequest(nil), s.created...)
}

// Upgrades returns every captured configuration-replace payload.
func (s *Server) Upgrades() []api.UpgradeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.UpgradeRequest(nil), s.upgrades...)
}

// StatusRequests returns how many status queries the server served,
// including injected failures.
func (s *Server) StatusRequests() int64 { return s.statusRequests.Load() }

func (s *Server) readiness(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.isReady.Load() {
			http.Error(w, `{"detail":"not ready"}`, http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, api.User{Username: "tester", Email: "tester@example.com", Team: "qa"})
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	pools := append([]api.Pool(nil), s.pools...)
	s.mu.Unlock()
	writeJSON(w, pools)
}

func (s *Server) handleEncryptionKey(w http.ResponseWriter, r *http.Request) {
	var cfg api.VMConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, `{"detail":"malformed configuration"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.keyReqs = append(s.keyReqs, cfg)
	s.mu.Unlock()

	writeJSON(w, api.EncryptionKeyResponse{EnvPubkey: s.PubkeyHex, AppIDSalt: s.AppIDSalt})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"malformed payload"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.created = append(s.created, req)
	id := int64(len(s.created))
	s.mu.Unlock()

	appID := fmt.Sprintf("app-%d", id)
	writeJSON(w, api.Deployment{
		ID:     id,
		AppID:  appID,
		AppURL: "https://" + appID + ".cvm.example.com",
		Status: "creating",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.statusRequests.Inc()

	if s.statusFailures.Load() > 0 {
		s.statusFailures.Dec()
		http.Error(w, `{"detail":"status backend unavailable"}`, http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	seq := s.statusSeq
	s.mu.Unlock()

	idx := int(s.statusIdx.Inc()) - 1
	if idx >= len(seq) {
		idx = len(seq) - 1
	}

	now := time.Now().UTC()
	writeJSON(w, api.DeploymentStatus{
		ID:        1,
		AppID:     chi.URLParam(r, "app_id"),
		Name:      "fake-deployment",
		Status:    seq[idx],
		CreatedAt: now.Add(-time.Minute),
		UpdatedAt: now,
	})
}

func (s *Server) handleGetCompose(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, api.ComposeConfig{
		ComposeFile: "services: {}",
		EnvPubkey:   s.PubkeyHex,
		AppIDSalt:   s.AppIDSalt,
	})
}

func (s *Server) handleReplaceCompose(w http.ResponseWriter, r *http.Request) {
	var req api.UpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"malformed payload"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.upgrades = append(s.upgrades, req)
	s.mu.Unlock()

	writeJSON(w, api.UpgradeResponse{Detail: "accepted"})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	if s.networkFails.Load() {
		http.Error(w, `{"detail":"network info unavailable"}`, http.StatusInternalServerError)
		return
	}

	appID := chi.URLParam(r, "app_id")
	writeJSON(w, api.NetworkInfo{
		IsOnline:   true,
		PublicURLs: []string{"https://" + appID + ".cvm.example.com"},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
