package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"sync"

	"github.com/go-chi/chi/v5"

	"janus/api/config"
	"janus/api/cutover"
	"janus/api/hub"
	"janus/api/model"
	"janus/api/pipeline"
	"janus/api/storage"
	"janus/api/store"
)

var validAppIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

type Handler struct {
	db       *store.DB
	orch     cutover.Orchestrator
	ws       *hub.Hub
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	ctrl     *cutover.Controller

	// The cutover cycle is not safe to run concurrently for one app, so
	// deploy/promote requests are single-flight per app.
	mu       sync.Mutex
	inflight map[string]bool
}

func New(db *store.DB, orch cutover.Orchestrator, ws *hub.Hub, cfg *config.Config, s3 *storage.Client) *Handler {
	ctrl := &cutover.Controller{
		Orch:     orch,
		Timeout:  cfg.RolloutTimeout,
		Interval: cfg.RolloutInterval,
		Notify: func(app string, state cutover.State) {
			ws.Broadcast(hub.Event{Type: "cutover.state", AppID: app, Payload: map[string]string{
				"state": string(state),
			}})
		},
	}
	return &Handler{
		db:   db,
		orch: orch,
		ws:   ws,
		cfg:  cfg,
		ctrl: ctrl,
		pipeline: &pipeline.Pipeline{
			DB:          db,
			WS:          ws,
			Cutover:     ctrl,
			S3:          s3,
			AppsDir:     cfg.AppsDir,
			RegistryURL: cfg.RegistryURL,
			GitToken:    cfg.GitToken,
			GitSSHKey:   cfg.GitSSHKey,
		},
		inflight: make(map[string]bool),
	}
}

// acquire marks an app's deploy as in flight. It returns false when a
// run is already active for the app.
func (h *Handler) acquire(app string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inflight[app] {
		return false
	}
	h.inflight[app] = true
	return true
}

func (h *Handler) release(app string) {
	h.mu.Lock()
	delete(h.inflight, app)
	h.mu.Unlock()
}

func (h *Handler) loadSpec(app string) (*model.AppSpec, error) {
	return model.LoadSpec(h.cfg.AppsDir, app)
}

func (h *Handler) discoverApps() ([]*model.AppSpec, error) {
	return model.DiscoverApps(h.cfg.AppsDir)
}

// ValidateAppID is middleware that rejects requests with invalid app IDs.
func ValidateAppID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id != "" && !validAppIDRe.MatchString(id) {
			http.Error(w, "invalid app id", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: encode response: %v", err)
	}
}
