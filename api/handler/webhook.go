package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"janus/api/hub"
	"janus/api/model"
)

type pushPayload struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Repository struct {
		CloneURL string `json:"clone_url"`
		SSHURL   string `json:"ssh_url"`
	} `json:"repository"`
}

// WebhookPush accepts Gitea/GitHub push webhooks and auto-deploys apps
// whose repo and branch match the push.
func (h *Handler) WebhookPush(w http.ResponseWriter, r *http.Request) {
	if h.orch == nil {
		http.Error(w, "no cluster connection", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Detect provider from headers
	var signature string
	if r.Header.Get("X-Gitea-Event") == "push" {
		signature = r.Header.Get("X-Gitea-Signature")
	} else if r.Header.Get("X-GitHub-Event") == "push" {
		// X-Hub-Signature-256 format: sha256=<hex>
		sig := r.Header.Get("X-Hub-Signature-256")
		if strings.HasPrefix(sig, "sha256=") {
			signature = sig[7:]
		}
	} else {
		http.Error(w, "unsupported webhook event", http.StatusBadRequest)
		return
	}

	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// Extract branch from ref (refs/heads/main → main)
	branch := strings.TrimPrefix(payload.Ref, "refs/heads/")
	if branch == payload.Ref || branch == "" {
		http.Error(w, "not a branch push", http.StatusBadRequest)
		return
	}

	specs, err := h.discoverApps()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var triggered []string
	for _, spec := range specs {
		if spec.Repo == nil || !spec.Repo.AutoDeploy {
			continue
		}
		if !repoMatches(spec.Repo.URL, payload.Repository.CloneURL, payload.Repository.SSHURL) {
			continue
		}
		specBranch := spec.Repo.Branch
		if specBranch == "" {
			specBranch = "main"
		}
		if specBranch != branch {
			continue
		}
		if spec.Repo.WebhookSecret != "" && !verifySignature(body, signature, spec.Repo.WebhookSecret) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		if !h.acquire(spec.App) {
			continue // already deploying; the running pipeline picks up HEAD anyway
		}

		deploy := &model.Deployment{
			ID:        uuid.NewString(),
			App:       spec.App,
			CommitSHA: payload.After,
			Status:    model.StatusQueued,
			StartedAt: time.Now(),
		}
		if err := h.db.InsertDeployment(r.Context(), deploy); err != nil {
			h.release(spec.App)
			continue
		}
		h.ws.Broadcast(hub.Event{Type: "deploy.queued", AppID: spec.App, Payload: deploy})

		go func(d *model.Deployment, s *model.AppSpec) {
			defer h.release(s.App)
			h.pipeline.Run(d, s)
		}(deploy, spec)

		triggered = append(triggered, spec.App)
	}

	writeJSON(w, map[string]interface{}{"triggered": triggered})
}

func repoMatches(specURL, cloneURL, sshURL string) bool {
	norm := func(u string) string {
		u = strings.TrimSuffix(u, ".git")
		u = strings.TrimPrefix(u, "https://")
		u = strings.TrimPrefix(u, "http://")
		return u
	}
	return norm(specURL) == norm(cloneURL) || specURL == sshURL
}

func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
