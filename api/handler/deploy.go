package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"janus/api/cutover"
	"janus/api/hub"
	"janus/api/model"
	"janus/api/store"
)

type DeployRequest struct {
	CommitSHA string `json:"commitSha"`
}

// Deploy queues a full pipeline run for the app. Overlapping requests
// for the same app are rejected with 409.
func (h *Handler) Deploy(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if h.orch == nil {
		http.Error(w, "no cluster connection", http.StatusServiceUnavailable)
		return
	}

	var req DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	spec, err := h.loadSpec(appID)
	if err != nil {
		http.Error(w, "app not found", http.StatusNotFound)
		return
	}

	if !h.acquire(appID) {
		http.Error(w, "deploy already in progress", http.StatusConflict)
		return
	}

	commitSHA := req.CommitSHA
	if commitSHA == "" {
		commitSHA = "HEAD"
	}

	deploy := &model.Deployment{
		ID:        uuid.NewString(),
		App:       appID,
		CommitSHA: commitSHA,
		Status:    model.StatusQueued,
		StartedAt: time.Now(),
	}

	if err := h.db.InsertDeployment(r.Context(), deploy); err != nil {
		h.release(appID)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.ws.Broadcast(hub.Event{Type: "deploy.queued", AppID: appID, Payload: deploy})

	go func() {
		defer h.release(appID)
		h.pipeline.Run(deploy, spec)
	}()

	writeJSON(w, deploy)
}

type PromoteRequest struct {
	ImageTag string `json:"imageTag"`
}

// Promote runs a bare cutover with an already-built image, skipping the
// checkout/build/push stages. Promoting the previous image is how an
// operator reverts a bad deploy: the cycle resolves the now-live color
// and toggles back.
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if h.orch == nil {
		http.Error(w, "no cluster connection", http.StatusServiceUnavailable)
		return
	}

	var req PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageTag == "" {
		// Default to the image of the previous successful deploy.
		deploys, err := h.db.ListAllDeployments(r.Context(), store.DeploymentFilter{
			App:    appID,
			Status: string(model.StatusDeployed),
			Limit:  2,
		})
		if err != nil || len(deploys) < 2 {
			http.Error(w, "no previous deployment to promote", http.StatusBadRequest)
			return
		}
		req.ImageTag = deploys[1].ImageTag
	}

	if _, err := h.loadSpec(appID); err != nil {
		http.Error(w, "app not found", http.StatusNotFound)
		return
	}

	if !h.acquire(appID) {
		http.Error(w, "deploy already in progress", http.StatusConflict)
		return
	}

	deploy := &model.Deployment{
		ID:        uuid.NewString(),
		App:       appID,
		CommitSHA: "promote",
		ImageTag:  req.ImageTag,
		Status:    model.StatusDeploying,
		StartedAt: time.Now(),
	}
	if err := h.db.InsertDeployment(r.Context(), deploy); err != nil {
		h.release(appID)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	go func() {
		defer h.release(appID)
		ctx := context.Background()

		res, err := h.ctrl.Run(ctx, cutover.Request{App: appID, Image: req.ImageTag})
		if res != nil {
			deploy.FromColor = res.From
			deploy.ToColor = res.To
		}
		if err != nil {
			deploy.Status = model.StatusFailed
			deploy.Error = fmt.Sprintf("promote: %v", err)
			h.db.UpdateDeployment(ctx, deploy)
			h.ws.Broadcast(hub.Event{Type: "deploy.failed", AppID: appID, Payload: deploy})
			return
		}
		deploy.Status = model.StatusDeployed
		h.db.UpdateDeployment(ctx, deploy)
		h.ws.Broadcast(hub.Event{Type: "deploy.completed", AppID: appID, Payload: deploy})
	}()

	writeJSON(w, deploy)
}
