package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"janus/api/cutover"
	"janus/api/model"
	"janus/api/store"
)

func (h *Handler) ListApps(w http.ResponseWriter, r *http.Request) {
	specs, err := h.discoverApps()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if specs == nil {
		specs = []*model.AppSpec{}
	}
	writeJSON(w, specs)
}

func (h *Handler) GetApp(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	spec, err := h.loadSpec(appID)
	if err != nil {
		http.Error(w, "app not found", http.StatusNotFound)
		return
	}
	writeJSON(w, spec)
}

// slotView is one color's workload as shown in the status endpoint.
type slotView struct {
	Color   model.DeploymentColor `json:"color"`
	Live    bool                  `json:"live"`
	Image   string                `json:"image,omitempty"`
	Desired int32                 `json:"desired"`
	Ready   int32                 `json:"ready"`
	Status  cutover.RolloutStatus `json:"status,omitempty"`
	Absent  bool                  `json:"absent,omitempty"`
}

type appStatus struct {
	App       string                `json:"app"`
	LiveColor model.DeploymentColor `json:"liveColor,omitempty"`
	Slots     []slotView            `json:"slots"`
}

// AppStatus reports which color is live and the state of both slots.
func (h *Handler) AppStatus(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if h.orch == nil {
		http.Error(w, "no cluster connection", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()

	status := appStatus{App: appID}
	live, err := h.orch.RoutingSelector(ctx, appID)
	if err == nil {
		status.LiveColor = live
	} else if !errors.Is(err, cutover.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	for _, color := range []model.DeploymentColor{model.Blue, model.Green} {
		view := slotView{Color: color, Live: color == status.LiveColor}
		w2, err := h.orch.Workload(ctx, appID, color)
		switch {
		case err == nil:
			view.Image = w2.Image
			view.Desired = w2.DesiredReplicas
			view.Ready = w2.ReadyReplicas
			view.Status = w2.Status
		case errors.Is(err, cutover.ErrNotFound):
			view.Absent = true
		default:
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		status.Slots = append(status.Slots, view)
	}

	writeJSON(w, status)
}

func (h *Handler) ListAllDeployments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	deploys, err := h.db.ListAllDeployments(r.Context(), store.DeploymentFilter{
		App:    r.URL.Query().Get("app"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if deploys == nil {
		deploys = []model.Deployment{}
	}
	writeJSON(w, deploys)
}
