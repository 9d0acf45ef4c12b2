package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/manager"
	"xaddonmgr/pkg/model"
	"xaddonmgr/pkg/profile"
	"xaddonmgr/pkg/prompt"
	"xaddonmgr/pkg/store"
)

// ManagerHandler adapts the Manager's programmatic contract to HTTP.
type ManagerHandler struct {
	Manager     *manager.Manager
	Heuristics  *config.Heuristics
	Profiles    *profile.Store
	Interpreter *prompt.Interpreter
	Audit       store.AuditStore
	Events      *EventHub
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// scoreContext extracts the optional region focus from query parameters.
func scoreContext(r *http.Request) model.ScoreContext {
	return model.ScoreContext{RegionFocus: r.URL.Query().Get("region")}
}

func (h *ManagerHandler) HandlePacks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Packs())
}

func (h *ManagerHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Load(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"packs": len(h.Manager.Packs())})
}

func (h *ManagerHandler) HandleSort(w http.ResponseWriter, r *http.Request) {
	h.Manager.Sort(r.Context(), scoreContext(r))
	writeJSON(w, http.StatusOK, h.Manager.Packs())
}

func (h *ManagerHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	// Detach from the request context: the save must not be torn down by
	// the client hanging up mid-write.
	if err := h.Manager.Save(context.WithoutCancel(r.Context())); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *ManagerHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	report := h.Manager.Validate(r.Context())
	if h.Events != nil {
		h.Events.Broadcast(Event{Type: EventValidated, Payload: report})
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ManagerHandler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	preview, report := h.Manager.SimulateSort(scoreContext(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"packs":  preview,
		"report": report,
	})
}

func (h *ManagerHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.handleStatusChange(w, r, h.Manager.Enable)
}

func (h *ManagerHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.handleStatusChange(w, r, h.Manager.Disable)
}

func (h *ManagerHandler) handleStatusChange(w http.ResponseWriter, r *http.Request, apply func(string) bool) {
	name := r.PathValue("name")
	if !apply(name) {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pack": name})
}

func (h *ManagerHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	dir := manager.Up
	if r.URL.Query().Get("direction") == "down" {
		dir = manager.Down
	}
	if !h.Manager.Move(name, dir) {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.Manager.Packs())
}

func (h *ManagerHandler) HandleAddTag(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Tag == "" {
		http.Error(w, "tag required", http.StatusBadRequest)
		return
	}
	if !h.Manager.AddTag(name, body.Tag) {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pack": name, "tag": body.Tag})
}

func (h *ManagerHandler) HandleRemoveTag(w http.ResponseWriter, r *http.Request) {
	if !h.Manager.RemoveTag(r.PathValue("name"), r.PathValue("tag")) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ManagerHandler) HandleSetOverride(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		Score int `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "score required", http.StatusBadRequest)
		return
	}
	if body.Score < 0 || body.Score > 100 {
		http.Error(w, "score must be in [0,100]", http.StatusBadRequest)
		return
	}
	h.Heuristics.SetOverride(name, body.Score)
	if err := h.Heuristics.Save(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pack": name, "score": body.Score})
}

func (h *ManagerHandler) HandleClearOverrides(w http.ResponseWriter, _ *http.Request) {
	h.Heuristics.ClearOverrides()
	if err := h.Heuristics.Save(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ManagerHandler) HandleProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active":   h.Profiles.Active(),
		"profiles": h.Profiles.Profiles(),
	})
}

func (h *ManagerHandler) HandleActivateProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.Manager.ActivateProfile(context.WithoutCancel(r.Context()), name, scoreContext(r)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": name})
}

func (h *ManagerHandler) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.Interpreter.Parse(body.Text))
}

func (h *ManagerHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeJSON(w, http.StatusOK, []store.Operation{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ops, err := h.Audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}
