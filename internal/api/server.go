// Package api exposes the Manager's public operations over HTTP plus a
// WebSocket broadcast of save-completion and validation events, the
// contract surface the desktop UI collaborator consumes.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"xaddonmgr/pkg/logging"
	"xaddonmgr/pkg/version"
)

// NewServer creates and configures the HTTP server.
func NewServer(addr string, mgr *ManagerHandler, geoH *GeoHandler, events *EventHub, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Manager Endpoints
	mux.HandleFunc("GET /api/packs", mgr.HandlePacks)
	mux.HandleFunc("POST /api/load", mgr.HandleLoad)
	mux.HandleFunc("POST /api/sort", mgr.HandleSort)
	mux.HandleFunc("POST /api/save", mgr.HandleSave)
	mux.HandleFunc("GET /api/validate", mgr.HandleValidate)
	mux.HandleFunc("GET /api/simulate", mgr.HandleSimulate)
	mux.HandleFunc("POST /api/packs/{name}/enable", mgr.HandleEnable)
	mux.HandleFunc("POST /api/packs/{name}/disable", mgr.HandleDisable)
	mux.HandleFunc("POST /api/packs/{name}/move", mgr.HandleMove)
	mux.HandleFunc("POST /api/packs/{name}/tags", mgr.HandleAddTag)
	mux.HandleFunc("DELETE /api/packs/{name}/tags/{tag}", mgr.HandleRemoveTag)

	// 2b. Overrides
	mux.HandleFunc("PUT /api/overrides/{name}", mgr.HandleSetOverride)
	mux.HandleFunc("DELETE /api/overrides", mgr.HandleClearOverrides)

	// 2c. Profiles
	mux.HandleFunc("GET /api/profiles", mgr.HandleProfiles)
	mux.HandleFunc("POST /api/profiles/{name}/activate", mgr.HandleActivateProfile)

	// 2d. Prompt Interpreter
	mux.HandleFunc("POST /api/prompt", mgr.HandlePrompt)

	// 2e. Audit trail
	mux.HandleFunc("GET /api/history", mgr.HandleHistory)

	// 2f. Logs Endpoint
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 2g. Geography Endpoint
	if geoH != nil {
		mux.HandleFunc("GET /api/geo/near", geoH.HandleNear)
	}

	// 3. Event Stream (WebSocket)
	mux.HandleFunc("GET /api/events", events.HandleWS)

	// 4. Profiling Endpoints (pprof)
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.Handle("GET /debug/pprof/heap", pprof.Handler("heap"))
	mux.Handle("GET /debug/pprof/goroutine", pprof.Handler("goroutine"))

	// 5. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleLatestLog(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{
		"log":    logging.GlobalLogCapture.GetLastLine(),
		"event":  logging.GlobalEventCapture.GetLastLine(),
		"recent": logging.GlobalLogCapture.Lines(),
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to write log response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, "{\"version\":%q}\n", version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
