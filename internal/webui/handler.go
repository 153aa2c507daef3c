// Package webui serves the station's JSON status API.
package webui

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/sctest/station/internal/config"
	"github.com/sctest/station/internal/diag"
	"github.com/sctest/station/internal/station"
)

// Station is the part of the station the API exposes.
type Station interface {
	Catalog() *diag.Catalog
	Connected() bool
	Battery() (diag.Battery, bool)
	Snapshot() diag.Report
	RunRemoteTest(name string)
	Confirm(name string, passed bool) error
	RenderSnapshot() (string, error)
	LatestReport() (string, error)
	Reports() ([]string, error)
}

type handler struct {
	st       Station
	settings *config.Store
}

// NewHandler creates an HTTP handler for the status API.
func NewHandler(st Station, settings *config.Store) http.Handler {
	h := &handler{st: st, settings: settings}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /api/tests", h.handleTests)
	mux.HandleFunc("POST /api/tests/{name}/run", h.handleRun)
	mux.HandleFunc("POST /api/tests/{name}/confirm", h.handleConfirm)
	mux.HandleFunc("GET /api/reports", h.handleReports)
	mux.HandleFunc("POST /api/reports", h.handleRender)
	mux.HandleFunc("GET /api/reports/latest", h.handleLatest)
	mux.HandleFunc("GET /api/settings", h.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.handlePutSettings)
	return mux
}

type statusResponse struct {
	Connected bool          `json:"connected"`
	Battery   *diag.Battery `json:"battery,omitempty"`
	Tests     int           `json:"tests"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Untested  int           `json:"untested"`
	UpdatedAt string        `json:"updatedAt"`
}

type testInfo struct {
	Label  string `json:"label"`
	WireID string `json:"wireId"`
	Manual bool   `json:"manual"`
	Result string `json:"result"`
}

type reportInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.st.Snapshot()
	resp := statusResponse{
		Connected: h.st.Connected(),
		Tests:     len(snap.Entries),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if b, ok := h.st.Battery(); ok {
		resp.Battery = &b
	}
	for _, e := range snap.Entries {
		switch e.Result {
		case diag.Pass:
			resp.Passed++
		case diag.Fail:
			resp.Failed++
		default:
			resp.Untested++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleTests(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]diag.Result)
	for _, e := range h.st.Snapshot().Entries {
		results[e.Label] = e.Result
	}
	var tests []testInfo
	for _, d := range h.st.Catalog().Tests() {
		tests = append(tests, testInfo{Label: d.Label, WireID: d.WireID, Manual: d.Manual, Result: results[d.Label].String()})
	}
	writeJSON(w, http.StatusOK, tests)
}

func (h *handler) handleRun(w http.ResponseWriter, r *http.Request) {
	d, ok := h.st.Catalog().Lookup(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown test")
		return
	}
	h.st.RunRemoteTest(d.WireID)
	writeJSON(w, http.StatusAccepted, map[string]any{"test": d.Label, "wireId": d.WireID, "connected": h.st.Connected()})
}

func (h *handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var passed bool
	switch r.URL.Query().Get("result") {
	case "ok":
		passed = true
	case "ko":
	default:
		writeError(w, http.StatusBadRequest, "result must be ok or ko")
		return
	}
	name := r.PathValue("name")
	if err := h.st.Confirm(name, passed); err != nil {
		if errors.Is(err, diag.ErrUnknownTest) {
			writeError(w, http.StatusNotFound, "unknown test")
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleReports(w http.ResponseWriter, r *http.Request) {
	paths, err := h.st.Reports()
	if err != nil {
		slog.Warn("list reports failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	reports := make([]reportInfo, len(paths))
	for i, p := range paths {
		reports[i] = reportInfo{Name: filepath.Base(p), Path: p}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *handler) handleRender(w http.ResponseWriter, r *http.Request) {
	path, err := h.st.RenderSnapshot()
	if err != nil {
		slog.Warn("report rendering failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	writeJSON(w, http.StatusCreated, reportInfo{Name: filepath.Base(path), Path: path})
}

func (h *handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	path, err := h.st.LatestReport()
	if errors.Is(err, station.ErrNoReports) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

// --- Settings API ---

func (h *handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Get())
}

func (h *handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	s := h.settings.Get()
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.settings.Update(s); err != nil {
		slog.Warn("settings save failed", "err", err)
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	// Listener settings apply on the next start.
	writeJSON(w, http.StatusOK, s)
}
