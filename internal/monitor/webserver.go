package monitor

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/pose.report/internal/db"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/report"
	"github.com/banshee-data/pose.report/internal/version"
)

//go:embed status.html
var statusHTML embed.FS

var statusTemplate = template.Must(template.ParseFS(statusHTML, "status.html"))

// WebServer serves live features, filtered poses and reports.
type WebServer struct {
	address    string
	live       *LiveState
	db         *db.DB
	sessionID  string
	thresholds pose.Thresholds
	started    time.Time
	mux        *http.ServeMux
	server     *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address    string
	Live       *LiveState
	DB         *db.DB // optional; enables persisted reports and /debug/
	SessionID  string
	Thresholds pose.Thresholds
}

// NewWebServer creates a web server. Routes are registered immediately so
// Handler can be used without Start.
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	live := config.Live
	if live == nil {
		live = NewLiveState(0, 0)
	}
	ws := &WebServer{
		address:    config.Address,
		live:       live,
		db:         config.DB,
		sessionID:  config.SessionID,
		thresholds: config.Thresholds,
		started:    time.Now(),
	}

	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.mux = mux
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: mux,
	}
	return ws, nil
}

// Handler returns the route multiplexer.
func (ws *WebServer) Handler() http.Handler {
	return ws.mux
}

// Start serves until ctx is cancelled, then shuts down.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/features", ws.handleFeatures)
	mux.HandleFunc("/api/pose", ws.handlePose)
	mux.HandleFunc("/api/reports", ws.handleReports)
	mux.HandleFunc("/api/summary", ws.handleSummary)
	mux.HandleFunc("/api/sessions", ws.handleSessions)
	mux.HandleFunc("/api/samples", ws.handleSamples)
	mux.HandleFunc("/charts/features", ws.handleFeatureChart)

	if ws.db != nil {
		if err := ws.db.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("JSON encoding error: %v", err)
	}
}

// parseLimit reads the optional limit query parameter. On a bad value it
// writes a 400 and returns false.
func (ws *WebServer) parseLimit(w http.ResponseWriter, r *http.Request, def, max int) (int, bool) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return def, true
	}
	v, err := strconv.Atoi(l)
	if err != nil || v <= 0 || v > max {
		ws.writeJSONError(w, http.StatusBadRequest, "invalid 'limit' parameter")
		return 0, false
	}
	return v, true
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	ws.writeJSON(w, status, map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        version.Version,
		"git_sha":        version.GitSHA,
		"uptime_seconds": int(time.Since(ws.started).Seconds()),
	})
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := struct {
		SessionID string
		Frame     uint64
		Status    string
		Reports   int
		Summary   Summary
		HasDB     bool
	}{
		SessionID: ws.sessionID,
		Status:    "waiting for frames",
		Reports:   len(ws.live.Reports()),
		Summary:   Summarize(ws.live.Samples()),
		HasDB:     ws.db != nil,
	}
	if res, ok := ws.live.Latest(); ok {
		data.Frame = res.Frame
		data.Status = res.Status
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTemplate.Execute(w, data); err != nil {
		log.Printf("status template error: %v", err)
	}
}

func (ws *WebServer) handleFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	res, ok := ws.live.Latest()
	if !ok {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no frames processed yet")
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"frame":         res.Frame,
		"at":            res.At,
		"ready":         res.Snapshot.Ready(),
		"status":        res.Status,
		"tilt_slope":    res.Snapshot.TiltSlope,
		"triangle_area": res.Snapshot.TriangleArea,
	})
}

// handlePose returns the latest detections that pass the confidence
// thresholds. The first subject is the one the stabiliser tracks.
func (ws *WebServer) handlePose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	res, ok := ws.live.Latest()
	if !ok {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no frames processed yet")
		return
	}

	var primary *pose.Pose
	if len(res.Detections) > 0 {
		if kept := ws.thresholds.Confident(res.Detections[:1]); len(kept) == 1 {
			primary = &kept[0]
		}
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"frame":   res.Frame,
		"primary": primary,
		"poses":   ws.thresholds.Confident(res.Detections),
	})
}

// handleReports lists recent snapshot reports. Query params:
//
//	limit (optional, default 20, max 500)
//	session_id (optional; persisted reports only, "all" spans sessions)
func (ws *WebServer) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	limit, ok := ws.parseLimit(w, r, 20, 500)
	if !ok {
		return
	}

	if ws.db != nil {
		sessionID := r.URL.Query().Get("session_id")
		switch sessionID {
		case "":
			sessionID = ws.sessionID
		case "all":
			sessionID = ""
		}
		reports, err := ws.db.RecentReports(sessionID, limit)
		if err != nil {
			ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if reports == nil {
			reports = []db.StoredReport{}
		}
		ws.writeJSON(w, http.StatusOK, reports)
		return
	}

	reports := ws.live.Reports()
	if len(reports) > limit {
		reports = reports[:limit]
	}
	if reports == nil {
		reports = []report.Record{}
	}
	ws.writeJSON(w, http.StatusOK, reports)
}

func (ws *WebServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ws.writeJSON(w, http.StatusOK, Summarize(ws.live.Samples()))
}

// handleSessions lists recorded sessions, newest first. Query params:
//
//	limit (optional, default 20, max 500)
func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no database configured")
		return
	}
	limit, ok := ws.parseLimit(w, r, 20, 500)
	if !ok {
		return
	}
	sessions, err := ws.db.Sessions(limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	ws.writeJSON(w, http.StatusOK, sessions)
}

// handleSamples returns persisted feature samples for one session in frame
// order. Query params:
//
//	session_id (optional, defaults to the running session)
//	limit (optional, default 600, max 10000)
func (ws *WebServer) handleSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no database configured")
		return
	}
	limit, ok := ws.parseLimit(w, r, 600, 10000)
	if !ok {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = ws.sessionID
	}

	session, err := ws.db.GetSession(sessionID)
	if errors.Is(err, db.ErrSessionNotFound) {
		ws.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	samples, err := ws.db.FeatureSamples(session.ID, limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if samples == nil {
		samples = []db.FeatureSample{}
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"samples": samples,
	})
}
