package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/khanhnv2901/gatespy/internal/export"
	"github.com/khanhnv2901/gatespy/internal/lifecycle"
	"github.com/khanhnv2901/gatespy/internal/render"
	"github.com/khanhnv2901/gatespy/internal/report"
	consts "github.com/khanhnv2901/gatespy/internal/shared/constants"
	sharederrors "github.com/khanhnv2901/gatespy/internal/shared/errors"
)

const (
	dashboardSubmitPath = "/dashboard/analyze"
	dashboardJSONPath   = "/dashboard/report.json"
	dashboardPDFPath    = "/dashboard/report.pdf"
)

// DashboardState is the snapshot together with its rendered sections.
type DashboardState struct {
	lifecycle.Snapshot
	Sections render.Sections `json:"sections"`
}

func newDashboardState(snap lifecycle.Snapshot) DashboardState {
	return DashboardState{Snapshot: snap, Sections: render.Render(snap.Report)}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Dashboard.Snapshot()
	page := render.Page{
		State:      string(snap.State),
		URL:        snap.URL,
		Error:      snap.Error,
		Analyzing:  snap.State == lifecycle.StateAnalyzing,
		SubmitPath: dashboardSubmitPath,
		ExportPath: dashboardJSONPath,
		PDFPath:    dashboardPDFPath,
		Sections:   render.Render(snap.Report),
	}

	var buf bytes.Buffer
	if err := render.HTML(&buf, page); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("render dashboard: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleDashboardAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, consts.MaxRequestBodyBytes)

	asJSON := isJSONRequest(r)
	var req report.AnalysisRequest
	if asJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: %v", sharederrors.ErrInvalidInput, err))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: %v", sharederrors.ErrInvalidInput, err))
			return
		}
		req.URL = r.PostFormValue("url")
	}

	_, err := s.cfg.Dashboard.Submit(req.URL)
	switch {
	case err == nil:
	case errors.Is(err, sharederrors.ErrInvalidInput):
		// An empty submission leaves the dashboard untouched.
		if asJSON {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
	case errors.Is(err, sharederrors.ErrControllerClosed):
		s.writeError(w, r, http.StatusServiceUnavailable, err)
		return
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	if asJSON {
		writeJSON(w, http.StatusAccepted, newDashboardState(s.cfg.Dashboard.Snapshot()))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func (s *Server) handleDashboardState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newDashboardState(s.cfg.Dashboard.Snapshot()))
}

func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, export.JSON)
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, export.PDF)
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, build func(*report.AnalysisReport) (*export.Artifact, error)) {
	art, err := build(s.cfg.Dashboard.Snapshot().Report)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if art == nil {
		s.writeError(w, r, http.StatusNotFound, sharederrors.ErrNoReport)
		return
	}
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", art.ContentDisposition())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

func (s *Server) handleDashboardEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, unsubscribe := s.cfg.Dashboard.Subscribe()
	defer unsubscribe()
	ctx := r.Context()
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(newDashboardState(snap))
			if err != nil {
				s.requestLogger(r).Error("failed to marshal snapshot", zap.Error(err))
				continue
			}
			if !s.writeStreamChunk(w, []byte("event: snapshot\ndata: ")) {
				return
			}
			if !s.writeStreamChunk(w, payload) {
				return
			}
			if !s.writeStreamChunk(w, []byte("\n\n")) {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleDashboardWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.requestLogger(r).Warn("upgrading to websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.cfg.Dashboard.Subscribe()
	defer unsubscribe()

	// The read loop only exists to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(newDashboardState(snap)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
