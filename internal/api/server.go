// Package api exposes the intake service over HTTP: file submission, list-item
// actions and the page selection surface protocol.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfintake/internal/document"
	"github.com/local/pdfintake/internal/intake"
	"github.com/local/pdfintake/internal/metrics"
	"github.com/local/pdfintake/internal/notify"
	"github.com/local/pdfintake/internal/pageset"
	"github.com/local/pdfintake/internal/preview"
	"github.com/local/pdfintake/internal/publish"
	"github.com/local/pdfintake/internal/selection"
	"github.com/local/pdfintake/internal/statuscheck"
	"github.com/local/pdfintake/internal/worklist"
)

// PageRenderer renders one page of a document as JPEG.
type PageRenderer interface {
	RenderJPEG(data []byte, page int) ([]byte, int, int, error)
}

// HealthChecker reports dependency status.
type HealthChecker interface {
	Summary(ctx context.Context) statuscheck.Summary
}

type Dependencies struct {
	Intake    *intake.Service
	Selection *selection.Coordinator
	Latest    *publish.Latest
	Feed      *notify.Feed
	Renderer  PageRenderer
	Health    HealthChecker
	// MaxUploadBytes bounds the in-memory part of a multipart upload.
	MaxUploadBytes int64
}

type Server struct {
	deps Dependencies
}

func New(deps Dependencies) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 64 << 20
	}
	return &Server{deps: deps}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /intake/files", s.handleSubmit)
	mux.HandleFunc("GET /intake/items", s.handleItems)
	mux.HandleFunc("DELETE /intake/items/{id}", s.handleRemove)
	mux.HandleFunc("POST /intake/items/{id}/pages", s.handleSetPages)
	mux.HandleFunc("POST /intake/items/{id}/edit", s.handleEdit)
	mux.HandleFunc("POST /intake/items/{id}/drag", s.handleDragStart)
	mux.HandleFunc("POST /intake/order", s.handleOrder)
	mux.HandleFunc("GET /intake/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /intake/errors", s.handleExternalError)

	mux.HandleFunc("GET /selection/pending", s.handlePending)
	mux.HandleFunc("GET /selection/pending/pages/{page}", s.handlePendingPage)
	mux.HandleFunc("POST /selection/{request}/commit", s.handleCommit)
	mux.HandleFunc("POST /selection/{request}/cancel", s.handleCancel)

	mux.HandleFunc("GET /notifications", s.handleNotifications)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	sum := s.deps.Health.Summary(r.Context())
	code := http.StatusOK
	if !sum.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, sum)
}

// handleSubmit takes multipart "files" fields. The response is written once
// the whole batch is processed, including any page selections.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "missing files")
		return
	}
	files := make([]document.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadedFile(fh))
	}
	writeJSON(w, http.StatusOK, s.deps.Intake.Submit(r.Context(), files))
}

func uploadedFile(fh *multipart.FileHeader) document.File {
	return document.File{
		Name: fh.Filename,
		Size: fh.Size,
		Type: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	items := s.deps.Intake.Items()
	if items == nil {
		items = []worklist.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Intake.Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pagesReq struct {
	Pages []int `json:"pages"`
}

func (s *Server) handleSetPages(w http.ResponseWriter, r *http.Request) {
	var req pagesReq
	if !decode(w, r, &req) {
		return
	}
	if err := s.deps.Intake.SetPages(r.PathValue("id"), req.Pages); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type outcomeResp struct {
	Resolution string `json:"resolution"`
	Pages      []int  `json:"pages,omitempty"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Intake.EditPages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcomeResp{Resolution: out.Resolution.String(), Pages: out.Pages})
}

func (s *Server) handleDragStart(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Intake.DragStart(r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type orderReq struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req orderReq
	if !decode(w, r, &req) {
		return
	}
	if err := s.deps.Intake.DragEnd(req.IDs); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.deps.Latest.Get()
	if !ok {
		writeJSON(w, http.StatusOK, publish.Manifest{Files: []publish.ManifestFile{}})
		return
	}
	writeJSON(w, http.StatusOK, snap.Manifest())
}

type errorReport struct {
	Message string `json:"message"`
}

func (s *Server) handleExternalError(w http.ResponseWriter, r *http.Request) {
	var req errorReport
	if !decode(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing message")
		return
	}
	s.deps.Intake.ReportExternalError(req.Message)
	w.WriteHeader(http.StatusAccepted)
}

type pendingResp struct {
	RequestID            string    `json:"requestId"`
	ItemID               string    `json:"itemId"`
	Name                 string    `json:"name"`
	Size                 int       `json:"size"`
	TotalPages           int       `json:"totalPages"`
	InitialSelectedPages []int     `json:"initialSelectedPages,omitempty"`
	Since                time.Time `json:"since"`
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	p, ok := s.deps.Selection.Pending()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, pendingResp{
		RequestID:            p.ID,
		ItemID:               p.ItemID,
		Name:                 p.Name,
		Size:                 len(p.Bytes),
		TotalPages:           p.TotalPages,
		InitialSelectedPages: p.InitialSelection,
		Since:                p.Since,
	})
}

func (s *Server) handlePendingPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	p, ok := s.deps.Selection.Pending()
	if !ok {
		writeError(w, http.StatusNotFound, selection.ErrNoPendingRequest.Error())
		return
	}
	if page < 0 || page >= p.TotalPages {
		writeError(w, http.StatusNotFound, "page out of range")
		return
	}
	if s.deps.Renderer == nil {
		writeError(w, http.StatusNotImplemented, "preview unavailable")
		return
	}
	img, _, _, err := s.deps.Renderer.RenderJPEG(p.Bytes, page)
	if err != nil {
		log.Warn().Err(err).Str("request_id", p.ID).Int("page", page).Msg("preview render failed")
		writeError(w, statusFor(err), "preview failed")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req pagesReq
	if !decode(w, r, &req) {
		return
	}
	pages, err := s.deps.Selection.Commit(r.PathValue("request"), req.Pages)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcomeResp{Resolution: selection.Committed.String(), Pages: pages})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Selection.Cancel(r.PathValue("request")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcomeResp{Resolution: selection.Cancelled.String()})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after")
			return
		}
		after = n
	}
	writeJSON(w, http.StatusOK, s.deps.Feed.Since(after))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, worklist.ErrNotFound), errors.Is(err, selection.ErrNoPendingRequest), errors.Is(err, preview.ErrPageOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, worklist.ErrNotSuccess), errors.Is(err, worklist.ErrSinglePage), errors.Is(err, intake.ErrNotDraggable), errors.Is(err, selection.ErrRequestMismatch):
		return http.StatusConflict
	case errors.Is(err, worklist.ErrInvalidPages), errors.Is(err, worklist.ErrInvalidOrder),
		errors.Is(err, pageset.ErrEmpty), errors.Is(err, pageset.ErrOutOfRange), errors.Is(err, pageset.ErrDuplicate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
