package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"mentor-insights-go/internal/dataset"
	"mentor-insights-go/internal/dispatch"
	"mentor-insights-go/internal/ingest"
	"mentor-insights-go/internal/logger"
	"mentor-insights-go/internal/store"
	"mentor-insights-go/internal/types"
)

const (
	defaultListLimit = 50
	defaultTopLimit  = 10
	maxListLimit     = 500
	multipartMemory  = 32 << 20
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type jobReader interface {
	Get(ctx context.Context, id string) (*types.AnalysisJob, error)
	List(ctx context.Context, f store.Filter) ([]*types.AnalysisJob, error)
}

type submitter interface {
	Submit(ctx context.Context, req ingest.Request, media io.Reader) (*types.AnalysisJob, *dispatch.Ticket, error)
}

type server struct {
	jobs      jobReader
	ingest    submitter
	log       *logger.Logger
	maxUpload int64
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /analyses", s.createAnalysis)
	mux.HandleFunc("GET /analyses", s.listAnalyses)
	mux.HandleFunc("GET /analyses/export.xlsx", s.exportAnalyses)
	mux.HandleFunc("GET /analyses/{id}", s.getAnalysis)
	mux.HandleFunc("GET /owners", s.listOwners)
	mux.HandleFunc("GET /owners/top", s.topOwners)
	mux.HandleFunc("GET /owners/{owner}", s.getOwner)
	return mux
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	s.log.WithRequest(r).Debug("health check")
	w.Write([]byte("ok"))
}

func (s *server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "create")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form: "+err.Error())
		return
	}
	file, hdr, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing video file")
		return
	}
	defer file.Close()

	req := ingest.Request{
		Subject:  r.FormValue("subject"),
		Owner:    r.FormValue("owner"),
		Filename: hdr.Filename,
	}
	job, _, err := s.ingest.Submit(r.Context(), req, file)
	var verr *ingest.ValidationError
	switch {
	case errors.As(err, &verr):
		reqLog.WithField("field", verr.Field).Info("submission rejected")
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	case errors.Is(err, ingest.ErrNotDispatched):
		// stored and pending; it is queued again on restart
		reqLog.WithError(err).Warn("analysis accepted but not queued")
	case err != nil:
		reqLog.WithError(err).Error("submission failed")
		writeError(w, http.StatusInternalServerError, "could not create analysis")
		return
	}
	reqLog.WithFields(logrus.Fields{"job_id": job.ID, "owner": job.Owner}).Info("analysis accepted")
	writeJSON(w, http.StatusAccepted, job)
}

func (s *server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.jobs.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("get analysis failed")
		writeError(w, http.StatusInternalServerError, "could not load analysis")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{Owner: q.Get("owner"), Limit: defaultListLimit}
	if raw := q.Get("status"); raw != "" {
		st := types.Status(raw)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(raw))
			return
		}
		f.Status = st
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = min(n, maxListLimit)
	}
	jobs, err := s.jobs.List(r.Context(), f)
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("list analyses failed")
		writeError(w, http.StatusInternalServerError, "could not list analyses")
		return
	}
	if jobs == nil {
		jobs = []*types.AnalysisJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *server) exportAnalyses(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context(), store.Filter{Owner: r.URL.Query().Get("owner")})
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("export failed")
		writeError(w, http.StatusInternalServerError, "could not export analyses")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="analyses.xlsx"`)
	if err := dataset.WriteReportTo(w, jobs); err != nil {
		s.log.WithRequest(r).WithError(err).Error("failed to write report")
	}
}

func (s *server) listOwners(w http.ResponseWriter, r *http.Request) {
	jobs, ok := s.allJobs(w, r, store.Filter{})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owners": nonNil(dataset.RankOwners(jobs))})
}

func (s *server) topOwners(w http.ResponseWriter, r *http.Request) {
	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	jobs, ok := s.allJobs(w, r, store.Filter{})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"top_owners": nonNil(dataset.TopOwners(jobs, limit))})
}

func (s *server) getOwner(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	jobs, ok := s.allJobs(w, r, store.Filter{Owner: owner})
	if !ok {
		return
	}
	detail, err := dataset.Owner(owner, jobs)
	if errors.Is(err, dataset.ErrOwnerNotFound) {
		writeError(w, http.StatusNotFound, "owner not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *server) allJobs(w http.ResponseWriter, r *http.Request, f store.Filter) ([]*types.AnalysisJob, bool) {
	jobs, err := s.jobs.List(r.Context(), f)
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("owner statistics failed")
		writeError(w, http.StatusInternalServerError, "could not load analyses")
		return nil, false
	}
	return jobs, true
}

func nonNil(stats []dataset.OwnerStats) []dataset.OwnerStats {
	if stats == nil {
		return []dataset.OwnerStats{}
	}
	return stats
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
