package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-bulk-ops/internal/domain"
	"telegram-bulk-ops/internal/domain/model"
)

type loginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" {
		s.log.Error().Msg("Admin API key is not configured")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.APIKey != s.apiKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type jobCreateRequest struct {
	Kind      string `json:"kind"`
	SourceRef string `json:"source_ref,omitempty"`
	TargetRef string `json:"target_ref,omitempty"`
	Message   string `json:"message,omitempty"`
	Campaign  string `json:"campaign,omitempty"`
}

type jobResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	State       string     `json:"state"`
	SourceRef   string     `json:"source_ref,omitempty"`
	TargetRef   string     `json:"target_ref,omitempty"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Skipped     int        `json:"skipped"`
	Percent     int        `json:"percent"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toJobResponse(job *model.Job) jobResponse {
	return jobResponse{
		ID:          job.ID,
		Kind:        string(job.Kind),
		State:       string(job.State),
		SourceRef:   job.SourceRef,
		TargetRef:   job.TargetRef,
		Total:       job.Total,
		Processed:   job.Processed,
		Succeeded:   job.Succeeded,
		Failed:      job.Failed,
		Skipped:     job.Skipped,
		Percent:     job.Percent(),
		LastError:   job.LastError,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}

func (s *Server) jobsCreateHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var jobID string
	var err error
	switch model.JobKind(req.Kind) {
	case model.JobKindAddMembers:
		jobID, err = s.control.StartAddMembers(ctx, req.TargetRef)
	case model.JobKindReplicate:
		jobID, err = s.control.StartReplicate(ctx, req.SourceRef, req.TargetRef)
	case model.JobKindMassMessage:
		campaign := req.Campaign
		if campaign == "" {
			campaign = "api"
		}
		jobID, err = s.control.StartBroadcast(ctx, campaign, req.Message)
	default:
		http.Error(w, "Unknown job kind", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeControlError(w, err, "Failed to create job")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": jobID})
}

func (s *Server) jobsListHandler(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.control.ListActive(r.Context())
	if err != nil {
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toJobResponse(job))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) jobGetHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.control.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeControlError(w, err, "Failed to get job")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) jobPauseHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.control.Pause(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeControlError(w, err, "Failed to pause job")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) jobResumeHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.control.Resume(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeControlError(w, err, "Failed to resume job")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) jobCancelHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.control.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeControlError(w, err, "Failed to cancel job")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) writeControlError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Job not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrJobNotResumable),
		errors.Is(err, domain.ErrJobAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
