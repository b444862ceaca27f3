package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/domain"
	"telegram-bulk-ops/internal/domain/model"
)

// --- Mock job control ---

type mockJobControl struct {
	jobs map[string]*model.Job

	StartBroadcastFunc func(ctx context.Context, campaign, message string) (string, error)
	PauseErr           error
	ResumeErr          error
	CancelErr          error
}

func (m *mockJobControl) StartAddMembers(ctx context.Context, targetRef string) (string, error) {
	if targetRef == "" {
		return "", domain.ErrInvalidArgument
	}
	return "job-add", nil
}

func (m *mockJobControl) StartReplicate(ctx context.Context, sourceRef, targetRef string) (string, error) {
	if sourceRef == "" || targetRef == "" {
		return "", domain.ErrInvalidArgument
	}
	return "job-rep", nil
}

func (m *mockJobControl) StartBroadcast(ctx context.Context, campaign, message string) (string, error) {
	if m.StartBroadcastFunc != nil {
		return m.StartBroadcastFunc(ctx, campaign, message)
	}
	if message == "" {
		return "", domain.ErrInvalidArgument
	}
	return "job-bc", nil
}

func (m *mockJobControl) Pause(ctx context.Context, jobID string) error  { return m.PauseErr }
func (m *mockJobControl) Resume(ctx context.Context, jobID string) error { return m.ResumeErr }
func (m *mockJobControl) Cancel(ctx context.Context, jobID string) error { return m.CancelErr }

func (m *mockJobControl) Status(ctx context.Context, jobID string) (*model.Job, error) {
	if job, ok := m.jobs[jobID]; ok {
		return job, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockJobControl) ListActive(ctx context.Context) ([]*model.Job, error) {
	var out []*model.Job
	for _, job := range m.jobs {
		out = append(out, job)
	}
	return out, nil
}

func (m *mockJobControl) ResumeActive(ctx context.Context) (int, error) { return 0, nil }

// --- helpers ---

func newTestServer(t *testing.T, control *mockJobControl) *Server {
	t.Helper()
	logger := zerolog.New(io.Discard)
	return NewServer(control, "test-api-key", "test-jwt-secret-test-jwt-secret!", false, &logger)
}

func login(t *testing.T, handler http.Handler) string {
	t.Helper()
	body, _ := json.Marshal(loginRequest{APIKey: "test-api-key"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp["token"]
}

func doJSON(handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestLoginRejectsBadKey(t *testing.T) {
	handler := newTestServer(t, &mockJobControl{}).Router()

	rec := doJSON(handler, http.MethodPost, "/api/v1/auth/login", "", loginRequest{APIKey: "wrong"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestJobRoutesRequireSession(t *testing.T) {
	handler := newTestServer(t, &mockJobControl{}).Router()

	rec := doJSON(handler, http.MethodGet, "/api/v1/jobs/", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/jobs/", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestCreateJobRoutesByKind(t *testing.T) {
	handler := newTestServer(t, &mockJobControl{}).Router()
	token := login(t, handler)

	tests := []struct {
		name     string
		req      jobCreateRequest
		wantCode int
		wantID   string
	}{
		{"add members", jobCreateRequest{Kind: "add-members", TargetRef: "@dest"}, http.StatusCreated, "job-add"},
		{"replicate", jobCreateRequest{Kind: "replicate", SourceRef: "@src", TargetRef: "@dst"}, http.StatusCreated, "job-rep"},
		{"broadcast", jobCreateRequest{Kind: "mass-message", Message: "hi"}, http.StatusCreated, "job-bc"},
		{"missing destination", jobCreateRequest{Kind: "add-members"}, http.StatusBadRequest, ""},
		{"unknown kind", jobCreateRequest{Kind: "export"}, http.StatusBadRequest, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(handler, http.MethodPost, "/api/v1/jobs/", token, tc.req)
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			if tc.wantID != "" {
				var resp map[string]string
				json.Unmarshal(rec.Body.Bytes(), &resp)
				if resp["id"] != tc.wantID {
					t.Errorf("id = %q, want %q", resp["id"], tc.wantID)
				}
			}
		})
	}
}

func TestGetJobReturnsProgress(t *testing.T) {
	job, _ := model.NewJob(model.JobKindMassMessage, "manual", "", "hello")
	job.Total = 10
	job.Apply(model.OutcomeSucceeded)
	job.Apply(model.OutcomeBlocked)

	control := &mockJobControl{jobs: map[string]*model.Job{job.ID: job}}
	handler := newTestServer(t, control).Router()
	token := login(t, handler)

	rec := doJSON(handler, http.MethodGet, "/api/v1/jobs/"+job.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Succeeded != 1 || resp.Failed != 1 || resp.Processed != 2 || resp.Percent != 20 {
		t.Errorf("unexpected progress payload: %+v", resp)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/jobs/no-such-job", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job: status = %d, want 404", rec.Code)
	}
}

func TestControlEndpointsMapErrors(t *testing.T) {
	control := &mockJobControl{
		PauseErr:  domain.ErrInvalidTransition,
		ResumeErr: domain.ErrJobNotResumable,
		CancelErr: domain.ErrNotFound,
	}
	handler := newTestServer(t, control).Router()
	token := login(t, handler)

	if rec := doJSON(handler, http.MethodPost, "/api/v1/jobs/x/pause", token, nil); rec.Code != http.StatusConflict {
		t.Errorf("pause: status = %d, want 409", rec.Code)
	}
	if rec := doJSON(handler, http.MethodPost, "/api/v1/jobs/x/resume", token, nil); rec.Code != http.StatusConflict {
		t.Errorf("resume: status = %d, want 409", rec.Code)
	}
	if rec := doJSON(handler, http.MethodPost, "/api/v1/jobs/x/cancel", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("cancel: status = %d, want 404", rec.Code)
	}

	control.PauseErr = nil
	if rec := doJSON(handler, http.MethodPost, "/api/v1/jobs/x/pause", token, nil); rec.Code != http.StatusAccepted {
		t.Errorf("pause ok: status = %d, want 202", rec.Code)
	}
}

func TestHealthIsPublic(t *testing.T) {
	handler := newTestServer(t, &mockJobControl{}).Router()
	rec := doJSON(handler, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
