package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/domain"
	"telegram-bulk-ops/internal/domain/model"
	"telegram-bulk-ops/internal/domain/ports/adapter"
	"telegram-bulk-ops/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Job repository ----

// MockJobRepo is an in-memory JobRepository that enforces the real state
// machine, so tests observe the same transition errors production would.
type MockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job

	TransitionLog []model.JobState
}

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{jobs: make(map[string]*model.Job)}
}

func (m *MockJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MockJobRepo) Transition(ctx context.Context, tx repository.Tx, jobID string, newState model.JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if err := job.Transition(newState); err != nil {
		return err
	}
	m.TransitionLog = append(m.TransitionLog, newState)
	return nil
}

func (m *MockJobRepo) IncrementProgress(ctx context.Context, tx repository.Tx, jobID string, outcome model.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Apply(outcome)
	return nil
}

func (m *MockJobRepo) SetTotal(ctx context.Context, tx repository.Tx, jobID string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Total = total
	return nil
}

func (m *MockJobRepo) SetLastError(ctx context.Context, tx repository.Tx, jobID string, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.LastError = msg
	return nil
}

func (m *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MockJobRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, job := range m.jobs {
		switch job.State {
		case model.JobStatePending, model.JobStateRunning, model.JobStatePaused:
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Snapshot returns a copy of the stored job for assertions.
func (m *MockJobRepo) Snapshot(id string) *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		cp := *job
		return &cp
	}
	return nil
}

// ---- Contact repository ----

type MockContactRepo struct {
	mu sync.Mutex

	SaveFunc                    func(ctx context.Context, tx repository.Tx, c *model.Contact) error
	FindByTelegramIDFunc        func(ctx context.Context, tx repository.Tx, telegramID int64) (*model.Contact, error)
	ListAddCandidatesFunc       func(ctx context.Context, tx repository.Tx, groupID string) ([]*model.Target, error)
	ListReplicateCandidatesFunc func(ctx context.Context, tx repository.Tx, sourceGroupID, targetGroupID string) ([]*model.Target, error)
	ListBroadcastTargetsFunc    func(ctx context.Context, tx repository.Tx, jobID string) ([]*model.Target, error)

	Blocked    []string
	Inactive   []string
	OptedOut   []string
	Deliveries map[string]map[string]bool // jobID -> contactID
}

func NewMockContactRepo() *MockContactRepo { return &MockContactRepo{} }

func (m *MockContactRepo) Save(ctx context.Context, tx repository.Tx, c *model.Contact) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, c)
	}
	return nil
}

func (m *MockContactRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, telegramID int64) (*model.Contact, error) {
	if m.FindByTelegramIDFunc != nil {
		return m.FindByTelegramIDFunc(ctx, tx, telegramID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockContactRepo) ListAddCandidates(ctx context.Context, tx repository.Tx, groupID string) ([]*model.Target, error) {
	if m.ListAddCandidatesFunc != nil {
		return m.ListAddCandidatesFunc(ctx, tx, groupID)
	}
	return nil, nil
}

func (m *MockContactRepo) ListReplicateCandidates(ctx context.Context, tx repository.Tx, sourceGroupID, targetGroupID string) ([]*model.Target, error) {
	if m.ListReplicateCandidatesFunc != nil {
		return m.ListReplicateCandidatesFunc(ctx, tx, sourceGroupID, targetGroupID)
	}
	return nil, nil
}

func (m *MockContactRepo) ListBroadcastTargets(ctx context.Context, tx repository.Tx, jobID string) ([]*model.Target, error) {
	if m.ListBroadcastTargetsFunc != nil {
		return m.ListBroadcastTargetsFunc(ctx, tx, jobID)
	}
	return nil, nil
}

func (m *MockContactRepo) RecordDelivery(ctx context.Context, tx repository.Tx, jobID, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Deliveries == nil {
		m.Deliveries = make(map[string]map[string]bool)
	}
	if m.Deliveries[jobID] == nil {
		m.Deliveries[jobID] = make(map[string]bool)
	}
	m.Deliveries[jobID][contactID] = true
	return nil
}

// Delivered reports whether the job already handled the contact, mirroring
// the anti-join the production candidate query applies.
func (m *MockContactRepo) Delivered(jobID, contactID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Deliveries[jobID][contactID]
}

func (m *MockContactRepo) MarkBlocked(ctx context.Context, tx repository.Tx, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Blocked = append(m.Blocked, contactID)
	return nil
}

func (m *MockContactRepo) MarkInactive(ctx context.Context, tx repository.Tx, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inactive = append(m.Inactive, contactID)
	return nil
}

func (m *MockContactRepo) MarkOptedOut(ctx context.Context, tx repository.Tx, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OptedOut = append(m.OptedOut, contactID)
	return nil
}

// ---- Group repository ----

type MockGroupRepo struct {
	mu sync.Mutex

	FindByRefFunc func(ctx context.Context, tx repository.Tx, ref string) (*model.Group, error)

	Memberships [][2]string // (groupID, contactID)
}

func NewMockGroupRepo() *MockGroupRepo { return &MockGroupRepo{} }

func (m *MockGroupRepo) Save(ctx context.Context, tx repository.Tx, g *model.Group) error { return nil }

func (m *MockGroupRepo) FindByRef(ctx context.Context, tx repository.Tx, ref string) (*model.Group, error) {
	if m.FindByRefFunc != nil {
		return m.FindByRefFunc(ctx, tx, ref)
	}
	return nil, domain.ErrNotFound
}

func (m *MockGroupRepo) RecordMembership(ctx context.Context, tx repository.Tx, groupID, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Memberships = append(m.Memberships, [2]string{groupID, contactID})
	return nil
}

// ---- Chat bot adapter ----

type MockChatBot struct {
	mu sync.Mutex

	SendMessageFunc        func(ctx context.Context, params adapter.SendMessageParams) error
	AddChatMemberFunc      func(ctx context.Context, chatID, userID int64) error
	GetChatMemberCountFunc func(ctx context.Context, chatID int64) (int, error)

	Sent  []adapter.SendMessageParams
	Added []int64
}

func (m *MockChatBot) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, params)
	m.mu.Unlock()
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, params)
	}
	return nil
}

func (m *MockChatBot) AddChatMember(ctx context.Context, chatID, userID int64) error {
	m.mu.Lock()
	m.Added = append(m.Added, userID)
	m.mu.Unlock()
	if m.AddChatMemberFunc != nil {
		return m.AddChatMemberFunc(ctx, chatID, userID)
	}
	return nil
}

func (m *MockChatBot) GetChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	if m.GetChatMemberCountFunc != nil {
		return m.GetChatMemberCountFunc(ctx, chatID)
	}
	return 42, nil
}

// ---- Progress observer ----

type MockObserver struct {
	mu    sync.Mutex
	Snaps []adapter.ProgressSnapshot
}

func (m *MockObserver) Notify(ctx context.Context, snap adapter.ProgressSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snaps = append(m.Snaps, snap)
}

func (m *MockObserver) Last() *adapter.ProgressSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Snaps) == 0 {
		return nil
	}
	cp := m.Snaps[len(m.Snaps)-1]
	return &cp
}

// ---- Runner lock ----

type MockLock struct {
	mu   sync.Mutex
	held map[string]bool

	FailWith error
}

func NewMockLock() *MockLock { return &MockLock{held: make(map[string]bool)} }

func (m *MockLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return "", m.FailWith
	}
	if m.held[key] {
		return "", domain.ErrJobAlreadyRunning
	}
	m.held[key] = true
	return "token", nil
}

func (m *MockLock) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

// ---- Content generation ----

type MockGenerator struct {
	mu    sync.Mutex
	Calls int

	GenerateFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "generated body", nil
}

type MapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMapCache() *MapCache { return &MapCache{data: make(map[string]string)} }

func (m *MapCache) key(op string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	k := op
	for _, name := range keys {
		k += "|" + name + "=" + params[name]
	}
	return k
}

func (m *MapCache) Get(op string, params map[string]string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[m.key(op, params)]
	return v, ok
}

func (m *MapCache) Set(op string, params map[string]string, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(op, params)] = payload
}
