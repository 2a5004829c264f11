package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
)

// fakeStore is an in-memory core.RecordStore.
type fakeStore struct {
	mu       sync.Mutex
	existing []model.DateUnit
	upserted []model.StatRecord
	upserts  int

	existingErr error
	upsertErr   func(records []model.StatRecord) error
}

func (s *fakeStore) ExistingDates(_ context.Context, _ string, rng model.DateRange) ([]model.DateUnit, error) {
	if s.existingErr != nil {
		return nil, s.existingErr
	}
	var out []model.DateUnit
	for _, u := range s.existing {
		if rng.Contains(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertBatch(_ context.Context, records []model.StatRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErr != nil {
		if err := s.upsertErr(records); err != nil {
			return 0, err
		}
	}
	s.upserted = append(s.upserted, records...)
	return len(records), nil
}

func (s *fakeStore) upsertedDates() []model.DateUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.DateUnit
	for _, r := range s.upserted {
		out = append(out, r.StatDate)
	}
	return out
}

// fakeSource returns canned payloads per unit.
type fakeSource struct {
	mu      sync.Mutex
	fetched []model.DateUnit

	fetchFn   func(unit model.DateUnit) ([]byte, error)
	refreshed int
}

func (s *fakeSource) FetchDate(_ context.Context, _ string, unit model.DateUnit) ([]byte, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, unit)
	s.mu.Unlock()
	if s.fetchFn != nil {
		return s.fetchFn(unit)
	}
	// Default payload carries the unit so the fake parser can key records by date.
	return []byte(unit.String()), nil
}

func (s *fakeSource) RefreshCredentials(context.Context) error {
	s.mu.Lock()
	s.refreshed++
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) fetchedUnits() []model.DateUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DateUnit(nil), s.fetched...)
}

// fakeParser emits one record per payload by default.
type fakeParser struct {
	parseFn func(payload []byte) ([]model.StatRecord, error)
}

func (p *fakeParser) Parse(payload []byte) ([]model.StatRecord, error) {
	if p.parseFn != nil {
		return p.parseFn(payload)
	}
	statDate, err := model.ParseDateUnit(string(payload))
	if err != nil {
		return nil, err
	}
	return []model.StatRecord{{
		League:    "mlb",
		StatDate:  statDate,
		EntityID:  "e1",
		StatGroup: "hitting",
		Payload:   []byte("{}"),
	}}, nil
}

// fakeLedger is an in-memory core.Ledger.
type fakeLedger struct {
	mu   sync.Mutex
	seq  int
	jobs map[string]*model.CollectionJob

	startErr  error
	updateErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{jobs: map[string]*model.CollectionJob{}}
}

func (l *fakeLedger) Start(_ context.Context, params core.StartJobParams) (*model.CollectionJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.startErr != nil {
		return nil, l.startErr
	}
	lane := model.Lane{Type: params.Type, Environment: params.Environment}
	for _, j := range l.jobs {
		if j.Lane() == lane && j.Status == model.JobStatusRunning {
			return nil, fmt.Errorf("a job is already running for lane %s", lane)
		}
	}
	l.seq++
	job := &model.CollectionJob{
		ID:          fmt.Sprintf("job-%d", l.seq),
		Type:        params.Type,
		Environment: params.Environment,
		Status:      model.JobStatusRunning,
		Range:       params.Range,
		League:      params.League,
		Metadata:    params.Metadata,
	}
	l.jobs[job.ID] = job
	copied := *job
	return &copied, nil
}

func (l *fakeLedger) Update(_ context.Context, jobID string, patch model.JobUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.updateErr != nil {
		return l.updateErr
	}
	job, ok := l.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.RecordsProcessed != nil {
		job.RecordsProcessed = *patch.RecordsProcessed
	}
	if patch.RecordsInserted != nil {
		job.RecordsInserted = *patch.RecordsInserted
	}
	if patch.FailedUnits != nil {
		job.FailedUnits = *patch.FailedUnits
	}
	if patch.ProgressPct != nil {
		job.ProgressPct = *patch.ProgressPct
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = patch.ErrorMessage
	}
	return nil
}

func (l *fakeLedger) Get(_ context.Context, jobID string) (*model.CollectionJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	copied := *job
	return &copied, nil
}

func (l *fakeLedger) FindRunning(_ context.Context, lane model.Lane) (*model.CollectionJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, job := range l.jobs {
		if job.Lane() == lane && job.Status == model.JobStatusRunning {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

// fakeCheckpoints is an in-memory core.CheckpointStore.
type fakeCheckpoints struct {
	mu        sync.Mutex
	snapshots map[string]model.Checkpoint
	saves     int

	saveErr error
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{snapshots: map[string]model.Checkpoint{}}
}

func (c *fakeCheckpoints) Save(_ context.Context, snapshot *model.Checkpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saveErr != nil {
		return c.saveErr
	}
	c.saves++
	c.snapshots[snapshot.Lane().String()] = *snapshot
	return nil
}

func (c *fakeCheckpoints) Load(_ context.Context, lane model.Lane) (*model.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot, ok := c.snapshots[lane.String()]
	if !ok {
		return nil, nil
	}
	copied := snapshot
	return &copied, nil
}

func (c *fakeCheckpoints) Clear(_ context.Context, lane model.Lane) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, lane.String())
	return nil
}
