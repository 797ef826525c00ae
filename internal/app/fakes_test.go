package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"ritual_notification_bot/internal/domain/activity"
	"ritual_notification_bot/internal/domain/notify"
	"ritual_notification_bot/internal/domain/runlock"
	"ritual_notification_bot/internal/domain/schedule"
	"ritual_notification_bot/internal/domain/workflow"
	idb "ritual_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", "test")
}

// memWorkflowRepo is an in-memory workflow.Repository.
type memWorkflowRepo struct {
	mu        sync.Mutex
	instances map[string]*workflow.Instance
}

func newMemWorkflowRepo() *memWorkflowRepo {
	return &memWorkflowRepo{instances: make(map[string]*workflow.Instance)}
}

func (r *memWorkflowRepo) GetOrCreate(_ context.Context, kind workflow.Kind, date string) (*workflow.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(kind) + "/" + date
	inst, ok := r.instances[key]
	if !ok {
		inst = &workflow.Instance{Kind: kind, Date: date, State: workflow.StatePending, CreatedAt: time.Now()}
		r.instances[key] = inst
	}
	cp := *inst
	return &cp, nil
}

func (r *memWorkflowRepo) Get(_ context.Context, kind workflow.Kind, date string) (*workflow.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[string(kind)+"/"+date]
	if !ok {
		return nil, idb.ErrWorkflowInstanceNotFound
	}
	cp := *inst
	return &cp, nil
}

func (r *memWorkflowRepo) Update(_ context.Context, inst *workflow.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := inst.Key()
	if _, ok := r.instances[key]; !ok {
		return idb.ErrWorkflowInstanceNotFound
	}
	cp := *inst
	cp.UpdatedAt = time.Now()
	r.instances[key] = &cp
	return nil
}

func (r *memWorkflowRepo) ListByState(_ context.Context, state workflow.State) ([]*workflow.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*workflow.Instance
	for _, inst := range r.instances {
		if inst.State == state {
			cp := *inst
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memWorkflowRepo) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, inst := range r.instances {
		day, err := time.Parse(workflow.DateLayout, inst.Date)
		if err != nil {
			continue
		}
		if inst.State.Terminal() && day.Before(cutoff) {
			delete(r.instances, key)
			n++
		}
	}
	return n, nil
}

// mustState fetches the stored instance for assertions.
func (r *memWorkflowRepo) mustState(kind workflow.Kind, date string) *workflow.Instance {
	inst, ok := r.instances[string(kind)+"/"+date]
	if !ok {
		panic("instance not found: " + string(kind) + "/" + date)
	}
	cp := *inst
	return &cp
}

// memActivityRepo is an in-memory activity.Repository.
type memActivityRepo struct {
	mu      sync.Mutex
	entries []*activity.Entry
}

func newMemActivityRepo() *memActivityRepo {
	return &memActivityRepo{}
}

func (r *memActivityRepo) Record(_ context.Context, entry *activity.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	cp.ID = int64(len(r.entries) + 1)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memActivityRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*activity.Entry
	var n int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return n, nil
}

func (r *memActivityRepo) actions() []activity.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Action, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func (r *memActivityRepo) countAction(action activity.Action) int {
	n := 0
	for _, a := range r.actions() {
		if a == action {
			n++
		}
	}
	return n
}

// memRunStatusRepo is an in-memory activity.RunStatusRepository.
type memRunStatusRepo struct {
	mu     sync.Mutex
	status *activity.RunStatus
	saves  int
}

func newMemRunStatusRepo() *memRunStatusRepo {
	return &memRunStatusRepo{}
}

func (r *memRunStatusRepo) Get(_ context.Context) (*activity.RunStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == nil {
		return nil, fmt.Errorf("scheduler run status not found")
	}
	cp := *r.status
	return &cp, nil
}

func (r *memRunStatusRepo) Save(_ context.Context, status *activity.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *status
	r.status = &cp
	r.saves++
	return nil
}

// memLeaseStore mirrors the postgres lease semantics in memory.
type memLeaseStore struct {
	mu    sync.Mutex
	lease *runlock.Lease
}

func newMemLeaseStore() *memLeaseStore {
	return &memLeaseStore{}
}

func (s *memLeaseStore) Acquire(_ context.Context, name, owner string, now time.Time, maxAge time.Duration) (runlock.AcquireResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lease == nil {
		s.lease = &runlock.Lease{Name: name, Owner: owner, AcquiredAt: now}
		return runlock.AcquireResult{Acquired: true}, nil
	}
	if !s.lease.AcquiredAt.After(now.Add(-maxAge)) {
		s.lease = &runlock.Lease{Name: name, Owner: owner, AcquiredAt: now}
		return runlock.AcquireResult{Acquired: true, TookOverStale: true}, nil
	}
	return runlock.AcquireResult{}, nil
}

func (s *memLeaseStore) Release(_ context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lease != nil && s.lease.Name == name && s.lease.Owner == owner {
		s.lease = nil
	}
	return nil
}

// memScheduleRepo is an in-memory schedule.Repository preloaded by tests.
type memScheduleRepo struct {
	mu      sync.Mutex
	configs map[workflow.Kind]*schedule.Config
}

func newMemScheduleRepo(configs ...*schedule.Config) *memScheduleRepo {
	r := &memScheduleRepo{configs: make(map[workflow.Kind]*schedule.Config)}
	for _, cfg := range configs {
		cp := *cfg
		r.configs[cfg.Kind] = &cp
	}
	return r
}

func (r *memScheduleRepo) Get(_ context.Context, kind workflow.Kind) (*schedule.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[kind]
	if !ok {
		return nil, fmt.Errorf("schedule config not found")
	}
	cp := *cfg
	return &cp, nil
}

func (r *memScheduleRepo) GetAll(_ context.Context) ([]*schedule.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*schedule.Config
	for _, kind := range workflow.Kinds() {
		if cfg, ok := r.configs[kind]; ok {
			cp := *cfg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memScheduleRepo) Update(_ context.Context, cfg *schedule.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[cfg.Kind]; !ok {
		return fmt.Errorf("schedule config not found")
	}
	cp := *cfg
	r.configs[cfg.Kind] = &cp
	return nil
}

// fakeChannel records sent messages and can be set to fail. onSend, when
// set, runs after each successful delivery.
type fakeChannel struct {
	mu     sync.Mutex
	sent   []notify.Message
	err    error
	onSend func()
}

func (c *fakeChannel) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	if c.onSend != nil {
		c.onSend()
	}
	return nil
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}
