package jobs

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/codegraph-dev/indexer/internal/checkpoint"
	"github.com/codegraph-dev/indexer/pkg/errs"
)

// Store persists Job records and is the orchestrator's only handle on job
// state; every mutation to a Job goes through it. The in-memory map is the
// source of truth for a running process; when dir is non-empty each Put
// additionally checkpoints the record to disk (one JSON file per job) so a
// restarted process can recover job history via Load.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	dir     string
	persist *checkpoint.Persister[Job]
}

// NewStore creates an in-memory job store. When dir is non-empty, every Put
// also writes a checkpoint file at "<dir>/<jobID>/job.json".
func NewStore(dir string) *Store {
	var persister *checkpoint.Persister[Job]
	if dir != "" {
		persister = checkpoint.NewPersister[Job]("job", checkpoint.NewJSONCodec())
	}

	return &Store{
		jobs:    make(map[string]*Job),
		dir:     dir,
		persist: persister,
	}
}

// Put inserts or overwrites a Job record, checkpointing it to disk when the
// store was constructed with a directory.
func (s *Store) Put(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *job
	s.jobs[job.ID] = &cp

	if s.persist == nil {
		return nil
	}

	jobDir := filepath.Join(s.dir, job.ID)

	if err := s.persist.Save(jobDir, func() *Job { return &cp }); err != nil {
		return errs.Wrap(errs.KindState, "jobs.Store.Put", "CHECKPOINT_WRITE_FAILED", err, "persist job %s", job.ID)
	}

	return nil
}

// Get returns a copy of the Job record for id.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, notFoundError("jobs.Store.Get", id)
	}

	cp := *job

	return &cp, nil
}

// List returns every known Job, ordered by ID for deterministic output.
func (s *Store) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Job, 0, len(s.jobs))

	for _, job := range s.jobs {
		cp := *job
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Load restores a Job record previously checkpointed under dir/<jobID>,
// used to recover job history after a process restart. Returns an error if
// the store has no backing directory.
func (s *Store) Load(id string) (*Job, error) {
	if s.persist == nil {
		return nil, errs.New(errs.KindConfig, "jobs.Store.Load", "STORE_NOT_PERSISTENT", "store has no backing directory", nil)
	}

	var loaded Job

	jobDir := filepath.Join(s.dir, id)

	if err := s.persist.Load(jobDir, func(j *Job) { loaded = *j }); err != nil {
		return nil, errs.Wrap(errs.KindState, "jobs.Store.Load", "CHECKPOINT_READ_FAILED", err, "load job %s", id)
	}

	s.mu.Lock()
	cp := loaded
	s.jobs[id] = &cp
	s.mu.Unlock()

	return &loaded, nil
}
