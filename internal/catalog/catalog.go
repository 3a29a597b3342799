// Package catalog provides a file-backed stand-in for the out-of-scope
// relational project/codebase catalog (SPEC_FULL.md §1, §6). The CLI is the
// request-driving half of the real HTTP control plane for local/operator
// use; this package is its equivalent for the catalog half, durable enough
// across CLI invocations that an incremental job can see the commit its
// predecessor indexed.
package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/codegraph-dev/indexer/internal/checkpoint"
	"github.com/codegraph-dev/indexer/internal/jobs"
	"github.com/codegraph-dev/indexer/pkg/errs"
)

// state is the on-disk shape: a map keyed by codebase ID, wrapped so the
// JSON codec has a single addressable root value.
type state struct {
	Codebases map[string]jobs.Codebase `json:"codebases"`
}

// Catalog is an in-memory jobs.CodebaseCatalog checkpointed to a single JSON
// file. Register adds or updates a codebase's static fields (name, remote,
// branch); the orchestrator calls Resolve at job start and RecordIndexed on
// success.
type Catalog struct {
	mu        sync.Mutex
	dir       string
	codebases map[string]jobs.Codebase
	persist   *checkpoint.Persister[state]
}

// Open loads a Catalog checkpointed under dir, or starts empty if dir has no
// prior catalog file. dir may be empty, in which case the catalog is purely
// in-memory and does not survive process restarts.
func Open(dir string) (*Catalog, error) {
	c := &Catalog{
		dir:       dir,
		codebases: make(map[string]jobs.Codebase),
	}

	if dir == "" {
		return c, nil
	}

	c.persist = checkpoint.NewPersister[state]("catalog", checkpoint.NewJSONCodec())

	var loaded state

	err := c.persist.Load(dir, func(s *state) { loaded = *s })
	if err != nil {
		// No checkpoint yet is not an error; the catalog just starts empty.
		return c, nil
	}

	if loaded.Codebases != nil {
		c.codebases = loaded.Codebases
	}

	return c, nil
}

// Register adds or overwrites the static record for a codebase, preserving
// its LastIndexedCommit if one is already known and the caller didn't
// supply a new one.
func (c *Catalog) Register(codebase jobs.Codebase) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.codebases[codebase.ID]; ok && codebase.LastIndexedCommit == "" {
		codebase.LastIndexedCommit = existing.LastIndexedCommit
	}

	c.codebases[codebase.ID] = codebase

	return c.saveLocked()
}

// Resolve implements jobs.CodebaseCatalog.
func (c *Catalog) Resolve(_ context.Context, codebaseID string) (jobs.Codebase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	codebase, ok := c.codebases[codebaseID]
	if !ok {
		return jobs.Codebase{}, errs.New(errs.KindValidation, "catalog.Catalog.Resolve", "CODEBASE_NOT_REGISTERED",
			"codebase "+codebaseID+" is not registered in the catalog", nil)
	}

	return codebase, nil
}

// RecordIndexed implements jobs.CodebaseCatalog.
func (c *Catalog) RecordIndexed(_ context.Context, codebaseID, commitHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	codebase, ok := c.codebases[codebaseID]
	if !ok {
		return errs.New(errs.KindValidation, "catalog.Catalog.RecordIndexed", "CODEBASE_NOT_REGISTERED",
			"codebase "+codebaseID+" is not registered in the catalog", nil)
	}

	codebase.LastIndexedCommit = commitHash
	c.codebases[codebaseID] = codebase

	return c.saveLocked()
}

// List returns every registered codebase, ordered by ID.
func (c *Catalog) List() []jobs.Codebase {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]jobs.Codebase, 0, len(c.codebases))
	for _, codebase := range c.codebases {
		out = append(out, codebase)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

func (c *Catalog) saveLocked() error {
	if c.persist == nil {
		return nil
	}

	snapshot := state{Codebases: make(map[string]jobs.Codebase, len(c.codebases))}
	for id, codebase := range c.codebases {
		snapshot.Codebases[id] = codebase
	}

	err := c.persist.Save(c.dir, func() *state { return &snapshot })
	if err != nil {
		return errs.Wrap(errs.KindState, "catalog.Catalog.saveLocked", "CHECKPOINT_WRITE_FAILED", err, "persist catalog")
	}

	return nil
}
