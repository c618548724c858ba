package pending

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/openstud/openstud/core/user"
)

const defaultConcurrency = 4

type (
	// TaskUpdater persists the fields of one task on behalf of actor.
	TaskUpdater interface {
		UpdateTask(ctx context.Context, actor user.User, taskID string, fields Fields) error
	}

	// UpdaterFunc adapts a function to the TaskUpdater interface.
	UpdaterFunc func(ctx context.Context, actor user.User, taskID string, fields Fields) error

	Failure struct {
		TaskID string `json:"task_id"`
		Error  string `json:"error"`
		Err    error  `json:"-"`
	}

	// Result reports the outcome of a batch commit, in the order changes were listed.
	// Superseded tasks were persisted but edited again during the commit, so they are still pending.
	Result struct {
		Saved      []string  `json:"saved"`
		Superseded []string  `json:"superseded"`
		Failed     []Failure `json:"failed"`
	}
)

func (fn UpdaterFunc) UpdateTask(ctx context.Context, actor user.User, taskID string, fields Fields) error {
	return fn(ctx, actor, taskID, fields)
}

func (r Result) HasFailures() bool {
	return len(r.Failed) > 0
}

func (r Result) IsEmpty() bool {
	return len(r.Saved) == 0 && len(r.Superseded) == 0 && len(r.Failed) == 0
}

// Controller commits or discards the changes of one Store.
type Controller struct {
	store       *Store
	updater     TaskUpdater
	concurrency int
}

func NewController(store *Store, updater TaskUpdater, concurrency int) *Controller {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Controller{store: store, updater: updater, concurrency: concurrency}
}

// SaveAll sends every pending change to the updater, continuing past failures.
// Committed changes are removed from the store and reported as saved, unless they were
// edited again meanwhile: those keep the newer edit and are reported as superseded.
// Failed changes stay pending, unchanged.
// Cancelling ctx does not abort the batch.
func (c *Controller) SaveAll(ctx context.Context, actor user.User) Result {
	c.store.commitMu.Lock()
	defer c.store.commitMu.Unlock()

	ctx = context.WithoutCancel(ctx)
	snap := c.store.snapshot()
	errs := make([]error, len(snap))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i := range snap {
		i := i
		g.Go(func() error {
			errs[i] = c.updater.UpdateTask(ctx, actor, snap[i].TaskID, snap[i].Fields.clone())
			return nil // failures are per task
		})
	}
	_ = g.Wait()

	res := Result{Saved: []string{}, Superseded: []string{}, Failed: []Failure{}}
	for i, rv := range snap {
		if err := errs[i]; err != nil {
			res.Failed = append(res.Failed, Failure{TaskID: rv.TaskID, Error: err.Error(), Err: err})
			continue
		}
		if !c.store.removeIfUnchanged(rv.TaskID, rv.rev) {
			res.Superseded = append(res.Superseded, rv.TaskID)
			continue
		}
		res.Saved = append(res.Saved, rv.TaskID)
	}
	return res
}

// DiscardAll drops every pending change without contacting the updater.
func (c *Controller) DiscardAll() {
	c.store.Clear()
}
