package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/pending"
	"github.com/openstud/openstud/core/user"
	"github.com/openstud/openstud/core/workspace"
)

type pendingApi struct {
	sessions    *pending.Registry
	wsSvc       workspace.Service
	updater     pending.TaskUpdater
	concurrency int
}

func registerPendingAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := pendingApi{
		sessions:    deps.Pending,
		wsSvc:       deps.WorkspaceSvc,
		updater:     taskProgressUpdater(deps.WorkspaceSvc),
		concurrency: deps.Conf.Pending.CommitConcurrency,
	}

	cg := g.Group("/changes", jwt, authed)
	cg.GET("", api.list)
	cg.DELETE("", api.discard)
	cg.POST("/commit", api.commit)
	cg.GET("/:task_id", api.retrieve)
	cg.PUT("/:task_id", api.add)
}

// taskProgressUpdater commits pending fields through the workspace service,
// which checks that actor may still edit the task.
func taskProgressUpdater(svc workspace.Service) pending.TaskUpdater {
	return pending.UpdaterFunc(func(ctx context.Context, actor user.User, taskID string, fields pending.Fields) error {
		_, err := svc.UpdateTaskProgress(ctx, actor, taskID, workspace.Progress{
			CompletionPercentage: fields.CompletionPercentage,
			Completed:            fields.Completed,
		})
		return err
	})
}

type (
	ChangesResponse struct {
		Count   int              `json:"count"`
		Changes []pending.Change `json:"changes"`
	}
)

func (api *pendingApi) list(ctx echo.Context) error {
	changes := api.sessions.Store(actor(ctx)).List()
	return ctx.JSON(http.StatusOK, ChangesResponse{Count: len(changes), Changes: changes})
}

func taskIDParam(ctx echo.Context) string {
	return core.CleanString(ctx.Param("task_id"))
}

func (api *pendingApi) retrieve(ctx echo.Context) error {
	taskID := taskIDParam(ctx)
	fields, ok := api.sessions.Store(actor(ctx)).Get(taskID)
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, pending.Change{TaskID: taskID, Fields: fields})
}

// add records a change for a task the caller can see; nothing is persisted yet.
// The payload is validated before the task is looked up.
func (api *pendingApi) add(ctx echo.Context) error {
	var data pending.Fields
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Fields")
	}

	taskID := taskIDParam(ctx)
	if err := data.Validate(taskID); err != nil {
		return err
	}

	usr := actor(ctx)
	if _, err := api.wsSvc.Task(ctx.Request().Context(), usr, taskID); err != nil {
		return errors.Wrap(err, "getting task")
	}

	store := api.sessions.Store(usr)
	if err := store.Add(taskID, data); err != nil {
		return err
	}
	fields, _ := store.Get(taskID)
	return ctx.JSON(http.StatusOK, pending.Change{TaskID: taskID, Fields: fields})
}

// commit saves every pending change; 207 means some tasks failed and are still pending.
func (api *pendingApi) commit(ctx echo.Context) error {
	usr := actor(ctx)
	store := api.sessions.Store(usr)

	res := pending.NewController(store, api.updater, api.concurrency).SaveAll(ctx.Request().Context(), usr)

	pendingCommittedTasks.WithLabelValues("saved").Add(float64(len(res.Saved)))
	pendingCommittedTasks.WithLabelValues("superseded").Add(float64(len(res.Superseded)))
	pendingCommittedTasks.WithLabelValues("failed").Add(float64(len(res.Failed)))

	code := http.StatusOK
	switch {
	case res.IsEmpty():
		pendingCommits.WithLabelValues("empty").Inc()
	case res.HasFailures():
		pendingCommits.WithLabelValues("partial").Inc()
		code = http.StatusMultiStatus
	default:
		pendingCommits.WithLabelValues("ok").Inc()
	}
	return ctx.JSON(code, res)
}

func (api *pendingApi) discard(ctx echo.Context) error {
	if store, ok := api.sessions.Peek(actor(ctx)); ok {
		pending.NewController(store, api.updater, api.concurrency).DiscardAll()
	}
	return ctx.NoContent(http.StatusNoContent)
}
