package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/user"
	"github.com/openstud/openstud/core/workspace"
)

var errUnknownUser = errors.New("no user with this username or email")

type workspaceApi struct {
	svc      workspace.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerWorkspaceAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := workspaceApi{svc: deps.WorkspaceSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	wg := g.Group("/workspaces", jwt, authed)
	wg.GET("", api.list)
	wg.POST("", api.create)
	wg.GET("/personal", api.personal)
	wg.GET("/:id", api.retrieve)
	wg.DELETE("/:id", api.destroy)
	wg.GET("/:id/members", api.members)
	wg.POST("/:id/members", api.addMember)
	wg.DELETE("/:id/members/:user_id", api.removeMember)
	wg.GET("/:id/projects", api.projects)
	wg.POST("/:id/projects", api.createProject)
	wg.GET("/:id/tasks", api.workspaceTasks)

	pg := g.Group("/projects", jwt, authed)
	pg.GET("/:id", api.retrieveProject)
	pg.PUT("/:id", api.updateProject)
	pg.DELETE("/:id", api.destroyProject)
	pg.GET("/:id/tasks", api.tasks)
	pg.POST("/:id/tasks", api.createTask)

	tg := g.Group("/tasks", jwt, authed)
	tg.GET("/:id", api.retrieveTask)
	tg.PUT("/:id", api.updateTask)
	tg.PATCH("/:id/progress", api.updateTaskProgress)
	tg.DELETE("/:id", api.destroyTask)
}

// Workspaces

func (api *workspaceApi) list(ctx echo.Context) error {
	wss, err := api.svc.Workspaces(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "listing workspaces")
	}
	return ctx.JSON(http.StatusOK, wss)
}

func (api *workspaceApi) create(ctx echo.Context) error {
	var data workspace.NewWorkspace
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewWorkspace")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ws, err := api.svc.CreateTeamWorkspace(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating workspace")
	}
	return ctx.JSON(http.StatusCreated, ws)
}

func (api *workspaceApi) personal(ctx echo.Context) error {
	ws, err := api.svc.PersonalWorkspace(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "getting personal workspace")
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *workspaceApi) retrieve(ctx echo.Context) error {
	ws, err := api.svc.Workspace(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting workspace")
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *workspaceApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteWorkspace(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting workspace")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *workspaceApi) members(ctx echo.Context) error {
	members, err := api.svc.Members(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *workspaceApi) addMember(ctx echo.Context) error {
	var data workspace.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	usr, err := api.usrSvc.GetByUsernameOrEmail(data.Username)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(errUnknownUser, core.FieldError{Field: "username", Error: errUnknownUser.Error()})
		}
		return errors.Wrap(err, "finding user by username or email")
	}

	m, err := api.svc.AddMember(ctx.Request().Context(), actor(ctx), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "adding member")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *workspaceApi) removeMember(ctx echo.Context) error {
	if err := api.svc.RemoveMember(ctx.Request().Context(), actor(ctx), ctx.Param("id"), ctx.Param("user_id")); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *workspaceApi) workspaceTasks(ctx echo.Context) error {
	filter, err := bindTaskFilter(ctx)
	if err != nil {
		return err
	}
	tasks, err := api.svc.WorkspaceTasks(ctx.Request().Context(), actor(ctx), ctx.Param("id"), filter)
	if err != nil {
		return errors.Wrap(err, "listing workspace tasks")
	}
	return ctx.JSON(http.StatusOK, tasks)
}

// bindTaskFilter reads ?completed=true&due_from=<RFC3339>&due_to=<RFC3339>.
func bindTaskFilter(ctx echo.Context) (workspace.TaskFilter, error) {
	var filter workspace.TaskFilter
	var fields []core.FieldError

	if v := ctx.QueryParam("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			fields = append(fields, core.FieldError{Field: "completed", Error: "must be a boolean"})
		} else {
			filter.Completed = &completed
		}
	}
	for _, p := range []struct {
		name string
		dest *time.Time
	}{{"due_from", &filter.DueFrom}, {"due_to", &filter.DueTo}} {
		if v := ctx.QueryParam(p.name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				fields = append(fields, core.FieldError{Field: p.name, Error: "must be an RFC 3339 date-time"})
				continue
			}
			*p.dest = t.UTC()
		}
	}

	if len(fields) > 0 {
		return workspace.TaskFilter{}, core.NewValidationError(nil, fields...)
	}
	return filter, nil
}

// Projects

func (api *workspaceApi) projects(ctx echo.Context) error {
	projects, err := api.svc.Projects(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing projects")
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *workspaceApi) createProject(ctx echo.Context) error {
	var data workspace.NewProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.CreateProject(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *workspaceApi) retrieveProject(ctx echo.Context) error {
	p, err := api.svc.Project(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *workspaceApi) updateProject(ctx echo.Context) error {
	var data workspace.NewProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdateProject(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *workspaceApi) destroyProject(ctx echo.Context) error {
	if err := api.svc.DeleteProject(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Tasks

func (api *workspaceApi) tasks(ctx echo.Context) error {
	tasks, err := api.svc.Tasks(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing tasks")
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *workspaceApi) createTask(ctx echo.Context) error {
	var data workspace.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.CreateTask(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *workspaceApi) retrieveTask(ctx echo.Context) error {
	t, err := api.svc.Task(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *workspaceApi) updateTask(ctx echo.Context) error {
	var data workspace.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.UpdateTask(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

// updateTaskProgress saves progress immediately, bypassing the pending changes.
func (api *workspaceApi) updateTaskProgress(ctx echo.Context) error {
	var data workspace.Progress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Progress")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.UpdateTaskProgress(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task progress")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *workspaceApi) destroyTask(ctx echo.Context) error {
	if err := api.svc.DeleteTask(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}
