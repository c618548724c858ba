package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("only the workspace owner can do this")
	ErrAlreadyMember = errors.New("user is already a member of this workspace")
)

type (
	Repository interface {
		CreateWorkspace(ctx context.Context, ws Workspace) (Workspace, error)
		GetWorkspace(ctx context.Context, id string) (Workspace, error)
		GetPersonalWorkspace(ctx context.Context, ownerID string) (Workspace, error)
		// QueryWorkspaces returns the workspaces userID is a member of.
		QueryWorkspaces(ctx context.Context, userID string) ([]Workspace, error)
		DeleteWorkspace(ctx context.Context, id string) error

		AddMember(ctx context.Context, m Member) (Member, error)
		GetMember(ctx context.Context, workspaceID, userID string) (Member, error)
		QueryMembers(ctx context.Context, workspaceID string) ([]Member, error)
		RemoveMember(ctx context.Context, workspaceID, userID string) error

		CreateProject(ctx context.Context, p Project) (Project, error)
		GetProject(ctx context.Context, id string) (Project, error)
		QueryProjects(ctx context.Context, workspaceID string) ([]Project, error)
		UpdateProject(ctx context.Context, p Project) (Project, error)
		DeleteProject(ctx context.Context, id string) error

		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTask(ctx context.Context, id string) (Task, error)
		QueryTasks(ctx context.Context, q TaskQuery) ([]Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTask(ctx context.Context, id string) error
	}

	// Service is the workspace API. Every operation acts on behalf of actor:
	// non-members get ErrNotFound, non-owners get ErrForbidden on owner-only operations.
	Service interface {
		PersonalWorkspace(ctx context.Context, actor user.User) (Workspace, error)
		CreateTeamWorkspace(ctx context.Context, actor user.User, nw NewWorkspace) (Workspace, error)
		Workspaces(ctx context.Context, actor user.User) ([]Workspace, error)
		Workspace(ctx context.Context, actor user.User, id string) (Workspace, error)
		DeleteWorkspace(ctx context.Context, actor user.User, id string) error

		Members(ctx context.Context, actor user.User, workspaceID string) ([]Member, error)
		AddMember(ctx context.Context, actor user.User, workspaceID string, usr user.User) (Member, error)
		RemoveMember(ctx context.Context, actor user.User, workspaceID, userID string) error

		Projects(ctx context.Context, actor user.User, workspaceID string) ([]Project, error)
		CreateProject(ctx context.Context, actor user.User, workspaceID string, np NewProject) (Project, error)
		Project(ctx context.Context, actor user.User, id string) (Project, error)
		UpdateProject(ctx context.Context, actor user.User, id string, up NewProject) (Project, error)
		DeleteProject(ctx context.Context, actor user.User, id string) error

		Tasks(ctx context.Context, actor user.User, projectID string) ([]Task, error)
		CreateTask(ctx context.Context, actor user.User, projectID string, nt NewTask) (Task, error)
		Task(ctx context.Context, actor user.User, id string) (Task, error)
		UpdateTask(ctx context.Context, actor user.User, id string, ut UpdateTask) (Task, error)
		UpdateTaskProgress(ctx context.Context, actor user.User, id string, p Progress) (Task, error)
		DeleteTask(ctx context.Context, actor user.User, id string) error

		// WorkspaceTasks lists the tasks of every project in the workspace, ordered by due date (undated last).
		WorkspaceTasks(ctx context.Context, actor user.User, workspaceID string, filter TaskFilter) ([]WorkspaceTask, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// membership returns the Member record of actor in workspaceID, or ErrNotFound.
func (svc *service) membership(ctx context.Context, actor user.User, workspaceID string) (Member, error) {
	m, err := svc.repo.GetMember(ctx, workspaceID, actor.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Member{}, ErrNotFound
		}
		return Member{}, errors.Wrap(err, "getting membership")
	}
	return m, nil
}

func (svc *service) PersonalWorkspace(ctx context.Context, actor user.User) (Workspace, error) {
	ws, err := svc.repo.GetPersonalWorkspace(ctx, actor.ID)
	if err == nil {
		return ws, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Workspace{}, errors.Wrap(err, "getting personal workspace")
	}
	return svc.createWorkspace(ctx, actor, KindPersonal, "Personal")
}

func (svc *service) createWorkspace(ctx context.Context, actor user.User, kind Kind, name string) (Workspace, error) {
	now := time.Now().UTC()
	ws, err := svc.repo.CreateWorkspace(ctx, Workspace{Name: name, Kind: kind, OwnerID: actor.ID, CreatedAt: now})
	if err != nil {
		return Workspace{}, errors.Wrap(err, fmt.Sprintf("creating %s workspace", kind))
	}
	if _, err = svc.repo.AddMember(ctx, Member{WorkspaceID: ws.ID, UserID: actor.ID, Role: RoleOwner, JoinedAt: now}); err != nil {
		return Workspace{}, errors.Wrap(err, "adding workspace owner")
	}
	return ws, nil
}

func (svc *service) CreateTeamWorkspace(ctx context.Context, actor user.User, nw NewWorkspace) (Workspace, error) {
	return svc.createWorkspace(ctx, actor, KindTeam, nw.Name)
}

func (svc *service) Workspaces(ctx context.Context, actor user.User) ([]Workspace, error) {
	if _, err := svc.PersonalWorkspace(ctx, actor); err != nil {
		return nil, err
	}
	return svc.repo.QueryWorkspaces(ctx, actor.ID)
}

func (svc *service) Workspace(ctx context.Context, actor user.User, id string) (Workspace, error) {
	if _, err := svc.membership(ctx, actor, id); err != nil {
		return Workspace{}, err
	}
	return svc.repo.GetWorkspace(ctx, id)
}

func (svc *service) DeleteWorkspace(ctx context.Context, actor user.User, id string) error {
	ws, err := svc.ownedTeamWorkspace(ctx, actor, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteWorkspace(ctx, ws.ID)
}

func (svc *service) ownedTeamWorkspace(ctx context.Context, actor user.User, id string) (Workspace, error) {
	m, err := svc.membership(ctx, actor, id)
	if err != nil {
		return Workspace{}, err
	}
	if !m.IsOwner() {
		return Workspace{}, ErrForbidden
	}
	ws, err := svc.repo.GetWorkspace(ctx, id)
	if err != nil {
		return Workspace{}, err
	}
	if ws.IsPersonal() {
		return Workspace{}, errors.Wrap(ErrForbidden, "personal workspace")
	}
	return ws, nil
}

func (svc *service) Members(ctx context.Context, actor user.User, workspaceID string) ([]Member, error) {
	if _, err := svc.membership(ctx, actor, workspaceID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMembers(ctx, workspaceID)
}

func (svc *service) AddMember(ctx context.Context, actor user.User, workspaceID string, usr user.User) (Member, error) {
	ws, err := svc.ownedTeamWorkspace(ctx, actor, workspaceID)
	if err != nil {
		return Member{}, err
	}
	if _, err = svc.repo.GetMember(ctx, ws.ID, usr.ID); err == nil {
		return Member{}, core.NewValidationError(ErrAlreadyMember, core.FieldError{Field: "username", Error: ErrAlreadyMember.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return Member{}, errors.Wrap(err, "getting membership")
	}
	return svc.repo.AddMember(ctx, Member{WorkspaceID: ws.ID, UserID: usr.ID, Role: RoleMember, JoinedAt: time.Now().UTC()})
}

// RemoveMember lets the owner remove anyone but themselves, and any member leave.
func (svc *service) RemoveMember(ctx context.Context, actor user.User, workspaceID, userID string) error {
	m, err := svc.membership(ctx, actor, workspaceID)
	if err != nil {
		return err
	}
	leaving := userID == actor.ID
	switch {
	case leaving && m.IsOwner():
		return errors.Wrap(ErrForbidden, "owner cannot leave")
	case !leaving && !m.IsOwner():
		return ErrForbidden
	}
	if _, err = svc.repo.GetMember(ctx, workspaceID, userID); err != nil {
		return err
	}
	return svc.repo.RemoveMember(ctx, workspaceID, userID)
}

func (svc *service) Projects(ctx context.Context, actor user.User, workspaceID string) ([]Project, error) {
	if _, err := svc.membership(ctx, actor, workspaceID); err != nil {
		return nil, err
	}
	return svc.repo.QueryProjects(ctx, workspaceID)
}

func (svc *service) CreateProject(ctx context.Context, actor user.User, workspaceID string, np NewProject) (Project, error) {
	if _, err := svc.membership(ctx, actor, workspaceID); err != nil {
		return Project{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateProject(ctx, Project{
		WorkspaceID: workspaceID,
		Name:        np.Name,
		Description: np.Description,
		DueDate:     utcPtr(np.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) Project(ctx context.Context, actor user.User, id string) (Project, error) {
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if _, err = svc.membership(ctx, actor, p.WorkspaceID); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (svc *service) UpdateProject(ctx context.Context, actor user.User, id string, up NewProject) (Project, error) {
	p, err := svc.Project(ctx, actor, id)
	if err != nil {
		return Project{}, err
	}
	p.Name = up.Name
	p.Description = up.Description
	p.DueDate = utcPtr(up.DueDate)
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProject(ctx, p)
}

func (svc *service) DeleteProject(ctx context.Context, actor user.User, id string) error {
	p, err := svc.Project(ctx, actor, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteProject(ctx, p.ID)
}

func (svc *service) Tasks(ctx context.Context, actor user.User, projectID string) ([]Task, error) {
	p, err := svc.Project(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryTasks(ctx, TaskQuery{ProjectIDs: []string{p.ID}})
}

func (svc *service) CreateTask(ctx context.Context, actor user.User, projectID string, nt NewTask) (Task, error) {
	p, err := svc.Project(ctx, actor, projectID)
	if err != nil {
		return Task{}, err
	}
	now := time.Now().UTC()
	t := Task{
		ProjectID:   p.ID,
		Title:       nt.Title,
		Description: nt.Description,
		DueDate:     utcPtr(nt.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	pct := nt.CompletionPercentage
	t.setProgress(Progress{CompletionPercentage: &pct})
	return svc.repo.CreateTask(ctx, t)
}

func (svc *service) Task(ctx context.Context, actor user.User, id string) (Task, error) {
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if _, err = svc.Project(ctx, actor, t.ProjectID); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (svc *service) UpdateTask(ctx context.Context, actor user.User, id string, ut UpdateTask) (Task, error) {
	t, err := svc.Task(ctx, actor, id)
	if err != nil {
		return Task{}, err
	}
	t.Title = ut.Title
	t.Description = ut.Description
	t.DueDate = utcPtr(ut.DueDate)
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTask(ctx, t)
}

func (svc *service) UpdateTaskProgress(ctx context.Context, actor user.User, id string, p Progress) (Task, error) {
	if pct := p.CompletionPercentage; pct != nil && (*pct < 0 || *pct > maxPercentage) {
		return Task{}, core.NewValidationError(nil, core.FieldError{
			Field: "completion_percentage",
			Error: fmt.Sprintf("completion_percentage must be between 0 and %d", maxPercentage),
		})
	}
	t, err := svc.Task(ctx, actor, id)
	if err != nil {
		return Task{}, err
	}
	t.setProgress(p)
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTask(ctx, t)
}

func (svc *service) DeleteTask(ctx context.Context, actor user.User, id string) error {
	t, err := svc.Task(ctx, actor, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteTask(ctx, t.ID)
}

func (svc *service) WorkspaceTasks(ctx context.Context, actor user.User, workspaceID string, filter TaskFilter) ([]WorkspaceTask, error) {
	projects, err := svc.Projects(ctx, actor, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return []WorkspaceTask{}, nil
	}

	names := make(map[string]string, len(projects))
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
		ids = append(ids, p.ID)
	}

	tasks, err := svc.repo.QueryTasks(ctx, TaskQuery{ProjectIDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}

	wsTasks := make([]WorkspaceTask, 0, len(tasks))
	for _, t := range tasks {
		if !filter.match(t) {
			continue
		}
		wsTasks = append(wsTasks, WorkspaceTask{Task: t, WorkspaceID: workspaceID, ProjectName: names[t.ProjectID]})
	}
	sortByDueDate(wsTasks)
	return wsTasks, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
