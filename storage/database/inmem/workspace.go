package inmemdb

import (
	"context"
	"sort"

	"github.com/openstud/openstud/core/workspace"
)

type workspaceRepository struct {
	db *workspaceTables
}

var _ workspace.Repository = (*workspaceRepository)(nil)

func NewWorkspaceRepository(db *DB) workspace.Repository {
	return &workspaceRepository{db: db.workspace}
}

func (repo *workspaceRepository) CreateWorkspace(_ context.Context, ws workspace.Workspace) (workspace.Workspace, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ws.ID = newID()
	repo.db.workspaces[ws.ID] = &ws
	repo.db.members[ws.ID] = make(map[string]*workspace.Member)
	return ws, nil
}

func (repo *workspaceRepository) GetWorkspace(_ context.Context, id string) (workspace.Workspace, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ws, ok := repo.db.workspaces[id]; ok {
		return *ws, nil
	}
	return workspace.Workspace{}, workspace.ErrNotFound
}

func (repo *workspaceRepository) GetPersonalWorkspace(_ context.Context, ownerID string) (workspace.Workspace, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, ws := range repo.db.workspaces {
		if ws.OwnerID == ownerID && ws.IsPersonal() {
			return *ws, nil
		}
	}
	return workspace.Workspace{}, workspace.ErrNotFound
}

func (repo *workspaceRepository) QueryWorkspaces(_ context.Context, userID string) ([]workspace.Workspace, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	wss := make([]workspace.Workspace, 0)
	for wsID, members := range repo.db.members {
		if _, ok := members[userID]; ok {
			wss = append(wss, *repo.db.workspaces[wsID])
		}
	}
	// personal first, then by creation
	sort.Slice(wss, func(i, j int) bool {
		if wss[i].IsPersonal() != wss[j].IsPersonal() {
			return wss[i].IsPersonal()
		}
		return wss[i].CreatedAt.Before(wss[j].CreatedAt)
	})
	return wss, nil
}

// DeleteWorkspace cascades to members, projects & tasks.
func (repo *workspaceRepository) DeleteWorkspace(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.workspaces[id]; !ok {
		return workspace.ErrNotFound
	}
	for pID, p := range repo.db.projects {
		if p.WorkspaceID == id {
			repo.deleteProject(pID)
		}
	}
	delete(repo.db.members, id)
	delete(repo.db.workspaces, id)
	return nil
}

func (repo *workspaceRepository) AddMember(_ context.Context, m workspace.Member) (workspace.Member, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	members, ok := repo.db.members[m.WorkspaceID]
	if !ok {
		return workspace.Member{}, workspace.ErrNotFound
	}
	members[m.UserID] = &m
	return m, nil
}

func (repo *workspaceRepository) GetMember(_ context.Context, workspaceID, userID string) (workspace.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.db.members[workspaceID][userID]; ok {
		return *m, nil
	}
	return workspace.Member{}, workspace.ErrNotFound
}

func (repo *workspaceRepository) QueryMembers(_ context.Context, workspaceID string) ([]workspace.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members := make([]workspace.Member, 0, len(repo.db.members[workspaceID]))
	for _, m := range repo.db.members[workspaceID] {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

func (repo *workspaceRepository) RemoveMember(_ context.Context, workspaceID, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.members[workspaceID][userID]; !ok {
		return workspace.ErrNotFound
	}
	delete(repo.db.members[workspaceID], userID)
	return nil
}

func (repo *workspaceRepository) CreateProject(_ context.Context, p workspace.Project) (workspace.Project, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.workspaces[p.WorkspaceID]; !ok {
		return workspace.Project{}, workspace.ErrNotFound
	}
	p.ID = newID()
	repo.db.projects[p.ID] = &p
	return p, nil
}

func (repo *workspaceRepository) GetProject(_ context.Context, id string) (workspace.Project, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.projects[id]; ok {
		return *p, nil
	}
	return workspace.Project{}, workspace.ErrNotFound
}

func (repo *workspaceRepository) QueryProjects(_ context.Context, workspaceID string) ([]workspace.Project, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	projects := make([]workspace.Project, 0)
	for _, p := range repo.db.projects {
		if p.WorkspaceID == workspaceID {
			projects = append(projects, *p)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.Before(projects[j].CreatedAt) })
	return projects, nil
}

func (repo *workspaceRepository) UpdateProject(_ context.Context, p workspace.Project) (workspace.Project, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.projects[p.ID]; !ok {
		return workspace.Project{}, workspace.ErrNotFound
	}
	repo.db.projects[p.ID] = &p
	return p, nil
}

func (repo *workspaceRepository) DeleteProject(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.projects[id]; !ok {
		return workspace.ErrNotFound
	}
	repo.deleteProject(id)
	return nil
}

// deleteProject expects the write lock to be held.
func (repo *workspaceRepository) deleteProject(id string) {
	for tID, t := range repo.db.tasks {
		if t.ProjectID == id {
			delete(repo.db.tasks, tID)
		}
	}
	delete(repo.db.projects, id)
}

func (repo *workspaceRepository) CreateTask(_ context.Context, t workspace.Task) (workspace.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.projects[t.ProjectID]; !ok {
		return workspace.Task{}, workspace.ErrNotFound
	}
	t.ID = newID()
	repo.db.tasks[t.ID] = &t
	return t, nil
}

func (repo *workspaceRepository) GetTask(_ context.Context, id string) (workspace.Task, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return *t, nil
	}
	return workspace.Task{}, workspace.ErrNotFound
}

func (repo *workspaceRepository) QueryTasks(_ context.Context, q workspace.TaskQuery) ([]workspace.Task, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var projectIDs map[string]bool
	if len(q.ProjectIDs) > 0 {
		projectIDs = make(map[string]bool, len(q.ProjectIDs))
		for _, id := range q.ProjectIDs {
			projectIDs[id] = true
		}
	}

	tasks := make([]workspace.Task, 0)
	for _, t := range repo.db.tasks {
		if projectIDs != nil && !projectIDs[t.ProjectID] {
			continue
		}
		if q.Completed != nil && t.Completed != *q.Completed {
			continue
		}
		if !q.DueFrom.IsZero() || !q.DueTo.IsZero() {
			if t.DueDate == nil ||
				(!q.DueFrom.IsZero() && t.DueDate.Before(q.DueFrom)) ||
				(!q.DueTo.IsZero() && t.DueDate.After(q.DueTo)) {
				continue
			}
		}
		tasks = append(tasks, *t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks, nil
}

func (repo *workspaceRepository) UpdateTask(_ context.Context, t workspace.Task) (workspace.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tasks[t.ID]; !ok {
		return workspace.Task{}, workspace.ErrNotFound
	}
	repo.db.tasks[t.ID] = &t
	return t, nil
}

func (repo *workspaceRepository) DeleteTask(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tasks[id]; !ok {
		return workspace.ErrNotFound
	}
	delete(repo.db.tasks, id)
	return nil
}
