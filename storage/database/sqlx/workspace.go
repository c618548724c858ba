package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/workspace"
)

var (
	workspaceColumns = []string{"id", "name", "kind", "owner_id", "created_at"}
	memberColumns    = []string{"workspace_id", "user_id", "role", "joined_at"}
	projectColumns   = []string{"id", "workspace_id", "name", "description", "due_date", "created_at", "updated_at"}
	taskColumns      = []string{
		"id", "project_id", "title", "description", "due_date",
		"completion_percentage", "completed", "created_at", "updated_at",
	}
)

type (
	workspaceRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		Kind      string    `db:"kind"`
		OwnerID   string    `db:"owner_id"`
		CreatedAt time.Time `db:"created_at"`
	}

	memberRow struct {
		WorkspaceID string    `db:"workspace_id"`
		UserID      string    `db:"user_id"`
		Role        string    `db:"role"`
		JoinedAt    time.Time `db:"joined_at"`
	}

	projectRow struct {
		ID          string    `db:"id"`
		WorkspaceID string    `db:"workspace_id"`
		Name        string    `db:"name"`
		Description string    `db:"description"`
		DueDate     null.Time `db:"due_date"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	taskRow struct {
		ID                   string    `db:"id"`
		ProjectID            string    `db:"project_id"`
		Title                string    `db:"title"`
		Description          string    `db:"description"`
		DueDate              null.Time `db:"due_date"`
		CompletionPercentage int       `db:"completion_percentage"`
		Completed            bool      `db:"completed"`
		CreatedAt            time.Time `db:"created_at"`
		UpdatedAt            time.Time `db:"updated_at"`
	}
)

func (r workspaceRow) toWorkspace() workspace.Workspace {
	return workspace.Workspace{
		ID:        r.ID,
		Name:      r.Name,
		Kind:      workspace.Kind(r.Kind),
		OwnerID:   r.OwnerID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r memberRow) toMember() workspace.Member {
	return workspace.Member{
		WorkspaceID: r.WorkspaceID,
		UserID:      r.UserID,
		Role:        workspace.MemberRole(r.Role),
		JoinedAt:    r.JoinedAt.UTC(),
	}
}

func (r projectRow) toProject() workspace.Project {
	return workspace.Project{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		Name:        r.Name,
		Description: r.Description,
		DueDate:     timePtr(r.DueDate),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r taskRow) toTask() workspace.Task {
	return workspace.Task{
		ID:                   r.ID,
		ProjectID:            r.ProjectID,
		Title:                r.Title,
		Description:          r.Description,
		DueDate:              timePtr(r.DueDate),
		CompletionPercentage: r.CompletionPercentage,
		Completed:            r.Completed,
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

func nullTime(t *time.Time) null.Time {
	return null.TimeFromPtr(t)
}

type workspaceRepository struct {
	db core.DBExecutor
}

var _ workspace.Repository = (*workspaceRepository)(nil)

func NewWorkspaceRepository(db core.DBExecutor) workspace.Repository {
	return &workspaceRepository{db: db}
}

// get runs a single row query; sql.ErrNoRows and malformed keys become workspace.ErrNotFound.
func (repo *workspaceRepository) get(ctx context.Context, dest interface{}, b sq.SelectBuilder) error {
	q, args, err := b.Limit(1).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = sqlx.GetContext(ctx, repo.db, dest, q, args...); err != nil {
		if isNotFound(err) {
			return workspace.ErrNotFound
		}
		return errors.Wrap(err, "selecting row")
	}
	return nil
}

func (repo *workspaceRepository) selectAll(ctx context.Context, dest interface{}, b sq.SelectBuilder) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = sqlx.SelectContext(ctx, repo.db, dest, q, args...); err != nil {
		if isNotFound(err) {
			return workspace.ErrNotFound
		}
		return errors.Wrap(err, "selecting rows")
	}
	return nil
}

// exec runs a write; affecting no rows is workspace.ErrNotFound.
func (repo *workspaceRepository) exec(ctx context.Context, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isNotFound(err) {
			return workspace.ErrNotFound
		}
		return errors.Wrap(err, "executing statement")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return workspace.ErrNotFound
	}
	return nil
}

func (repo *workspaceRepository) CreateWorkspace(ctx context.Context, ws workspace.Workspace) (workspace.Workspace, error) {
	ws.ID = newID()
	err := repo.exec(ctx, psql.Insert("workspaces").
		Columns(workspaceColumns...).
		Values(ws.ID, ws.Name, string(ws.Kind), ws.OwnerID, ws.CreatedAt))
	if err != nil {
		return workspace.Workspace{}, err
	}
	return ws, nil
}

func (repo *workspaceRepository) GetWorkspace(ctx context.Context, id string) (workspace.Workspace, error) {
	var row workspaceRow
	if err := repo.get(ctx, &row, psql.Select(workspaceColumns...).From("workspaces").Where(sq.Eq{"id": id})); err != nil {
		return workspace.Workspace{}, err
	}
	return row.toWorkspace(), nil
}

func (repo *workspaceRepository) GetPersonalWorkspace(ctx context.Context, ownerID string) (workspace.Workspace, error) {
	var row workspaceRow
	b := psql.Select(workspaceColumns...).From("workspaces").
		Where(sq.Eq{"owner_id": ownerID, "kind": string(workspace.KindPersonal)})
	if err := repo.get(ctx, &row, b); err != nil {
		return workspace.Workspace{}, err
	}
	return row.toWorkspace(), nil
}

func (repo *workspaceRepository) QueryWorkspaces(ctx context.Context, userID string) ([]workspace.Workspace, error) {
	cols := make([]string, 0, len(workspaceColumns))
	for _, c := range workspaceColumns {
		cols = append(cols, "w."+c)
	}
	var rows []workspaceRow
	b := psql.Select(cols...).
		From("workspaces w").
		Join("workspace_members m ON m.workspace_id = w.id").
		Where(sq.Eq{"m.user_id": userID}).
		OrderBy("w.kind = 'personal' DESC", "w.created_at ASC")
	if err := repo.selectAll(ctx, &rows, b); err != nil {
		return nil, err
	}
	wss := make([]workspace.Workspace, 0, len(rows))
	for _, r := range rows {
		wss = append(wss, r.toWorkspace())
	}
	return wss, nil
}

// DeleteWorkspace relies on ON DELETE CASCADE for members, projects & tasks.
func (repo *workspaceRepository) DeleteWorkspace(ctx context.Context, id string) error {
	return repo.exec(ctx, psql.Delete("workspaces").Where(sq.Eq{"id": id}))
}

func (repo *workspaceRepository) AddMember(ctx context.Context, m workspace.Member) (workspace.Member, error) {
	err := repo.exec(ctx, psql.Insert("workspace_members").
		Columns(memberColumns...).
		Values(m.WorkspaceID, m.UserID, string(m.Role), m.JoinedAt))
	if err != nil {
		return workspace.Member{}, err
	}
	return m, nil
}

func (repo *workspaceRepository) GetMember(ctx context.Context, workspaceID, userID string) (workspace.Member, error) {
	var row memberRow
	b := psql.Select(memberColumns...).From("workspace_members").
		Where(sq.Eq{"workspace_id": workspaceID, "user_id": userID})
	if err := repo.get(ctx, &row, b); err != nil {
		return workspace.Member{}, err
	}
	return row.toMember(), nil
}

func (repo *workspaceRepository) QueryMembers(ctx context.Context, workspaceID string) ([]workspace.Member, error) {
	var rows []memberRow
	b := psql.Select(memberColumns...).From("workspace_members").
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("joined_at ASC")
	if err := repo.selectAll(ctx, &rows, b); err != nil {
		return nil, err
	}
	members := make([]workspace.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.toMember())
	}
	return members, nil
}

func (repo *workspaceRepository) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	return repo.exec(ctx, psql.Delete("workspace_members").Where(sq.Eq{"workspace_id": workspaceID, "user_id": userID}))
}

func (repo *workspaceRepository) CreateProject(ctx context.Context, p workspace.Project) (workspace.Project, error) {
	p.ID = newID()
	err := repo.exec(ctx, psql.Insert("projects").
		Columns(projectColumns...).
		Values(p.ID, p.WorkspaceID, p.Name, p.Description, nullTime(p.DueDate), p.CreatedAt, p.UpdatedAt))
	if err != nil {
		return workspace.Project{}, err
	}
	return p, nil
}

func (repo *workspaceRepository) GetProject(ctx context.Context, id string) (workspace.Project, error) {
	var row projectRow
	if err := repo.get(ctx, &row, psql.Select(projectColumns...).From("projects").Where(sq.Eq{"id": id})); err != nil {
		return workspace.Project{}, err
	}
	return row.toProject(), nil
}

func (repo *workspaceRepository) QueryProjects(ctx context.Context, workspaceID string) ([]workspace.Project, error) {
	var rows []projectRow
	b := psql.Select(projectColumns...).From("projects").
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("created_at ASC")
	if err := repo.selectAll(ctx, &rows, b); err != nil {
		return nil, err
	}
	projects := make([]workspace.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, r.toProject())
	}
	return projects, nil
}

func (repo *workspaceRepository) UpdateProject(ctx context.Context, p workspace.Project) (workspace.Project, error) {
	err := repo.exec(ctx, psql.Update("projects").
		SetMap(map[string]interface{}{
			"name":        p.Name,
			"description": p.Description,
			"due_date":    nullTime(p.DueDate),
			"updated_at":  p.UpdatedAt,
		}).
		Where(sq.Eq{"id": p.ID}))
	if err != nil {
		return workspace.Project{}, err
	}
	return p, nil
}

func (repo *workspaceRepository) DeleteProject(ctx context.Context, id string) error {
	return repo.exec(ctx, psql.Delete("projects").Where(sq.Eq{"id": id}))
}

func (repo *workspaceRepository) CreateTask(ctx context.Context, t workspace.Task) (workspace.Task, error) {
	t.ID = newID()
	err := repo.exec(ctx, psql.Insert("tasks").
		Columns(taskColumns...).
		Values(t.ID, t.ProjectID, t.Title, t.Description, nullTime(t.DueDate),
			t.CompletionPercentage, t.Completed, t.CreatedAt, t.UpdatedAt))
	if err != nil {
		return workspace.Task{}, err
	}
	return t, nil
}

func (repo *workspaceRepository) GetTask(ctx context.Context, id string) (workspace.Task, error) {
	var row taskRow
	if err := repo.get(ctx, &row, psql.Select(taskColumns...).From("tasks").Where(sq.Eq{"id": id})); err != nil {
		return workspace.Task{}, err
	}
	return row.toTask(), nil
}

func (repo *workspaceRepository) QueryTasks(ctx context.Context, tq workspace.TaskQuery) ([]workspace.Task, error) {
	where := sq.And{}
	if len(tq.ProjectIDs) > 0 {
		where = append(where, sq.Eq{"project_id": tq.ProjectIDs})
	}
	if tq.Completed != nil {
		where = append(where, sq.Eq{"completed": *tq.Completed})
	}
	if !tq.DueFrom.IsZero() {
		where = append(where, sq.GtOrEq{"due_date": tq.DueFrom})
	}
	if !tq.DueTo.IsZero() {
		where = append(where, sq.LtOrEq{"due_date": tq.DueTo})
	}

	b := psql.Select(taskColumns...).From("tasks").OrderBy("created_at ASC")
	if len(where) > 0 {
		b = b.Where(where)
	}
	var rows []taskRow
	if err := repo.selectAll(ctx, &rows, b); err != nil {
		return nil, err
	}
	tasks := make([]workspace.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toTask())
	}
	return tasks, nil
}

func (repo *workspaceRepository) UpdateTask(ctx context.Context, t workspace.Task) (workspace.Task, error) {
	err := repo.exec(ctx, psql.Update("tasks").
		SetMap(map[string]interface{}{
			"title":                 t.Title,
			"description":           t.Description,
			"due_date":              nullTime(t.DueDate),
			"completion_percentage": t.CompletionPercentage,
			"completed":             t.Completed,
			"updated_at":            t.UpdatedAt,
		}).
		Where(sq.Eq{"id": t.ID}))
	if err != nil {
		return workspace.Task{}, err
	}
	return t, nil
}

func (repo *workspaceRepository) DeleteTask(ctx context.Context, id string) error {
	return repo.exec(ctx, psql.Delete("tasks").Where(sq.Eq{"id": id}))
}
