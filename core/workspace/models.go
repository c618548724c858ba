package workspace

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openstud/openstud/core"
)

type Kind string

const (
	KindPersonal Kind = "personal"
	KindTeam     Kind = "team"
)

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

const maxPercentage = 100

type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (ws Workspace) IsPersonal() bool { return ws.Kind == KindPersonal }

type Member struct {
	WorkspaceID string     `json:"workspace_id"`
	UserID      string     `json:"user_id"`
	Role        MemberRole `json:"role"`
	JoinedAt    time.Time  `json:"joined_at"` // UTC
}

func (m Member) IsOwner() bool { return m.Role == RoleOwner }

type Project struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

type Task struct {
	ID                   string     `json:"id"`
	ProjectID            string     `json:"project_id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	DueDate              *time.Time `json:"due_date"`
	CompletionPercentage int        `json:"completion_percentage"`
	Completed            bool       `json:"completed"`
	CreatedAt            time.Time  `json:"created_at"` // UTC
	UpdatedAt            time.Time  `json:"updated_at"` // UTC
}

// setProgress keeps Completed consistent with CompletionPercentage.
// An explicit completed flag wins: true means 100%, false drops a 100% task back to 0%.
func (t *Task) setProgress(p Progress) {
	if p.CompletionPercentage != nil {
		t.CompletionPercentage = *p.CompletionPercentage
		t.Completed = t.CompletionPercentage == maxPercentage
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
		switch {
		case t.Completed:
			t.CompletionPercentage = maxPercentage
		case t.CompletionPercentage == maxPercentage:
			t.CompletionPercentage = 0
		}
	}
}

// WorkspaceTask is a Task tagged with the project it belongs to.
type WorkspaceTask struct {
	Task
	WorkspaceID string `json:"workspace_id"`
	ProjectName string `json:"project_name"`
}

// Progress is a partial update of a Task's completion state.
type Progress struct {
	CompletionPercentage *int  `json:"completion_percentage" validate:"omitempty,min=0,max=100"`
	Completed            *bool `json:"completed"`
}

func (p Progress) Validate(validate *validator.Validate) error {
	if p.CompletionPercentage == nil && p.Completed == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "completion_percentage", Error: "one of completion_percentage or completed is required"})
	}
	return validate.Struct(p)
}

type NewWorkspace struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

func (nw *NewWorkspace) Validate(validate *validator.Validate) error {
	nw.Name = core.CleanString(nw.Name)
	return validate.Struct(nw)
}

type NewMember struct {
	Username string `json:"username" validate:"required"` // username or email
}

type NewProject struct {
	Name        string     `json:"name" validate:"required,notblank,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	DueDate     *time.Time `json:"due_date"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	return validate.Struct(np)
}

type NewTask struct {
	Title                string     `json:"title" validate:"required,notblank,max=200"`
	Description          string     `json:"description" validate:"max=5000"`
	DueDate              *time.Time `json:"due_date"`
	CompletionPercentage int        `json:"completion_percentage" validate:"min=0,max=100"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	return validate.Struct(nt)
}

// UpdateTask replaces the editable attributes of a Task. Progress is set with Service.UpdateTaskProgress.
type UpdateTask struct {
	Title       string     `json:"title" validate:"required,notblank,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	DueDate     *time.Time `json:"due_date"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	ut.Title = core.CleanString(ut.Title)
	return validate.Struct(ut)
}

type TaskFilter struct {
	Completed *bool     `query:"completed"`
	DueFrom   time.Time `query:"due_from"`
	DueTo     time.Time `query:"due_to"`
}

func (f TaskFilter) match(t Task) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.DueFrom.IsZero() && f.DueTo.IsZero() {
		return true
	}
	if t.DueDate == nil {
		return false
	}
	if !f.DueFrom.IsZero() && t.DueDate.Before(f.DueFrom) {
		return false
	}
	if !f.DueTo.IsZero() && t.DueDate.After(f.DueTo) {
		return false
	}
	return true
}

// TaskQuery is used by repositories; empty fields are ignored.
type TaskQuery struct {
	ProjectIDs []string
	Completed  *bool
	DueFrom    time.Time
	DueTo      time.Time
}

// sortByDueDate orders tasks by due date, undated tasks last.
func sortByDueDate(tasks []WorkspaceTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		di, dj := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case di == nil && dj == nil:
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		case di == nil:
			return false
		case dj == nil:
			return true
		case !di.Equal(*dj):
			return di.Before(*dj)
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
