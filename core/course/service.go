package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/openstud/openstud/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("not found")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, ownerID string) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		CreateNote(ctx context.Context, n Note) (Note, error)
		GetNote(ctx context.Context, id string) (Note, error)
		// QueryNotes returns the notes of a course, most recently updated first.
		QueryNotes(ctx context.Context, courseID string, filter NoteFilter) ([]Note, error)
		UpdateNote(ctx context.Context, n Note) (Note, error)
		DeleteNote(ctx context.Context, id string) error
	}

	// Service manages the courses & notes of their owner; others get ErrNotFound.
	Service interface {
		Courses(ctx context.Context, actor user.User) ([]Course, error)
		CreateCourse(ctx context.Context, actor user.User, nc NewCourse) (Course, error)
		Course(ctx context.Context, actor user.User, id string) (Course, error)
		UpdateCourse(ctx context.Context, actor user.User, id string, uc NewCourse) (Course, error)
		DeleteCourse(ctx context.Context, actor user.User, id string) error

		Notes(ctx context.Context, actor user.User, courseID string, filter NoteFilter) ([]Note, error)
		CreateNote(ctx context.Context, actor user.User, courseID string, nn NewNote) (Note, error)
		Note(ctx context.Context, actor user.User, id string) (Note, error)
		UpdateNote(ctx context.Context, actor user.User, id string, un NewNote) (Note, error)
		DeleteNote(ctx context.Context, actor user.User, id string) error
		RenderNote(ctx context.Context, actor user.User, id string) (RenderedNote, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Courses(ctx context.Context, actor user.User) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, actor.ID)
}

func (svc *service) CreateCourse(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		OwnerID:   actor.ID,
		Name:      nc.Name,
		Code:      nc.Code,
		Color:     nc.Color,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Course(ctx context.Context, actor user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if c.OwnerID != actor.ID {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (svc *service) UpdateCourse(ctx context.Context, actor user.User, id string, uc NewCourse) (Course, error) {
	c, err := svc.Course(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	c.Name = uc.Name
	c.Code = uc.Code
	c.Color = uc.Color
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *service) DeleteCourse(ctx context.Context, actor user.User, id string) error {
	c, err := svc.Course(ctx, actor, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteCourse(ctx, c.ID)
}

func (svc *service) Notes(ctx context.Context, actor user.User, courseID string, filter NoteFilter) ([]Note, error) {
	c, err := svc.Course(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	filter.Clean()
	return svc.repo.QueryNotes(ctx, c.ID, filter)
}

func (svc *service) CreateNote(ctx context.Context, actor user.User, courseID string, nn NewNote) (Note, error) {
	c, err := svc.Course(ctx, actor, courseID)
	if err != nil {
		return Note{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateNote(ctx, Note{
		CourseID:  c.ID,
		Title:     nn.Title,
		Content:   nn.Content,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Note(ctx context.Context, actor user.User, id string) (Note, error) {
	n, err := svc.repo.GetNote(ctx, id)
	if err != nil {
		return Note{}, err
	}
	if _, err = svc.Course(ctx, actor, n.CourseID); err != nil {
		return Note{}, err
	}
	return n, nil
}

func (svc *service) UpdateNote(ctx context.Context, actor user.User, id string, un NewNote) (Note, error) {
	n, err := svc.Note(ctx, actor, id)
	if err != nil {
		return Note{}, err
	}
	n.Title = un.Title
	n.Content = un.Content
	n.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateNote(ctx, n)
}

func (svc *service) DeleteNote(ctx context.Context, actor user.User, id string) error {
	n, err := svc.Note(ctx, actor, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteNote(ctx, n.ID)
}

func (svc *service) RenderNote(ctx context.Context, actor user.User, id string) (RenderedNote, error) {
	n, err := svc.Note(ctx, actor, id)
	if err != nil {
		return RenderedNote{}, err
	}
	return RenderedNote{Note: n, HTML: RenderMarkdown(n.Content)}, nil
}
