package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/course"
)

var (
	courseColumns = []string{"id", "owner_id", "name", "code", "color", "created_at", "updated_at"}
	noteColumns   = []string{"id", "course_id", "title", "content", "created_at", "updated_at"}
)

type (
	courseRow struct {
		ID        string    `db:"id"`
		OwnerID   string    `db:"owner_id"`
		Name      string    `db:"name"`
		Code      string    `db:"code"`
		Color     string    `db:"color"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	noteRow struct {
		ID        string    `db:"id"`
		CourseID  string    `db:"course_id"`
		Title     string    `db:"title"`
		Content   string    `db:"content"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Code:      r.Code,
		Color:     r.Color,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r noteRow) toNote() course.Note {
	return course.Note{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Title:     r.Title,
		Content:   r.Content,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	db core.DBExecutor
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db core.DBExecutor) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) exec(ctx context.Context, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isNotFound(err) {
			return course.ErrNotFound
		}
		return errors.Wrap(err, "executing statement")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	c.ID = newID()
	err := repo.exec(ctx, psql.Insert("courses").
		Columns(courseColumns...).
		Values(c.ID, c.OwnerID, c.Name, c.Code, c.Color, c.CreatedAt, c.UpdatedAt))
	if err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	q, args, err := psql.Select(courseColumns...).From("courses").Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}
	var row courseRow
	if err = sqlx.GetContext(ctx, repo.db, &row, q, args...); err != nil {
		if isNotFound(err) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "selecting course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, ownerID string) ([]course.Course, error) {
	q, args, err := psql.Select(courseColumns...).From("courses").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []courseRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	err := repo.exec(ctx, psql.Update("courses").
		SetMap(map[string]interface{}{
			"name":       c.Name,
			"code":       c.Code,
			"color":      c.Color,
			"updated_at": c.UpdatedAt,
		}).
		Where(sq.Eq{"id": c.ID}))
	if err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	return repo.exec(ctx, psql.Delete("courses").Where(sq.Eq{"id": id}))
}

func (repo *courseRepository) CreateNote(ctx context.Context, n course.Note) (course.Note, error) {
	n.ID = newID()
	err := repo.exec(ctx, psql.Insert("notes").
		Columns(noteColumns...).
		Values(n.ID, n.CourseID, n.Title, n.Content, n.CreatedAt, n.UpdatedAt))
	if err != nil {
		return course.Note{}, err
	}
	return n, nil
}

func (repo *courseRepository) GetNote(ctx context.Context, id string) (course.Note, error) {
	q, args, err := psql.Select(noteColumns...).From("notes").Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return course.Note{}, errors.Wrap(err, "building query")
	}
	var row noteRow
	if err = sqlx.GetContext(ctx, repo.db, &row, q, args...); err != nil {
		if isNotFound(err) {
			return course.Note{}, course.ErrNotFound
		}
		return course.Note{}, errors.Wrap(err, "selecting note")
	}
	return row.toNote(), nil
}

func (repo *courseRepository) QueryNotes(ctx context.Context, courseID string, filter course.NoteFilter) ([]course.Note, error) {
	where := sq.And{sq.Eq{"course_id": courseID}}
	if filter.Search != "" {
		where = append(where, sq.ILike{"title": "%" + filter.Search + "%"})
	}
	q, args, err := psql.Select(noteColumns...).From("notes").
		Where(where).
		OrderBy("updated_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []noteRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		if isNotFound(err) {
			return nil, course.ErrNotFound
		}
		return nil, errors.Wrap(err, "selecting notes")
	}
	notes := make([]course.Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, r.toNote())
	}
	return notes, nil
}

func (repo *courseRepository) UpdateNote(ctx context.Context, n course.Note) (course.Note, error) {
	err := repo.exec(ctx, psql.Update("notes").
		SetMap(map[string]interface{}{
			"title":      n.Title,
			"content":    n.Content,
			"updated_at": n.UpdatedAt,
		}).
		Where(sq.Eq{"id": n.ID}))
	if err != nil {
		return course.Note{}, err
	}
	return n, nil
}

func (repo *courseRepository) DeleteNote(ctx context.Context, id string) error {
	return repo.exec(ctx, psql.Delete("notes").Where(sq.Eq{"id": id}))
}
