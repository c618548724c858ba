package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/openstud/openstud/core/course"
)

type courseRepository struct {
	db *courseTables
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = newID()
	repo.db.courses[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return *c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, ownerID string) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if c.OwnerID == ownerID {
			courses = append(courses, *c)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[c.ID] = &c
	return c, nil
}

// DeleteCourse cascades to notes.
func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	for nID, n := range repo.db.notes {
		if n.CourseID == id {
			delete(repo.db.notes, nID)
		}
	}
	delete(repo.db.courses, id)
	return nil
}

func (repo *courseRepository) CreateNote(_ context.Context, n course.Note) (course.Note, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[n.CourseID]; !ok {
		return course.Note{}, course.ErrNotFound
	}
	n.ID = newID()
	repo.db.notes[n.ID] = &n
	return n, nil
}

func (repo *courseRepository) GetNote(_ context.Context, id string) (course.Note, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if n, ok := repo.db.notes[id]; ok {
		return *n, nil
	}
	return course.Note{}, course.ErrNotFound
}

func (repo *courseRepository) QueryNotes(_ context.Context, courseID string, filter course.NoteFilter) ([]course.Note, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	notes := make([]course.Note, 0)
	for _, n := range repo.db.notes {
		if n.CourseID != courseID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(n.Title), search) {
			continue
		}
		notes = append(notes, *n)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].UpdatedAt.After(notes[j].UpdatedAt) })
	return notes, nil
}

func (repo *courseRepository) UpdateNote(_ context.Context, n course.Note) (course.Note, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.notes[n.ID]; !ok {
		return course.Note{}, course.ErrNotFound
	}
	repo.db.notes[n.ID] = &n
	return n, nil
}

func (repo *courseRepository) DeleteNote(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.notes[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.notes, id)
	return nil
}
