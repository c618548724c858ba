package course_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstud/openstud/core/course"
	"github.com/openstud/openstud/core/user"
	"github.com/openstud/openstud/storage/database/inmem"
)

var ctx = context.Background()

func TestService_Courses(t *testing.T) {
	svc := course.NewService(inmemdb.NewCourseRepository(inmemdb.Open()))
	alice, bob := user.User{ID: "alice"}, user.User{ID: "bob"}

	bio, err := svc.CreateCourse(ctx, alice, course.NewCourse{Name: "Biology", Code: "BIO101", Color: "#00ff00"})
	require.NoError(t, err)
	_, err = svc.CreateCourse(ctx, alice, course.NewCourse{Name: "Algebra"})
	require.NoError(t, err)
	_, err = svc.CreateCourse(ctx, bob, course.NewCourse{Name: "History"})
	require.NoError(t, err)

	courses, err := svc.Courses(ctx, alice)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "Algebra", courses[0].Name)

	_, err = svc.Course(ctx, bob, bio.ID)
	assert.Equal(t, course.ErrNotFound, err)
	_, err = svc.UpdateCourse(ctx, bob, bio.ID, course.NewCourse{Name: "Mine"})
	assert.Equal(t, course.ErrNotFound, err)

	bio, err = svc.UpdateCourse(ctx, alice, bio.ID, course.NewCourse{Name: "Biology I", Code: "BIO101"})
	require.NoError(t, err)
	assert.Equal(t, "Biology I", bio.Name)
	assert.Empty(t, bio.Color)

	assert.Equal(t, course.ErrNotFound, svc.DeleteCourse(ctx, bob, bio.ID))
	require.NoError(t, svc.DeleteCourse(ctx, alice, bio.ID))
	_, err = svc.Course(ctx, alice, bio.ID)
	assert.Equal(t, course.ErrNotFound, err)
}

func TestService_Notes(t *testing.T) {
	svc := course.NewService(inmemdb.NewCourseRepository(inmemdb.Open()))
	alice, bob := user.User{ID: "alice"}, user.User{ID: "bob"}

	c, err := svc.CreateCourse(ctx, alice, course.NewCourse{Name: "Chemistry"})
	require.NoError(t, err)

	atoms, err := svc.CreateNote(ctx, alice, c.ID, course.NewNote{Title: "Atoms", Content: "# Atoms\n\nProtons & *neutrons*."})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = svc.CreateNote(ctx, alice, c.ID, course.NewNote{Title: "Bonds"})
	require.NoError(t, err)

	_, err = svc.CreateNote(ctx, bob, c.ID, course.NewNote{Title: "Spam"})
	assert.Equal(t, course.ErrNotFound, err)

	notes, err := svc.Notes(ctx, alice, c.ID, course.NoteFilter{})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Bonds", notes[0].Title, "most recently updated first")

	notes, err = svc.Notes(ctx, alice, c.ID, course.NoteFilter{Search: " ATOM "})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, atoms.ID, notes[0].ID)

	_, err = svc.Note(ctx, bob, atoms.ID)
	assert.Equal(t, course.ErrNotFound, err)

	rendered, err := svc.RenderNote(ctx, alice, atoms.ID)
	require.NoError(t, err)
	assert.Contains(t, rendered.HTML, `<h1 id="atoms">Atoms</h1>`)
	assert.Contains(t, rendered.HTML, "<em>neutrons</em>")

	atoms, err = svc.UpdateNote(ctx, alice, atoms.ID, course.NewNote{Title: "Atoms!", Content: "updated"})
	require.NoError(t, err)
	assert.Equal(t, "updated", atoms.Content)

	require.NoError(t, svc.DeleteNote(ctx, alice, atoms.ID))
	_, err = svc.Note(ctx, alice, atoms.ID)
	assert.Equal(t, course.ErrNotFound, err)
}
