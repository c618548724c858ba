package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openstud/openstud/core"
)

type Course struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Note struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`    // markdown
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// RenderedNote is a Note along with its HTML rendition.
type RenderedNote struct {
	Note
	HTML string `json:"html"`
}

// NewCourse is used both to create & to update a Course.
type NewCourse struct {
	Name  string `json:"name" validate:"required,notblank,max=100"`
	Code  string `json:"code" validate:"max=20"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = core.CleanString(nc.Code)
	nc.Color = core.CleanString(nc.Color, true /* lower */)
	return validate.Struct(nc)
}

// NewNote is used both to create & to update a Note.
type NewNote struct {
	Title   string `json:"title" validate:"required,notblank,max=200"`
	Content string `json:"content" validate:"max=100000"`
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	return validate.Struct(nn)
}

type NoteFilter struct {
	Search string `query:"search"` // case-insensitive match on the title
}

func (f *NoteFilter) Clean() {
	f.Search = core.CleanString(f.Search)
}
