package settings

import (
	"strings"

	"github.com/google/uuid"

	"github.com/timetable-lab/console-service/internal/models"
)

// Category is one live flexible category: a named pool of professor-quota
// rows assigned to a level's course list. Rows stay editable in place; rows
// with an empty name or a non-positive quota are dropped at collection time,
// not on edit.
type Category struct {
	ID         string
	Level      string
	Name       string
	Professors []models.ProfessorQuota
	Courses    []string
}

// CategoryModel owns the ordered list of flexible categories.
type CategoryModel struct {
	items []*Category
}

// NewCategoryModel returns an empty category model.
func NewCategoryModel() *CategoryModel {
	return &CategoryModel{}
}

// Add creates a category with a generated id and appends it.
func (m *CategoryModel) Add(level, name string) *Category {
	c := &Category{ID: uuid.NewString(), Level: level, Name: name}
	m.items = append(m.items, c)
	return c
}

// Remove deletes the category by id. Removal is immediate; there is no
// confirmation step. Unknown ids are ignored.
func (m *CategoryModel) Remove(id string) {
	for i, c := range m.items {
		if c.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return
		}
	}
}

// Get returns the category by id, or nil.
func (m *CategoryModel) Get(id string) *Category {
	for _, c := range m.items {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// List returns the categories in order.
func (m *CategoryModel) List() []*Category {
	return m.items
}

// Reset discards all categories.
func (m *CategoryModel) Reset() {
	m.items = nil
}

// AddProfessorRow appends a professor-quota row. No cap is enforced.
func (c *Category) AddProfessorRow(name string, quota int) {
	c.Professors = append(c.Professors, models.ProfessorQuota{Name: name, Quota: quota})
}

// RemoveProfessorRow deletes the row at index; out-of-range indexes are
// ignored.
func (c *Category) RemoveProfessorRow(i int) {
	if i < 0 || i >= len(c.Professors) {
		return
	}
	c.Professors = append(c.Professors[:i], c.Professors[i+1:]...)
}

// SetCoursesText replaces the course list from newline-delimited free text,
// trimming blank lines.
func (c *Category) SetCoursesText(text string) {
	c.Courses = c.Courses[:0]
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			c.Courses = append(c.Courses, s)
		}
	}
}
