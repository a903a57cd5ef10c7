package schedule

import (
	"errors"
	"fmt"
	"sort"

	"github.com/timetable-lab/console-service/internal/models"
)

var (
	// ErrDayExists is returned when a day with the same name is already part
	// of the structure. Canonical serialization keys by day name; allowing a
	// duplicate would silently collapse one day's slots.
	ErrDayExists = errors.New("schedule: day already exists")
	// ErrDayNotFound is returned for operations on an unknown day.
	ErrDayNotFound = errors.New("schedule: day not found")
	// ErrSlotNotFound is returned for operations on an unknown time range.
	ErrSlotNotFound = errors.New("schedule: time slot not found")
)

// weekdayOrder is the canonical day sequence used when rehydrating a saved
// structure.
var weekdayOrder = []string{"Saturday", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

type dayEntry struct {
	name  string
	slots models.DaySlots
}

// Model is the live day -> time-range -> slot-spec structure the operator
// builds before launching a generation. It is mutated only through the
// explicit builder methods and fully replaced by Deserialize.
type Model struct {
	days []*dayEntry
}

// NewModel returns an empty structure model.
func NewModel() *Model {
	return &Model{}
}

// AddDay appends a new empty day entry.
func (m *Model) AddDay(name string) error {
	if name == "" {
		return fmt.Errorf("schedule: empty day name")
	}
	if m.find(name) != nil {
		return ErrDayExists
	}
	m.days = append(m.days, &dayEntry{name: name, slots: models.DaySlots{}})
	return nil
}

// Days returns the day names in their current order.
func (m *Model) Days() []string {
	names := make([]string, 0, len(m.days))
	for _, d := range m.days {
		names = append(names, d.name)
	}
	return names
}

// AddSlot inserts a fresh slot spec for the time range, overwriting any
// existing spec under the same key.
func (m *Model) AddSlot(day, timeRange string) error {
	d := m.find(day)
	if d == nil {
		return ErrDayNotFound
	}
	d.slots[timeRange] = models.SlotSpec{Rules: []models.RoomRule{}}
	return nil
}

// AddRule appends a room rule to the slot's ordered rule list.
func (m *Model) AddRule(day, timeRange string, rule models.RoomRule) error {
	d := m.find(day)
	if d == nil {
		return ErrDayNotFound
	}
	spec, ok := d.slots[timeRange]
	if !ok {
		return ErrSlotNotFound
	}
	spec.Rules = append(spec.Rules, rule)
	d.slots[timeRange] = spec
	return nil
}

// SetPinnedCourse pins a course to the slot, or clears the pin when id is nil.
func (m *Model) SetPinnedCourse(day, timeRange string, courseID *int) error {
	d := m.find(day)
	if d == nil {
		return ErrDayNotFound
	}
	spec, ok := d.slots[timeRange]
	if !ok {
		return ErrSlotNotFound
	}
	spec.PinnedCourseID = courseID
	d.slots[timeRange] = spec
	return nil
}

// DuplicateDay deep-clones all of a day's slots, rules and pinned courses
// into a new day entry. Day names must stay unique, so the copy gets the
// first free derived name ("<src> (2)", "<src> (3)", ...). The new name is
// returned. Mutations of the copy never reach the source day.
func (m *Model) DuplicateDay(source string) (string, error) {
	d := m.find(source)
	if d == nil {
		return "", ErrDayNotFound
	}
	name := ""
	for n := 2; ; n++ {
		name = fmt.Sprintf("%s (%d)", source, n)
		if m.find(name) == nil {
			break
		}
	}
	clone := &dayEntry{name: name, slots: make(models.DaySlots, len(d.slots))}
	for tr, spec := range d.slots {
		clone.slots[tr] = cloneSpec(spec)
	}
	m.days = append(m.days, clone)
	return name, nil
}

// HasAnySlot reports whether at least one day contains at least one slot.
// Generation is refused locally when it does not.
func (m *Model) HasAnySlot() bool {
	for _, d := range m.days {
		if len(d.slots) > 0 {
			return true
		}
	}
	return false
}

// Serialize produces the canonical structure. Rules with an empty level set
// are not persisted. The returned maps are independent copies of the model.
func (m *Model) Serialize() models.ScheduleStructure {
	out := make(models.ScheduleStructure, len(m.days))
	for _, d := range m.days {
		slots := make(models.DaySlots, len(d.slots))
		for tr, spec := range d.slots {
			c := cloneSpec(spec)
			kept := c.Rules[:0]
			for _, r := range c.Rules {
				if len(r.Levels) > 0 {
					kept = append(kept, r)
				}
			}
			c.Rules = kept
			slots[tr] = c
		}
		out[d.name] = slots
	}
	return out
}

// Deserialize replaces the whole model with the given structure, ordering
// days by the canonical weekday sequence. Unknown day names sort after the
// known ones, alphabetically.
func (m *Model) Deserialize(structure models.ScheduleStructure) {
	names := make([]string, 0, len(structure))
	for name := range structure {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := weekdayRank(names[i]), weekdayRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	m.days = m.days[:0]
	for _, name := range names {
		entry := &dayEntry{name: name, slots: make(models.DaySlots, len(structure[name]))}
		for tr, spec := range structure[name] {
			entry.slots[tr] = cloneSpec(spec)
		}
		m.days = append(m.days, entry)
	}
}

// Reset discards all days.
func (m *Model) Reset() {
	m.days = nil
}

func (m *Model) find(name string) *dayEntry {
	for _, d := range m.days {
		if d.name == name {
			return d
		}
	}
	return nil
}

func weekdayRank(name string) int {
	for i, d := range weekdayOrder {
		if d == name {
			return i
		}
	}
	return len(weekdayOrder)
}

func cloneSpec(spec models.SlotSpec) models.SlotSpec {
	out := models.SlotSpec{Rules: make([]models.RoomRule, 0, len(spec.Rules))}
	for _, r := range spec.Rules {
		levels := make([]string, len(r.Levels))
		copy(levels, r.Levels)
		out.Rules = append(out.Rules, models.RoomRule{RuleType: r.RuleType, Levels: levels, HallName: r.HallName})
	}
	if spec.PinnedCourseID != nil {
		id := *spec.PinnedCourseID
		out.PinnedCourseID = &id
	}
	return out
}
