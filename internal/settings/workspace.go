package settings

import (
	"sort"
	"sync"

	"github.com/timetable-lab/console-service/internal/models"
	"github.com/timetable-lab/console-service/internal/schedule"
)

// Workspace is the operator's live editing state: the schedule structure,
// teacher constraints, flexible categories and algorithm settings, plus the
// few global selections that sit outside the four models. All four models are
// created empty at startup and fully replaced, never merged, on apply/reset.
//
// Workspace methods do not lock; callers hold the mutex across every
// read-modify-collect sequence.
type Workspace struct {
	Mu sync.Mutex

	Schedule    *schedule.Model
	Constraints *ConstraintModel
	Categories  *CategoryModel
	Algorithm   *AlgorithmModel

	RestPeriods          models.RestPeriods
	LevelLargeRooms      map[string]string
	SmallRoomAssignments map[string]string
}

// NewWorkspace returns an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{
		Schedule:             schedule.NewModel(),
		Constraints:          NewConstraintModel(),
		Categories:           NewCategoryModel(),
		Algorithm:            NewAlgorithmModel(),
		LevelLargeRooms:      make(map[string]string),
		SmallRoomAssignments: make(map[string]string),
	}
}

// AssignLevelLargeRoom records the large room reserved for a level. An empty
// room clears the assignment; empty selections never reach the collected
// record.
func (w *Workspace) AssignLevelLargeRoom(level, room string) {
	if room == "" {
		delete(w.LevelLargeRooms, level)
		return
	}
	w.LevelLargeRooms[level] = room
}

// AssignSmallRoom pins a course to a specific small room. Rows missing either
// field are dropped rather than stored.
func (w *Workspace) AssignSmallRoom(course, room string) {
	if course == "" {
		return
	}
	if room == "" {
		delete(w.SmallRoomAssignments, course)
		return
	}
	w.SmallRoomAssignments[course] = room
}

// Collect collapses the live models into one canonical settings record.
func (w *Workspace) Collect() models.CanonicalSettings {
	p5 := models.PhaseFiveSettings{
		RestPeriods:                  w.RestPeriods,
		ManualDays:                   map[string][]string{},
		SpecialConstraints:           map[string]map[string]any{},
		SaturdayTeachers:             []string{},
		LastSlotRestrictions:         map[string]string{},
		LevelSpecificLargeRooms:      map[string]string{},
		SpecificSmallRoomAssignments: map[string]string{},
	}

	for teacher, row := range w.Constraints.rows {
		if len(row.manualDays) > 0 {
			days := make([]string, 0, len(row.manualDays))
			for d := range row.manualDays {
				days = append(days, d)
			}
			sort.Strings(days)
			p5.ManualDays[teacher] = days
		}

		sc := map[string]any{}
		for key := range row.special {
			sc[key] = true
		}
		sc["distribution_rule"] = row.rule
		p5.SpecialConstraints[teacher] = sc
	}

	for teacher := range w.Constraints.saturday {
		p5.SaturdayTeachers = append(p5.SaturdayTeachers, teacher)
	}
	sort.Strings(p5.SaturdayTeachers)

	for teacher, v := range w.Constraints.lastSlot {
		p5.LastSlotRestrictions[teacher] = v
	}
	for level, room := range w.LevelLargeRooms {
		if level != "" && room != "" {
			p5.LevelSpecificLargeRooms[level] = room
		}
	}
	for course, room := range w.SmallRoomAssignments {
		if course != "" && room != "" {
			p5.SpecificSmallRoomAssignments[course] = room
		}
	}

	cats := make([]models.FlexibleCategory, 0, len(w.Categories.items))
	for _, c := range w.Categories.items {
		out := models.FlexibleCategory{
			ID:         c.ID,
			Level:      c.Level,
			Name:       c.Name,
			Professors: []models.ProfessorQuota{},
			Courses:    append([]string{}, c.Courses...),
		}
		// Silent filter: incomplete professor rows are excluded, not errors.
		for _, p := range c.Professors {
			if p.Name != "" && p.Quota > 0 {
				out.Professors = append(out.Professors, p)
			}
		}
		cats = append(cats, out)
	}

	return models.CanonicalSettings{
		ScheduleStructure:  w.Schedule.Serialize(),
		PhaseFive:          p5,
		FlexibleCategories: cats,
		Algorithm:          w.Algorithm.Current(),
	}
}

// Apply replaces the whole workspace with the incoming record. It is
// destructive-then-rebuild: every affected region is cleared before the
// record is applied, so callers never diff old against new state. Dependent
// state rebuilds in a fixed order (structure, constraints, room assignments,
// categories, algorithm) instead of relying on timing.
func (w *Workspace) Apply(rec models.CanonicalSettings) {
	w.Schedule.Deserialize(rec.ScheduleStructure)

	w.Constraints.Reset()
	p5 := rec.PhaseFive
	w.RestPeriods = p5.RestPeriods

	for teacher, sc := range p5.SpecialConstraints {
		row := w.Constraints.row(teacher)
		for key, v := range sc {
			if key == "distribution_rule" {
				if s, ok := v.(string); ok && s != "" {
					row.rule = s
				}
				continue
			}
			if b, ok := v.(bool); ok && b {
				row.special[key] = true
			}
		}
	}
	for teacher, days := range p5.ManualDays {
		for _, d := range days {
			w.Constraints.SetManualDay(teacher, d, true)
		}
	}
	for _, teacher := range p5.SaturdayTeachers {
		w.Constraints.SetSaturday(teacher, true)
	}
	for teacher, v := range p5.LastSlotRestrictions {
		w.Constraints.SetLastSlotRestriction(teacher, v)
	}

	w.LevelLargeRooms = make(map[string]string, len(p5.LevelSpecificLargeRooms))
	for level, room := range p5.LevelSpecificLargeRooms {
		w.AssignLevelLargeRoom(level, room)
	}
	w.SmallRoomAssignments = make(map[string]string, len(p5.SpecificSmallRoomAssignments))
	for course, room := range p5.SpecificSmallRoomAssignments {
		w.AssignSmallRoom(course, room)
	}

	w.Categories.Reset()
	for _, in := range rec.FlexibleCategories {
		c := w.Categories.Add(in.Level, in.Name)
		if in.ID != "" {
			c.ID = in.ID
		}
		c.Professors = append([]models.ProfessorQuota{}, in.Professors...)
		c.Courses = append([]string{}, in.Courses...)
	}

	w.Algorithm.Set(rec.Algorithm)
}

// Reset restores the empty startup state.
func (w *Workspace) Reset() {
	w.Schedule.Reset()
	w.Constraints.Reset()
	w.Categories.Reset()
	w.Algorithm.Reset()
	w.RestPeriods = models.RestPeriods{}
	w.LevelLargeRooms = make(map[string]string)
	w.SmallRoomAssignments = make(map[string]string)
}
