package settings

// Special time-constraint keys a teacher row can carry.
var SpecialConstraintKeys = []string{
	"start_d1_s2",
	"start_d1_s3",
	"end_s3",
	"end_s4",
	"always_s2_to_s4",
}

// Distribution-rule selections.
const (
	DistributionUnset           = "unset"
	DistributionTwoConsecutive  = "two_consecutive_days"
	DistributionThreeConsecutive = "three_consecutive_days"
	DistributionTwoSeparate     = "two_separate_days"
	DistributionThreeSeparate   = "three_separate_days"
)

// Last-slot restriction selections. RestrictNone is never persisted.
const (
	RestrictNone    = "none"
	RestrictLastOne = "last_1"
	RestrictLastTwo = "last_2"
)

type teacherRow struct {
	manualDays map[string]bool
	special    map[string]bool
	rule       string
}

// ConstraintModel holds the per-teacher availability and restriction state:
// manual day availability, special time constraints, distribution rule,
// Saturday eligibility and last-slot restriction.
type ConstraintModel struct {
	rows     map[string]*teacherRow
	saturday map[string]bool
	lastSlot map[string]string
}

// NewConstraintModel returns an empty constraint model.
func NewConstraintModel() *ConstraintModel {
	m := &ConstraintModel{}
	m.Reset()
	return m
}

// Reset clears every teacher row. The applier calls this before rebuilding
// from an incoming record so stale checkbox state can never leak through.
func (m *ConstraintModel) Reset() {
	m.rows = make(map[string]*teacherRow)
	m.saturday = make(map[string]bool)
	m.lastSlot = make(map[string]string)
}

func (m *ConstraintModel) row(teacher string) *teacherRow {
	r, ok := m.rows[teacher]
	if !ok {
		r = &teacherRow{
			manualDays: make(map[string]bool),
			special:    make(map[string]bool),
			rule:       DistributionUnset,
		}
		m.rows[teacher] = r
	}
	return r
}

// SetManualDay marks or unmarks a day as manually allowed for the teacher.
func (m *ConstraintModel) SetManualDay(teacher, day string, on bool) {
	r := m.row(teacher)
	if on {
		r.manualDays[day] = true
	} else {
		delete(r.manualDays, day)
	}
}

// SetSpecial toggles one special time-constraint key for the teacher.
func (m *ConstraintModel) SetSpecial(teacher, key string, on bool) {
	r := m.row(teacher)
	if on {
		r.special[key] = true
	} else {
		delete(r.special, key)
	}
}

// SetDistributionRule records the teacher's session distribution rule.
func (m *ConstraintModel) SetDistributionRule(teacher, rule string) {
	m.row(teacher).rule = rule
}

// SetSaturday marks the teacher as eligible for Saturday slots.
func (m *ConstraintModel) SetSaturday(teacher string, on bool) {
	if on {
		m.saturday[teacher] = true
	} else {
		delete(m.saturday, teacher)
	}
}

// SetLastSlotRestriction records the teacher's end-of-day restriction.
// RestrictNone removes the entry.
func (m *ConstraintModel) SetLastSlotRestriction(teacher, value string) {
	if value == RestrictNone || value == "" {
		delete(m.lastSlot, teacher)
		return
	}
	m.lastSlot[teacher] = value
}
