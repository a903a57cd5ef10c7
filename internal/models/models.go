package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// RuleType restricts which rooms a slot's levels may occupy.
type RuleType string

const (
	RuleAnyHall           RuleType = "ANY_HALL"
	RuleSmallHallsOnly    RuleType = "SMALL_HALLS_ONLY"
	RuleSpecificLargeHall RuleType = "SPECIFIC_LARGE_HALL"
	RuleNoHallsAllowed    RuleType = "NO_HALLS_ALLOWED"
)

// RoomRule is one room constraint attached to a time slot.
// HallName is present only for SPECIFIC_LARGE_HALL rules.
type RoomRule struct {
	RuleType RuleType `json:"rule_type"`
	Levels   []string `json:"levels"`
	HallName string   `json:"hall_name,omitempty"`
}

// SlotSpec holds the rules and the optional pinned course of one time range.
// The pinned-course key is camelCase on the wire for compatibility with saved
// records.
type SlotSpec struct {
	Rules          []RoomRule `json:"rules"`
	PinnedCourseID *int       `json:"pinnedCourseId"`
}

// DaySlots maps a "HH:MM-HH:MM" time range to its slot spec.
type DaySlots map[string]SlotSpec

// ScheduleStructure maps a day name to its slots.
type ScheduleStructure map[string]DaySlots

// RestPeriods are the two global evening rest flags.
type RestPeriods struct {
	TuesdayEvening  bool `json:"tuesday_evening"`
	ThursdayEvening bool `json:"thursday_evening"`
}

// PhaseFiveSettings groups the per-teacher and per-room constraint maps.
// SpecialConstraints merges checkbox flags (value true) with the
// distribution_rule selection (value string) into one map per teacher.
type PhaseFiveSettings struct {
	RestPeriods                  RestPeriods               `json:"rest_periods"`
	ManualDays                   map[string][]string       `json:"manual_days"`
	SpecialConstraints           map[string]map[string]any `json:"special_constraints"`
	SaturdayTeachers             []string                  `json:"saturday_teachers"`
	LastSlotRestrictions         map[string]string         `json:"last_slot_restrictions"`
	LevelSpecificLargeRooms      map[string]string         `json:"level_specific_large_rooms"`
	SpecificSmallRoomAssignments map[string]string         `json:"specific_small_room_assignments"`
}

// ProfessorQuota is one professor row inside a flexible category.
type ProfessorQuota struct {
	Name  string `json:"name"`
	Quota int    `json:"quota"`
}

// FlexibleCategory pairs a pool of professors with a course list inside one
// level, for flexible assignment by the solver.
type FlexibleCategory struct {
	ID         string           `json:"id"`
	Level      string           `json:"level"`
	Name       string           `json:"name"`
	Professors []ProfessorQuota `json:"professors"`
	Courses    []string         `json:"courses"`
}

// Solver method selectors.
const (
	MethodGreedy         = "greedy"
	MethodBacktracking   = "backtracking"
	MethodTabuSearch     = "tabu_search"
	MethodGenetic        = "genetic_algorithm"
	MethodLNS            = "large_neighborhood_search"
	MethodVNS            = "variable_neighborhood_search"
	MethodVNSFlexible    = "vns_flexible"
	MethodMemetic        = "memetic_algorithm"
	MethodClonalg        = "clonalg"
	MethodHyperHeuristic = "hyper_heuristic"
)

// Hyper-heuristic budget modes.
const (
	BudgetModeTime     = "time"
	BudgetModeLLHCount = "llh_count"
)

// AlgorithmSettings carries the method selector, every per-method parameter
// bundle and the shared cross-cutting flags. All bundles are always present on
// the wire; the solver reads only the selected method's bundle.
type AlgorithmSettings struct {
	Method string `json:"method"`

	Timeout int `json:"timeout"`

	TabuIterations       int `json:"tabu_iterations"`
	TabuTenure           int `json:"tabu_tenure"`
	TabuNeighborhoodSize int `json:"tabu_neighborhood_size"`

	GAPopulationSize int `json:"ga_population_size"`
	GAGenerations    int `json:"ga_generations"`
	GAMutationRate   int `json:"ga_mutation_rate"`
	GAElitismCount   int `json:"ga_elitism_count"`

	LNSIterations int `json:"lns_iterations"`
	LNSRuinFactor int `json:"lns_ruin_factor"`

	VNSIterations int `json:"vns_iterations"`
	VNSKMax       int `json:"vns_k_max"`

	MAPopulationSize        int `json:"ma_population_size"`
	MAGenerations           int `json:"ma_generations"`
	MAMutationRate          int `json:"ma_mutation_rate"`
	MAElitismCount          int `json:"ma_elitism_count"`
	MALocalSearchIterations int `json:"ma_local_search_iterations"`

	ClonalgPopulationSize int     `json:"clonalg_population_size"`
	ClonalgGenerations    int     `json:"clonalg_generations"`
	ClonalgSelectionSize  int     `json:"clonalg_selection_size"`
	ClonalgCloneFactor    float64 `json:"clonalg_clone_factor"`

	HHIterations      int      `json:"hh_iterations"`
	HHSelectedLLH     []string `json:"hh_selected_llh"`
	HHTabuTenure      int      `json:"hh_tabu_tenure"`
	HHBudgetMode      string   `json:"hh_budget_mode"`
	HHTimeBudget      int      `json:"hh_time_budget"`
	HHLLHIterations   int      `json:"hh_llh_iterations"`
	HHStagnationLimit int      `json:"hh_stagnation_limit"`

	MaxSessionsPerDay        string `json:"max_sessions_per_day"`
	ConsecutiveLargeHallRule string `json:"consecutive_large_hall_rule"`
	IntensiveSearchAttempts  int    `json:"intensive_search_attempts"`
	DistributionRuleType     string `json:"distribution_rule_type"`
	PrioritizePrimary        bool   `json:"prioritize_primary"`
	TeacherPairsText         string `json:"teacher_pairs_text"`
}

// CanonicalSettings is the single record exchanged with the solver and the
// snapshot store: schedule structure, phase-5 constraint maps, flexible
// categories and algorithm parameters.
type CanonicalSettings struct {
	ScheduleStructure  ScheduleStructure  `json:"schedule_structure"`
	PhaseFive          PhaseFiveSettings  `json:"phase_5_settings"`
	FlexibleCategories []FlexibleCategory `json:"flexible_categories"`
	Algorithm          AlgorithmSettings  `json:"algorithm_settings"`
}

// DecodeCanonical parses a canonical settings record. Older saved records
// stored the phase-5 and algorithm fields unnested at the top level; those are
// recognized and lifted into the modern shape.
func DecodeCanonical(data []byte) (CanonicalSettings, error) {
	var rec CanonicalSettings
	if err := json.Unmarshal(data, &rec); err != nil {
		return CanonicalSettings{}, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return CanonicalSettings{}, err
	}
	if _, ok := probe["phase_5_settings"]; !ok {
		// Legacy flat shape: the phase-5 keys live beside schedule_structure.
		if err := json.Unmarshal(data, &rec.PhaseFive); err != nil {
			return CanonicalSettings{}, err
		}
	}
	if _, ok := probe["algorithm_settings"]; !ok {
		if err := json.Unmarshal(data, &rec.Algorithm); err != nil {
			return CanonicalSettings{}, err
		}
	}
	return rec, nil
}

// Lecture is one placed session in a result grid.
type Lecture struct {
	ID          int    `json:"id"`
	CourseName  string `json:"course_name,omitempty"`
	TeacherName string `json:"teacher_name,omitempty"`
	Level       string `json:"level,omitempty"`
	RoomName    string `json:"room_name,omitempty"`
}

// LevelGrid is a [day][slot] grid of lectures for one level.
type LevelGrid [][][]Lecture

// Failure describes one constraint the solver could not satisfy. It is part
// of a successful result, not an error.
type Failure struct {
	TeacherName string `json:"teacher_name,omitempty"`
	CourseName  string `json:"course_name,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// LevelCount is a per-level course count statistic.
type LevelCount struct {
	Level string `json:"level"`
	Count int    `json:"count"`
}

// SolverResult is the payload of the terminal DONE event.
type SolverResult struct {
	Schedule          map[string]LevelGrid `json:"schedule"`
	Days              []string             `json:"days"`
	Slots             []string             `json:"slots"`
	Failures          []Failure            `json:"failures"`
	BurdenStats       [][]any              `json:"burden_stats,omitempty"`
	UnassignedCourses []CourseInfo         `json:"unassigned_courses"`
	LevelCounts       []LevelCount         `json:"level_counts,omitempty"`
	PlacedLevelCounts []LevelCount         `json:"placed_level_counts,omitempty"`
	SwappedLectureIDs []int                `json:"swapped_lecture_ids,omitempty"`
}

// Grid is an opaque derived projection (by-professor or free-rooms) of a
// completed schedule. By-professor grids are objects keyed by teacher name;
// free-rooms grids are [day][slot] arrays. Both are rendered, never inspected.
type Grid = json.RawMessage

// ValidationFinding is one row of the constraint validation report.
type ValidationFinding struct {
	TeacherName string `json:"teacher_name"`
	CourseName  string `json:"course_name"`
	Reason      string `json:"reason"`
}

// CheckFinding is one row of the comprehensive consistency check.
type CheckFinding struct {
	Type        string `json:"type"` // missing, duplicate_teacher, duplicate_room
	CourseName  string `json:"course_name,omitempty"`
	TeacherName string `json:"teacher_name,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Inventory types, read from the solver on load and after CRUD mutations.
type TeacherInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type CourseInfo struct {
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name"`
	TeacherName string `json:"teacher_name,omitempty"`
	Level       string `json:"level,omitempty"`
}

type RoomInfo struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// SettingsSnapshot is a named, persisted canonical settings record.
type SettingsSnapshot struct {
	Name      string    `db:"name" json:"name"`
	Payload   string    `db:"payload" json:"payload"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GenerationRun is one row of the run history.
type GenerationRun struct {
	RunID      string       `db:"run_id" json:"run_id"`
	Status     string       `db:"status" json:"status"`
	Progress   float64      `db:"progress" json:"progress"`
	Settings   string       `db:"settings" json:"settings,omitempty"`
	Detail     string       `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  sql.NullTime `db:"updated_at" json:"updated_at,omitempty"`
	FinishedAt sql.NullTime `db:"finished_at" json:"finished_at,omitempty"`
}

// Inventory bundles the four reference lists.
type Inventory struct {
	Teachers []TeacherInfo `json:"teachers"`
	Courses  []CourseInfo  `json:"courses"`
	Rooms    []RoomInfo    `json:"rooms"`
	Levels   []string      `json:"levels"`
}
