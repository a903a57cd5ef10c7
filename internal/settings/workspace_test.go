package settings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timetable-lab/console-service/internal/models"
)

func buildWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w := NewWorkspace()

	require.NoError(t, w.Schedule.AddDay("Sunday"))
	require.NoError(t, w.Schedule.AddDay("Monday"))
	require.NoError(t, w.Schedule.AddSlot("Sunday", "08:00-09:30"))
	require.NoError(t, w.Schedule.AddSlot("Monday", "10:00-11:30"))
	require.NoError(t, w.Schedule.AddRule("Sunday", "08:00-09:30",
		models.RoomRule{RuleType: models.RuleSpecificLargeHall, Levels: []string{"L1", "L2"}, HallName: "Amphi B"}))
	id := 12
	require.NoError(t, w.Schedule.SetPinnedCourse("Monday", "10:00-11:30", &id))

	w.RestPeriods = models.RestPeriods{TuesdayEvening: true}
	w.Constraints.SetManualDay("Dr. Amrani", "Monday", true)
	w.Constraints.SetManualDay("Dr. Amrani", "Sunday", true)
	w.Constraints.SetSpecial("Dr. Amrani", "start_d1_s2", true)
	w.Constraints.SetDistributionRule("Dr. Amrani", DistributionTwoConsecutive)
	w.Constraints.SetSaturday("Dr. Brahimi", true)
	w.Constraints.SetLastSlotRestriction("Dr. Cherif", RestrictLastOne)

	w.AssignLevelLargeRoom("L1", "Amphi A")
	w.AssignSmallRoom("Algorithms", "Room 14")

	cat := w.Categories.Add("L3", "Optional modules")
	cat.AddProfessorRow("Dr. Amrani", 2)
	cat.SetCoursesText("Compilers\nDatabases\n")

	return w
}

func TestCollectApplyRoundTrip(t *testing.T) {
	w := buildWorkspace(t)
	rec := w.Collect()

	fresh := NewWorkspace()
	fresh.Apply(rec)
	again := fresh.Collect()

	assert.Equal(t, rec, again)
}

func TestCollectOutputShape(t *testing.T) {
	w := buildWorkspace(t)
	rec := w.Collect()

	t.Run("ManualDaysSorted", func(t *testing.T) {
		assert.Equal(t, []string{"Monday", "Sunday"}, rec.PhaseFive.ManualDays["Dr. Amrani"])
	})

	t.Run("DistributionRuleAlwaysPresent", func(t *testing.T) {
		// Every teacher that has any constraint row carries a
		// distribution_rule key, even when it was never chosen.
		w.Constraints.SetSpecial("Dr. Dahmani", "end_s3", true)
		rec := w.Collect()
		sc := rec.PhaseFive.SpecialConstraints["Dr. Dahmani"]
		assert.Equal(t, DistributionUnset, sc["distribution_rule"])
		assert.Equal(t, true, sc["end_s3"])
	})

	t.Run("ManualDayKeysSubsetOfSpecialConstraints", func(t *testing.T) {
		for teacher := range rec.PhaseFive.ManualDays {
			_, ok := rec.PhaseFive.SpecialConstraints[teacher]
			assert.True(t, ok, "teacher %q has manual days but no constraint row", teacher)
		}
	})

	t.Run("SaturdayListSorted", func(t *testing.T) {
		w.Constraints.SetSaturday("Dr. Aouadi", true)
		rec := w.Collect()
		assert.Equal(t, []string{"Dr. Aouadi", "Dr. Brahimi"}, rec.PhaseFive.SaturdayTeachers)
	})

	t.Run("SpecificLargeHallKeepsHallName", func(t *testing.T) {
		rules := rec.ScheduleStructure["Sunday"]["08:00-09:30"].Rules
		require.Len(t, rules, 1)
		assert.Equal(t, "Amphi B", rules[0].HallName)
	})
}

func TestCollectFiltersIncompleteProfessorRows(t *testing.T) {
	w := NewWorkspace()
	cat := w.Categories.Add("L2", "Electives")
	cat.AddProfessorRow("Dr. Amrani", 2)
	cat.AddProfessorRow("", 3)
	cat.AddProfessorRow("Dr. Brahimi", 0)

	rec := w.Collect()
	require.Len(t, rec.FlexibleCategories, 1)
	profs := rec.FlexibleCategories[0].Professors
	require.Len(t, profs, 1)
	assert.Equal(t, "Dr. Amrani", profs[0].Name)

	// Rows stay editable in the live model; only the record filters them.
	assert.Len(t, cat.Professors, 3)
}

func TestLastSlotRestrictionNone(t *testing.T) {
	w := NewWorkspace()
	w.Constraints.SetLastSlotRestriction("Dr. Cherif", RestrictLastTwo)
	assert.Contains(t, w.Collect().PhaseFive.LastSlotRestrictions, "Dr. Cherif")

	w.Constraints.SetLastSlotRestriction("Dr. Cherif", RestrictNone)
	assert.NotContains(t, w.Collect().PhaseFive.LastSlotRestrictions, "Dr. Cherif")
}

func TestRoomAssignmentClearing(t *testing.T) {
	w := NewWorkspace()
	w.AssignLevelLargeRoom("L1", "Amphi A")
	w.AssignLevelLargeRoom("L1", "")
	assert.Empty(t, w.Collect().PhaseFive.LevelSpecificLargeRooms)

	w.AssignSmallRoom("Algorithms", "Room 14")
	w.AssignSmallRoom("Algorithms", "")
	w.AssignSmallRoom("", "Room 9")
	assert.Empty(t, w.Collect().PhaseFive.SpecificSmallRoomAssignments)
}

func TestApplyIsDestructive(t *testing.T) {
	w := buildWorkspace(t)

	minimal := models.CanonicalSettings{
		ScheduleStructure: models.ScheduleStructure{
			"Tuesday": {"08:00-09:30": models.SlotSpec{Rules: []models.RoomRule{}}},
		},
		Algorithm: DefaultAlgorithmSettings(),
	}
	w.Apply(minimal)

	rec := w.Collect()
	assert.Equal(t, []string{"Tuesday"}, w.Schedule.Days())
	assert.Empty(t, rec.PhaseFive.ManualDays)
	assert.Empty(t, rec.PhaseFive.SaturdayTeachers)
	assert.Empty(t, rec.FlexibleCategories)
	assert.False(t, rec.PhaseFive.RestPeriods.TuesdayEvening)
}

func TestScenarioRoundTrip(t *testing.T) {
	// A full record survives JSON encoding, decoding and re-application.
	w := buildWorkspace(t)
	rec := w.Collect()

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	decoded, err := models.DecodeCanonical(data)
	require.NoError(t, err)

	fresh := NewWorkspace()
	fresh.Apply(decoded)
	assert.Equal(t, rec, fresh.Collect())
}

func TestDecodeLegacyFlatShape(t *testing.T) {
	legacy := `{
		"schedule_structure": {"Sunday": {"08:00-09:30": {"rules": []}}},
		"manual_days": {"Dr. Amrani": ["Sunday"]},
		"special_constraints": {"Dr. Amrani": {"distribution_rule": "two_separate_days"}},
		"saturday_teachers": ["Dr. Brahimi"],
		"method": "tabu_search",
		"tabu_iterations": 400
	}`

	rec, err := models.DecodeCanonical([]byte(legacy))
	require.NoError(t, err)

	w := NewWorkspace()
	w.Apply(rec)

	out := w.Collect()
	assert.Equal(t, []string{"Sunday"}, out.PhaseFive.ManualDays["Dr. Amrani"])
	assert.Equal(t, []string{"Dr. Brahimi"}, out.PhaseFive.SaturdayTeachers)
	assert.Equal(t, "two_separate_days", out.PhaseFive.SpecialConstraints["Dr. Amrani"]["distribution_rule"])
	assert.Equal(t, models.MethodTabuSearch, out.Algorithm.Method)
	assert.Equal(t, 400, out.Algorithm.TabuIterations)
	// Fields absent from the legacy record fall back to defaults.
	assert.Equal(t, 30, out.Algorithm.Timeout)
	assert.Equal(t, 10, out.Algorithm.TabuTenure)
}

func TestAlgorithmDefaults(t *testing.T) {
	m := NewAlgorithmModel()

	t.Run("Initial", func(t *testing.T) {
		cur := m.Current()
		assert.Equal(t, models.MethodGreedy, cur.Method)
		assert.Equal(t, 30, cur.Timeout)
		assert.Equal(t, 1000, cur.TabuIterations)
		assert.Equal(t, 50, cur.GAPopulationSize)
		assert.Equal(t, 200, cur.GAGenerations)
		assert.Equal(t, 500, cur.LNSIterations)
		assert.Equal(t, 300, cur.VNSIterations)
		assert.Equal(t, 40, cur.MAPopulationSize)
		assert.InDelta(t, 1.0, cur.ClonalgCloneFactor, 1e-9)
		assert.Equal(t, 50, cur.HHIterations)
		assert.Equal(t, "time", cur.HHBudgetMode)
		assert.Equal(t, AllLowLevelHeuristics, cur.HHSelectedLLH)
		assert.Equal(t, "none", cur.MaxSessionsPerDay)
		assert.Equal(t, "allowed", cur.DistributionRuleType)
		assert.Equal(t, 1, cur.IntensiveSearchAttempts)
	})

	t.Run("ZeroFieldsFallBack", func(t *testing.T) {
		m.Set(models.AlgorithmSettings{Method: models.MethodGenetic, GAGenerations: 75})
		cur := m.Current()
		assert.Equal(t, models.MethodGenetic, cur.Method)
		assert.Equal(t, 75, cur.GAGenerations)
		assert.Equal(t, 50, cur.GAPopulationSize)
		assert.Equal(t, 30, cur.Timeout)
	})

	t.Run("NilLLHMeansAll", func(t *testing.T) {
		m.Set(models.AlgorithmSettings{Method: models.MethodHyperHeuristic})
		assert.Equal(t, AllLowLevelHeuristics, m.Current().HHSelectedLLH)

		m.Set(models.AlgorithmSettings{HHSelectedLLH: []string{"swap_lectures"}})
		assert.Equal(t, []string{"swap_lectures"}, m.Current().HHSelectedLLH)

		// An explicit empty selection is preserved, not expanded.
		m.Set(models.AlgorithmSettings{HHSelectedLLH: []string{}})
		assert.Empty(t, m.Current().HHSelectedLLH)
	})

	t.Run("CurrentReturnsCopy", func(t *testing.T) {
		m.Reset()
		cur := m.Current()
		cur.HHSelectedLLH[0] = "mutated"
		assert.Equal(t, "random_restart", m.Current().HHSelectedLLH[0])
	})
}
