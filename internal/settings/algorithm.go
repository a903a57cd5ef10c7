package settings

import "github.com/timetable-lab/console-service/internal/models"

// AllLowLevelHeuristics is the full hyper-heuristic LLH roster. A record
// without an explicit selection means "all of them".
var AllLowLevelHeuristics = []string{
	"random_restart",
	"swap_lectures",
	"move_lecture",
	"ruin_and_recreate",
	"targeted_repair",
}

// DefaultAlgorithmSettings returns the hardcoded defaults applied for any
// field absent from an older saved record.
func DefaultAlgorithmSettings() models.AlgorithmSettings {
	return models.AlgorithmSettings{
		Method: models.MethodGreedy,

		Timeout: 30,

		TabuIterations:       1000,
		TabuTenure:           10,
		TabuNeighborhoodSize: 50,

		GAPopulationSize: 50,
		GAGenerations:    200,
		GAMutationRate:   5,
		GAElitismCount:   2,

		LNSIterations: 500,
		LNSRuinFactor: 20,

		VNSIterations: 300,
		VNSKMax:       10,

		MAPopulationSize:        40,
		MAGenerations:           100,
		MAMutationRate:          10,
		MAElitismCount:          2,
		MALocalSearchIterations: 5,

		ClonalgPopulationSize: 50,
		ClonalgGenerations:    100,
		ClonalgSelectionSize:  10,
		ClonalgCloneFactor:    1.0,

		HHIterations:      50,
		HHSelectedLLH:     append([]string(nil), AllLowLevelHeuristics...),
		HHTabuTenure:      3,
		HHBudgetMode:      models.BudgetModeTime,
		HHTimeBudget:      5,
		HHLLHIterations:   30,
		HHStagnationLimit: 15,

		MaxSessionsPerDay:        "none",
		ConsecutiveLargeHallRule: "none",
		IntensiveSearchAttempts:  1,
		DistributionRuleType:     "allowed",
		PrioritizePrimary:        false,
		TeacherPairsText:         "",
	}
}

// AlgorithmModel holds the live solver configuration.
type AlgorithmModel struct {
	current models.AlgorithmSettings
}

// NewAlgorithmModel returns a model initialized to the defaults.
func NewAlgorithmModel() *AlgorithmModel {
	return &AlgorithmModel{current: DefaultAlgorithmSettings()}
}

// Current returns a copy of the live settings.
func (m *AlgorithmModel) Current() models.AlgorithmSettings {
	out := m.current
	out.HHSelectedLLH = append([]string(nil), m.current.HHSelectedLLH...)
	return out
}

// Set replaces the live settings wholesale, filling absent fields with the
// defaults. Zero values that have no meaning as user input (method, budget
// mode, numeric parameters) are treated as absent.
func (m *AlgorithmModel) Set(in models.AlgorithmSettings) {
	def := DefaultAlgorithmSettings()

	pickInt := func(v, d int) int {
		if v == 0 {
			return d
		}
		return v
	}
	pickStr := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}

	out := models.AlgorithmSettings{
		Method: pickStr(in.Method, def.Method),

		Timeout: pickInt(in.Timeout, def.Timeout),

		TabuIterations:       pickInt(in.TabuIterations, def.TabuIterations),
		TabuTenure:           pickInt(in.TabuTenure, def.TabuTenure),
		TabuNeighborhoodSize: pickInt(in.TabuNeighborhoodSize, def.TabuNeighborhoodSize),

		GAPopulationSize: pickInt(in.GAPopulationSize, def.GAPopulationSize),
		GAGenerations:    pickInt(in.GAGenerations, def.GAGenerations),
		GAMutationRate:   pickInt(in.GAMutationRate, def.GAMutationRate),
		GAElitismCount:   pickInt(in.GAElitismCount, def.GAElitismCount),

		LNSIterations: pickInt(in.LNSIterations, def.LNSIterations),
		LNSRuinFactor: pickInt(in.LNSRuinFactor, def.LNSRuinFactor),

		VNSIterations: pickInt(in.VNSIterations, def.VNSIterations),
		VNSKMax:       pickInt(in.VNSKMax, def.VNSKMax),

		MAPopulationSize:        pickInt(in.MAPopulationSize, def.MAPopulationSize),
		MAGenerations:           pickInt(in.MAGenerations, def.MAGenerations),
		MAMutationRate:          pickInt(in.MAMutationRate, def.MAMutationRate),
		MAElitismCount:          pickInt(in.MAElitismCount, def.MAElitismCount),
		MALocalSearchIterations: pickInt(in.MALocalSearchIterations, def.MALocalSearchIterations),

		ClonalgPopulationSize: pickInt(in.ClonalgPopulationSize, def.ClonalgPopulationSize),
		ClonalgGenerations:    pickInt(in.ClonalgGenerations, def.ClonalgGenerations),
		ClonalgSelectionSize:  pickInt(in.ClonalgSelectionSize, def.ClonalgSelectionSize),
		ClonalgCloneFactor:    in.ClonalgCloneFactor,

		HHIterations:      pickInt(in.HHIterations, def.HHIterations),
		HHTabuTenure:      pickInt(in.HHTabuTenure, def.HHTabuTenure),
		HHBudgetMode:      pickStr(in.HHBudgetMode, def.HHBudgetMode),
		HHTimeBudget:      pickInt(in.HHTimeBudget, def.HHTimeBudget),
		HHLLHIterations:   pickInt(in.HHLLHIterations, def.HHLLHIterations),
		HHStagnationLimit: pickInt(in.HHStagnationLimit, def.HHStagnationLimit),

		MaxSessionsPerDay:        pickStr(in.MaxSessionsPerDay, def.MaxSessionsPerDay),
		ConsecutiveLargeHallRule: pickStr(in.ConsecutiveLargeHallRule, def.ConsecutiveLargeHallRule),
		IntensiveSearchAttempts:  pickInt(in.IntensiveSearchAttempts, def.IntensiveSearchAttempts),
		DistributionRuleType:     pickStr(in.DistributionRuleType, def.DistributionRuleType),
		PrioritizePrimary:        in.PrioritizePrimary,
		TeacherPairsText:         in.TeacherPairsText,
	}
	if out.ClonalgCloneFactor == 0 {
		out.ClonalgCloneFactor = def.ClonalgCloneFactor
	}
	// A record saved without an LLH selection means every heuristic enabled.
	if in.HHSelectedLLH == nil {
		out.HHSelectedLLH = append([]string(nil), AllLowLevelHeuristics...)
	} else {
		out.HHSelectedLLH = append([]string(nil), in.HHSelectedLLH...)
	}

	m.current = out
}

// Reset restores the defaults.
func (m *AlgorithmModel) Reset() {
	m.current = DefaultAlgorithmSettings()
}
