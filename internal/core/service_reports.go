package core

import (
	"context"
	"sort"
)

// InventoryReport aggregates the current catalog state.
type InventoryReport struct {
	TotalReagents int            `json:"total_reagents"`
	TotalValue    float64        `json:"total_value"`
	Categories    map[string]int `json:"categories"`
	Locations     map[string]int `json:"locations"`
	LowStock      int            `json:"low_stock"`
	Expired       int            `json:"expired"`
}

// InventoryReport summarizes the catalog: counts, total stock value, and the
// number of low-stock and expired reagents as of today.
func (s *Service) InventoryReport(ctx context.Context) (InventoryReport, error) {
	reagents, err := s.store.ListReagents(ctx)
	if err != nil {
		return InventoryReport{}, err
	}
	today := s.today()
	report := InventoryReport{
		Categories: make(map[string]int),
		Locations:  make(map[string]int),
	}
	for _, reagent := range reagents {
		report.TotalReagents++
		report.TotalValue += reagent.Inventory * reagent.Cost
		report.Categories[reagent.Category]++
		report.Locations[reagent.Location]++
		if reagent.IsLowStock() {
			report.LowStock++
		}
		if reagent.IsExpired(today) {
			report.Expired++
		}
	}
	return report, nil
}

// ReagentUsage pairs a reagent with its cumulative consumption.
type ReagentUsage struct {
	Reagent string  `json:"reagent"`
	Used    float64 `json:"used"`
}

// UsageStatistics aggregates consumption recorded in usage histories.
type UsageStatistics struct {
	PerReagent map[string]float64 `json:"per_reagent"`
	TotalUsage float64            `json:"total_usage"`
	Top        []ReagentUsage     `json:"top_consumed"`
}

// topConsumedLimit caps the ranked list in usage statistics.
const topConsumedLimit = 5

// UsageStatistics totals each reagent's recorded consumption and ranks the
// most consumed.
func (s *Service) UsageStatistics(ctx context.Context) (UsageStatistics, error) {
	reagents, err := s.store.ListReagents(ctx)
	if err != nil {
		return UsageStatistics{}, err
	}
	stats := UsageStatistics{PerReagent: make(map[string]float64)}
	for _, reagent := range reagents {
		used := reagent.TotalUsage()
		stats.PerReagent[reagent.Name] = used
		stats.TotalUsage += used
	}
	ranked := make([]ReagentUsage, 0, len(stats.PerReagent))
	for name, used := range stats.PerReagent {
		if used > 0 {
			ranked = append(ranked, ReagentUsage{Reagent: name, Used: used})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Used != ranked[j].Used {
			return ranked[i].Used > ranked[j].Used
		}
		return ranked[i].Reagent < ranked[j].Reagent
	})
	if len(ranked) > topConsumedLimit {
		ranked = ranked[:topConsumedLimit]
	}
	stats.Top = ranked
	return stats, nil
}

// RecipeStats summarizes the outcomes of one recipe's experiments.
type RecipeStats struct {
	Count       int     `json:"count"`
	Successes   int     `json:"successes"`
	SuccessRate float64 `json:"success_rate"`
}

// Statistics aggregates the experiment history.
type Statistics struct {
	TotalExperiments        int                    `json:"total_experiments"`
	Successful              int                    `json:"successful"`
	OverallSuccessRate      float64                `json:"overall_success_rate"`
	ByRecipe                map[string]RecipeStats `json:"by_recipe"`
	ResearcherParticipation map[string]int         `json:"researcher_participation"`
}

// Statistics computes success rates overall and per recipe, plus how many
// experiments each researcher took part in.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{
		ByRecipe:                make(map[string]RecipeStats),
		ResearcherParticipation: make(map[string]int),
	}
	for _, experiment := range experiments {
		stats.TotalExperiments++
		if experiment.Success {
			stats.Successful++
		}
		entry := stats.ByRecipe[experiment.Recipe.Name]
		entry.Count++
		if experiment.Success {
			entry.Successes++
		}
		stats.ByRecipe[experiment.Recipe.Name] = entry
		for _, person := range experiment.Responsible {
			stats.ResearcherParticipation[person]++
		}
	}
	for name, entry := range stats.ByRecipe {
		entry.SuccessRate = float64(entry.Successes) / float64(entry.Count) * 100
		stats.ByRecipe[name] = entry
	}
	if stats.TotalExperiments > 0 {
		stats.OverallSuccessRate = float64(stats.Successful) / float64(stats.TotalExperiments) * 100
	}
	return stats, nil
}

// EfficiencyIndicators relate experiment outcomes to spend.
type EfficiencyIndicators struct {
	SuccessRate         float64 `json:"success_rate"`
	AverageCost         float64 `json:"average_cost"`
	CostPerSuccess      float64 `json:"cost_per_success"`
	CostPerSuccessKnown bool    `json:"cost_per_success_known"`
}

// QualityIndicators report how often measurements land in range.
type QualityIndicators struct {
	InRangeShare  map[string]float64 `json:"in_range_share"`
	MeanDeviation map[string]float64 `json:"mean_deviation"`
}

// SafetyIndicators flag stock hygiene problems.
type SafetyIndicators struct {
	ExpiredRate   float64 `json:"expired_rate"`
	LowStockCount int     `json:"low_stock_count"`
}

// ProductivityIndicators report output per researcher.
type ProductivityIndicators struct {
	ExperimentsPerResearcher map[string]int `json:"experiments_per_researcher"`
}

// ManagementIndicators bundles the laboratory's key health metrics.
type ManagementIndicators struct {
	Efficiency   EfficiencyIndicators   `json:"efficiency"`
	Quality      QualityIndicators      `json:"quality"`
	Safety       SafetyIndicators       `json:"safety"`
	Productivity ProductivityIndicators `json:"productivity"`
}

// ManagementIndicators derives efficiency, quality, safety, and productivity
// metrics from the current state and the full experiment history.
func (s *Service) ManagementIndicators(ctx context.Context) (ManagementIndicators, error) {
	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		return ManagementIndicators{}, err
	}
	reagents, err := s.store.ListReagents(ctx)
	if err != nil {
		return ManagementIndicators{}, err
	}
	today := s.today()

	var indicators ManagementIndicators

	var totalCost float64
	var successful int
	for _, experiment := range experiments {
		totalCost += experiment.Cost
		if experiment.Success {
			successful++
		}
	}
	if n := len(experiments); n > 0 {
		indicators.Efficiency.SuccessRate = float64(successful) / float64(n) * 100
		indicators.Efficiency.AverageCost = totalCost / float64(n)
	}
	if successful > 0 {
		indicators.Efficiency.CostPerSuccess = totalCost / float64(successful)
		indicators.Efficiency.CostPerSuccessKnown = true
	}

	inRange := make(map[string]int)
	counts := make(map[string]int)
	deviationSums := make(map[string]float64)
	deviationCounts := make(map[string]int)
	for _, experiment := range experiments {
		for measurement, validation := range experiment.Validations {
			counts[measurement]++
			if validation.Valid {
				inRange[measurement]++
			}
			if validation.DeviationDefined {
				deviation := validation.Deviation
				if deviation < 0 {
					deviation = -deviation
				}
				deviationSums[measurement] += deviation
				deviationCounts[measurement]++
			}
		}
	}
	indicators.Quality.InRangeShare = make(map[string]float64, len(counts))
	for measurement, count := range counts {
		indicators.Quality.InRangeShare[measurement] = float64(inRange[measurement]) / float64(count) * 100
	}
	indicators.Quality.MeanDeviation = make(map[string]float64, len(deviationSums))
	for measurement, sum := range deviationSums {
		indicators.Quality.MeanDeviation[measurement] = sum / float64(deviationCounts[measurement])
	}

	var expired int
	for _, reagent := range reagents {
		if reagent.IsExpired(today) {
			expired++
		}
		if reagent.IsLowStock() {
			indicators.Safety.LowStockCount++
		}
	}
	if len(reagents) > 0 {
		indicators.Safety.ExpiredRate = float64(expired) / float64(len(reagents)) * 100
	}

	indicators.Productivity.ExperimentsPerResearcher = make(map[string]int)
	for _, experiment := range experiments {
		for _, person := range experiment.Responsible {
			indicators.Productivity.ExperimentsPerResearcher[person]++
		}
	}
	return indicators, nil
}
