package analytics

import (
	"time"

	"github.com/rentscope/market-planner/internal/store/model"
)

const (
	MinSeasonalitySamples = 12
	MinSeasonalityMonths  = 3
)

// SeasonalityIndex is (max - min) / min over the average nightly rate of each calendar month,
// rounded to 4 decimals. Months are taken from the search start date. It is 0 when fewer than
// MinSeasonalitySamples samples or MinSeasonalityMonths distinct months are available, or when the
// cheapest month averages 0.
func SeasonalityIndex(samples []model.PriceSample) float64 {
	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	total := 0
	for _, s := range samples {
		rate, ok := s.AverageDailyRate()
		if !ok {
			continue
		}
		month := s.SearchDateStart.Month()
		sums[month] += rate
		counts[month]++
		total++
	}

	if total < MinSeasonalitySamples || len(counts) < MinSeasonalityMonths {
		return 0
	}

	averages := make([]float64, 0, len(sums))
	for month, sum := range sums {
		averages = append(averages, sum/float64(counts[month]))
	}
	return spread(averages)
}

func spread(values []float64) float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == 0 {
		return 0
	}
	return model.RoundHalfUp((hi-lo)/lo, 4)
}
