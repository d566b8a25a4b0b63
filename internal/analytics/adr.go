package analytics

import (
	"slices"

	"github.com/rentscope/market-planner/internal/store/model"
)

// AverageDailyRate is the median per-night rate of the samples. The median keeps single outlier
// listings from moving the market rate. Samples without nights are ignored.
func AverageDailyRate(samples []model.PriceSample) *float64 {
	rates := nightlyRates(samples)
	if len(rates) == 0 {
		return nil
	}
	slices.Sort(rates)

	mid := len(rates) / 2
	median := rates[mid]
	if len(rates)%2 == 0 {
		median = (rates[mid-1] + rates[mid]) / 2
	}
	median = model.RoundHalfUp(median, 2)
	return &median
}

func nightlyRates(samples []model.PriceSample) []float64 {
	rates := make([]float64, 0, len(samples))
	for _, s := range samples {
		if rate, ok := s.AverageDailyRate(); ok {
			rates = append(rates, rate)
		}
	}
	return rates
}
