// Package analytics derives market metrics from the price samples and availability snapshots
// accumulated for a location.
//
// Every calculation is a pure read over its input and degrades to "no data" instead of failing:
// the average daily rate and occupancy are reported as nil when nothing can be computed, the
// seasonality index as 0.
package analytics
