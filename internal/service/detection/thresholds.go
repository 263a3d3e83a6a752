package detection

// Thresholds carries every tunable cutoff the detector evaluates. The
// defaults match the values the patterns were originally calibrated
// against; deployments override them through configuration rather than
// code.
type Thresholds struct {
	// Bulk deletion: deletes by one actor inside the trailing hour.
	BulkDeleteHourly int `koanf:"bulk_delete_hourly"`
	// Bulk deletion over the full window: critical above this count.
	BulkDeleteCritical int `koanf:"bulk_delete_critical"`

	// After-hours activity: local hours outside [start, end] count as
	// after hours.
	AfterHoursStart int `koanf:"after_hours_start"`
	AfterHoursEnd   int `koanf:"after_hours_end"`
	// Per-actor after-hours record counts for medium and high severity.
	AfterHoursCount int `koanf:"after_hours_count"`
	AfterHoursHigh  int `koanf:"after_hours_high"`

	// High volume: per-actor record counts over 24h for high and
	// critical severity.
	HighVolumeDaily    int `koanf:"high_volume_daily"`
	HighVolumeCritical int `koanf:"high_volume_critical"`

	// IP churn: distinct source addresses per actor over 24h.
	DistinctIPs     int `koanf:"distinct_ips"`
	DistinctIPsHigh int `koanf:"distinct_ips_high"`

	// Frequent deletions: per-actor deletes over 24h.
	DailyDeletes         int `koanf:"daily_deletes"`
	DailyDeletesCritical int `koanf:"daily_deletes_critical"`
}

// DefaultThresholds returns the calibrated default cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BulkDeleteHourly:     5,
		BulkDeleteCritical:   20,
		AfterHoursStart:      8,
		AfterHoursEnd:        18,
		AfterHoursCount:      5,
		AfterHoursHigh:       15,
		HighVolumeDaily:      100,
		HighVolumeCritical:   200,
		DistinctIPs:          5,
		DistinctIPsHigh:      10,
		DailyDeletes:         10,
		DailyDeletesCritical: 25,
	}
}
