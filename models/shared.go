package models

// JobSummary is the per-run outcome of a scheduler job. Jobs count per-item
// results instead of raising: one booking's failure never aborts the batch.
type JobSummary struct {
	Job         string         `json:"job"`
	Processed   int            `json:"processed"`
	Succeeded   int            `json:"succeeded"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	Cancelled   int            `json:"cancelled"`
	SkipReasons map[string]int `json:"skipReasons,omitempty"`
}

// Skip marks one item skipped with a labeled reason, counted separately from
// true failures.
func (s *JobSummary) Skip(reason string) {
	s.Skipped++
	if s.SkipReasons == nil {
		s.SkipReasons = make(map[string]int)
	}
	s.SkipReasons[reason]++
}
