package eventstore

import "time"

// RunRecord is one state transition of a pipeline run.
type RunRecord struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	State      string    `json:"state"`
	Repository string    `json:"repository,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RunSummary folds the records of one run into its latest state.
type RunSummary struct {
	RunID       string      `json:"run_id"`
	Repository  string      `json:"repository,omitempty"`
	State       string      `json:"state"`
	Detail      string      `json:"detail,omitempty"`
	Started     time.Time   `json:"started"`
	Updated     time.Time   `json:"updated"`
	Transitions []RunRecord `json:"transitions"`
}

// Summarize builds a RunSummary from records in append order. It reports
// false when records is empty.
func Summarize(records []RunRecord) (RunSummary, bool) {
	if len(records) == 0 {
		return RunSummary{}, false
	}
	first, last := records[0], records[len(records)-1]
	s := RunSummary{
		RunID:       first.RunID,
		State:       last.State,
		Detail:      last.Detail,
		Started:     first.Timestamp,
		Updated:     last.Timestamp,
		Transitions: records,
	}
	for _, r := range records {
		if r.Repository != "" {
			s.Repository = r.Repository
		}
	}
	return s, true
}
