package models

// RowStatus is the terminal result of processing one row.
type RowStatus string

const (
	RowCreated   RowStatus = "created"
	RowUpdated   RowStatus = "updated"
	RowFailed    RowStatus = "failed"
	RowCancelled RowStatus = "cancelled"
)

// RowOutcome records the result of reconciling one row against a remote
// platform. Exactly one outcome is produced per input row per batch run.
type RowOutcome struct {
	Email    string    `json:"email"`
	Status   RowStatus `json:"status"`
	RemoteID int       `json:"remote_id,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// BatchSummary holds the derived counts for a batch run.
type BatchSummary struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled,omitempty"`
}

// BatchReport is the full result of one upsert run. Outcome order is
// unspecified within a chunk; callers correlate by email, not position.
type BatchReport struct {
	Results []RowOutcome `json:"results"`
	Summary BatchSummary `json:"summary"`
}

// NewBatchReport builds a report from collected outcomes and tallies the
// summary counts.
func NewBatchReport(outcomes []RowOutcome) *BatchReport {
	report := &BatchReport{Results: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case RowCreated:
			report.Summary.Created++
		case RowUpdated:
			report.Summary.Updated++
		case RowFailed:
			report.Summary.Failed++
		case RowCancelled:
			report.Summary.Cancelled++
		}
	}
	return report
}
