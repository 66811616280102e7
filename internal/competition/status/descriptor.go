package status

import "time"

// Descriptor is a read-only snapshot of a competition as reported by the
// chain data provider.
//
// Callers are expected to supply StartTime <= SuggestionsEndTime <=
// VotingStartTime <= EndTime. Derive does not check this; see Validate.
type Descriptor struct {
	ID                         string    `json:"id"`
	DAO                        string    `json:"dao"`
	Title                      string    `json:"title,omitempty"`
	StartTime                  time.Time `json:"start_time"`
	SuggestionsEndTime         time.Time `json:"suggestions_end_time"`
	VotingStartTime            time.Time `json:"voting_start_time"`
	EndTime                    time.Time `json:"end_time"`
	TotalSubmissions           int       `json:"total_submissions"`
	NumberOfWinningSubmissions int       `json:"number_of_winning_submissions"`
}

// BoundaryError names the first pair of boundaries found out of order.
type BoundaryError struct {
	Earlier string
	Later   string
}

func (e *BoundaryError) Error() string {
	return e.Later + " is before " + e.Earlier
}

// Validate checks the boundary ordering precondition. Ingest paths call it so
// malformed data is rejected before it is ever derived.
func (d Descriptor) Validate() error {
	bounds := []struct {
		name string
		at   time.Time
	}{
		{"start_time", d.StartTime},
		{"suggestions_end_time", d.SuggestionsEndTime},
		{"voting_start_time", d.VotingStartTime},
		{"end_time", d.EndTime},
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i].at.Before(bounds[i-1].at) {
			return &BoundaryError{Earlier: bounds[i-1].name, Later: bounds[i].name}
		}
	}
	return nil
}
