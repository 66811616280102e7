package status

import "time"

// NextBoundary returns the instant a countdown for s should target. It
// reports false for EndingNoSubmissions and the Ended kinds, which show a
// static date instead.
func NextBoundary(s Status, d Descriptor) (time.Time, bool) {
	switch s.Kind {
	case NotOpenYet:
		return d.StartTime, true
	case OpenForSubmissions:
		return d.SuggestionsEndTime, true
	case Paused:
		return d.VotingStartTime, true
	case Voting:
		return d.EndTime, true
	default:
		return time.Time{}, false
	}
}
