package status

import "time"

// Status is the lifecycle status of one competition at one instant.
// A new value is produced for every evaluation.
type Status struct {
	Kind        Kind      `json:"kind"`
	EvaluatedAt time.Time `json:"evaluated_at"`

	votingStartTime time.Time
	endTime         time.Time
}

// Derive computes the status of d at now. Boundaries belong to the phase they
// open: at exactly StartTime the competition is already open.
//
// A competition without submissions never reaches Voting, Ended or
// EndedNoWinners. NumberOfWinningSubmissions is only consulted once now has
// reached EndTime.
func Derive(now time.Time, d Descriptor) Status {
	return Status{
		Kind:            deriveKind(now, d),
		EvaluatedAt:     now,
		votingStartTime: d.VotingStartTime,
		endTime:         d.EndTime,
	}
}

func deriveKind(now time.Time, d Descriptor) Kind {
	hasSubmissions := d.TotalSubmissions > 0
	switch {
	case now.Before(d.StartTime):
		return NotOpenYet
	case now.Before(d.VotingStartTime):
		if now.Before(d.SuggestionsEndTime) {
			return OpenForSubmissions
		}
		if hasSubmissions {
			return Paused
		}
		return EndingNoSubmissions
	case now.Before(d.EndTime):
		if hasSubmissions {
			return Voting
		}
		return EndingNoSubmissions
	case !hasSubmissions:
		return EndedNoSubmissions
	case d.NumberOfWinningSubmissions > 0:
		return Ended
	default:
		return EndedNoWinners
	}
}

// NotStarted reports whether submissions have not opened yet.
func (s Status) NotStarted() bool { return s.Kind == NotOpenYet }

// Open reports whether suggestions are being accepted.
func (s Status) Open() bool { return s.Kind == OpenForSubmissions }

// Paused reports the gap between the suggestion and voting windows.
func (s Status) Paused() bool { return s.Kind == Paused }

// Voting reports whether votes can be cast. It is false inside the voting
// window when there is nothing to vote on.
func (s Status) Voting() bool { return s.Kind == Voting }

// InVotingPeriod reports whether the evaluation instant falls inside the
// voting window, whether or not anything can be voted on.
func (s Status) InVotingPeriod() bool {
	return !s.EvaluatedAt.Before(s.votingStartTime) && s.EvaluatedAt.Before(s.endTime)
}

// Over reports whether the competition has finished, winners or not.
func (s Status) Over() bool { return s.Kind.Terminal() }

// OverWithWinners reports whether the competition ended with at least one
// winning submission.
func (s Status) OverWithWinners() bool { return s.Kind == Ended }

// VotingIsOver reports whether the evaluation instant is at or past EndTime.
func (s Status) VotingIsOver() bool {
	return !s.EvaluatedAt.Before(s.endTime)
}

// Flags is the flattened view of the derived booleans, for transport.
type Flags struct {
	NotStarted      bool `json:"not_started"`
	Open            bool `json:"open"`
	Paused          bool `json:"paused"`
	InVotingPeriod  bool `json:"in_voting_period"`
	Voting          bool `json:"voting"`
	Over            bool `json:"over"`
	OverWithWinners bool `json:"over_with_winners"`
	VotingIsOver    bool `json:"voting_is_over"`
}

// Flags evaluates every boolean accessor of s.
func (s Status) Flags() Flags {
	return Flags{
		NotStarted:      s.NotStarted(),
		Open:            s.Open(),
		Paused:          s.Paused(),
		InVotingPeriod:  s.InVotingPeriod(),
		Voting:          s.Voting(),
		Over:            s.Over(),
		OverWithWinners: s.OverWithWinners(),
		VotingIsOver:    s.VotingIsOver(),
	}
}
