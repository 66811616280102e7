package status

import (
	"sort"
	"time"
)

// Entry pairs a descriptor with its last computed status. Status is nil when
// the competition has not been evaluated yet.
type Entry struct {
	Descriptor Descriptor
	Status     *Status
}

// Compare orders two entries by kind (declaration order), then by the
// boundary relevant to that kind, earliest first. Entries lacking a status
// compare equal to everything.
func Compare(a, b Entry) int {
	if a.Status == nil || b.Status == nil {
		return 0
	}
	if a.Status.Kind != b.Status.Kind {
		if a.Status.Kind < b.Status.Kind {
			return -1
		}
		return 1
	}
	at := sortBoundary(a.Status.Kind, a.Descriptor)
	bt := sortBoundary(b.Status.Kind, b.Descriptor)
	switch {
	case at.Before(bt):
		return -1
	case at.After(bt):
		return 1
	default:
		return 0
	}
}

func sortBoundary(k Kind, d Descriptor) time.Time {
	switch k {
	case NotOpenYet:
		return d.StartTime
	case OpenForSubmissions:
		return d.SuggestionsEndTime
	case Paused:
		return d.VotingStartTime
	default:
		return d.EndTime
	}
}

// Sort orders entries in place with Compare. The sort is stable so entries
// that compare equal keep their incoming order.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Compare(entries[i], entries[j]) < 0
	})
}
