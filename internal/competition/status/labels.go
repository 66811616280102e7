package status

var labels = map[Kind]string{
	Voting:              "Voting",
	Paused:              "Paused",
	OpenForSubmissions:  "Open for submissions",
	NotOpenYet:          "Not open yet",
	EndingNoSubmissions: "Ending, no submissions",
	Ended:               "Ended",
	EndedNoWinners:      "Ended, no winners",
	EndedNoSubmissions:  "Ended, no submissions",
}

// Label returns the display text for a kind.
func Label(k Kind) string {
	if l, ok := labels[k]; ok {
		return l
	}
	return k.String()
}
