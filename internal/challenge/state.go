package challenge

// State is the lifecycle of a challenge on one page.
type State int

const (
	// Absent means no challenge signature matched.
	Absent State = iota
	// Detected means a challenge is present and no bypass input was sent.
	Detected
	// BypassAttempted means input was sent and completion is being awaited.
	BypassAttempted
	// Resolved means the challenge cleared.
	Resolved
	// TimedOut means the challenge was still present after the completion timeout.
	TimedOut
)

var stateNames = [...]string{
	Absent:          "absent",
	Detected:        "detected",
	BypassAttempted: "bypass_attempted",
	Resolved:        "resolved",
	TimedOut:        "timed_out",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Clear reports whether the page is free of a challenge.
func (s State) Clear() bool {
	return s == Absent || s == Resolved
}
