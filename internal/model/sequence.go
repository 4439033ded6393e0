package model

// Sequence is the fixed stimulus sequence of one test run.
type Sequence struct {
	NBack     int   `json:"n_back"`
	Positions []int `json:"positions"`
}

// Len returns the number of trials in the sequence.
func (s Sequence) Len() int {
	return len(s.Positions)
}

// At returns the grid position shown on trial i.
func (s Sequence) At(i int) int {
	return s.Positions[i]
}

// IsMatch reports whether trial i repeats the position shown NBack trials
// earlier. Trials before NBack have no comparison target and never match.
func (s Sequence) IsMatch(i int) bool {
	if s.NBack <= 0 || i < s.NBack || i >= len(s.Positions) {
		return false
	}
	return s.Positions[i] == s.Positions[i-s.NBack]
}

// MatchCount returns the number of matching trials.
func (s Sequence) MatchCount() int {
	n := 0
	for i := range s.Positions {
		if s.IsMatch(i) {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares no memory with s.
func (s Sequence) Clone() Sequence {
	positions := make([]int, len(s.Positions))
	copy(positions, s.Positions)
	return Sequence{NBack: s.NBack, Positions: positions}
}
