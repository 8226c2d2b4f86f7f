package poll

// Ledger tracks the current vote of every voter for a single poll.
// It keeps only the live vote set, no history: re-voting overwrites
// the voter's previous entry. The Ledger is not safe for concurrent
// use on its own; the owning Poll serializes access to it.
type Ledger struct {
	optionCount int
	votes       map[string]int
}

// NewLedger creates an empty ledger for a poll with optionCount options.
func NewLedger(optionCount int) *Ledger {
	return &Ledger{
		optionCount: optionCount,
		votes:       make(map[string]int),
	}
}

// Cast records or overwrites the voter's choice. It returns the voter's
// previous choice and whether one existed. Fails with ErrInvalidOption
// if option is outside the poll's declared range.
func (l *Ledger) Cast(voterID string, option int) (previous int, hadPrevious bool, err error) {
	if option < 0 || option >= l.optionCount {
		return 0, false, ErrInvalidOption
	}

	previous, hadPrevious = l.votes[voterID]
	l.votes[voterID] = option
	return previous, hadPrevious, nil
}

// Retract removes the voter's entry if present and reports whether
// anything was removed. Retracting an absent voter is not an error.
func (l *Ledger) Retract(voterID string) bool {
	if _, ok := l.votes[voterID]; !ok {
		return false
	}
	delete(l.votes, voterID)
	return true
}

// Tally computes the current vote count per option in one pass.
// Options with zero votes are present with count 0 so callers can
// render the full option list.
func (l *Ledger) Tally() map[int]int {
	tally := make(map[int]int, l.optionCount)
	for i := 0; i < l.optionCount; i++ {
		tally[i] = 0
	}
	for _, option := range l.votes {
		tally[option]++
	}
	return tally
}

// VoterChoice returns the voter's current choice, if any.
func (l *Ledger) VoterChoice(voterID string) (option int, ok bool) {
	option, ok = l.votes[voterID]
	return option, ok
}

// VoterCount returns the number of voters with an active entry.
func (l *Ledger) VoterCount() int {
	return len(l.votes)
}

// Entries returns a copy of the current voter to option mapping.
func (l *Ledger) Entries() map[string]int {
	entries := make(map[string]int, len(l.votes))
	for voter, option := range l.votes {
		entries[voter] = option
	}
	return entries
}

// restore replaces the ledger contents, used when rebuilding a poll
// from a persisted record. Entries pointing at unknown options are
// dropped rather than corrupting the tally.
func (l *Ledger) restore(entries map[string]int) {
	l.votes = make(map[string]int, len(entries))
	for voter, option := range entries {
		if option < 0 || option >= l.optionCount {
			continue
		}
		l.votes[voter] = option
	}
}
