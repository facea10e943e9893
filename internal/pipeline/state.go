package pipeline

// State is a step of the per-run state machine:
//
//	Received -> Classified -> Discarded
//	                       -> Syncing -> Mirroring? -> Publishing -> Committing -> Done
//
// Any stage may end in Failed.
type State string

const (
	StateReceived   State = "Received"
	StateClassified State = "Classified"
	StateDiscarded  State = "Discarded"
	StateSyncing    State = "Syncing"
	StateMirroring  State = "Mirroring"
	StatePublishing State = "Publishing"
	StateCommitting State = "Committing"
	StateDone       State = "Done"
	StateFailed     State = "Failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateDiscarded || s == StateFailed
}

// outcome is the metrics label for a terminal state.
func (s State) outcome() string {
	switch s {
	case StateDone:
		return "done"
	case StateDiscarded:
		return "discarded"
	default:
		return "failed"
	}
}
