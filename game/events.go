package game

// EventKind discriminates the side effects the engine asks its caller to
// perform. The engine itself never touches the transport.
type EventKind int

const (
	// EventLog carries one narrated log entry; the caller should follow it
	// with a full state broadcast.
	EventLog EventKind = iota
	// EventShowChoices asks the caller to reveal every seat's card.
	EventShowChoices
	// EventMovements asks the caller to push the per-seat movement visuals.
	EventMovements
	// EventForceReselect targets only the listed seats: their white cards
	// were voided and they must pick again.
	EventForceReselect
	// EventNextTurn asks the caller to schedule the next StartTurn.
	EventNextTurn
	// EventGameOver signals the terminal phase was reached.
	EventGameOver
)

// Event is one ordered side effect produced by a state transition.
type Event struct {
	Kind  EventKind
	Log   LogEntry
	Seats []int
}

// LogEntry is a narrated line of game history.
type LogEntry struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// MovementVisual records one seat's move for client animation.
type MovementVisual struct {
	PrevPos  int `json:"prevPos"`
	FinalPos int `json:"finalPos"`
	Move     int `json:"move"`
}
