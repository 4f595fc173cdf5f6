package records

// State is the lifecycle position of a collection view.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateLoadError
	StateSubmitting
	StateSubmitError
	StateDeleting
	StateDeleteError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StateLoaded:
		return "Loaded"
	case StateLoadError:
		return "LoadError"
	case StateSubmitting:
		return "Submitting"
	case StateSubmitError:
		return "SubmitError"
	case StateDeleting:
		return "Deleting"
	case StateDeleteError:
		return "DeleteError"
	default:
		return "Unknown"
	}
}

// InFlight reports whether an operation is running.
func (s State) InFlight() bool {
	return s == StateLoading || s == StateSubmitting || s == StateDeleting
}

// Snapshot is a point-in-time view of a collection. Items is never mutated
// after publication; writers always install a fresh slice.
type Snapshot[T any] struct {
	State State
	Items []T
	Err   error
}
