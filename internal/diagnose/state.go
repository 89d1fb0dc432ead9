package diagnose

import "fmt"

// State is one node of the per-alert diagnosis state machine. The graph
// is fixed and small; alerts only ever move forward.
type State string

const (
	StateStart            State = "start"
	StateClustered        State = "clustered"
	StateSummarized       State = "summarized"
	StateClassified       State = "classified"
	StateRouted           State = "routed"
	StateContextGathering State = "context_gathering"
	StateSolved           State = "solved"
)

// Event is a completed step's outcome driving a transition.
type Event string

const (
	EventClustered          Event = "clustered"
	EventSummarized         Event = "summarized"
	EventClassified         Event = "classified"
	EventRoutedSufficient   Event = "routed_sufficient"
	EventRoutedNeedsContext Event = "routed_needs_context"
	EventSolved             Event = "solved"
)

// Next is the pure transition function. It has no side effects and no
// external calls, so the graph's shape is testable in isolation. An
// event that is not legal in the given state is a programming error.
func Next(state State, event Event) (State, error) {
	switch state {
	case StateStart:
		if event == EventClustered {
			return StateClustered, nil
		}
	case StateClustered:
		if event == EventSummarized {
			return StateSummarized, nil
		}
	case StateSummarized:
		if event == EventClassified {
			return StateClassified, nil
		}
	case StateClassified:
		switch event {
		case EventRoutedSufficient:
			return StateRouted, nil
		case EventRoutedNeedsContext:
			return StateContextGathering, nil
		}
	case StateRouted:
		if event == EventSolved {
			return StateSolved, nil
		}
	case StateContextGathering:
		if event == EventSolved {
			return StateSolved, nil
		}
	}
	return "", fmt.Errorf("illegal transition: event %q in state %q", event, state)
}
