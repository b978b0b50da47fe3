package state

// StateMachineTraits is the read surface engines and handlers consume a
// machine through; the concrete machine stays a static value.
type StateMachineTraits interface {
	FindState(name string) (State, bool)
	FindTransition(fromState, toState string) (Transition, bool)
	AvailableTransitions(fromState, toState string) []Transition
}

type Category uint

const (
	InIntake Category = iota
	InReview
	Done
	Rejected
)

type State struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// IsTerminal reports whether no transition may ever leave this state.
func (s State) IsTerminal() bool {
	return s.Category == Done || s.Category == Rejected
}

type Transition struct {
	Name string `json:"name"`
	From State  `json:"from"`
	To   State  `json:"to"`

	// Permission IDs allowed to request this transition. Empty means any
	// authenticated actor (applicant self-service transitions).
	Permissions []string `json:"permissions"`
	// Precondition identifier evaluated by the engine before the state is
	// changed.
	Precondition string `json:"precondition"`
}

// stateless object, just used for state computing
type StateMachine struct {
	States      []State      `json:"states"`
	Transitions []Transition `json:"transitions"`
}

func NewStateMachine(states []State, transitions []Transition) *StateMachine {
	return &StateMachine{States: states, Transitions: transitions}
}

func (sm *StateMachine) FindState(name string) (State, bool) {
	for _, s := range sm.States {
		if s.Name == name {
			return s, true
		}
	}
	return State{}, false
}

func (sm *StateMachine) FindTransition(fromState, toState string) (Transition, bool) {
	for _, transition := range sm.Transitions {
		if transition.From.Name == fromState && transition.To.Name == toState {
			return transition, true
		}
	}
	return Transition{}, false
}

func (sm *StateMachine) AvailableTransitions(fromState string, toState string) []Transition {
	r := []Transition{}
	for _, transition := range sm.Transitions {
		if (fromState == "" || fromState == transition.From.Name) && (toState == "" || toState == transition.To.Name) {
			r = append(r, transition)
		}
	}
	return r
}
