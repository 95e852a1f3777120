package domain

// Verb is the lifecycle transition a behavior commits to.
type Verb int

const (
	// VerbNone means the behavior requested nothing: the instance stays idle,
	// awaiting the next inbound event.
	VerbNone Verb = iota
	// VerbAdvance runs the topic's next behavior on the same instance.
	VerbAdvance
	// VerbDispatch runs the topic's receive behavior against the inbound event
	// that triggered the instance creation. Only valid from init.
	VerbDispatch
	// VerbComplete finishes the instance and delivers the payload to its parent.
	VerbComplete
)

func (v Verb) String() string {
	switch v {
	case VerbNone:
		return "none"
	case VerbAdvance:
		return "advance"
	case VerbDispatch:
		return "dispatch"
	case VerbComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Behavior names one of the four topic behaviors.
type Behavior string

const (
	BehaviorInit     Behavior = "init"
	BehaviorNext     Behavior = "next"
	BehaviorReceive  Behavior = "receive"
	BehaviorComplete Behavior = "complete"
)

// Transition is the outcome of a single behavior invocation.
// Payload is only meaningful when Verb is VerbComplete.
type Transition struct {
	Verb    Verb
	Payload any
}

// Stay is the zero transition: no lifecycle change requested.
func Stay() Transition {
	return Transition{}
}

// Advance requests the next behavior of the same instance.
func Advance() Transition {
	return Transition{Verb: VerbAdvance}
}

// Dispatch requests the receive behavior of the same instance.
func Dispatch() Transition {
	return Transition{Verb: VerbDispatch}
}

// Complete finishes the instance with the given payload.
func Complete(payload any) Transition {
	return Transition{Verb: VerbComplete, Payload: payload}
}

// Allowed reports whether the verb may be requested from the given behavior.
func (v Verb) Allowed(b Behavior) bool {
	if v == VerbDispatch {
		return b == BehaviorInit
	}
	return v >= VerbNone && v <= VerbComplete
}
