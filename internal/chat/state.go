// ABOUTME: Load state machine for the conversation window
// ABOUTME: Idle, Loading, Loaded and Error with retry and reselection edges

package chat

// Phase is the load state of the conversation window.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Event drives a Phase transition.
type Event int

const (
	EventSelect Event = iota
	EventSucceed
	EventFail
	EventRetry
)

// Next returns the phase after ev. ok is false when ev is not valid in p,
// in which case p is returned unchanged.
func Next(p Phase, ev Event) (next Phase, ok bool) {
	switch ev {
	case EventSelect:
		// selecting any conversation always starts a fresh load
		return PhaseLoading, true
	case EventSucceed:
		if p == PhaseLoading {
			return PhaseLoaded, true
		}
	case EventFail:
		if p == PhaseLoading {
			return PhaseError, true
		}
	case EventRetry:
		if p == PhaseError {
			return PhaseLoading, true
		}
	}
	return p, false
}

// View is the conversation window state handed to templates.
type View struct {
	Phase        Phase
	Conversation *Conversation
	Messages     *Page[Message]
	Err          error
}

// LoadView runs the window through Select then Succeed or Fail.
func LoadView(conv *Conversation, load func() (*Page[Message], error)) View {
	v := View{Conversation: conv}
	v.Phase, _ = Next(PhaseIdle, EventSelect)

	msgs, err := load()
	if err != nil {
		v.Phase, _ = Next(v.Phase, EventFail)
		v.Err = err
		return v
	}
	v.Phase, _ = Next(v.Phase, EventSucceed)
	v.Messages = msgs
	return v
}

// Retryable reports whether the error panel should offer a retry.
func (v View) Retryable() bool {
	return v.Phase == PhaseError && Retryable(v.Err)
}
