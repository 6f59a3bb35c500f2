// Package eapsession implements the EAP session persistence model: the
// per-correlator EapSession entity, its lifecycle state machine, and a
// single-goroutine store that serialises freeze/thaw access the way the
// reference sessionserver package serialises access to its session table.
package eapsession

import (
	"time"

	"github.com/francistor/radeap/eap"
)

// State is a node of the EapSession lifecycle.
type State int

const (
	StateNew State = iota
	StateRunning
	StateAwaitingProxyReply
	StateTerminalSuccess
	StateTerminalFailure
	// StateDestroyAfterLeapTrailer is the single documented exception to
	// "terminal means destroyed": LEAP sends one more Response after the
	// peer has already received Success.
	StateDestroyAfterLeapTrailer
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateRunning:
		return "Running"
	case StateAwaitingProxyReply:
		return "AwaitingProxyReply"
	case StateTerminalSuccess:
		return "Terminal(Success)"
	case StateTerminalFailure:
		return "Terminal(Failure)"
	case StateDestroyAfterLeapTrailer:
		return "DestroyAfterLeapTrailer"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further rounds may be dispatched on a
// session in this state, other than the LEAP trailer exception.
func (s State) IsTerminal() bool {
	return s == StateTerminalSuccess || s == StateTerminalFailure
}

// MethodProcess is the callback slot a session holds while a method is
// running: the round-handler function of the currently selected method.
// It mirrors the original's session->process function pointer.
type MethodProcess func(s *EapSession) (ok bool, err error)

// Flags captures the ancillary boolean state of a session.
type Flags struct {
	SeenTerminal  bool
	AwaitingProxy bool
}

// EapSession is the long-lived entity correlating rounds of a single EAP
// conversation.
type EapSession struct {
	Correlator string
	Type       eap.Type
	Process    MethodProcess

	// Username is the RADIUS User-Name carried by the currently-executing
	// request, refreshed by the dispatcher each round and narrowed to the
	// one field methods actually need.
	Username string

	// RequestRef is a weak back-reference to the currently-executing
	// request, valid only for the duration of the round that set it.
	// Never read across freeze/thaw.
	RequestRef interface{}

	ThisRound *eap.Round
	PrevRound *eap.Round

	// Opaque is method-owned state (e.g. *eaptunnel.TunnelState). Owned
	// exclusively by the session; the owning method's destructor (if any)
	// must run before Opaque is replaced or the session is destroyed.
	Opaque interface{}
	// OpaqueDestructor is invoked, if non-nil, before Opaque changes or the
	// session is destroyed.
	OpaqueDestructor func(interface{})

	// ReleaseMethod releases the registry handle reference acquired for the
	// session's current Type, if any (set by the method-selection step).
	ReleaseMethod func()

	TLS   bool
	State State

	flags Flags

	CreatedAt     time.Time
	LastTouchedAt time.Time
}

// NewSession creates a fresh, unstarted session for the given correlator.
func NewSession(correlator string, now time.Time) *EapSession {
	return &EapSession{
		Correlator:    correlator,
		State:         StateNew,
		CreatedAt:     now,
		LastTouchedAt: now,
	}
}

// SetMethod switches the session to run method t, freeing any previously
// owned Opaque state and releasing the previous method's handle reference
// first, and marks the session Running.
func (s *EapSession) SetMethod(t eap.Type) {
	s.FreeOpaque()
	s.ReleaseHandle()
	s.Type = t
	s.Process = nil
	s.State = StateRunning
}

// ReleaseHandle releases the registry handle reference held for the
// session's current method, if any. Safe to call when none is held.
func (s *EapSession) ReleaseHandle() {
	if s.ReleaseMethod != nil {
		s.ReleaseMethod()
	}
	s.ReleaseMethod = nil
}

// FreeOpaque invokes the owning method's destructor (if any) and clears
// Opaque. Safe to call when Opaque is already nil.
func (s *EapSession) FreeOpaque() {
	if s.Opaque != nil && s.OpaqueDestructor != nil {
		s.OpaqueDestructor(s.Opaque)
	}
	s.Opaque = nil
	s.OpaqueDestructor = nil
}

// AdvanceRound pushes ThisRound into PrevRound and starts a fresh round,
// used when another round is expected from the peer.
func (s *EapSession) AdvanceRound() {
	s.PrevRound = s.ThisRound
	s.ThisRound = nil
}

// MarkTerminal transitions the session to Terminal(Success|Failure), or to
// the LEAP trailing-round exception when leapTrailer is true.
func (s *EapSession) MarkTerminal(success bool, leapTrailer bool) {
	s.flags.SeenTerminal = true
	if leapTrailer {
		s.State = StateDestroyAfterLeapTrailer
		return
	}
	if success {
		s.State = StateTerminalSuccess
	} else {
		s.State = StateTerminalFailure
	}
}

// MarkAwaitingProxy transitions the session into AwaitingProxyReply.
func (s *EapSession) MarkAwaitingProxy() {
	s.flags.AwaitingProxy = true
	s.State = StateAwaitingProxyReply
}

// ResumeFromProxy transitions a session back from AwaitingProxyReply into
// Running on a successful post-proxy callback.
func (s *EapSession) ResumeFromProxy() {
	s.flags.AwaitingProxy = false
	s.State = StateRunning
}

// ShouldDestroyOnFreeze reports whether the session must be discarded
// rather than stored: a session that has reached a terminal state is
// freed on freeze, not kept around for a round that will never come.
func (s *EapSession) ShouldDestroyOnFreeze() bool {
	return s.State == StateTerminalSuccess || s.State == StateTerminalFailure
}
