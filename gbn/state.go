package gbn

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-gbn/logger"
	"github.com/arloliu/go-gbn/packet"
)

// Role identifies the side of a session.
type Role uint8

const (
	// RoleSender is the server side that streams data units.
	RoleSender Role = iota
	// RoleReceiver is the client side that opens the session and consumes units.
	RoleReceiver
)

func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleReceiver:
		return "receiver"
	default:
		return "unknown"
	}
}

// State represents the stages of a session.
type State uint32

// Session states.
const (
	// StateInit is the state before anything was sent or received.
	StateInit State = iota
	// StateSynSent means the receiver sent SYN and waits for SYN-ACK.
	StateSynSent
	// StateAwaitSyn means the sender waits for SYN, or for the ACK completing the handshake.
	StateAwaitSyn
	// StateEstablished means the handshake completed; parameters are exchanged next.
	StateEstablished
	// StateTransfer means data units are flowing.
	StateTransfer
	// StateClosed means the session ended.
	StateClosed
)

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSynSent:
		return "syn-sent"
	case StateAwaitSyn:
		return "await-syn"
	case StateEstablished:
		return "established"
	case StateTransfer:
		return "transfer"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// event is an input to the session state machine.
type event uint8

const (
	evStart  event = iota // role starts the session
	evSYN                 // SYN received
	evSYNACK              // SYN-ACK with ack=0 received
	evACK                 // ACK received
	evRST                 // RST received
	evOther               // any other packet
	evParams              // parameter exchange completed
	evDone                // transfer finished locally
)

func (e event) String() string {
	return [...]string{"start", "syn", "syn-ack", "ack", "rst", "other", "params", "done"}[e]
}

// action is what the state machine asks the session to do on a transition.
type action uint8

const (
	actNone action = iota
	actSendSYN
	actSendSYNACK
	actSendACK
	actSendRST
	actIgnore
)

func (a action) String() string {
	return [...]string{"none", "send-syn", "send-syn-ack", "send-ack", "send-rst", "ignore"}[a]
}

// classify maps an inbound handshake packet to its event.
// A SYN-ACK only counts when it acknowledges sequence number 0.
func classify(p packet.Packet) event {
	switch p.Flag {
	case packet.SYN:
		return evSYN
	case packet.SYNACK:
		if p.Ack == 0 {
			return evSYNACK
		}
		return evOther
	case packet.ACK:
		return evACK
	case packet.RST:
		return evRST
	default:
		return evOther
	}
}

type transitionKey struct {
	role  Role
	state State
	event event
}

type transition struct {
	next   State
	action action
}

// transitions is the complete table of allowed transitions.
//
// While waiting in StateSynSent or StateAwaitSyn, packet events that are not in
// the table are ignored and the wait repeats. Any other missing entry is an
// invalid transition.
var transitions = map[transitionKey]transition{
	// receiver: INIT -> SYN_SENT -> ESTABLISHED -> TRANSFER -> CLOSED
	{RoleReceiver, StateInit, evStart}:         {StateSynSent, actSendSYN},
	{RoleReceiver, StateSynSent, evSYNACK}:     {StateEstablished, actSendACK},
	{RoleReceiver, StateEstablished, evParams}: {StateTransfer, actNone},
	{RoleReceiver, StateTransfer, evRST}:       {StateClosed, actNone},
	{RoleReceiver, StateTransfer, evDone}:      {StateClosed, actNone},

	// sender: INIT -> AWAIT_SYN (SYN repeats) -> ESTABLISHED -> TRANSFER -> CLOSED
	{RoleSender, StateInit, evStart}:         {StateAwaitSyn, actNone},
	{RoleSender, StateAwaitSyn, evSYN}:       {StateAwaitSyn, actSendSYNACK},
	{RoleSender, StateAwaitSyn, evACK}:       {StateEstablished, actNone},
	{RoleSender, StateEstablished, evParams}: {StateTransfer, actNone},
	{RoleSender, StateTransfer, evDone}:      {StateClosed, actSendRST},
}

// isPacketEvent reports whether e originates from an inbound packet.
func isPacketEvent(e event) bool {
	return e >= evSYN && e <= evOther
}

// lookup returns the transition for (role, state, ev).
func lookup(role Role, state State, ev event) (transition, error) {
	if t, ok := transitions[transitionKey{role, state, ev}]; ok {
		return t, nil
	}

	if isPacketEvent(ev) && (state == StateSynSent || state == StateAwaitSyn) {
		return transition{next: state, action: actIgnore}, nil
	}

	return transition{}, fmt.Errorf("%w: %s in state %s on %s", ErrInvalidTransition, role, state, ev)
}

// StateChangeHandler is invoked when the state of a session changes.
//
// Note: the handler is invoked synchronously from the protocol loop.
type StateChangeHandler func(role Role, prevState State, newState State)

// stateMachine tracks the session state of one role.
//
// The state is readable from any goroutine; transitions happen only on the
// protocol loop.
type stateMachine struct {
	mu       sync.Mutex
	role     Role
	state    atomic.Uint32
	logger   logger.Logger
	metrics  *SessionMetrics
	handlers []StateChangeHandler
}

func newStateMachine(role Role, l logger.Logger, m *SessionMetrics, handlers ...StateChangeHandler) *stateMachine {
	sm := &stateMachine{
		role:     role,
		logger:   l,
		metrics:  m,
		handlers: handlers,
	}
	sm.state.Store(uint32(StateInit))
	m.setState(StateInit)

	return sm
}

// State returns the current state.
func (sm *stateMachine) State() State {
	return State(sm.state.Load())
}

// fire applies ev and returns the action the caller must perform.
func (sm *stateMachine) fire(ev event) (action, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cur := sm.State()
	t, err := lookup(sm.role, cur, ev)
	if err != nil {
		return actNone, err
	}

	if t.next != cur {
		sm.logger.Debug("session state changed", "role", sm.role, "prevState", cur, "newState", t.next, "event", ev)
		sm.state.Store(uint32(t.next))
		sm.metrics.setState(t.next)
		for _, handler := range sm.handlers {
			if handler != nil {
				handler(sm.role, cur, t.next)
			}
		}
	}

	return t.action, nil
}
