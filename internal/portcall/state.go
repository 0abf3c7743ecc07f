package portcall

import (
	"errors"
	"fmt"
	"time"
)

// Action is the side effect the caller must perform after a state
// machine derivation, transactionally with persisting the next state.
type Action string

const (
	// ActionOpen means: insert a new call with the derived call ID and
	// an arrival at the derivation timestamp.
	ActionOpen Action = "open"
	// ActionClose means: set the departure timestamp on the call the
	// prior state pointed at.
	ActionClose Action = "close"
	// ActionNone means: no call mutation, only the state cursor advances.
	ActionNone Action = "none"
)

// ErrUnhandledTransition is returned when a vessel appears to jump
// directly from one geofence into another without an intervening
// outside observation. The ingest worker avoids this combination by
// deriving a close against the current port before considering opens
// against other ports; any caller that hits it must not guess at
// close-then-open semantics on the vessel's behalf.
var ErrUnhandledTransition = errors.New("unhandled geofence transition")

// DeriveTransition turns a "currently inside" verdict for one candidate
// geofence plus the persisted vessel state into exactly one action and
// the next persisted state.
//
// newCallID is the identifier to assign if the derivation opens a call;
// it is minted by the caller so this function stays pure. It is ignored
// unless the returned action is ActionOpen.
//
// Restart safety is entirely the caller's concern: it must re-read the
// persisted state before every invocation and persist the next state
// atomically with the call insert/update (single writer per vessel).
func DeriveTransition(state VesselState, nowInside bool, candidatePortID, newCallID string, ts time.Time) (Action, VesselState, error) {
	next := state
	next.LastPositionAt = ts

	switch {
	case !state.InPort && nowInside:
		next.InPort = true
		next.CurrentPortID = candidatePortID
		next.CurrentCallID = newCallID
		return ActionOpen, next, nil

	case state.InPort && nowInside && state.CurrentPortID == candidatePortID:
		// Replay of a "still inside" observation after a crash or retry:
		// the persisted state is the source of truth, so no second open.
		return ActionNone, next, nil

	case state.InPort && !nowInside:
		next.InPort = false
		next.CurrentPortID = ""
		next.CurrentCallID = ""
		return ActionClose, next, nil

	case !state.InPort && !nowInside:
		return ActionNone, next, nil

	default:
		// state.InPort && nowInside && candidate != current: a jump
		// between overlapping geofences with no outside observation.
		return ActionNone, state, fmt.Errorf("%w: vessel %s inside port %s observed inside port %s",
			ErrUnhandledTransition, state.VesselID, state.CurrentPortID, candidatePortID)
	}
}
