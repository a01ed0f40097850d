package orders

import "github.com/cuemby/brigade/pkg/types"

// edges lists every allowed status change
var edges = map[types.StatusID][]types.StatusID{
	types.StatusOpen:      {types.StatusPreparing, types.StatusCancelled},
	types.StatusPreparing: {types.StatusReady, types.StatusCancelled},
	types.StatusReady:     {types.StatusPaid, types.StatusCancelled},
	types.StatusPaid:      {types.StatusClosed},
	types.StatusCancelled: {types.StatusClosed},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to types.StatusID) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next returns the statuses reachable from s
func Next(s types.StatusID) []types.StatusID {
	return append([]types.StatusID(nil), edges[s]...)
}

// effectsFor returns the side effects queued when an order enters status
func effectsFor(to types.StatusID) []types.EffectKind {
	switch to {
	case types.StatusPreparing:
		return []types.EffectKind{types.EffectPreparingAlert}
	case types.StatusReady:
		return []types.EffectKind{types.EffectReadyAlert, types.EffectDeductInventory}
	case types.StatusCancelled:
		return []types.EffectKind{types.EffectCancellationAlert}
	}
	return nil
}
