package chain

import (
	"sync"

	"github.com/lagoon-network/lagoon/src/head"
)

// DefaultWindow is the default number of retained chain states, bounded by
// the security parameter of the base chain.
const DefaultWindow = 2160

// LocalChainState keeps a short-lived, rewindable history of observed chain
// states, indexed by the chain point each was recorded at. It supports
// rolling back to the newest state at or before a point; a rollback past the
// retained window is unrecoverable.
type LocalChainState struct {
	mu sync.RWMutex

	window  int
	history []*State
}

// NewLocalChainState starts the history from an initial state.
func NewLocalChainState(initial *State, window int) *LocalChainState {
	if window <= 0 {
		window = DefaultWindow
	}
	return &LocalChainState{
		window:  window,
		history: []*State{initial},
	}
}

// Current returns the newest state.
func (l *LocalChainState) Current() *State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.history[len(l.history)-1]
}

// Advance records a new state, evicting history beyond the window.
func (l *LocalChainState) Advance(st *State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, st)
	if len(l.history) > l.window {
		l.history = l.history[len(l.history)-l.window:]
	}
}

// Rollback restores the newest state recorded at or before point. States
// recorded after the point are discarded. A point older than the retained
// window fails with UnrecoverableRollback.
func (l *LocalChainState) Rollback(point head.ChainPoint) (*State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.history) - 1; i >= 0; i-- {
		if l.history[i].RecordedAt.Slot <= point.Slot {
			l.history = l.history[:i+1]
			return l.history[i], nil
		}
	}

	return nil, &UnrecoverableRollbackError{Point: point}
}
