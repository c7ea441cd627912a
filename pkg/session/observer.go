package session

import "github.com/pion/logging"

// Observer is notified synchronously after every change to the session state.
// Notifications are never batched: each intermediate value is delivered.
type Observer interface {
	OnStateChanged(State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(State)

// OnStateChanged calls f(s).
func (f ObserverFunc) OnStateChanged(s State) { f(s) }

// StoreObserver returns an Observer that saves every state to store.
//
// Save failures are logged and dropped. The in-memory counters remain
// authoritative for the running process.
func StoreObserver(store Store, log logging.LeveledLogger) Observer {
	return ObserverFunc(func(s State) {
		if err := store.Save(s); err != nil && log != nil {
			log.Warnf("saving session state %v: %v", s, err)
		}
	})
}

// Observers fans a change out to several observers in order.
type Observers []Observer

// OnStateChanged implements Observer.
func (o Observers) OnStateChanged(s State) {
	for _, obs := range o {
		if obs != nil {
			obs.OnStateChanged(s)
		}
	}
}
