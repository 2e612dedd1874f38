package sectionlock

import "time"

// Observer is notified of lock events.
//
// LockAcquired is called after the lock is held and LockReleased before it
// is given up, so the interval an observer sees between the two always lies
// inside the real hold. Callbacks run synchronously on the acquiring or
// releasing goroutine and must not call back into the Table.
type Observer interface {
	LockAcquired(section int, mode Mode, wait time.Duration)
	LockTimedOut(section int, mode Mode, wait time.Duration)
	LockReleased(section int, mode Mode)
}

type nopObserver struct{}

func (nopObserver) LockAcquired(int, Mode, time.Duration) {}
func (nopObserver) LockTimedOut(int, Mode, time.Duration) {}
func (nopObserver) LockReleased(int, Mode)                {}

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return nopObserver{}
	case 1:
		return list[0]
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) LockAcquired(k int, mode Mode, wait time.Duration) {
	for _, o := range m {
		o.LockAcquired(k, mode, wait)
	}
}

func (m multiObserver) LockTimedOut(k int, mode Mode, wait time.Duration) {
	for _, o := range m {
		o.LockTimedOut(k, mode, wait)
	}
}

func (m multiObserver) LockReleased(k int, mode Mode) {
	for _, o := range m {
		o.LockReleased(k, mode)
	}
}
