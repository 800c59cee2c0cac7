package account

import "time"

// timedLock is a mutual-exclusion slot with bounded-wait acquisition.
// Waiters park the goroutine, not an OS thread, and give up after the
// supplied budget instead of blocking forever.
type timedLock struct {
	ch chan struct{}
}

func newTimedLock() timedLock {
	return timedLock{ch: make(chan struct{}, 1)}
}

// tryAcquire returns true when the lock was taken within wait.
func (l timedLock) tryAcquire(wait time.Duration) bool {
	select {
	case l.ch <- struct{}{}:
		return true
	default:
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case l.ch <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

func (l timedLock) release() {
	select {
	case <-l.ch:
	default:
		panic("account: release of unheld lock")
	}
}
