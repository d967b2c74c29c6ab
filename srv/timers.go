package srv

import "time"

// Task is a cancelable scheduled callback bound to hub state. Callbacks run
// with the hub lock held and must therefore re-check that the state they
// were scheduled against still exists. Stop must be called with the hub
// lock held; a stopped task never fires again even if its timer already
// went off.
type Task struct {
	hub      *Hub
	timer    *time.Timer
	interval time.Duration // zero for one-shot
	stopped  bool
	fn       func()
}

// After schedules fn once after d.
func (h *Hub) After(d time.Duration, fn func()) *Task {
	t := &Task{hub: h, fn: fn}
	t.timer = time.AfterFunc(d, t.fire)
	return t
}

// Every schedules fn repeatedly at interval d until stopped.
func (h *Hub) Every(d time.Duration, fn func()) *Task {
	t := &Task{hub: h, interval: d, fn: fn}
	t.timer = time.AfterFunc(d, t.fire)
	return t
}

func (t *Task) fire() {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	if t.stopped {
		return
	}
	if t.interval > 0 {
		t.timer.Reset(t.interval)
	} else {
		t.stopped = true
	}
	t.fn()
}

// Stop cancels the task. The caller holds the hub lock, so a concurrent
// fire either already completed or will observe stopped and no-op.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.stopped = true
	t.timer.Stop()
}
