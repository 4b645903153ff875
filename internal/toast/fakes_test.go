package toast

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// manualClock fires timers only when advanced, in deadline order.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	c       *manualClock
	at      time.Time
	seq     int
	f       func()
	done    bool
	stopped bool
}

func newManualClock(start time.Time) *manualClock { return &manualClock{now: start} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &manualTimer{c: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.done || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, running due callbacks outside the lock.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due []*manualTimer
		for _, t := range c.timers {
			if !t.done && !t.stopped && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].seq < due[j].seq
			}
			return due[i].at.Before(due[j].at)
		})
		next := due[0]
		next.done = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done && !t.stopped {
			n++
		}
	}
	return n
}

type renderOp struct {
	Op  string
	ID  string
	At  time.Time
	Pos Position
}

// recordingRenderer keeps an operation log and the set of toasts on screen.
type recordingRenderer struct {
	clock  *manualClock
	height int
	failOn map[string]bool // player ids

	ops      []renderOp
	shown    map[string]Toast
	onScreen map[string]bool
	maxSeen  int
}

func newRecordingRenderer(c *manualClock) *recordingRenderer {
	return &recordingRenderer{
		clock:    c,
		height:   80,
		failOn:   map[string]bool{},
		shown:    map[string]Toast{},
		onScreen: map[string]bool{},
	}
}

func (r *recordingRenderer) Show(t Toast) error {
	if r.failOn[t.PlayerID] {
		return errors.New("container missing")
	}
	r.ops = append(r.ops, renderOp{Op: "show", ID: t.ID, At: r.clock.Now()})
	r.shown[t.ID] = t
	r.onScreen[t.ID] = true
	if len(r.onScreen) > r.maxSeen {
		r.maxSeen = len(r.onScreen)
	}
	return nil
}

func (r *recordingRenderer) FadeOut(id string) {
	r.ops = append(r.ops, renderOp{Op: "fade", ID: id, At: r.clock.Now()})
}

func (r *recordingRenderer) Remove(id string) {
	r.ops = append(r.ops, renderOp{Op: "remove", ID: id, At: r.clock.Now()})
	delete(r.onScreen, id)
}

func (r *recordingRenderer) Move(id string, pos Position) {
	r.ops = append(r.ops, renderOp{Op: "move", ID: id, At: r.clock.Now(), Pos: pos})
}

func (r *recordingRenderer) Height(string) int { return r.height }

func (r *recordingRenderer) count(op string) int {
	n := 0
	for _, o := range r.ops {
		if o.Op == op {
			n++
		}
	}
	return n
}

func (r *recordingRenderer) opsFor(id string) []string {
	var out []string
	for _, o := range r.ops {
		if o.ID == id && o.Op != "move" {
			out = append(out, o.Op)
		}
	}
	return out
}

func (r *recordingRenderer) showTimes() []time.Time {
	var out []time.Time
	for _, o := range r.ops {
		if o.Op == "show" {
			out = append(out, o.At)
		}
	}
	return out
}

func (r *recordingRenderer) showIDs() []string {
	var out []string
	for _, o := range r.ops {
		if o.Op == "show" {
			out = append(out, o.ID)
		}
	}
	return out
}
