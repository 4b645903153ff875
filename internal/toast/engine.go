package toast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"sptlb/internal/eventbus"
	"sptlb/internal/leaderboard"
	"sptlb/internal/storage"
	logx "sptlb/pkg/logx"
)

// suppressTimeout bounds the mark write done at display time.
const suppressTimeout = 2 * time.Second

type entry struct {
	t Toast

	player leaderboard.Player

	showTimer   Timer
	fadeTimer   Timer
	removeTimer Timer
}

func (en *entry) stopTimers() {
	stopTimer(en.showTimer)
	stopTimer(en.fadeTimer)
	stopTimer(en.removeTimer)
	en.showTimer, en.fadeTimer, en.removeTimer = nil, nil, nil
}

// Options are the engine's collaborators. Only Renderer is required.
type Options struct {
	Renderer Renderer
	Cues     CuePlayer
	Store    storage.Store
	Bus      eventbus.Bus
	Clock    Clock
	Log      logx.Logger
}

// Stats counts engine decisions since start.
type Stats struct {
	Accepted  int              `json:"accepted"`
	Skipped   map[Decision]int `json:"skipped"`
	Displayed int              `json:"displayed"`
	Evicted   int              `json:"evicted"`
	Removed   int              `json:"removed"`
	Failed    int              `json:"failed"`
	Pending   int              `json:"pending"`
	Visible   int              `json:"visible"`
}

// Engine paces, bounds and ages toasts. It is safe for concurrent use.
type Engine struct {
	renderer Renderer
	cues     CuePlayer
	bus      eventbus.Bus
	clock    Clock
	log      logx.Logger

	dedup *Dedup
	gate  *Gate

	mu      sync.Mutex
	cfg     Config
	pacer   *pacer
	pending []*entry // FIFO by acceptance
	visible []*entry // oldest first
	boot    []Timer
	stats   Stats
	closed  bool
}

func New(cfg Config, opts Options) (*Engine, error) {
	if opts.Renderer == nil {
		return nil, errors.New("toast: renderer is required")
	}
	if opts.Cues == nil {
		opts.Cues = NopCues{}
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Log.IsZero() {
		opts.Log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	log := opts.Log.With(logx.String("comp", "toast"))

	e := &Engine{
		renderer: opts.Renderer,
		cues:     opts.Cues,
		bus:      opts.Bus,
		clock:    opts.Clock,
		log:      log,
		dedup:    NewDedup(),
		gate:     NewGate(opts.Store, cfg.BanSuppress, cfg.WelcomeSuppress, opts.Clock.Now, log),
		cfg:      cfg,
		pacer:    newPacer(cfg.Pacing, opts.Clock.Now()),
		stats:    Stats{Skipped: map[Decision]int{}},
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Apply swaps limits and timings. Toasts already on screen keep their
// timers; a smaller MaxVisible evicts the oldest immediately.
func (e *Engine) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.pacer.setInterval(e.clock.Now(), cfg.Pacing)
	e.gate.setTTLs(cfg.BanSuppress, cfg.WelcomeSuppress)
	for len(e.visible) > cfg.MaxVisible {
		e.removeLocked(e.visible[0], EventEvicted)
	}
	e.log.Debug("toast config applied", logx.Int("max_visible", cfg.MaxVisible), logx.Duration("pacing", cfg.Pacing))
}

// Show requests a toast for p. Accepted toasts display in arrival order, no
// two display starts closer than the pacing interval.
func (e *Engine) Show(ctx context.Context, p leaderboard.Player) Decision {
	cat := Classify(p)
	if p.AbsoluteLastTime <= 0 {
		return e.skip(p, cat, SkipMalformed)
	}
	if e.isClosed() {
		return e.skip(p, cat, SkipClosed)
	}
	if e.gate.Blocked(ctx, p) {
		return e.skip(p, cat, SkipSuppressed)
	}

	var after func()
	defer func() {
		if after != nil {
			after()
		}
	}()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.skipLocked(p, cat, SkipClosed)
	}
	if !e.dedup.Claim(p) {
		return e.skipLocked(p, cat, SkipDuplicate)
	}

	now := e.clock.Now()
	content, cues := Compose(p, cat, now, e.cfg.Location)
	en := &entry{
		player: p,
		t: Toast{
			ID:          uuid.NewString(),
			PlayerID:    string(p.ID),
			Name:        p.Name,
			Category:    cat,
			State:       StatePending,
			Content:     content,
			Cues:        cues,
			RaidTime:    int64(p.AbsoluteLastTime),
			RequestedAt: now,
		},
	}
	e.pending = append(e.pending, en)
	e.stats.Accepted++
	e.publishLocked(EventAccepted, en, "")

	delay := e.pacer.reserve(now)
	e.log.Debug("toast accepted",
		logx.String("player", p.Name), logx.String("category", string(cat)), logx.Duration("wait", delay))
	if delay <= 0 {
		after = e.displayLocked(en)
		return Accepted
	}
	en.showTimer = e.clock.AfterFunc(delay, func() {
		var after func()
		defer func() {
			if after != nil {
				after()
			}
		}()
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || en.t.State != StatePending {
			return
		}
		en.showTimer = nil
		after = e.displayLocked(en)
	})
	return Accepted
}

// ShowAll requests a toast for each player in order.
func (e *Engine) ShowAll(ctx context.Context, players []leaderboard.Player) (accepted int) {
	for _, p := range players {
		if e.Show(ctx, p).Accepted() {
			accepted++
		}
	}
	return accepted
}

// Bootstrap runs the startup pass over a full snapshot and returns the plan.
func (e *Engine) Bootstrap(ctx context.Context, players []leaderboard.Player) []Planned {
	plan := PlanBootstrap(players, e.clock.Now(), e.Config())
	for _, pl := range plan {
		p := pl.Player
		if pl.Delay <= 0 {
			e.Show(ctx, p)
			continue
		}
		t := e.clock.AfterFunc(pl.Delay, func() { e.Show(ctx, p) })
		e.mu.Lock()
		if e.closed {
			t.Stop()
		} else {
			e.boot = append(e.boot, t)
		}
		e.mu.Unlock()
	}
	e.log.Info("bootstrap planned", logx.Int("players", len(players)), logx.Int("toasts", len(plan)))
	return plan
}

// displayLocked puts en on screen. The returned func plays the cues and
// writes the suppression mark; callers run it after releasing e.mu.
func (e *Engine) displayLocked(en *entry) func() {
	e.pending = without(e.pending, en)
	for len(e.visible) >= e.cfg.MaxVisible {
		e.removeLocked(e.visible[0], EventEvicted)
	}

	en.t.DisplayedAt = e.clock.Now()
	if err := advance(&en.t.State, StateDisplayed); err != nil {
		e.log.Error("toast lifecycle", logx.Err(err))
		return nil
	}
	if err := e.renderer.Show(en.t); err != nil {
		e.log.Error("toast render failed", logx.String("id", en.t.ID), logx.String("player", en.t.Name), logx.Err(err))
		_ = advance(&en.t.State, StateRemoved)
		e.stats.Failed++
		e.publishLocked(EventFailed, en, err.Error())
		return nil
	}
	e.visible = append(e.visible, en)
	e.stats.Displayed++

	e.relayoutLocked()
	e.publishLocked(EventDisplayed, en, "")

	en.fadeTimer = e.clock.AfterFunc(e.cfg.dismissFor(en.t.Category), func() { e.fadeOut(en) })

	t, id, cues, gate := en.t, en.player.ID, e.cues, e.gate
	return func() { e.afterDisplay(cues, gate, t, id) }
}

// afterDisplay plays the cues and writes the suppression mark. It must run
// without e.mu held.
func (e *Engine) afterDisplay(cues CuePlayer, gate *Gate, t Toast, id leaderboard.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), suppressTimeout)
	defer cancel()
	if err := cues.Play(ctx, t.Category, t.Cues); err != nil {
		e.log.Warn("toast cue failed", logx.String("id", t.ID), logx.Err(err))
	}
	if err := gate.Suppress(ctx, t.Category, id); err != nil {
		e.log.Warn("suppression write failed", logx.String("player", t.Name), logx.Err(err))
	}
}

func (e *Engine) fadeOut(en *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || en.t.State != StateDisplayed {
		return
	}
	en.fadeTimer = nil
	_ = advance(&en.t.State, StateFadingOut)
	e.renderer.FadeOut(en.t.ID)
	e.publishLocked(EventFading, en, "")
	en.removeTimer = e.clock.AfterFunc(e.cfg.Fade, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return
		}
		en.removeTimer = nil
		e.removeLocked(en, EventRemoved)
	})
}

// removeLocked takes en off screen. It is a no-op for removed entries, so a
// late timer after an eviction cannot remove twice.
func (e *Engine) removeLocked(en *entry, kind string) {
	if en.t.State.Terminal() {
		return
	}
	en.stopTimers()
	wasVisible := en.t.State != StatePending
	if err := advance(&en.t.State, StateRemoved); err != nil {
		e.log.Error("toast lifecycle", logx.Err(err))
		return
	}
	e.pending = without(e.pending, en)
	e.visible = without(e.visible, en)
	if wasVisible {
		e.renderer.Remove(en.t.ID)
		e.relayoutLocked()
	}
	if kind == EventEvicted {
		e.stats.Evicted++
		e.log.Debug("toast evicted", logx.String("id", en.t.ID), logx.String("player", en.t.Name))
	} else {
		e.stats.Removed++
	}
	e.publishLocked(kind, en, "")
}

// relayoutLocked stacks visible toasts top to bottom, oldest on top.
func (e *Engine) relayoutLocked() {
	l := e.cfg.Layout
	top := l.Top
	for i, en := range e.visible {
		pos := Position{Top: top, Right: l.Right, Z: l.ZBase + i}
		en.t.Position = pos
		e.renderer.Move(en.t.ID, pos)
		top += e.renderer.Height(en.t.ID) + l.Gap
	}
}

// Snapshot returns pending toasts (in display order) followed by visible ones.
func (e *Engine) Snapshot() []Toast {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Toast, 0, len(e.pending)+len(e.visible))
	for _, en := range e.pending {
		out = append(out, en.t)
	}
	for _, en := range e.visible {
		out = append(out, en.t)
	}
	return out
}

// Visible returns the toasts currently on screen, oldest first.
func (e *Engine) Visible() []Toast {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Toast, 0, len(e.visible))
	for _, en := range e.visible {
		out = append(out, en.t)
	}
	return out
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.stats
	st.Skipped = make(map[Decision]int, len(e.stats.Skipped))
	for k, v := range e.stats.Skipped {
		st.Skipped[k] = v
	}
	st.Pending = len(e.pending)
	st.Visible = len(e.visible)
	return st
}

// Close cancels every timer and takes all toasts off screen. Later Show
// calls return SkipClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	for _, t := range e.boot {
		t.Stop()
	}
	e.boot = nil
	for len(e.pending) > 0 {
		e.removeLocked(e.pending[0], EventRemoved)
	}
	for len(e.visible) > 0 {
		e.removeLocked(e.visible[0], EventRemoved)
	}
	e.closed = true
	return nil
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) skip(p leaderboard.Player, cat Category, d Decision) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.skipLocked(p, cat, d)
}

func (e *Engine) skipLocked(p leaderboard.Player, cat Category, d Decision) Decision {
	e.stats.Skipped[d]++
	e.log.Debug("toast skipped",
		logx.String("player", p.Name), logx.String("id", string(p.ID)),
		logx.String("category", string(cat)), logx.String("reason", string(d)))
	e.publishLocked(EventSkipped, &entry{t: Toast{
		PlayerID: string(p.ID),
		Name:     p.Name,
		Category: cat,
		RaidTime: int64(p.AbsoluteLastTime),
	}}, "", d)
	return d
}

func (e *Engine) publishLocked(typ string, en *entry, errText string, d ...Decision) {
	if e.bus == nil {
		return
	}
	ev := LifecycleEvent{Toast: en.t, Error: errText}
	if len(d) > 0 {
		ev.Decision = d[0]
	}
	e.bus.Publish(eventbus.Event{Type: typ, Time: e.clock.Now(), Data: ev})
}

func without(list []*entry, en *entry) []*entry {
	for i, x := range list {
		if x == en {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
