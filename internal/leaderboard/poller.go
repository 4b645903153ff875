package leaderboard

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "sptlb/pkg/logx"
)

// Fetcher is satisfied by *Client.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Player, error)
}

// Sink receives each successful poll. snapshot is the full feed; changed is
// what moved since the last poll. first is true exactly once.
type Sink func(ctx context.Context, snapshot, changed []Player, first bool)

const DefaultSchedule = "@every 30s"

// Poller fetches the feed on a cron schedule.
type Poller struct {
	fetch   Fetcher
	sink    Sink
	tracker *Tracker
	log     logx.Logger
	timeout time.Duration

	parser cron.Parser

	mu       sync.Mutex
	c        *cron.Cron
	ctx      context.Context
	latest   map[ID]Player
	lastErr  error
	lastPoll time.Time

	// lifecycle serializes Start and Stop; PollOnce never takes it.
	lifecycle sync.Mutex
	running   sync.Mutex
}

func NewPoller(fetch Fetcher, sink Sink, log logx.Logger) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{
		fetch:   fetch,
		sink:    sink,
		tracker: NewTracker(),
		log:     log.With(logx.String("comp", "leaderboard")),
		timeout: 20 * time.Second,
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		latest:  map[ID]Player{},
	}
}

// Validate reports whether spec parses as a poll schedule.
func (p *Poller) Validate(spec string) error {
	_, err := p.parser.Parse(normalizeSchedule(spec))
	return err
}

// Start polls once immediately, then on schedule, until ctx is done or Stop is called.
func (p *Poller) Start(ctx context.Context, spec string) error {
	sched, err := p.parser.Parse(normalizeSchedule(spec))
	if err != nil {
		return err
	}
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.stopCron()

	c := cron.New(cron.WithParser(p.parser))
	c.Schedule(sched, cron.FuncJob(func() { p.PollOnce(ctx) }))
	p.mu.Lock()
	p.ctx = ctx
	p.c = c
	p.mu.Unlock()
	c.Start()

	p.log.Info("poller started", logx.String("schedule", normalizeSchedule(spec)))
	go p.PollOnce(ctx)
	return nil
}

// Reschedule swaps the schedule of a running poller.
func (p *Poller) Reschedule(spec string) error {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil {
		return nil
	}
	if err := p.Validate(spec); err != nil {
		return err
	}
	return p.Start(ctx, spec)
}

func (p *Poller) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.stopCron()
	p.mu.Lock()
	p.ctx = nil
	p.mu.Unlock()
}

// stopCron waits for the running job, which may need p.mu, so p.mu must not
// be held here.
func (p *Poller) stopCron() {
	p.mu.Lock()
	c := p.c
	p.c = nil
	p.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// PollOnce runs a single fetch/diff/sink cycle. Overlapping runs are skipped.
func (p *Poller) PollOnce(ctx context.Context) {
	if !p.running.TryLock() {
		p.log.Debug("poll skipped; previous still running")
		return
	}
	defer p.running.Unlock()
	if ctx.Err() != nil {
		return
	}

	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	players, err := p.fetch.Fetch(fctx)
	cancel()

	p.mu.Lock()
	p.lastPoll = time.Now()
	p.lastErr = err
	p.mu.Unlock()
	if err != nil {
		p.log.Warn("leaderboard fetch failed", logx.Err(err))
		return
	}

	latest := make(map[ID]Player, len(players))
	for _, pl := range players {
		latest[pl.ID] = pl
	}
	p.mu.Lock()
	p.latest = latest
	p.mu.Unlock()

	changed, first := p.tracker.Diff(players)
	p.log.Debug("leaderboard polled", logx.Int("players", len(players)), logx.Int("changed", len(changed)), logx.Bool("first", first))
	if p.sink != nil {
		p.sink(ctx, players, changed, first)
	}
}

// Lookup returns a player from the latest snapshot.
func (p *Poller) Lookup(id ID) (Player, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.latest[id]
	return pl, ok
}

// Status reports when the last poll ran and how it ended.
func (p *Poller) Status() (at time.Time, players int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll, len(p.latest), p.lastErr
}

func normalizeSchedule(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return DefaultSchedule
	}
	return spec
}
