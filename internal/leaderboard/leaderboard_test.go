package leaderboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "sptlb/pkg/logx"
)

const feed = `[
  {"id": 101, "name": "Alpha", "absoluteLastTime": "1000", "lastRaidSurvived": 1, "lastRaidKills": 2, "lastRaidAs": "PMC"},
  {"id": "202", "name": "Bravo", "banned": true, "banTime": 2000, "banExpires": 5000, "permBanned": false},
  {"name": "no id"}
]`

func TestDecodeArrayTolerant(t *testing.T) {
	t.Parallel()
	players, err := Decode(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, players, 2)

	a := players[0]
	assert.Equal(t, ID("101"), a.ID)
	assert.EqualValues(t, 1000, a.AbsoluteLastTime)
	assert.True(t, bool(a.LastRaidSurvived))
	assert.EqualValues(t, 2, a.LastRaidKills)
	assert.Equal(t, time.Unix(1000, 0), a.LastRaidAt())

	b := players[1]
	assert.Equal(t, ID("202"), b.ID)
	assert.True(t, bool(b.Banned))
	assert.True(t, b.LastRaidAt().IsZero())
	assert.Equal(t, time.Unix(5000, 0), b.BannedUntil())
}

func TestDecodeWrapped(t *testing.T) {
	t.Parallel()
	players, err := Decode(strings.NewReader(`{"leaderboard": [{"id": 1, "name": "x", "survivalRate": "55.5"}]}`))
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.InDelta(t, 55.5, float64(players[0].SurvivalRate), 1e-9)
}

func TestDecodeBadShapes(t *testing.T) {
	t.Parallel()
	for _, body := range []string{"", `"text"`, `{"players": []}`} {
		_, err := Decode(strings.NewReader(body))
		require.ErrorIs(t, err, ErrShape, body)
	}
	_, err := Decode(strings.NewReader(`[{"id": 1, "rank": "first"}]`))
	require.Error(t, err)
}

func TestPrettyMap(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Customs", PrettyMap("bigmap"))
	assert.Equal(t, "Ground Zero - High", PrettyMap("Sandbox_high"))
	assert.Equal(t, "Nowhere", PrettyMap("Nowhere"))
}

func TestClientFetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("t"))
		assert.Equal(t, "1", r.URL.Query().Get("keep"))
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/lb.json?keep=1", time.Second)
	players, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, players, 2)
}

func TestClientStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Fetch(context.Background())
	require.ErrorIs(t, err, ErrStatus)

	_, err = NewClient("", time.Second).Fetch(context.Background())
	require.ErrorIs(t, err, ErrNoURL)
}

func TestTrackerDiff(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	base := []Player{
		{ID: "1", AbsoluteLastTime: 1000},
		{ID: "2", Banned: true, BanTime: 2000},
	}
	changed, first := tr.Diff(base)
	assert.True(t, first)
	assert.Empty(t, changed)

	changed, first = tr.Diff(base)
	assert.False(t, first)
	assert.Empty(t, changed)

	next := []Player{
		{ID: "1", AbsoluteLastTime: 1100},
		{ID: "2", Banned: true, BanTime: 2500},
		{ID: "3", IsNew: true, AbsoluteLastTime: 900},
	}
	changed, _ = tr.Diff(next)
	require.Len(t, changed, 3)
	assert.Equal(t, ID("1"), changed[0].ID)
	assert.Equal(t, ID("2"), changed[1].ID)
	assert.Equal(t, ID("3"), changed[2].ID)
}

type stubFetcher struct {
	mu    sync.Mutex
	calls int
	out   []Player
	err   error
}

func (s *stubFetcher) Fetch(ctx context.Context) ([]Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.out, s.err
}

func TestPollerPollOnce(t *testing.T) {
	t.Parallel()
	f := &stubFetcher{out: []Player{{ID: "1", AbsoluteLastTime: 1000}}}

	var firsts []bool
	p := NewPoller(f, func(ctx context.Context, snapshot, changed []Player, first bool) {
		firsts = append(firsts, first)
	}, logx.Nop())

	p.PollOnce(context.Background())
	p.PollOnce(context.Background())
	assert.Equal(t, []bool{true, false}, firsts)

	pl, ok := p.Lookup("1")
	require.True(t, ok)
	assert.EqualValues(t, 1000, pl.AbsoluteLastTime)

	f.err = errors.New("offline")
	p.PollOnce(context.Background())
	assert.Len(t, firsts, 2)
	_, n, err := p.Status()
	assert.Equal(t, 1, n)
	require.Error(t, err)
}

func TestPollerSchedule(t *testing.T) {
	t.Parallel()
	p := NewPoller(&stubFetcher{}, nil, logx.Nop())
	require.NoError(t, p.Validate(""))
	require.NoError(t, p.Validate("*/30 * * * * *"))
	require.NoError(t, p.Validate("@every 1m"))
	require.Error(t, p.Validate("every minute"))
	require.NoError(t, p.Reschedule("@every 1m"), "not started yet")
}

// gatedFetcher answers the first call at once and holds every later call
// until release is closed.
type gatedFetcher struct {
	mu      sync.Mutex
	calls   int
	held    chan struct{}
	release chan struct{}
}

func (g *gatedFetcher) Fetch(ctx context.Context) ([]Player, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if n == 1 {
		return []Player{{ID: "1", AbsoluteLastTime: 1000}}, nil
	}
	if n == 2 {
		close(g.held)
	}
	<-g.release
	return []Player{{ID: "1", AbsoluteLastTime: 2000}}, nil
}

func TestRescheduleDuringScheduledFetch(t *testing.T) {
	t.Parallel()
	g := &gatedFetcher{held: make(chan struct{}), release: make(chan struct{})}
	p := NewPoller(g, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, p.Start(ctx, "@every 1s"))
	defer p.Stop()
	select {
	case <-g.held:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled poll never ran")
	}

	done := make(chan error, 1)
	go func() { done <- p.Reschedule("@every 1m") }()
	// Reschedule waits for the running job; the job must still be able to finish.
	time.Sleep(50 * time.Millisecond)
	close(g.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Reschedule deadlocked behind the running poll")
	}
	require.Eventually(t, func() bool {
		pl, ok := p.Lookup("1")
		return ok && pl.AbsoluteLastTime == 2000
	}, 2*time.Second, 10*time.Millisecond)
}
