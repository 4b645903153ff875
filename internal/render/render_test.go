package render

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"sptlb/internal/leaderboard"
	"sptlb/internal/storage"
	"sptlb/internal/toast"
	logx "sptlb/pkg/logx"
)

func sampleToast(id string) toast.Toast {
	return toast.Toast{
		ID:       id,
		PlayerID: "p1",
		Name:     "Rook",
		Category: toast.CategoryRaid,
		State:    toast.StateDisplayed,
		Content: toast.Content{
			Title:   "Rook <PMC>",
			Outcome: "Survived",
			Meta:    "Customs • 2 kills",
			Footer:  "just now",
		},
	}
}

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, c *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func TestHubSnapshotThenBroadcast(t *testing.T) {
	h := NewHub(logx.Nop(), nil)
	h.SetSnapshot(func() []toast.Toast { return []toast.Toast{sampleToast("a")} })
	conn := dialHub(t, h)

	f := readFrame(t, conn)
	assert.Equal(t, "snapshot", f.Type)
	require.Len(t, f.Toasts, 1)
	assert.Equal(t, "a", f.Toasts[0].ID)

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Show(sampleToast("b")))
	f = readFrame(t, conn)
	assert.Equal(t, "show", f.Type)
	assert.Equal(t, "b", f.ID)
	assert.Positive(t, h.Height("b"))

	h.Move("b", toast.Position{Top: 190, Right: 10, Z: 2})
	f = readFrame(t, conn)
	assert.Equal(t, "move", f.Type)
	require.NotNil(t, f.Position)
	assert.Equal(t, 190, f.Position.Top)

	require.NoError(t, h.Play(context.Background(), toast.CategoryRaid, []toast.Cue{{Sound: "survived", Volume: 0.5}}))
	f = readFrame(t, conn)
	assert.Equal(t, "cue", f.Type)
	require.Len(t, f.Cues, 1)

	h.Remove("b")
	f = readFrame(t, conn)
	assert.Equal(t, "remove", f.Type)
	assert.Zero(t, h.Height("b"))
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	h := NewHub(logx.Nop(), []string{"http://overlay.local"})
	srv := httptest.NewServer(h)
	defer srv.Close()
	u := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://overlay.local/"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestHubCloseDisconnects(t *testing.T) {
	h := NewHub(logx.Nop(), nil)
	conn := dialHub(t, h)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)

	h.Close()
	assert.Zero(t, h.Clients())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestEstimateHeight(t *testing.T) {
	assert.Equal(t, 64, EstimateHeight(toast.Content{Title: "x"}))
	assert.Equal(t, 64+18*3+6, EstimateHeight(toast.Content{Outcome: "o", Streak: "s", Lines: []string{"l"}, Highlight: true}))
}

type stubRenderer struct {
	err    error
	height int
	calls  []string
}

func (s *stubRenderer) Show(t toast.Toast) error {
	s.calls = append(s.calls, "show")
	return s.err
}
func (s *stubRenderer) FadeOut(string)              { s.calls = append(s.calls, "fade") }
func (s *stubRenderer) Remove(string)               { s.calls = append(s.calls, "remove") }
func (s *stubRenderer) Move(string, toast.Position) { s.calls = append(s.calls, "move") }
func (s *stubRenderer) Height(string) int           { return s.height }

func TestFanout(t *testing.T) {
	a := &stubRenderer{err: errors.New("a down")}
	b := &stubRenderer{height: 120}
	f := Fanout{a, b}

	require.NoError(t, f.Show(sampleToast("x")))
	f.FadeOut("x")
	f.Move("x", toast.Position{})
	f.Remove("x")
	assert.Equal(t, []string{"show", "fade", "move", "remove"}, a.calls)
	assert.Equal(t, a.calls, b.calls)
	assert.Equal(t, 120, f.Height("x"))

	b.err = errors.New("b down")
	err := f.Show(sampleToast("y"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a down")
	assert.Contains(t, err.Error(), "b down")

	require.NoError(t, Fanout{}.Show(sampleToast("z")))
}

func TestCuesJoinErrors(t *testing.T) {
	boom := errors.New("boom")
	c := Cues{toast.NopCues{}, toast.CueFunc(func(context.Context, toast.Category, []toast.Cue) error { return boom })}
	require.ErrorIs(t, c.Play(context.Background(), toast.CategoryBan, nil), boom)
}

type fakeSender struct {
	mu      sync.Mutex
	next    int
	sent    []string
	opts    []*tele.SendOptions
	deleted []int
	fail    bool
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("telegram down")
	}
	f.next++
	f.sent = append(f.sent, what.(string))
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			f.opts = append(f.opts, so)
		}
	}
	return &tele.Message{ID: f.next, Chat: &tele.Chat{ID: 42}}, nil
}

func (f *fakeSender) Delete(msg tele.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := msg.MessageSig()
	n, _ := strconv.Atoi(id)
	f.deleted = append(f.deleted, n)
	return nil
}

func (f *fakeSender) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent), len(f.deleted)
}

func TestTelegramMirrorsShowAndRemove(t *testing.T) {
	fs := &fakeSender{}
	tg := NewTelegram(fs, TelegramConfig{ChatID: 42, ThreadID: 7, RatePerSec: 100}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { _ = tg.Run(ctx); close(done) }()

	require.NoError(t, tg.Show(sampleToast("x")))
	require.Eventually(t, func() bool { s, _ := fs.counts(); return s == 1 }, 2*time.Second, 5*time.Millisecond)

	tg.FadeOut("x")
	tg.Move("x", toast.Position{Top: 100})
	assert.Zero(t, tg.Height("x"))

	tg.Remove("x")
	require.Eventually(t, func() bool { _, d := fs.counts(); return d == 1 }, 2*time.Second, 5*time.Millisecond)

	// Removing something never sent is a no-op.
	tg.Remove("never")

	cancel()
	<-done

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, []int{1}, fs.deleted)
	require.Len(t, fs.opts, 1)
	assert.Equal(t, tele.ModeHTML, fs.opts[0].ParseMode)
	assert.Equal(t, 7, fs.opts[0].ThreadID)
	assert.Contains(t, fs.sent[0], "<b>Rook &lt;PMC&gt;</b>")
}

func TestTelegramQueueFullDrops(t *testing.T) {
	tg := NewTelegram(&fakeSender{}, TelegramConfig{QueueSize: 1}, logx.Nop())
	require.NoError(t, tg.Show(sampleToast("a")))
	require.NoError(t, tg.Show(sampleToast("b")))
	tg.Remove("a")
	assert.EqualValues(t, 2, tg.Dropped())
}

func TestTelegramBotNeedsToken(t *testing.T) {
	_, err := NewTelegramBot("  ")
	require.Error(t, err)
}

func TestFormatHTML(t *testing.T) {
	ts := sampleToast("x")
	ts.Content.Streak = "Killing spree"
	ts.Content.Highlight = true
	ts.Content.Lines = []string{"Banned until March 2 2025, 12:00"}
	got := FormatHTML(ts)
	assert.Equal(t, "<b>Rook &lt;PMC&gt;</b>\n<b>Survived</b>\nCustoms • 2 kills\n<b>Killing spree</b>\nBanned until March 2 2025, 12:00\n<i>just now</i>", got)
}

type fakeToasts struct{}

func (fakeToasts) Snapshot() []toast.Toast { return []toast.Toast{sampleToast("a")} }
func (fakeToasts) Stats() toast.Stats      { return toast.Stats{Visible: 1, Accepted: 3} }

type fakePlayers map[leaderboard.ID]leaderboard.Player

func (f fakePlayers) Lookup(id leaderboard.ID) (leaderboard.Player, bool) {
	p, ok := f[id]
	return p, ok
}

type fakeHistory struct {
	entries []storage.HistoryEntry
	gotN    int
	err     error
}

func (f *fakeHistory) RecentHistory(ctx context.Context, n int) ([]storage.HistoryEntry, error) {
	f.gotN = n
	return f.entries, f.err
}

func TestServerRoutes(t *testing.T) {
	hist := &fakeHistory{entries: []storage.HistoryEntry{{ToastID: "a", Kind: "displayed"}}}
	players := fakePlayers{"p1": {ID: "p1", Name: "Rook", PMCRaids: 100, PMCKills: 50}}
	s := NewServer("127.0.0.1:0", NewHub(logx.Nop(), nil), fakeToasts{}, players, hist, logx.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	get := func(path string) (*http.Response, map[string]any) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		m, _ := body.(map[string]any)
		if m == nil {
			m = map[string]any{"items": body}
		}
		return resp, m
	}

	resp, body := get("/api/toasts")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["toasts"], 1)

	resp, body = get("/api/players/p1/battlepass")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Rook", body["name"])
	assert.NotEmpty(t, body["summary"])

	resp, _ = get("/api/players/nobody/battlepass")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = get("/api/history?limit=1000")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)
	assert.Equal(t, maxHistory, hist.gotN)

	resp, _ = get("/api/history?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	hist.err = errors.New("db gone")
	resp, _ = get("/api/history")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, defaultHistory, hist.gotN)

	resp, body = get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestServerWithoutOptionalSources(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, fakeToasts{}, nil, nil, logx.Nop())
	for _, path := range []string{"/api/players/p1/battlepass", "/api/history"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/toasts", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "method not allowed")
}

func TestServerRunStopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewHub(logx.Nop(), nil), fakeToasts{}, nil, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(7 * time.Second):
		t.Fatal("server did not stop")
	}
}
