package toast

import (
	"time"

	"sptlb/internal/leaderboard"
)

// Category selects the toast template, its dismiss time and its suppression mark.
type Category string

const (
	CategoryRaid    Category = "raid"
	CategoryBan     Category = "ban"
	CategoryWelcome Category = "welcome"
)

// Classify picks the toast category for a player.
func Classify(p leaderboard.Player) Category {
	switch {
	case bool(p.Banned):
		return CategoryBan
	case bool(p.IsNew):
		return CategoryWelcome
	default:
		return CategoryRaid
	}
}

// Decision is the outcome of Engine.Show.
type Decision string

const (
	Accepted       Decision = "accepted"
	SkipMalformed  Decision = "skip_malformed"
	SkipSuppressed Decision = "skip_suppressed"
	SkipDuplicate  Decision = "skip_duplicate"
	SkipClosed     Decision = "skip_closed"
)

func (d Decision) Accepted() bool { return d == Accepted }

// Position is where a visible toast sits in the stack, in pixels.
type Position struct {
	Top   int `json:"top"`
	Right int `json:"right"`
	Z     int `json:"z"`
}

// Cue is one sound to play when a toast is displayed.
type Cue struct {
	Sound  string  `json:"sound"`
	Volume float64 `json:"volume"`
}

// Content is the rendered text of a toast, independent of any output medium.
type Content struct {
	// Style is one of survived, died, disconnected, transit, private, ban, welcome.
	Style     string `json:"style"`
	Avatar    string `json:"avatar,omitempty"`
	Title     string `json:"title"`
	Badge     string `json:"badge,omitempty"`
	RankClass string `json:"rank_class,omitempty"`
	Info      string `json:"info,omitempty"`

	Outcome      string `json:"outcome,omitempty"`
	OutcomeClass string `json:"outcome_class,omitempty"`
	Meta         string `json:"meta,omitempty"`
	Streak       string `json:"streak,omitempty"`
	Highlight    bool   `json:"highlight,omitempty"`

	Lines  []string `json:"lines,omitempty"`
	Footer string   `json:"footer,omitempty"`
}

// Toast is a point-in-time view of one notification.
type Toast struct {
	ID          string    `json:"id"`
	PlayerID    string    `json:"player_id"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	State       State     `json:"state"`
	Content     Content   `json:"content"`
	Cues        []Cue     `json:"cues,omitempty"`
	RaidTime    int64     `json:"raid_time"`
	RequestedAt time.Time `json:"requested_at"`
	DisplayedAt time.Time `json:"displayed_at,omitempty"`
	Position    Position  `json:"position"`
}

// Renderer displays toasts. Methods are called with the engine lock held and
// must not call back into the Engine or block.
type Renderer interface {
	Show(t Toast) error
	FadeOut(id string)
	Remove(id string)
	Move(id string, pos Position)
	// Height reports the rendered height of a toast in pixels, or 0 if unknown.
	Height(id string) int
}

// Event types published on the bus.
const (
	EventAccepted  = "toast.accepted"
	EventSkipped   = "toast.skipped"
	EventDisplayed = "toast.displayed"
	EventFading    = "toast.fading"
	EventRemoved   = "toast.removed"
	EventEvicted   = "toast.evicted"
	EventFailed    = "toast.failed"
)

// LifecycleEvent is the Data of every toast.* bus event.
type LifecycleEvent struct {
	Toast    Toast    `json:"toast"`
	Decision Decision `json:"decision,omitempty"`
	Error    string   `json:"error,omitempty"`
}
