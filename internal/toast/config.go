package toast

import "time"

// Config holds the engine's limits and timings. Zero fields take the defaults
// from DefaultConfig.
type Config struct {
	MaxVisible int

	Pacing        time.Duration
	RaidDismiss   time.Duration
	NoticeDismiss time.Duration // ban and welcome toasts
	Fade          time.Duration

	BanSuppress     time.Duration
	WelcomeSuppress time.Duration

	BootstrapRaidWindow time.Duration
	BootstrapBanWindow  time.Duration
	BootstrapLimit      int

	Layout Layout

	// Location formats ban dates. Nil means time.Local.
	Location *time.Location
}

// Layout stacks visible toasts top to bottom.
type Layout struct {
	Top   int
	Gap   int
	Right int
	ZBase int
}

func DefaultConfig() Config {
	return Config{
		MaxVisible:          5,
		Pacing:              1600 * time.Millisecond,
		RaidDismiss:         12 * time.Second,
		NoticeDismiss:       27 * time.Second,
		Fade:                3 * time.Second,
		BanSuppress:         61 * time.Minute,
		WelcomeSuppress:     24 * time.Hour,
		BootstrapRaidWindow: 5 * time.Minute,
		BootstrapBanWindow:  2 * time.Hour,
		BootstrapLimit:      3,
		Layout:              Layout{Top: 100, Gap: 10, Right: 10, ZBase: 1000},
		Location:            time.Local,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxVisible <= 0 {
		c.MaxVisible = d.MaxVisible
	}
	if c.Pacing <= 0 {
		c.Pacing = d.Pacing
	}
	if c.RaidDismiss <= 0 {
		c.RaidDismiss = d.RaidDismiss
	}
	if c.NoticeDismiss <= 0 {
		c.NoticeDismiss = d.NoticeDismiss
	}
	if c.Fade <= 0 {
		c.Fade = d.Fade
	}
	if c.BanSuppress <= 0 {
		c.BanSuppress = d.BanSuppress
	}
	if c.WelcomeSuppress <= 0 {
		c.WelcomeSuppress = d.WelcomeSuppress
	}
	if c.BootstrapRaidWindow <= 0 {
		c.BootstrapRaidWindow = d.BootstrapRaidWindow
	}
	if c.BootstrapBanWindow <= 0 {
		c.BootstrapBanWindow = d.BootstrapBanWindow
	}
	if c.BootstrapLimit <= 0 {
		c.BootstrapLimit = d.BootstrapLimit
	}
	if c.Layout == (Layout{}) {
		c.Layout = d.Layout
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	return c
}

func (c Config) dismissFor(cat Category) time.Duration {
	if cat == CategoryRaid {
		return c.RaidDismiss
	}
	return c.NoticeDismiss
}
