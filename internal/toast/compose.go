package toast

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"sptlb/internal/leaderboard"
)

const banDateLayout = "January 2 2006, 15:04"

// Compose builds the toast text and the sound cues for p.
func Compose(p leaderboard.Player, cat Category, now time.Time, loc *time.Location) (Content, []Cue) {
	if loc == nil {
		loc = time.Local
	}
	switch cat {
	case CategoryBan:
		return composeBan(p, loc)
	case CategoryWelcome:
		return composeWelcome(p)
	default:
		return composeRaid(p, now)
	}
}

func displayName(p leaderboard.Player) string {
	if p.TeamTag != "" {
		return "[" + p.TeamTag + "] " + p.Name
	}
	return p.Name
}

func composeRaid(p leaderboard.Player, now time.Time) (Content, []Cue) {
	c := Content{
		Avatar: p.ProfilePicture,
		Title:  displayName(p),
	}
	switch {
	case bool(p.Dev):
		c.Badge = "developer"
	case bool(p.Trusted):
		c.Badge = "trusted"
	}
	switch p.Rank {
	case 1:
		c.RankClass = "Legendary"
	case 2:
		c.RankClass = "Rare"
	}

	rel := humanize.RelTime(p.LastRaidAt(), now, "ago", "from now")
	if p.IsCasual {
		c.Info = fmt.Sprintf("Finished raid • %s • Casual Mode", rel)
	} else {
		c.Info = fmt.Sprintf("Finished raid • %s • Rank #%d", rel, p.Rank)
	}

	var cues []Cue
	streak, streakCue := streakText(p)
	if streakCue.Sound != "" {
		cues = append(cues, streakCue)
	}
	if cue, ok := outcomeCue(p); ok {
		cues = append(cues, cue)
	}

	if !p.PublicProfile {
		c.Style = "private"
		return c, cues
	}

	c.Style, c.OutcomeClass, c.Outcome = outcome(p)
	c.Meta = metaLine(p)
	c.Streak = streak
	c.Highlight = p.LastRaidKills > 5
	return c, cues
}

func outcome(p leaderboard.Player) (style, class, text string) {
	switch {
	case bool(p.DiscFromRaid):
		style = "disconnected"
	case bool(p.IsTransition):
		style = "transit"
	case bool(p.LastRaidSurvived):
		style = "survived"
	default:
		style = "died"
	}
	switch {
	case bool(p.LastRaidRanThrough):
		return style, "run-through", "Runner"
	case bool(p.DiscFromRaid):
		return style, "disconnected", "Left"
	case bool(p.IsTransition):
		to := p.LastRaidTransitionTo
		if to == "" {
			to = "Unknown"
		}
		return style, "transit", fmt.Sprintf("In Transit (%s → %s)", leaderboard.PrettyMap(p.LastRaidMap), leaderboard.PrettyMap(to))
	case bool(p.LastRaidSurvived):
		return style, "survived", "Survived"
	default:
		return style, "died", "Killed in Action"
	}
}

func metaLine(p leaderboard.Player) string {
	mapName := leaderboard.PrettyMap(p.LastRaidMap)
	if mapName == "" {
		mapName = "Unknown"
	}
	side := p.LastRaidAs
	if side == "" {
		side = "N/A"
	}
	parts := []string{mapName, side}
	if !p.LastRaidSurvived {
		parts = append(parts, "Killed by "+p.AgressorName)
	}
	parts = append(parts, humanize.Comma(int64(p.LastRaidEXP))+" EXP")
	return strings.Join(parts, " • ")
}

// streakText returns the win- or kill-streak banner. A win streak above five
// raids takes precedence over kill streaks.
func streakText(p leaderboard.Player) (string, Cue) {
	if p.CurrentWinstreak > 5 {
		return fmt.Sprintf("ON A %d RAID WIN STREAK!", p.CurrentWinstreak),
			Cue{Sound: "raidstreak/5raidstreak.wav", Volume: 0.05}
	}
	kills := int64(p.LastRaidKills)
	if !bool(p.LastRaidSurvived) || kills <= 1 {
		return "", Cue{}
	}
	name := p.Name
	var text, sound string
	switch {
	case kills == 2:
		text, sound = name+" just made double kill!", "2.wav"
	case kills == 3:
		text, sound = name+" is on triple kill!", "3.wav"
	case kills >= 6 && kills < 8:
		text, sound = fmt.Sprintf("%s IS WICKED WITH %d KILLS!", name, kills), "6.wav"
	case kills >= 8 && kills < 10:
		text, sound = fmt.Sprintf("%s IS UNSTOPPABLE! %d KILLS!", name, kills), "8.wav"
	case kills >= 10 && kills < 12:
		text, sound = fmt.Sprintf("%s IS A TARKOV DEMON! %d KILLS!", name, kills), "10.wav"
	case kills >= 12 && kills < 15:
		text, sound = fmt.Sprintf("%s IS GODLIKE! %d KILLS!", name, kills), "12.wav"
	case kills >= 15:
		text, sound = fmt.Sprintf("SOMEONE STOP THIS MACHINE! %d KILLS IN ONE RAID!", kills), "15.wav"
	default:
		// 4 and 5 kills have no banner.
		return "", Cue{}
	}
	return text, Cue{Sound: "killstreak/" + sound, Volume: 0.04}
}

func outcomeCue(p leaderboard.Player) (Cue, bool) {
	switch {
	case p.LastRaidAs == "PMC" && bool(p.LastRaidSurvived):
		return Cue{Sound: "pmc-raid-run.ogg", Volume: 0.05}, true
	case p.LastRaidAs == "PMC":
		return Cue{Sound: "pmc-raid-died.wav", Volume: 0.05}, true
	case p.LastRaidAs == "SCAV" && bool(p.LastRaidSurvived):
		return Cue{Sound: "scav-raid-run.mp3", Volume: 0.20}, true
	case p.LastRaidAs == "SCAV":
		return Cue{Sound: "scav-raid-died.wav", Volume: 0.15}, true
	}
	return Cue{}, false
}

func composeBan(p leaderboard.Player, loc *time.Location) (Content, []Cue) {
	headline := "Was banned from Leaderboard."
	until := formatBanDate(p.BannedUntil(), loc)
	if p.PermBanned {
		headline = "Was permanently banned from Leaderboard."
		until = "Permanent"
	}
	c := Content{
		Style:   "ban",
		Title:   displayName(p),
		Outcome: headline,
		Lines: []string{
			"Reason: " + p.BanReason,
			"Banned at: " + formatBanDate(p.BannedAt(), loc),
			"Banned until: " + until,
		},
		Footer: "Banned by " + p.TookAction,
	}
	return c, []Cue{
		{Sound: "ban/ban_reveal.mp3", Volume: 0.10},
		{Sound: "ban/ban.mp3", Volume: 0.15},
	}
}

func formatBanDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "Unknown"
	}
	return t.In(loc).Format(banDateLayout)
}

func composeWelcome(p leaderboard.Player) (Content, []Cue) {
	c := Content{
		Style:  "welcome",
		Avatar: p.ProfilePicture,
		Badge:  "new",
		Title:  "Welcome to SPT Leaderboard!",
		Info:   p.Name + " just joined SPTLB",
		Lines:  []string{fmt.Sprintf("Joined us at #%d rank", p.Rank)},
	}
	return c, []Cue{{Sound: "killstreak/firstblood.wav", Volume: 0.08}}
}
