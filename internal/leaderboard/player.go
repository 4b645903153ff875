package leaderboard

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ID is a player identifier. The backend emits it as a number or a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Int is an integer that also accepts numeric strings, floats and null.
type Int int64

func (v *Int) UnmarshalJSON(b []byte) error {
	f, err := flexNumber(b)
	if err != nil {
		return err
	}
	*v = Int(f)
	return nil
}

// Float is a float64 that also accepts numeric strings and null.
type Float float64

func (v *Float) UnmarshalJSON(b []byte) error {
	f, err := flexNumber(b)
	if err != nil {
		return err
	}
	*v = Float(f)
	return nil
}

// Flag is a bool that also accepts 0/1 and their string forms.
type Flag bool

func (v *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch strings.ToLower(strings.Trim(string(b), `"`)) {
	case "true", "1", "yes":
		*v = true
	case "false", "0", "", "null", "no":
		*v = false
	default:
		f, err := flexNumber(b)
		if err != nil {
			return err
		}
		*v = f != 0
	}
	return nil
}

func flexNumber(b []byte) (float64, error) {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return 0, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return 0, nil
		}
	}
	switch s {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Player is one row of the leaderboard feed: the player's latest raid or ban
// outcome plus the profile totals used for battle-pass progress.
type Player struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`

	// AbsoluteLastTime is the unix time (seconds) the last raid finished.
	AbsoluteLastTime Int `json:"absoluteLastTime"`

	Banned     Flag   `json:"banned"`
	BanTime    Int    `json:"banTime"`
	BanExpires Int    `json:"banExpires"`
	PermBanned Flag   `json:"permBanned"`
	BanReason  string `json:"banReason"`
	TookAction string `json:"tookAction"`

	IsNew Flag `json:"isNew"`

	LastRaidSurvived     Flag   `json:"lastRaidSurvived"`
	LastRaidKills        Int    `json:"lastRaidKills"`
	LastRaidAs           string `json:"lastRaidAs"`
	LastRaidMap          string `json:"lastRaidMap"`
	LastRaidTransitionTo string `json:"lastRaidTransitionTo"`
	LastRaidEXP          Int    `json:"lastRaidEXP"`
	AgressorName         string `json:"agressorName"`
	DiscFromRaid         Flag   `json:"discFromRaid"`
	IsTransition         Flag   `json:"isTransition"`
	LastRaidRanThrough   Flag   `json:"lastRaidRanThrough"`
	CurrentWinstreak     Int    `json:"currentWinstreak"`

	Rank           Int    `json:"rank"`
	TeamTag        string `json:"teamTag"`
	Trusted        Flag   `json:"trusted"`
	Dev            Flag   `json:"dev"`
	PublicProfile  Flag   `json:"publicProfile"`
	ProfilePicture string `json:"profilePicture"`
	IsCasual       Flag   `json:"isCasual"`

	PMCRaids        Int   `json:"pmcRaids"`
	PMCKills        Int   `json:"pmcKills"`
	ScavRaids       Int   `json:"scavRaids"`
	ScavKills       Int   `json:"scavKills"`
	Survived        Int   `json:"survived"`
	SurvivalRate    Float `json:"survivalRate"`
	AverageLifeTime Float `json:"averageLifeTime"`
	Damage          Float `json:"damage"`
}

// LastRaidAt returns the last raid completion time, or the zero time when unknown.
func (p Player) LastRaidAt() time.Time { return unixOrZero(p.AbsoluteLastTime) }

// BannedAt returns the ban time, or the zero time when unknown.
func (p Player) BannedAt() time.Time { return unixOrZero(p.BanTime) }

// BannedUntil returns the ban expiry, or the zero time when unknown.
func (p Player) BannedUntil() time.Time { return unixOrZero(p.BanExpires) }

func unixOrZero(sec Int) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0)
}
