package leaderboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrShape = errors.New("leaderboard: unexpected payload shape")

// Decode reads a leaderboard payload. Both a bare array of players and an
// object wrapping it under "leaderboard" are accepted. Rows without an id are
// dropped.
func Decode(r io.Reader) ([]Player, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrShape)
	}

	var players []Player
	switch b[0] {
	case '[':
		if err := json.Unmarshal(b, &players); err != nil {
			return nil, err
		}
	case '{':
		var wrapped struct {
			Leaderboard *[]Player `json:"leaderboard"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Leaderboard == nil {
			return nil, fmt.Errorf("%w: missing leaderboard array", ErrShape)
		}
		players = *wrapped.Leaderboard
	default:
		return nil, fmt.Errorf("%w: starts with %q", ErrShape, b[0])
	}

	out := players[:0]
	for _, p := range players {
		if p.ID != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
