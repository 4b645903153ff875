package toast

import "context"

// CuePlayer plays the sounds of a displayed toast. It is called with the
// engine lock held and must not block; a returned error is logged and
// does not affect the toast.
type CuePlayer interface {
	Play(ctx context.Context, cat Category, cues []Cue) error
}

// NopCues discards every cue.
type NopCues struct{}

func (NopCues) Play(context.Context, Category, []Cue) error { return nil }

// CueFunc adapts a function to CuePlayer.
type CueFunc func(ctx context.Context, cat Category, cues []Cue) error

func (f CueFunc) Play(ctx context.Context, cat Category, cues []Cue) error { return f(ctx, cat, cues) }
