package render

import (
	"context"
	"errors"

	"sptlb/internal/toast"
)

// Fanout forwards every call to each renderer. Show fails only when all of
// them fail; Height comes from the first renderer that knows it.
type Fanout []toast.Renderer

func (f Fanout) Show(t toast.Toast) error {
	if len(f) == 0 {
		return nil
	}
	var errs []error
	for _, r := range f {
		if err := r.Show(t); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(f) {
		return errors.Join(errs...)
	}
	return nil
}

func (f Fanout) FadeOut(id string) {
	for _, r := range f {
		r.FadeOut(id)
	}
}

func (f Fanout) Remove(id string) {
	for _, r := range f {
		r.Remove(id)
	}
}

func (f Fanout) Move(id string, pos toast.Position) {
	for _, r := range f {
		r.Move(id, pos)
	}
}

func (f Fanout) Height(id string) int {
	for _, r := range f {
		if h := r.Height(id); h > 0 {
			return h
		}
	}
	return 0
}

// Cues fans a cue out to several players and joins their errors.
type Cues []toast.CuePlayer

func (c Cues) Play(ctx context.Context, cat toast.Category, cues []toast.Cue) error {
	var errs []error
	for _, p := range c {
		if err := p.Play(ctx, cat, cues); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
