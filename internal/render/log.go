package render

import (
	"context"

	"sptlb/internal/toast"
	logx "sptlb/pkg/logx"
)

// LogRenderer writes the lifecycle to the log. It is the fallback when no
// other renderer is configured.
type LogRenderer struct {
	log logx.Logger
}

func NewLogRenderer(log logx.Logger) *LogRenderer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogRenderer{log: log.With(logx.String("comp", "render.log"))}
}

func (r *LogRenderer) Show(t toast.Toast) error {
	fields := []logx.Field{
		logx.String("id", t.ID),
		logx.String("player", t.Name),
		logx.String("category", string(t.Category)),
		logx.String("title", t.Content.Title),
	}
	if t.Content.Outcome != "" {
		fields = append(fields, logx.String("outcome", t.Content.Outcome))
	}
	if t.Content.Streak != "" {
		fields = append(fields, logx.String("streak", t.Content.Streak))
	}
	r.log.Info("toast", fields...)
	return nil
}

func (r *LogRenderer) FadeOut(id string) { r.log.Debug("toast fading", logx.String("id", id)) }
func (r *LogRenderer) Remove(id string)  { r.log.Debug("toast removed", logx.String("id", id)) }

func (r *LogRenderer) Move(id string, pos toast.Position) {
	r.log.Trace("toast moved", logx.String("id", id), logx.Int("top", pos.Top), logx.Int("z", pos.Z))
}

func (r *LogRenderer) Height(string) int { return 0 }

func (r *LogRenderer) Play(ctx context.Context, cat toast.Category, cues []toast.Cue) error {
	for _, c := range cues {
		r.log.Trace("cue", logx.String("category", string(cat)), logx.String("sound", c.Sound), logx.Float64("volume", c.Volume))
	}
	return nil
}
