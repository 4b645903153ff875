package render

import (
	"context"
	"errors"
	"html"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"sptlb/internal/toast"
	logx "sptlb/pkg/logx"
)

// Sender is the part of *tele.Bot the channel mirror needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// NewTelegramBot builds an offline bot client; it only sends, never polls.
func NewTelegramBot(token string) (*tele.Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	return tele.NewBot(tele.Settings{Token: token, Offline: true})
}

type TelegramConfig struct {
	ChatID     int64
	ThreadID   int
	RatePerSec int
	QueueSize  int
}

type tgOp struct {
	remove bool
	toast  toast.Toast
	id     string
}

// Telegram mirrors displayed toasts into a chat: a message is posted when a
// toast is displayed and deleted when it is removed. Calls from the engine
// only enqueue; Run does the network work at a bounded rate.
type Telegram struct {
	cfg TelegramConfig
	bot Sender
	log logx.Logger
	lim *rate.Limiter
	ops chan tgOp

	mu   sync.Mutex
	sent map[string]*tele.Message

	dropped atomic.Uint64
}

func NewTelegram(bot Sender, cfg TelegramConfig, log logx.Logger) *Telegram {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{
		cfg:  cfg,
		bot:  bot,
		log:  log.With(logx.String("comp", "render.telegram")),
		lim:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		ops:  make(chan tgOp, cfg.QueueSize),
		sent: map[string]*tele.Message{},
	}
}

func (t *Telegram) enqueue(op tgOp) {
	select {
	case t.ops <- op:
	default:
		t.dropped.Add(1)
	}
}

func (t *Telegram) Show(ts toast.Toast) error {
	t.enqueue(tgOp{toast: ts, id: ts.ID})
	return nil
}

func (t *Telegram) Remove(id string) { t.enqueue(tgOp{remove: true, id: id}) }

func (t *Telegram) FadeOut(string)              {}
func (t *Telegram) Move(string, toast.Position) {}
func (t *Telegram) Height(string) int           { return 0 }

// Dropped counts operations lost to a full queue.
func (t *Telegram) Dropped() uint64 { return t.dropped.Load() }

// Run processes queued operations until ctx is done.
func (t *Telegram) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := t.dropped.Swap(0); n > 0 {
				t.log.Warn("telegram operations dropped (queue full)", logx.Int64("count", int64(n)))
			}
			return nil
		case op := <-t.ops:
			if err := t.lim.Wait(ctx); err != nil {
				return nil
			}
			t.do(op)
		}
	}
}

func (t *Telegram) do(op tgOp) {
	if op.remove {
		t.mu.Lock()
		msg := t.sent[op.id]
		delete(t.sent, op.id)
		t.mu.Unlock()
		if msg == nil {
			return
		}
		if err := t.bot.Delete(msg); err != nil {
			t.log.Debug("telegram delete failed", logx.String("id", op.id), logx.Err(err))
		}
		return
	}

	chat := &tele.Chat{ID: t.cfg.ChatID}
	msg, err := t.bot.Send(chat, FormatHTML(op.toast), &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		DisableNotification:   op.toast.Category == toast.CategoryRaid,
		ThreadID:              t.cfg.ThreadID,
	})
	if err != nil {
		t.log.Warn("telegram send failed", logx.String("id", op.id), logx.Err(err))
		return
	}
	t.mu.Lock()
	t.sent[op.id] = msg
	t.mu.Unlock()
}

// FormatHTML renders a toast as Telegram HTML.
func FormatHTML(t toast.Toast) string {
	c := t.Content
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(c.Title))
	b.WriteString("</b>")
	if c.RankClass != "" {
		b.WriteString(" <i>")
		b.WriteString(html.EscapeString(c.RankClass))
		b.WriteString("</i>")
	}
	line := func(s string, tag string) {
		if s == "" {
			return
		}
		b.WriteByte('\n')
		if tag != "" {
			b.WriteString("<" + tag + ">")
		}
		b.WriteString(html.EscapeString(s))
		if tag != "" {
			b.WriteString("</" + tag + ">")
		}
	}
	line(c.Info, "")
	line(c.Outcome, "b")
	line(c.Meta, "")
	streakTag := ""
	if c.Highlight {
		streakTag = "b"
	}
	line(c.Streak, streakTag)
	for _, l := range c.Lines {
		line(l, "")
	}
	line(c.Footer, "i")
	return b.String()
}
