package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"sptlb/internal/config"
	"sptlb/internal/eventbus"
	"sptlb/internal/leaderboard"
	"sptlb/internal/render"
	"sptlb/internal/runtime/supervisor"
	"sptlb/internal/storage"
	"sptlb/internal/toast"
	logx "sptlb/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	engine *toast.Engine
	poller *leaderboard.Poller
	hub    *render.Hub
	server *render.Server
	tg     *render.Telegram

	notify bool
}

// New loads the config and builds every component. Nothing runs until Start.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return build(ctx, cfgPath, cfgm, cfg)
}

func build(ctx context.Context, cfgPath string, cfgm *config.ConfigManager, cfg *config.Config) (*App, error) {
	if err := validate(cfg, nil); err != nil {
		return nil, err
	}
	tcfg, err := toastConfig(cfg)
	if err != nil {
		return nil, err
	}
	scfg, err := storageConfig(cfg)
	if err != nil {
		return nil, err
	}
	timeout, err := leaderboardTimeout(cfg)
	if err != nil {
		return nil, err
	}
	tgCfg, tgToken, tgEnabled, err := telegramConfig(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(logConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	store, err := storage.Open(ctx, scfg, root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", scfg.Driver))
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     eventbus.New(),
		store:   store,
		notify:  cfg.Systemd.Notify,
	}

	var renderers render.Fanout
	var cues render.Cues
	if cfg.HTTP.Enabled {
		a.hub = render.NewHub(root, cfg.HTTP.AllowedOrigins)
		renderers = append(renderers, a.hub)
		cues = append(cues, a.hub)
	}
	if tgEnabled {
		bot, err := render.NewTelegramBot(tgToken)
		if err != nil {
			a.closeStore()
			return nil, fmt.Errorf("telegram: %w", err)
		}
		a.tg = render.NewTelegram(bot, tgCfg, root)
		renderers = append(renderers, a.tg)
	}
	if len(renderers) == 0 {
		lr := render.NewLogRenderer(root)
		renderers = append(renderers, lr)
		cues = append(cues, lr)
	}

	engine, err := toast.New(tcfg, toast.Options{
		Renderer: renderers,
		Cues:     cues,
		Store:    store,
		Bus:      a.bus,
		Log:      root,
	})
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.engine = engine

	a.poller = leaderboard.NewPoller(leaderboard.NewClient(cfg.Leaderboard.URL, timeout), a.onPoll, root)

	if a.hub != nil {
		a.hub.SetSnapshot(engine.Visible)
		var history render.HistorySource
		if store != nil {
			history = store
		}
		a.server = render.NewServer(httpAddr(cfg), a.hub, engine, a.poller, history, root)
	}
	return a, nil
}

// onPoll feeds the engine: the first snapshot goes through the bootstrap
// pass, later ones only deliver what changed.
func (a *App) onPoll(ctx context.Context, snapshot, changed []leaderboard.Player, first bool) {
	if first {
		a.engine.Bootstrap(ctx, snapshot)
		return
	}
	if len(changed) == 0 {
		return
	}
	n := a.engine.ShowAll(ctx, changed)
	a.log.Debug("poll delivered", logx.Int("changed", len(changed)), logx.Int("accepted", n))
}

func (a *App) Engine() *toast.Engine { return a.engine }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		return validate(cfg, a.poller.Validate)
	})

	schedule := pollSchedule(a.cfgm.Get())
	if err := a.poller.Validate(schedule); err != nil {
		return fmt.Errorf("leaderboard.schedule: %w", err)
	}
	a.sup.Go("leaderboard.poll", func(c context.Context) error {
		if err := a.poller.Start(c, schedule); err != nil {
			return err
		}
		<-c.Done()
		a.poller.Stop()
		return nil
	})

	if a.server != nil {
		a.sup.GoRestart("http.server", a.server.Run,
			supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second), supervisor.WithMaxRestarts(5))
	}
	if a.tg != nil {
		a.sup.GoRestart("telegram.worker", a.tg.Run)
	}
	if a.store != nil {
		a.sup.Go("history.recorder", func(c context.Context) error {
			return recordHistory(c, a.bus, a.store, a.log.With(logx.String("comp", "history")))
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if a.notify {
		a.sup.Go("systemd.watchdog", func(c context.Context) error { return watchdog(c, a.log) })
		notifySystemd(a.log, daemon.SdNotifyReady)
	}

	a.log.Info("app started", logx.String("schedule", schedule), logx.Bool("http", a.server != nil), logx.Bool("telegram", a.tg != nil))
	return nil
}

func (a *App) applyConfig(prev, next *config.Config) {
	a.logs.Apply(logConfig(next))

	if tcfg, err := toastConfig(next); err != nil {
		a.log.Warn("invalid toast config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(tcfg)
	}

	if pollSchedule(prev) != pollSchedule(next) {
		if err := a.poller.Reschedule(pollSchedule(next)); err != nil {
			a.log.Warn("leaderboard reschedule failed", logx.Err(err))
		}
	}

	if sections := restartSections(prev, next); len(sections) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("sections", strings.Join(sections, ",")))
	}
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeStore()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.notify {
		notifySystemd(a.log, daemon.SdNotifyStopping)
	}

	// Cancel first so the poller stops feeding the engine.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); !ok || time.Until(dl) > max {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("poller", 2*time.Second, func(context.Context) error { a.poller.Stop(); return nil })
	step("supervisor", 6*time.Second, a.sup.Wait)
	step("engine", time.Second, func(context.Context) error { return a.engine.Close() })
	step("storage", time.Second, func(context.Context) error { return a.closeStoreErr() })

	a.log.Info("stopped", logx.Int64("bus_dropped", int64(a.bus.Dropped())))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) closeStoreErr() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *App) closeStore() {
	if err := a.closeStoreErr(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
}
