// Package app wires the bot together: config, logging, the Telegram adapter,
// the menu pipeline, the auto-post scheduler and the maintenance jobs.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"cantinabot/internal/autopost"
	"cantinabot/internal/config"
	"cantinabot/internal/menu"
	"cantinabot/internal/metrics"
	"cantinabot/internal/runtime/supervisor"
	"cantinabot/internal/storage"
	kit "cantinabot/internal/transport"
	telegram "cantinabot/internal/transport/telegram/adapter"
	logx "cantinabot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter  kit.Adapter
	pipeline *menu.Pipeline
	sched    *autopost.Scheduler
	store    storage.Store
	met      *metrics.Metrics
	loc      *time.Location
	cron     *cron.Cron

	cmdm *CommandManager

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return nil, fmt.Errorf("telegram.token is required (or TELEGRAM_BOT_TOKEN)")
	}
	if cfg.Telegram.ChannelID == 0 {
		return nil, fmt.Errorf("telegram.channel_id is required (or CANTINA_CHANNEL_ID)")
	}

	tz := cfg.Menu.Timezone
	if strings.TrimSpace(tz) == "" {
		tz = "Europe/Bucharest"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("menu.timezone: invalid %q: %w", tz, err)
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with Telegram logging disabled: logx.New() applies the config
	// immediately, before the target chat is set.
	baseLogCfg := mapLoggingConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	logSvc.SetTelegramTarget(cfg.Telegram.ChannelID)
	logSvc.Apply(mapLoggingConfig(cfg))

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.New()
	}

	var store storage.Store
	if sc, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		if st != nil {
			log.Info("storage enabled", logx.String("driver", sc.Driver))
		}
	}

	fetchTimeout, err := config.ParseDurationOrDefault("menu.fetch_timeout", cfg.Menu.FetchTimeout, 60*time.Second)
	if err != nil {
		return nil, err
	}
	roundDelay, err := config.ParseDurationOrDefault("menu.retry_delay", cfg.Menu.RetryDelay, 5*time.Second)
	if err != nil {
		return nil, err
	}
	pipeLog := log.With(logx.String("comp", "menu"))
	pipeline := menu.NewPipeline(
		menu.NewPageCache(),
		menu.NewHTTPFetcher(fetchTimeout),
		menu.PDFRenderer{},
		menu.PipelineConfig{Retries: cfg.Menu.Retries, RoundDelay: roundDelay},
		met, pipeLog)
	if cfg.Menu.Discovery {
		pipeline.SetDiscoverer(menu.NewDiscoverer(fetchTimeout, pipeLog))
	}

	var sched *autopost.Scheduler
	if cfg.AutoPost.Enabled {
		retryDelay, err := config.ParseDurationOrDefault("auto_post.retry_delay", cfg.AutoPost.RetryDelay, 5*time.Minute)
		if err != nil {
			return nil, err
		}
		pollInterval, err := config.ParseDurationOrDefault("auto_post.poll_interval", cfg.AutoPost.PollInterval, time.Minute)
		if err != nil {
			return nil, err
		}
		sched = autopost.NewScheduler(autopost.Config{
			DefaultChannel: cfg.Telegram.ChannelID,
			RetryDelay:     retryDelay,
			PollInterval:   pollInterval,
		}, menu.Default(), pipeline, ad, store, met, loc, log.With(logx.String("comp", "autopost")))
	}

	a := &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		adapter:  ad,
		pipeline: pipeline,
		sched:    sched,
		store:    store,
		met:      met,
		loc:      loc,
		updates:  make(chan kit.Update, 256),
	}
	a.cmdm = NewCommandManager(log.With(logx.String("comp", "commands")), ad, pipeline, sched, store, met, loc)
	return a, nil
}

// Done is closed when the supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	if a.sched != nil {
		a.sup.Go("autopost.run", func(c context.Context) error {
			return a.sched.Run(c)
		})
	}

	if a.met != nil {
		cfg := a.cfgm.Get()
		addr := ""
		if cfg != nil {
			addr = cfg.Metrics.Addr
		}
		a.sup.Go("metrics.serve", func(c context.Context) error {
			return a.met.Serve(c, addr, a.log.With(logx.String("comp", "metrics")))
		})
	}

	a.startCron()

	// hot reload: logging and retry/poll tunables apply live; token, channel,
	// storage and metrics need a restart
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.startWatchdog()

	a.log.Info("app started", logx.String("tz", a.loc.String()))
	return nil
}

// applyReload applies the live-updatable sections of a validated new config.
func (a *App) applyReload(cfg *config.Config) {
	a.logs.SetTelegramTarget(cfg.Telegram.ChannelID)
	a.logs.Apply(mapLoggingConfig(cfg))

	roundDelay, err := config.ParseDurationOrDefault("menu.retry_delay", cfg.Menu.RetryDelay, 5*time.Second)
	if err == nil {
		a.pipeline.Apply(menu.PipelineConfig{Retries: cfg.Menu.Retries, RoundDelay: roundDelay})
	}

	if a.sched != nil {
		retryDelay, rerr := config.ParseDurationOrDefault("auto_post.retry_delay", cfg.AutoPost.RetryDelay, 5*time.Minute)
		pollInterval, perr := config.ParseDurationOrDefault("auto_post.poll_interval", cfg.AutoPost.PollInterval, time.Minute)
		if rerr == nil && perr == nil {
			a.sched.Apply(retryDelay, pollInterval)
		}
	}

	a.log.Info("config reloaded; token, channel, storage and metrics changes need a restart")
}

// startWatchdog feeds the systemd watchdog when one is configured.
func (a *App) startWatchdog() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-ticker.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
	a.log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
}

// startCron registers the maintenance jobs: an hourly status heartbeat and,
// when history is enabled, a weekly prune of old post records.
func (a *App) startCron() {
	a.cron = cron.New(cron.WithLocation(a.loc))
	clog := a.log.With(logx.String("comp", "cron"))

	_, err := a.cron.AddFunc("0 9 * * *", func() {
		fields := []logx.Field{logx.Int("cached_menus", a.pipeline.Cache().Len())}
		if a.sched != nil {
			if at, ok := a.sched.NextAttempt(); ok {
				fields = append(fields, logx.Time("next_auto_post", at))
			}
		}
		clog.Info("daily status", fields...)
	})
	if err != nil {
		clog.Warn("heartbeat job registration failed", logx.Err(err))
	}

	if a.store != nil {
		_, err := a.cron.AddFunc("0 4 * * 0", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := a.store.PrunePosts(ctx, time.Now().In(a.loc).AddDate(0, 0, -90))
			if err != nil {
				clog.Warn("post history prune failed", logx.Err(err))
				return
			}
			clog.Info("post history pruned", logx.Int64("removed", n))
		})
		if err != nil {
			clog.Warn("prune job registration failed", logx.Err(err))
		}
	}

	a.cron.Start()
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	a.sup.Cancel()

	if a.cron != nil {
		stopCtx := a.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(2 * time.Second):
			a.log.Warn("cron jobs still running at shutdown")
		}
	}

	adCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := a.adapter.Stop(adCtx); err != nil {
		a.log.Warn("adapter stop", logx.Err(err))
	}
	cancel()

	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.sup.Wait(waitCtx)
	cancel()

	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			a.log.Warn("storage close", logx.Err(cerr))
		}
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

// validateConfig rejects a bad hot-reload before it is committed.
func validateConfig(cfg *config.Config) error {
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("menu.retry_delay", cfg.Menu.RetryDelay); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("menu.fetch_timeout", cfg.Menu.FetchTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("auto_post.retry_delay", cfg.AutoPost.RetryDelay); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("auto_post.poll_interval", cfg.AutoPost.PollInterval); err != nil {
		return err
	}
	if cfg.Menu.Retries < 0 {
		return fmt.Errorf("menu.retries must be >= 0")
	}
	if tz := strings.TrimSpace(cfg.Menu.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("menu.timezone: invalid %q: %w", tz, err)
		}
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}
