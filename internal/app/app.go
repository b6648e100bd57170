package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signalwatch/config"
	"signalwatch/internal/bot"
	"signalwatch/internal/command"
	"signalwatch/internal/dispatch"
	"signalwatch/internal/metrics"
	"signalwatch/internal/monitor"
	"signalwatch/internal/registry"
	"signalwatch/internal/server"
	"signalwatch/internal/signal"
	"signalwatch/internal/source"
	"signalwatch/internal/state"
	"signalwatch/pkg/storage/postgres"
	"signalwatch/pkg/telegram"
	"signalwatch/pkg/tradingview"
	"signalwatch/pkg/twilio"
	"signalwatch/pkg/wsrelay"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App owns every long-lived component of the watcher.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	registry  *registry.Registry
	store     state.Store
	scheduler *monitor.Scheduler
	telegram  *telegram.Client
	updates   *bot.UpdateHandler
	poller    *bot.Poller
	server    *server.Server

	checks  map[string]server.HealthCheck
	closers []func() error
}

// New builds the component graph. Nothing is started until Run.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, checks: map[string]server.HealthCheck{}}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(reg)

	if err := a.initStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	src, err := newSource(cfg.Source, recorder)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Telegram.Enabled {
		a.telegram = telegram.NewClient(cfg.Telegram.BaseURL, cfg.Telegram.Token, cfg.Telegram.Timeout)
	}

	channels, err := a.channels()
	if err != nil {
		a.Close()
		return nil, err
	}
	dispatcher := dispatch.New(channels,
		dispatch.WithChannelTimeout(cfg.Dispatch.ChannelTimeout),
		dispatch.WithLogger(logger.Named("dispatch")),
		dispatch.WithObserver(recorder),
	)
	logger.Info("alert channels ready", zap.Strings("channels", dispatcher.Channels()))

	alertWorthy, err := signal.NewAlertWorthy(cfg.Monitor.AlertWorthy)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("monitor.alert_worthy: %w", err)
	}

	a.scheduler = monitor.New(a.registry, src, a.store, dispatcher,
		monitor.WithInterval(cfg.Monitor.Interval),
		monitor.WithWorkers(cfg.Monitor.Workers),
		monitor.WithAlertWorthy(alertWorthy),
		monitor.WithRequireDelivery(cfg.Dispatch.RequireDelivery),
		monitor.WithLogger(logger.Named("monitor")),
		monitor.WithObserver(recorder),
	)

	if a.telegram != nil {
		commands := command.New(a.registry, a.store, logger.Named("command"))
		a.updates = bot.NewUpdateHandler(commands, a.telegram, cfg.Telegram.Timeout, logger.Named("bot"))
		if cfg.Telegram.Mode == "polling" {
			a.poller = bot.NewPoller(a.telegram, a.updates,
				bot.WithPollTimeout(cfg.Telegram.PollTimeout),
				bot.WithPollerLogger(logger.Named("bot")),
			)
		}
	}

	if cfg.Server.Enabled {
		deps := server.Deps{
			Gatherer:      reg,
			Subscriptions: a.registry,
			Checks:        a.checks,
		}
		if a.updates != nil && cfg.Telegram.Mode == "webhook" {
			deps.Webhook = a.updates
			deps.WebhookToken = cfg.Telegram.Token
		}
		a.server = server.New(cfg.Server.Addr, deps, logger.Named("http"))
	}

	return a, nil
}

func (a *App) initStores(ctx context.Context) error {
	cfg := a.cfg

	var pg *postgres.PostgresClient
	if cfg.State.Backend == "postgres" || cfg.State.PersistSubscriptions {
		client, err := postgres.Initialize(cfg.Postgres, cfg.Postgres.CreateDB)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		pg = client
		a.closers = append(a.closers, pg.Close)
		a.checks["postgres"] = func(ctx context.Context) error {
			if !pg.IsHealthy(ctx) {
				return errors.New("ping failed")
			}
			return nil
		}
	}

	switch cfg.State.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		a.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		a.store = state.NewRedisStore(client, cfg.Redis.Prefix)
	case "postgres":
		a.store = pg
	default:
		a.store = state.NewMemoryStore()
	}

	var opts []registry.Option
	if cfg.State.PersistSubscriptions {
		opts = append(opts, registry.WithBackend(pg))
	}
	a.registry = registry.New(opts...)

	if cfg.State.PersistSubscriptions {
		n, err := a.registry.Restore(ctx)
		if err != nil {
			return fmt.Errorf("restore subscriptions: %w", err)
		}
		a.logger.Info("subscriptions restored", zap.Int("subscribers", n))
	}
	a.logger.Info("state store ready", zap.String("backend", cfg.State.Backend))
	return nil
}

func newSource(cfg config.SourceConfig, obs source.Observer) (*source.Source, error) {
	interval := tradingview.Interval(cfg.Interval)
	if !interval.IsValid() {
		return nil, fmt.Errorf("source.interval: unsupported interval %q", cfg.Interval)
	}
	client := tradingview.NewRESTClient(cfg.BaseURL, cfg.RequestTimeout)
	return source.New(client, cfg.Venues,
		source.WithScreener(cfg.Screener),
		source.WithInterval(interval),
		source.WithVenueTimeout(cfg.VenueTimeout),
		source.WithObserver(obs),
	), nil
}

// channels builds the enabled alert channels; the log channel is used when nothing else is.
func (a *App) channels() ([]dispatch.Channel, error) {
	cfg := a.cfg
	var chs []dispatch.Channel

	if a.telegram != nil {
		chs = append(chs, dispatch.NewChatChannel(a.telegram))
	}
	if cfg.SMS.Enabled {
		sms := twilio.NewClient(cfg.SMS.BaseURL, cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From, cfg.SMS.Timeout)
		chs = append(chs, dispatch.NewSMSChannel(sms, cfg.SMS.To))
	}
	if cfg.Relay.Enabled {
		relay := wsrelay.NewClient(cfg.Relay.URL, a.logger.Named("relay"))
		a.closers = append(a.closers, relay.Close)
		chs = append(chs, dispatch.NewRelayChannel(relay))
	}
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, errors.New("kafka: no brokers configured")
		}
		writer := dispatch.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, writer.Close)
		chs = append(chs, dispatch.NewKafkaChannel(writer))
	}
	if cfg.Dispatch.Log || len(chs) == 0 {
		chs = append(chs, dispatch.NewLogChannel(a.logger.Named("alerts")))
	}
	return chs, nil
}

// Run starts the scheduler, the bot transport and the HTTP server and blocks until ctx is done
// or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a.telegram != nil {
		if err := a.prepareTelegram(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(a.scheduler.Run(gctx))
	})

	if a.poller != nil {
		g.Go(func() error {
			return ignoreCanceled(a.poller.Run(gctx))
		})
	}

	if a.server != nil {
		g.Go(a.server.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	a.logger.Info("watcher stopped")
	return err
}

// prepareTelegram registers the webhook, or clears it so getUpdates is allowed.
func (a *App) prepareTelegram(ctx context.Context) error {
	timeout := a.cfg.Telegram.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	setupCtx, cancel := context.WithTimeout(ctx, 2*timeout)
	defer cancel()

	if a.cfg.Telegram.Mode == "webhook" {
		if err := bot.SetupWebhook(setupCtx, a.telegram, a.cfg.Telegram.WebhookHost, a.cfg.Telegram.Token); err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		a.logger.Info("telegram webhook set", zap.String("host", a.cfg.Telegram.WebhookHost))
		return nil
	}

	if err := a.telegram.DeleteWebhook(setupCtx); err != nil {
		a.logger.Warn("failed to delete telegram webhook", zap.Error(err))
	}
	return nil
}

// Close releases clients in reverse creation order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
