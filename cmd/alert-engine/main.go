package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/application/alerts"
	"github.com/diwise/alert-engine/internal/pkg/application/analytics"
	"github.com/diwise/alert-engine/internal/pkg/application/broadcast"
	"github.com/diwise/alert-engine/internal/pkg/application/notifications"
	"github.com/diwise/alert-engine/internal/pkg/application/rules"
	"github.com/diwise/alert-engine/internal/pkg/application/snapshots"
	"github.com/diwise/alert-engine/internal/pkg/application/watchdog"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/messaging"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/metrics"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	alertsdb "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/alerts"
	rulesdb "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/rules"
	snapshotsdb "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/snapshots"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/router"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/tracing"
	"github.com/diwise/alert-engine/internal/pkg/presentation/api"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

const serviceName string = "alert-engine"

type flagType int
type flagMap map[flagType]string

const (
	listenAddress flagType = iota
	servicePort
	controlPort

	policiesFile
	configurationFile

	devmode
)

func defaultFlags() flagMap {
	return flagMap{
		listenAddress: "0.0.0.0",
		servicePort:   "8080",
		controlPort:   "8000",

		policiesFile:      "/opt/diwise/config/authz.rego",
		configurationFile: "/opt/diwise/config/config.yaml",

		devmode: "false",
	}
}

type engineConfig struct {
	DefaultCooldownMinutes   int `yaml:"default_cooldown_minutes"`
	DefaultAutoExpireMinutes int `yaml:"default_auto_expire_minutes"`
	MaxRulesPerEvaluation    int `yaml:"max_rules_per_evaluation"`
	DefaultPageSize          int `yaml:"default_page_size"`
	MaxPageSize              int `yaml:"max_page_size"`
	AttendanceSampleSize     int `yaml:"attendance_sample_size"`
	GroupingWindowMinutes    int `yaml:"grouping_window_minutes"`
}

func (c engineConfig) rules() rules.Config {
	return rules.Config{
		DefaultCooldownMinutes:   c.DefaultCooldownMinutes,
		DefaultAutoExpireMinutes: c.DefaultAutoExpireMinutes,
		DefaultPageSize:          c.DefaultPageSize,
		MaxPageSize:              c.MaxPageSize,
	}
}

func (c engineConfig) alerts() alerts.Config {
	return alerts.Config{
		MaxRulesPerEvaluation: c.MaxRulesPerEvaluation,
		GroupingWindowMinutes: c.GroupingWindowMinutes,
		DefaultPageSize:       c.DefaultPageSize,
		MaxPageSize:           c.MaxPageSize,
	}
}

type appConfig struct {
	Engine        engineConfig         `yaml:"engine"`
	Scheduler     watchdog.Config      `yaml:"scheduler"`
	Notifications notifications.Config `yaml:",inline"`
}

type engine struct {
	public    *http.Server
	control   *http.Server
	watchdog  watchdog.Watchdog
	webEvents broadcast.WebEvents
	publisher messaging.Publisher
}

func main() {
	serviceVersion := version()

	ctx, logger := logging.NewLogger(context.Background(), serviceName, serviceVersion)
	logger.Info().Msg("starting up ...")

	ctx, flags := parseExternalConfig(ctx, defaultFlags())

	cleanup, err := tracing.Init(ctx, logger, serviceName, serviceVersion)
	exitIf(err, logger, "failed to init tracing")
	defer cleanup()

	cfgFile, err := os.Open(flags[configurationFile])
	exitIf(err, logger, "could not open configuration file")

	cfg, err := parseExternalConfigFile(ctx, cfgFile)
	exitIf(err, logger, "could not parse configuration file")

	policies, err := os.Open(flags[policiesFile])
	exitIf(err, logger, "unable to open opa policy file")

	e, err := initialize(ctx, flags, cfg, policies)
	exitIf(err, logger, "failed to initialize alert engine")

	err = e.run(ctx)
	exitIf(err, logger, "alert engine stopped unexpectedly")
}

func initialize(ctx context.Context, flags flagMap, cfg *appConfig, policies io.ReadCloser) (*engine, error) {
	defer policies.Close()

	logger := logging.GetFromContext(ctx)

	connect := newConnector(ctx, flags)

	ruleRepo, err := rulesdb.NewRuleRepository(connect)
	if err != nil {
		return nil, err
	}

	alertRepo, err := alertsdb.NewAlertRepository(connect)
	if err != nil {
		return nil, err
	}

	snapshotRepo, err := snapshotsdb.NewSnapshotRepository(connect)
	if err != nil {
		return nil, err
	}

	dispatcher, err := notifications.New(&cfg.Notifications)
	if err != nil {
		return nil, err
	}

	e := &engine{webEvents: broadcast.NewWebEvents()}
	sinks := []broadcast.Sink{e.webEvents}

	messagingConfig := messaging.LoadConfiguration(serviceName)
	if messagingConfig.Host != "" {
		e.publisher, err = messaging.Initialize(ctx, messagingConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("message broker unavailable, alerts will not be published on topics")
		} else {
			sinks = append(sinks, broadcast.NewTopicSink(e.publisher))
		}
	}

	ruleSvc := rules.New(ruleRepo, cfg.Engine.rules())
	fetcher := snapshots.NewFetcher(snapshotRepo, cfg.Engine.AttendanceSampleSize)
	alertSvc := alerts.New(alertRepo, ruleSvc, fetcher, dispatcher, broadcast.New(sinks...), cfg.Engine.alerts())

	r, err := api.RegisterHandlers(ctx, router.New(ctx, serviceName), policies, ruleSvc, alertSvc, analytics.New(alertRepo), e.webEvents)
	if err != nil {
		return nil, err
	}

	c := chi.NewRouter()
	c.Handle("/metrics", metrics.Handler())

	e.public = &http.Server{Addr: flags[listenAddress] + ":" + flags[servicePort], Handler: r}
	e.control = &http.Server{Addr: flags[listenAddress] + ":" + flags[controlPort], Handler: c}
	e.watchdog = watchdog.New(alertSvc, cfg.Scheduler)

	return e, nil
}

func (e *engine) run(ctx context.Context) error {
	logger := logging.GetFromContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)

	for _, s := range []*http.Server{e.control, e.public} {
		go func(s *http.Server) {
			logger.Info().Str("addr", s.Addr).Msg("starting to listen for connections")

			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}(s)
	}

	e.watchdog.Start(ctx)

	var err error

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err = <-errs:
		logger.Error().Err(err).Msg("server failed")
	}

	e.shutdown(logger)

	return err
}

func (e *engine) shutdown(logger zerolog.Logger) {
	e.watchdog.Stop()
	e.webEvents.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, s := range []*http.Server{e.public, e.control} {
		if err := s.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Str("addr", s.Addr).Msg("failed to shut down server")
		}
	}

	if e.publisher != nil {
		e.publisher.Close()
	}
}

func newConnector(ctx context.Context, flags flagMap) database.ConnectorFunc {
	if flags[devmode] == "true" {
		logger := logging.GetFromContext(ctx)
		logger.Warn().Msg("running in dev mode with an in-memory database")
		return database.NewSQLiteConnector(ctx)
	}

	return database.NewPostgreSQLConnector(ctx, database.LoadConfigFromEnv(ctx))
}

func parseExternalConfigFile(_ context.Context, cfgFile io.ReadCloser) (*appConfig, error) {
	defer cfgFile.Close()

	b, err := io.ReadAll(cfgFile)
	if err != nil {
		return nil, err
	}

	cfg := &appConfig{}
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseExternalConfig(ctx context.Context, flags flagMap) (context.Context, flagMap) {
	envOrDef := func(key, def string) string {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			return value
		}
		return def
	}

	// Allow environment variables to override certain defaults
	flags[listenAddress] = envOrDef("LISTEN_ADDRESS", flags[listenAddress])
	flags[controlPort] = envOrDef("CONTROL_PORT", flags[controlPort])
	flags[servicePort] = envOrDef("SERVICE_PORT", flags[servicePort])

	flags[policiesFile] = envOrDef("POLICIES_FILE", flags[policiesFile])
	flags[configurationFile] = envOrDef("CONFIG_FILE", flags[configurationFile])

	apply := func(f flagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("policies", "an authorization policy file", apply(policiesFile))
	flag.Func("config", "alert engine configuration file", apply(configurationFile))
	flag.Func("devmode", "run against an in-memory database", apply(devmode))
	flag.Parse()

	return ctx, flags
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	buildSettings := buildInfo.Settings
	infoMap := map[string]string{}
	for _, s := range buildSettings {
		infoMap[s.Key] = s.Value
	}

	sha := infoMap["vcs.revision"]
	if infoMap["vcs.modified"] == "true" {
		sha += "+"
	}

	return sha
}

func exitIf(err error, logger zerolog.Logger, msg string) {
	if err != nil {
		logger.Error().Err(err).Msg(msg)
		time.Sleep(2 * time.Second)
		os.Exit(1)
	}
}
