package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/forkpromoter/internal/backend/httpjob"
	"github.com/simplesurance/forkpromoter/internal/cfg"
	"github.com/simplesurance/forkpromoter/internal/githubclt"
	"github.com/simplesurance/forkpromoter/internal/jobpoll"
	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/notify"
	"github.com/simplesurance/forkpromoter/internal/paramstore"
	"github.com/simplesurance/forkpromoter/internal/retry"
	"github.com/simplesurance/forkpromoter/internal/workflow"
)

const appName = "forkpromoter"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

// tokenPlaceholder marks an unconfigured github token parameter. A stored
// token with this value is treated like no token at all.
const tokenPlaceholder = "REPLACE_ME"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	Once        *bool
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/forkpromoter/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the forkpromoter configuration file",
		),
		Once: pflag.Bool(
			"once",
			false,
			"run one promotion workflow and exit, the exit code reflects the outcome",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nPromote upstream releases to a fork sandbox environment.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration file", err)
	defer file.Close()

	config, err := cfg.Load(file)
	if err != nil {
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)
	}

	err = config.Validate()
	exitOnErr(fmt.Sprintf("invalid configuration file: %s", *args.ConfigFile), err)

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

// githubToken returns the configured github API token, preferring the
// config file over the parameter store. A missing parameter or the
// unconfigured placeholder value mean unauthenticated access, which is
// sufficient for public upstream repositories.
func githubToken(config *cfg.Config, store *paramstore.Store) string {
	if config.GithubAPIToken != "" {
		return config.GithubAPIToken
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	token, err := store.Get(ctx, config.GithubTokenParam)
	if err != nil {
		if !errors.Is(err, paramstore.ErrNotFound) {
			logger.Warn(
				"reading github token from parameter store failed, using unauthenticated access",
				logfields.Event("github_token_read_failed"),
				zap.Error(err),
			)
		}

		return ""
	}

	if token == tokenPlaceholder {
		logger.Info(
			"github token parameter holds the placeholder value, using unauthenticated access",
			logfields.Event("github_token_unconfigured"),
		)

		return ""
	}

	return token
}

func mustInitWorkflow(config *cfg.Config, store *paramstore.Store) *workflow.Orchestrator {
	ghClient := githubclt.New(githubToken(config, store))
	poller := jobpoll.NewPoller()

	detector := workflow.NewDetector(
		ghClient,
		store,
		retry.NewRetryer(),
		config.Upstream.Owner,
		config.Upstream.Repo,
		config.VersionParam,
	)

	mergeBuild := workflow.NewMergeBuildExecutor(
		httpjob.NewBuildClient(
			config.MergeBuild.URL,
			config.MergeBuild.User,
			config.MergeBuild.Password,
		),
		poller,
		config.MergeBuild.Project,
		config.Upstream.ForkRepo,
		config.MergeBuild.PollInterval.Duration,
		config.MergeBuild.MaxWait.Duration,
	)

	deploy := workflow.NewDeployExecutor(
		httpjob.NewStackClient(
			config.Deploy.URL,
			config.Deploy.User,
			config.Deploy.Password,
			config.Deploy.StackName,
		),
		poller,
		config.Deploy.PollInterval.Duration,
		config.Deploy.MaxWait.Duration,
	)

	smokeTest, err := workflow.NewSmokeTestExecutor(
		httpjob.NewExecutionClient(
			config.SmokeTest.URL,
			config.SmokeTest.User,
			config.SmokeTest.Password,
		),
		poller,
		config.SmokeTest.FixtureBucket,
		config.SmokeTest.FixtureKey,
		config.SmokeTest.ResultQuery,
		config.SmokeTest.PollInterval.Duration,
		config.SmokeTest.MaxWait.Duration,
	)
	exitOnErr("could not initialize the smoke-test executor", err)

	reporter := workflow.NewReporter(
		store,
		notify.NewWebhookPublisher(
			config.Notification.URL,
			config.Notification.User,
			config.Notification.Password,
		),
		config.VersionParam,
		config.Notification.SubjectPrefix,
	)

	return workflow.NewOrchestrator(
		detector,
		mergeBuild,
		deploy,
		smokeTest,
		reporter,
		config.WorkflowDeadline.Duration,
	)
}

func triggerHandler(scheduler *workflow.Scheduler) http.HandlerFunc {
	return func(resp http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(resp, "only POST requests are supported", http.StatusMethodNotAllowed)
			return
		}

		if scheduler.Trigger() {
			logger.Info(
				"workflow run triggered via http endpoint",
				logfields.Event("http_trigger_accepted"),
			)

			resp.WriteHeader(http.StatusAccepted)
			fmt.Fprintln(resp, "workflow run triggered")

			return
		}

		resp.WriteHeader(http.StatusConflict)
		fmt.Fprintln(resp, "a triggered workflow run is already pending")
	}
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	store, err := paramstore.Open(config.StoreDBFile)
	exitOnErr(fmt.Sprintf("could not open parameter store database: %s", config.StoreDBFile), err)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := store.Close(); err != nil {
			logger.Warn(
				"closing parameter store failed",
				logfields.Event("paramstore_close_failed"),
				zap.Error(err),
			)
		}
	})

	orchestrator := mustInitWorkflow(config, store)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("http_trigger_endpoint", config.HTTPTriggerEndpoint),
		zap.String("store_db_file", config.StoreDBFile),
		zap.String("upstream", config.Upstream.Owner+"/"+config.Upstream.Repo),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.Duration("schedule_interval", config.ScheduleInterval.Duration),
		zap.Duration("workflow_deadline", config.WorkflowDeadline.Duration),
		zap.String("log_format", config.LogFormat),
		zap.String("log_level", config.LogLevel),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	if *args.Once {
		outcome, err := orchestrator.Run(context.Background())
		if err != nil {
			logger.Error(
				"workflow run failed",
				logfields.Event("run_failed"),
				zap.Error(err),
			)
		}

		if outcome != workflow.OutcomeFailed {
			goodbye.Exit(context.Background(), 0)
		}

		goodbye.Exit(context.Background(), 1)
	}

	scheduler := workflow.NewScheduler(orchestrator, config.ScheduleInterval.Duration)

	goodbye.Register(func(context.Context, os.Signal) {
		logger.Debug(
			"stopping scheduler",
			logfields.Event("scheduler_stopping"),
		)

		scheduler.Stop()
	})

	if config.HTTPListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc(config.HTTPTriggerEndpoint, triggerHandler(scheduler))

		logger.Info(
			"registered http trigger endpoint",
			logfields.Event("http_trigger_handler_registered"),
			zap.String("endpoint", config.HTTPTriggerEndpoint),
		)

		startHTTPServer(config.HTTPListenAddr, mux)
	}

	scheduler.Start(context.Background())

	select {}
}
