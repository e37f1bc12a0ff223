package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/distconf/internal/application"
	"github.com/eugenenazirov/distconf/internal/config"
	"github.com/eugenenazirov/distconf/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configFile     *string
	dirs           *[]string
	env            *string
	hostname       *string
	port           *string
	logLevel       *string
	rateLimitRPS   *float64
	rateLimitBurst *int
}

func run(args []string, stdout io.Writer) error {
	kingpinApp := kingpin.New("distconf", "Distributed configuration resolver - merges tiered configuration files into one tree")
	kingpinApp.UsageWriter(stdout)

	flags := cliFlags{
		configFile:     kingpinApp.Flag("config", "Path to YAML configuration file for distconf itself").String(),
		dirs:           kingpinApp.Flag("dir", "Base directory searched for configuration files (repeatable)").Strings(),
		env:            kingpinApp.Flag("env", "Environment tier name").String(),
		hostname:       kingpinApp.Flag("hostname", "Hostname tier name (defaults to HOST, HOSTNAME or the OS hostname)").String(),
		port:           kingpinApp.Flag("port", "HTTP port exposed by the service").String(),
		logLevel:       kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String(),
		rateLimitRPS:   kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64(),
		rateLimitBurst: kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int(),
	}

	serveCmd := kingpinApp.Command("serve", "Serve the resolved configuration over HTTP").Default()
	getCmd := kingpinApp.Command("get", "Print the value at a dotted key path")
	getKey := getCmd.Arg("key", "Dotted key path, e.g. db.host").Required().String()
	dumpCmd := kingpinApp.Command("dump", "Print the whole resolved configuration")
	sourcesCmd := kingpinApp.Command("sources", "List the files that contributed to the configuration")
	tiersCmd := kingpinApp.Command("tiers", "List the tier cascade in precedence order")

	command, err := kingpinApp.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(flags.overrides())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if command == serveCmd.FullCommand() {
		return serve(cfg, logger)
	}

	res, err := application.NewResolver(cfg, logger)
	if err != nil {
		return err
	}

	switch command {
	case getCmd.FullCommand():
		if !res.Has(*getKey) {
			return fmt.Errorf("key %q not found", *getKey)
		}
		return writeYAML(stdout, res.Get(*getKey, nil))
	case dumpCmd.FullCommand():
		return writeYAML(stdout, res.Store())
	case sourcesCmd.FullCommand():
		return writeYAML(stdout, res.Sources())
	case tiersCmd.FullCommand():
		return writeYAML(stdout, res.Tiers())
	}
	return fmt.Errorf("unknown command %q", command)
}

func (f cliFlags) overrides() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile: *f.configFile,
		ConfigDirs: *f.dirs,
	}

	if *f.env != "" {
		overrides.Environment = f.env
	}
	if *f.hostname != "" {
		overrides.Hostname = f.hostname
	}
	if *f.port != "" {
		overrides.Port = f.port
	}
	if *f.logLevel != "" {
		overrides.LogLevel = f.logLevel
	}
	if *f.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = f.rateLimitRPS
	}
	if *f.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = f.rateLimitBurst
	}
	return overrides
}

func serve(cfg config.Config, logger *zap.Logger) error {
	app, err := application.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
