package util

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wedeploy/zklocks/lib/connection"
	"github.com/wedeploy/zklocks/lib/zkclient"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitConfig initializes configuration from environment variables.
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("zklocks")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupConnectionFlags adds the coordination-service connection flags to a
// command.
func SetupConnectionFlags(cmd *cobra.Command) {
	key := "hosts"
	cmd.PersistentFlags().String(key, "", "Comma-separated list of ZooKeeper host:port addresses")

	key = "namespace"
	cmd.PersistentFlags().String(key, "default", "Application namespace, the middle component of every lock path")

	key = "session-timeout"
	cmd.PersistentFlags().Int(key, 10, "ZooKeeper session timeout in seconds")

	key = "connect-timeout"
	cmd.PersistentFlags().Int(key, 15, "How long to wait for a session to be established, in seconds")

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", "Log level (debug, info, warn, error)")
}

// BindCommandFlags binds a command's flags to viper.
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetClientConfig reads the coordination-service configuration from viper.
// The hosts list is empty (not a one-element list of "") when no hosts are
// configured.
func GetClientConfig() zkclient.Config {
	var hosts []string
	for _, h := range strings.Split(viper.GetString("hosts"), ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return zkclient.Config{
		Hosts:          hosts,
		Namespace:      viper.GetString("namespace"),
		SessionTimeout: time.Duration(viper.GetInt("session-timeout")) * time.Second,
		ConnectTimeout: time.Duration(viper.GetInt("connect-timeout")) * time.Second,
	}
}

// NewLogger builds the CLI logger for the configured log level.
func NewLogger() (*zap.Logger, error) {
	var level zapcore.Level
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warning", "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level %q, must be one of debug, info, warn, error", viper.GetString("log-level"))
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// NewManager creates a connection manager that connects with the given
// client configuration.
func NewManager(config zkclient.Config, log *zap.Logger) *connection.Manager {
	return connection.NewManager(func() (zkclient.IClient, error) {
		return zkclient.New(config, zkclient.WithLogger(log))
	}, connection.WithLogger(log))
}

// RunCommand executes the given argv with inherited stdio. A nonzero child
// exit surfaces as the *exec.ExitError from Run, never as a direct os.Exit:
// callers run inside a lock's critical section, and exiting from there would
// skip the deferred release and scope teardown. Mirror the code with
// ExitCode after the cleanup has run.
func RunCommand(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("no command given")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ExitCode extracts the child exit code carried by a RunCommand error.
// Returns -1 when err holds no exit code (nil, not a child failure, or the
// child was killed by a signal).
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// ParseParams converts repeated "name=value" flag values into a parameter
// map for key template substitution.
func ParseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q, expected name=value", p)
		}
		params[name] = value
	}
	return params, nil
}
