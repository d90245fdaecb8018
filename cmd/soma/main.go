package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"soma/internal/engine"
	"soma/internal/repl"
	"soma/internal/runtime"
	"soma/internal/util"
	"syscall"

	"golang.org/x/term"
)

const (
	DefaultRootPath = ""
	historyFile     = ".soma_history"
)

var (
	// Version is the current version of the soma binary, set at build time.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
	help      bool
	version   bool
	// logging
	logLevel string
	logFile  string
	// config vars
	configFile  string
	rootPath    string
	storeDB     string
	storeDriver string
	noPrelude   bool
	maxDepth    int
	maxThreads  int
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	flag.StringVar(&configFile, "config", "", "Load configuration from a TOML or YAML file")
	// runtime config
	flag.StringVar(&rootPath, "root", DefaultRootPath, "Directory searched first for extensions (default: the program's directory)")
	flag.StringVar(&storeDB, "store-db", "", "Database DSN used by use.store.save and use.store.load")
	flag.StringVar(&storeDriver, "store-driver", "", "Database driver for -store-db: sqlite3, mysql, postgres")
	flag.BoolVar(&noPrelude, "no-prelude", false, "Start with an empty prelude")
	flag.IntVar(&maxDepth, "max-depth", 0, "Maximum nesting of block executions")
	flag.IntVar(&maxThreads, "max-threads", 0, "Maximum number of spawned threads running at once (0: unlimited)")
	// log config
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&logFile, "log-file", "", "Log file path (if not set, logs to stderr)")
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	config := util.Configuration{}
	if configFile != "" {
		if err := config.LoadFile(configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	applyFlags(&config)
	config.FromEnv()

	// Creates a new Logger that uses a JSONHandler
	loggerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(config.LogLevel),
	}
	logWriter := configureLogWriter(config.LogFile)
	defaultLogger := slog.New(slog.NewJSONHandler(logWriter, loggerOptions))
	slog.SetDefault(defaultLogger)

	if version {
		printVersion()
		return 0
	}
	if help {
		printHelp()
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtime.NewRuntime(config, engine.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Error("closing runtime", slog.Any("error", err))
		}
	}()

	switch {
	case flag.NArg() > 0:
		_, src, err := rt.RunFile(ctx, flag.Arg(0))
		if src == "" && err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return finish(rt, src, err)
	case term.IsTerminal(int(os.Stdin.Fd())):
		fmt.Printf("soma %s (:quit to exit)\n", Version)
		if err := repl.StartInteractive(ctx, rt, historyPath()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	default:
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		_, err = rt.RunSource(ctx, "<stdin>", string(src))
		return finish(rt, string(src), err)
	}
}

// finish waits for spawned threads and reports the main thread's halt.
func finish(rt *runtime.Runtime, src string, err error) int {
	rt.Wait()
	if err != nil {
		repl.Report(os.Stderr, src, err)
		return 1
	}
	return 0
}

// applyFlags lets explicit command line flags override the config file.
func applyFlags(config *util.Configuration) {
	config.Version = Version
	config.BuildDate = BuildDate
	config.Commit = Commit
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			config.RootPath = rootPath
		case "store-db":
			config.StoreDSN = storeDB
		case "store-driver":
			config.StoreDriver = storeDriver
		case "no-prelude":
			config.NoPrelude = noPrelude
		case "max-depth":
			config.MaxDepth = maxDepth
		case "max-threads":
			config.MaxThreads = maxThreads
		case "log-level":
			config.LogLevel = logLevel
		case "log-file":
			config.LogFile = logFile
		}
	})
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFile)
}

func configureLogWriter(logFile string) *os.File {
	var logWriter *os.File
	var err error
	if logFile != "" {
		// Create parent directories if they don't exist
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
			return os.Stderr
		}
		logWriter, err = os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
			logWriter = os.Stderr
		}
	} else {
		logWriter = os.Stderr
	}
	return logWriter
}

func printVersion() {
	fmt.Printf("soma version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: soma [options] [filename]

Options:
  -root <path>          Directory searched first for extensions. Default is the program's directory.
  -config <file>        Load settings from a .toml, .yaml or .yml file. Flags override it.
  -store-db <dsn>       Database used by use.store.save and use.store.load.
  -store-driver <name>  Driver for -store-db: sqlite3 (default), mysql, postgres.
  -no-prelude           Do not define the prelude words.
  -max-depth <n>        Maximum nesting of block executions. Default is %d.
  -max-threads <n>      Maximum number of spawned threads running at once. Default is unlimited.
  -help                 Display this help information and exit.
  -version              Display version information and exit.
  -log-level <level>    Set the log level: debug, info, warn, error. Default is 'error'.
  -log-file <path>      Specify a log file to write logs. Default is stderr.

Details:
Without a filename soma reads a program from standard input, or starts the
REPL when standard input is a terminal.

Environment:
  SOMA_HOME   Installation directory; $SOMA_HOME/lib is searched for extensions.
  SOMA_LIB    Additional extension directories.

Examples:
  soma -log-level=debug               Start the REPL with debug logging enabled
  soma program.soma                   Execute the provided file
  soma -store-db state.db app.soma    Execute with a sqlite-backed store

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, engine.DefaultMaxDepth, Version, BuildDate, Commit)
}

func logLevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
