// Package main is the entry point for the pluginhost daemon. It discovers
// Lua plugins on disk, registers them with the lifecycle manager, enables
// them in dependency order, and serves until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/dshills/pluginhost/internal/plugin"
	"github.com/dshills/pluginhost/internal/plugin/luahook"
	"github.com/dshills/pluginhost/internal/plugin/manifest"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Options configures the host. Environment variables provide defaults;
// flags override them.
type Options struct {
	PluginPaths []string `env:"PLUGINHOST_PLUGINS" envSeparator:":"`
	StatePath   string   `env:"PLUGINHOST_STATE"`
	Debug       bool     `env:"PLUGINHOST_DEBUG"`
	List        bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	log, err := newLogger(opts.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	mgr := plugin.NewManager(plugin.ManagerConfig{
		AppVersion: version,
		Store:      newFileKV(opts.StatePath),
	}, plugin.WithLogger(log))

	if err := mgr.LoadStates(); err != nil {
		log.Warn("loading persisted plugin state failed", zap.Error(err))
	}

	unsubscribe := mgr.OnStatusChange(func(change plugin.StatusChange) {
		fields := []zap.Field{
			zap.String("plugin", change.Plugin),
			zap.Stringer("from", change.OldStatus),
			zap.Stringer("to", change.NewStatus),
		}
		if change.Err != "" {
			fields = append(fields, zap.String("error", change.Err))
		}
		log.Info("plugin status change", fields...)
	})
	defer unsubscribe()

	loader := manifest.NewLoader(manifest.WithPaths(opts.PluginPaths...))
	infos := loader.Discover()
	log.Info("plugin discovery complete",
		zap.Int("found", len(infos)),
		zap.Strings("paths", loader.Paths()))

	registerAll(mgr, infos, log)
	enableAll(mgr, log)

	if opts.List {
		printPlugins(mgr)
		return shutdown(mgr, log)
	}

	printPlugins(mgr)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals
	log.Info("shutting down", zap.String("signal", sig.String()))

	return shutdown(mgr, log)
}

// registerAll loads each discovered plugin's script and registers it.
// Config defaults from the manifest are seeded first so enable hooks see
// them; persisted values win.
func registerAll(mgr *plugin.Manager, infos []*manifest.Info, log *zap.Logger) {
	for _, info := range infos {
		if info.Err != nil {
			log.Warn("skipping broken plugin",
				zap.String("plugin", info.Name),
				zap.String("path", info.Path),
				zap.Error(info.Err))
			continue
		}

		hooks, err := luahook.Load(info.Manifest.MainPath())
		if err != nil {
			log.Warn("skipping plugin with broken script",
				zap.String("plugin", info.Name),
				zap.Error(err))
			continue
		}

		for key, value := range info.Manifest.ConfigDefaults {
			if _, exists := mgr.Store().ConfigValue(info.Name, key); !exists {
				mgr.Store().SetConfigValue(info.Name, key, value)
			}
		}

		if err := mgr.Register(info.Manifest.Metadata(), hooks); err != nil {
			log.Warn("plugin registration failed",
				zap.String("plugin", info.Name),
				zap.Error(err))
			_ = hooks.Destroy(context.Background())
		}
	}
}

// enableAll enables registered plugins, honoring a persisted enabled:false.
// Dependencies must be enabled before their dependents, so the pass repeats
// until it makes no progress; whatever still fails then is reported once.
func enableAll(mgr *plugin.Manager, log *zap.Logger) {
	ctx := context.Background()

	pending := make(map[string]bool)
	for _, snap := range mgr.Plugins() {
		if enabled, ok := mgr.Store().Enabled(snap.Metadata.Name); ok && !enabled {
			log.Info("plugin stays disabled per persisted state",
				zap.String("plugin", snap.Metadata.Name))
			continue
		}
		pending[snap.Metadata.Name] = true
	}

	failed := make(map[string]error)
	for len(pending) > 0 {
		progressed := false
		for _, name := range sortedNames(pending) {
			if err := mgr.Enable(ctx, name); err != nil {
				failed[name] = err
				continue
			}
			delete(pending, name)
			delete(failed, name)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	for _, name := range sortedErrNames(failed) {
		log.Warn("plugin enable failed",
			zap.String("plugin", name),
			zap.Error(failed[name]))
	}
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedErrNames(set map[string]error) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// printPlugins writes a one-line status report per plugin to stdout.
func printPlugins(mgr *plugin.Manager) {
	snaps := mgr.Plugins()
	if len(snaps) == 0 {
		fmt.Println("no plugins registered")
		return
	}

	for _, snap := range snaps {
		line := fmt.Sprintf("%-24s %-10s %s", snap.Metadata.Name, snap.Metadata.Version, snap.Status)
		if snap.Metadata.Required {
			line += "  (required)"
		}
		if snap.Err != "" {
			line += "  error: " + snap.Err
		}
		fmt.Println(line)
	}
}

// shutdown tears everything down with a deadline and reports hook failures.
func shutdown(mgr *plugin.Manager, log *zap.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mgr.Shutdown(ctx); err != nil {
		log.Warn("shutdown finished with errors", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func parseFlags() Options {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid environment: %v\n", err)
		os.Exit(1)
	}
	if opts.StatePath == "" {
		opts.StatePath = defaultStatePath()
	}

	var pluginDir string
	var showVersion bool
	var showHelp bool

	flag.StringVar(&pluginDir, "plugins", "", "Plugin directory (may repeat via PLUGINHOST_PLUGINS)")
	flag.StringVar(&pluginDir, "p", "", "Plugin directory (shorthand)")
	flag.StringVar(&opts.StatePath, "state", opts.StatePath, "Path to the plugin state file")
	flag.BoolVar(&opts.Debug, "debug", opts.Debug, "Enable debug logging")
	flag.BoolVar(&opts.Debug, "d", opts.Debug, "Enable debug logging (shorthand)")
	flag.BoolVar(&opts.List, "list", false, "List discovered plugins and exit")
	flag.BoolVar(&opts.List, "l", false, "List discovered plugins and exit (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Pluginhost - Lua plugin lifecycle host\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pluginhost [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pluginhost                  Run with default plugin paths\n")
		fmt.Fprintf(os.Stderr, "  pluginhost -p ./plugins     Run plugins from a directory\n")
		fmt.Fprintf(os.Stderr, "  pluginhost -l               List plugins and exit\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Pluginhost %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if pluginDir != "" {
		opts.PluginPaths = append([]string{pluginDir}, opts.PluginPaths...)
	}
	if len(opts.PluginPaths) == 0 {
		opts.PluginPaths = manifest.DefaultPaths()
	}

	return opts
}

func defaultStatePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "pluginhost", "state.json")
	}
	return "pluginhost-state.json"
}
