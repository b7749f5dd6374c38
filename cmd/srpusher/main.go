package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/fflughiraeth/srpusher/internal/bootstrap"
)

func main() {
	var (
		runOnce        = flag.Bool("runonce", false, "run a single poll cycle and exit")
		disableNotify  = flag.Bool("disable-notify", false, "do not send notifications")
		disablePlugins = flag.Bool("disable-plugins", false, "skip optional observers (history, NATS, event stream)")
		quiet          = flag.Bool("quiet", false, "disable the console observer")
		debug          = flag.Bool("debug", false, "debug logging and set retention")
		rulesPath      = flag.String("rules", "settings.yml", "path to the watch rules YAML file")
	)
	flag.Parse()

	opts := bootstrap.Options{
		RulesPath:      *rulesPath,
		DisableNotify:  *disableNotify,
		DisablePlugins: *disablePlugins,
		Quiet:          *quiet,
		Debug:          *debug,
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		fatal(err)
	}
	logger := bootstrap.NewLogger(cfg, opts)

	rules, err := bootstrap.LoadRules(opts.RulesPath)
	if err != nil {
		logger.Fatal(err)
	}

	app, err := bootstrap.NewApp(cfg, rules, opts, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer app.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *runOnce {
		wait, err := app.Watcher.RunOnce(ctx)
		if err != nil {
			logger.Fatal(err)
		}
		logger.WithField("next_wait", wait).Info("Single cycle finished")
		return
	}

	if err := app.Start(); err != nil {
		logger.Fatal(err)
	}
	if err := app.Watcher.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal(err)
	}
	logger.Info("Watcher stopped")
}

func fatal(err error) {
	os.Stderr.WriteString(err.Error() + "\n")
	os.Exit(1)
}
