// Command kinescoped runs the kinescope daemon in the foreground. It is the
// entrypoint systemd units and containers use; interactive sessions usually
// go through `kinescope daemon start` instead.
package main

import (
	"context"
	"flag"
	"log"

	"kinescope/internal/config"
	"kinescope/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	socketPath := flag.String("socket", "", "control socket path override")
	diagnostic := flag.Bool("diagnostic", false, "force debug logging with development formatting")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, buildRunOptions(cfg, *socketPath, *diagnostic)); err != nil {
		log.Fatalf("run daemon: %v", err)
	}
}

func buildRunOptions(cfg *config.Config, socketPath string, diagnostic bool) daemonrun.Options {
	opts := daemonrun.Options{
		Diagnostic: diagnostic,
		SocketPath: socketPath,
	}
	if cfg != nil {
		opts.LogLevel = cfg.Logging.Level
	}
	return opts
}
