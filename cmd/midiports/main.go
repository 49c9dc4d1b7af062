// Command midiports serves the MIDI device endpoints and lets a user pick the
// active ports and routing mode from a terminal.
//
// Usage:
//
//	midiports serve  [-config path]
//	midiports select [-url http://127.0.0.1:8888] [-timeout 10s]
//	midiports list   [-config path]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leandrodaf/midiports/internal/config"
	"github.com/leandrodaf/midiports/internal/jack"
	"github.com/leandrodaf/midiports/internal/logger"
	"github.com/leandrodaf/midiports/internal/tui"
	"github.com/leandrodaf/midiports/sdk/contracts"
	"github.com/leandrodaf/midiports/sdk/midiports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "midiports:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError()
	}
	switch args[0] {
	case "serve":
		return runServe(ctx, args[1:])
	case "select":
		return runSelect(ctx, args[1:])
	case "list":
		return runList(args[1:], out)
	default:
		return usageError()
	}
}

func usageError() error {
	return fmt.Errorf("usage: midiports serve|select|list [flags]")
}

func newLogger(level, file string) contracts.Logger {
	log := logger.NewZapLogger()
	log.SetLevel(contracts.ParseLogLevel(level))
	if file != "" {
		log.SetDestination(contracts.FileLog, file)
	}
	return log
}

func loadServerSide(args []string, name string) (*config.Config, contracts.Logger, contracts.PortSource, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to YAML configuration")
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log := newLogger(cfg.Logging.Level, cfg.Logging.File)

	static := make([]contracts.DeviceInfo, 0, len(cfg.MIDI.Ports))
	for _, p := range cfg.MIDI.Ports {
		static = append(static, contracts.DeviceInfo{ID: p.ID, Name: p.Name})
	}
	ports, err := midiports.NewPortSource(log, cfg.MIDI.ClientName, cfg.MIDI.UseSystem, static)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating port source: %w", err)
	}
	return cfg, log, ports, nil
}

func runServe(ctx context.Context, args []string) error {
	cfg, log, ports, err := loadServerSide(args, "serve")
	if err != nil {
		return err
	}
	defer ports.Close()

	store := jack.NewStore()
	if cfg.Server.StateFile != "" {
		if store, err = jack.OpenStore(cfg.Server.StateFile); err != nil {
			return err
		}
	}

	srv := jack.NewServer(cfg.Server.Listen, ports, store, log,
		jack.WithRequestTimeout(cfg.GetRequestTimeout()))
	return srv.ListenAndServe(ctx)
}

func runList(args []string, out io.Writer) error {
	_, _, ports, err := loadServerSide(args, "list")
	if err != nil {
		return err
	}
	defer ports.Close()

	devices, err := ports.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Fprintf(out, "%s\t%s\n", d.ID, d.DisplayName())
	}
	return nil
}

func runSelect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("select", flag.ContinueOnError)
	url := fs.String("url", midiports.DefaultBaseURL, "device server URL")
	timeout := fs.Duration("timeout", 10*time.Second, "timeout for each server request")
	logFile := fs.String("log-file", "", "write logs to this file instead of stderr")
	logLevel := fs.String("log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := newLogger(*logLevel, *logFile)
	notes := tui.NewNotifier(8)
	d, err := midiports.NewDeviceSelectionDialog(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.ParseLogLevel(*logLevel)),
		contracts.WithBaseURL(*url),
		contracts.WithTimeout(*timeout),
		contracts.WithNotifier(notes),
	)
	if err != nil {
		return err
	}

	runErr := tui.Run(ctx, d, notes)

	closeCtx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := d.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
