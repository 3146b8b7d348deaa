package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbocsi/nativebridge/bridge"
	"github.com/mbocsi/nativebridge/broker"
	"github.com/mbocsi/nativebridge/config"
	"github.com/mbocsi/nativebridge/discovery"
	"github.com/mbocsi/nativebridge/mcp"
	"github.com/mbocsi/nativebridge/sample"
	"github.com/mbocsi/nativebridge/services"
	"github.com/mbocsi/nativebridge/transport"
	"github.com/mbocsi/nativebridge/web"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "bridgehost: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	// stdout belongs to the MCP stdio transport when it is enabled
	out := io.Writer(os.Stdout)
	if cfg.MCP {
		out = os.Stderr
	}
	setupLogger(out, cfg)

	tr := transport.NewWSTransport(bridge.WithFraming(cfg.BridgeFraming()))
	tr.SetMaxClients(cfg.MaxSessions)
	tr.SetTap(broker.NewBroker())
	tr.OnSession(sample.Register)

	service := services.NewBridgeService(tr)
	webServer := web.NewServer(tr, service, web.Options{
		BridgePath: cfg.BridgePath,
		EventName:  cfg.EventName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- webServer.Start(cfg.Addr) }()
	if cfg.MCP {
		mcpServer := mcp.NewMCPServer(service)
		go func() { errCh <- mcpServer.Start() }()
	}
	if cfg.Advertise {
		port, err := cfg.Port()
		if err != nil {
			return err
		}
		advertiser, err := discovery.Advertise(port, cfg.BridgePath, cfg.EventName)
		if err != nil {
			slog.Warn("mDNS advertisement disabled", "error", err.Error())
		} else {
			defer advertiser.Shutdown()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	slog.Info("Shutting down bridge host")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Shutdown(); err != nil {
		slog.Error("There was an error when shutting down the bridge transport", "error", err.Error())
	}
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("There was an error when shutting down the web server", "error", err.Error())
	}
	return runErr
}

func setupLogger(out io.Writer, cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == config.FormatText {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
}
