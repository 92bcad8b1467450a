// Command safexd is the SAFEX matching engine's process entrypoint: it
// loads configuration, wires a MatchingEngine to the demo collaborators in
// collaborators.go, and runs the TCP order-entry listener alongside the
// read-only HTTP/WS query surface until signaled to stop. Mirrors
// fenrir/cmd/main.go's shape (signal.NotifyContext, wire server, block on
// ctx.Done()), generalized to the extra API listener and config layer.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"safex/internal/api"
	"safex/internal/common"
	"safex/internal/config"
	"safex/internal/engine"
	"safex/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; env vars always apply)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed loading config")
	}

	logger := buildLogger(cfg.Log)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ledger := newMemoryLedger(map[common.Token]uint8{})
	reporter := &logReporter{log: logger.With().Str("component", "reporter").Logger(), ledger: ledger}
	feeOracle := staticFeeOracle{makerNumerator: 0, takerNumerator: uint32(cfg.Engine.FlatFeeNumerator)}

	hub := api.NewHub(logger.With().Str("component", "ws-hub").Logger())

	feeRecipient := parseAddress(cfg.Engine.FeeRecipient)
	custody := parseAddress(cfg.Engine.Custody)

	bridge := api.NewEventBridge(hub)
	eng := engine.New(
		feeOracle,
		reporter,
		ledger,
		ledger,
		feeRecipient,
		engine.WithMaxMatches(cfg.Engine.MaxMatches),
		engine.WithSpreadBandPct(cfg.Engine.SpreadBandPct),
		engine.WithFlatFeeNumerator(cfg.Engine.FlatFeeNumerator),
		engine.WithCustodyAddress(custody),
		engine.WithLogger(logger.With().Str("component", "engine").Logger()),
		engine.WithEventSink(bridge),
	)
	// The bridge resolves an orderbook id back to its pair through the
	// registry the engine just built internally (engine.New constructs its
	// own registry; there's no way to hand it one, so wiring happens after
	// the fact instead of at NewEventBridge time).
	bridge.SetRegistry(eng.Registry())

	orderEntry := server.New(cfg.Server.Address, cfg.Server.Port, eng, cfg.Server.NWorkers, logger.With().Str("component", "order-entry").Logger())
	apiServer := api.NewServer(eng, hub, cfg.API.AllowedOrigins, logger.With().Str("component", "api").Logger())

	go hub.Run()
	go func() {
		if err := orderEntry.Run(ctx); err != nil {
			log.Error().Err(err).Msg("order-entry server stopped")
		}
	}()
	go func() {
		addr := net.JoinHostPort(cfg.API.Address, strconv.Itoa(cfg.API.Port))
		if err := apiServer.Start(addr); err != nil {
			log.Error().Err(err).Msg("api server stopped")
		}
	}()

	<-ctx.Done()
	orderEntry.Shutdown()
	if err := apiServer.Stop(); err != nil {
		log.Error().Err(err).Msg("api server shutdown error")
	}
}

func buildLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var l zerolog.Logger
	if cfg.Format == "json" {
		l = zerolog.New(os.Stdout)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return l.Level(level).With().Timestamp().Logger()
}

// parseAddress decodes a "0x"-prefixed or bare hex string into a
// common.Address: shorter input is left-zero-padded, longer input keeps its
// last 20 bytes, and non-hex input yields the zero address — good enough
// for a demo fee recipient/custody config value, not a validating parser.
func parseAddress(s string) common.Address {
	var addr common.Address
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return addr
	}
	if len(decoded) > len(addr) {
		decoded = decoded[len(decoded)-len(addr):]
	}
	copy(addr[len(addr)-len(decoded):], decoded)
	return addr
}
