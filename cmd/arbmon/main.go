// Arbmon - Polymarket 5-minute BTC arbitrage monitor
//
// Each round compares the Polymarket "Bitcoin Up or Down" 5-minute market
// probabilities against a KNN estimate built from recent Alpaca 1-minute
// closes, flags rounds where the model disagrees with the market by more
// than the fee, and appends every round to a JSONL log. With --auto-trade
// it also places cooldown-gated spot orders on the flagged side.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantrelay/arbmon/internal/alpaca"
	"github.com/quantrelay/arbmon/internal/config"
	"github.com/quantrelay/arbmon/internal/executor"
	"github.com/quantrelay/arbmon/internal/gamma"
	"github.com/quantrelay/arbmon/internal/journal"
	"github.com/quantrelay/arbmon/internal/lockfile"
	"github.com/quantrelay/arbmon/internal/monitor"
	"github.com/quantrelay/arbmon/internal/notify"
	"github.com/quantrelay/arbmon/internal/store"
)

const version = "1.2.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	stop := applyFlags(cfg)

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	lock := lockfile.New(cfg.PIDFile, nil)

	if stop {
		if err := lock.Stop(10 * time.Second); err != nil {
			if errors.Is(err, lockfile.ErrNotRunning) {
				log.Info().Str("pid_file", cfg.PIDFile).Msg("No running monitor found")
				return
			}
			log.Fatal().Err(err).Msg("Failed to stop running monitor")
		}
		log.Info().Msg("🛑 Monitor stopped")
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	creds, err := config.LoadCredentials(cfg.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ConfigPath).Msg("Failed to load Alpaca credentials")
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	markets := gamma.NewClient(httpClient)
	broker := alpaca.NewClient(httpClient, creds)

	jnl, err := journal.Open(cfg.OutputPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.OutputPath).Msg("Failed to open round log")
	}
	defer jnl.Close()

	mon := monitor.New(cfg, markets, broker, jnl, lock)
	mon.SetPaper(creds.Paper)

	if cfg.DatabasePath != "" {
		db, err := store.Open(cfg.DatabasePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open record store")
		}
		mon.SetMirror(db)
		log.Info().Str("db", cfg.DatabasePath).Msg("💾 Record store enabled")
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		notifier, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram alerts disabled")
		} else {
			mon.SetAlerter(notifier)
			log.Info().Msg("📣 Telegram alerts enabled")
		}
	}

	if cfg.AutoTrade {
		tradeSym := alpaca.NormalizeTradingSymbol(cfg.Symbol)
		mon.SetTrader(executor.New(broker, tradeSym, cfg.NotionalUSD, cfg.Cooldown))
		log.Info().
			Float64("notional_usd", cfg.NotionalUSD).
			Dur("cooldown", cfg.Cooldown).
			Bool("paper", creds.Paper).
			Msg("💳 Auto-trading enabled")
	}

	log.Info().
		Str("version", version).
		Str("symbol", cfg.Symbol).
		Str("tag", cfg.TagSlug).
		Dur("interval", cfg.Interval).
		Int("polls", cfg.Polls).
		Msg("⚡ Arbmon starting...")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := mon.Run(ctx); err != nil {
		if errors.Is(err, lockfile.ErrAlreadyRunning) {
			log.Fatal().Err(err).Str("pid_file", cfg.PIDFile).Msg("Another monitor owns the lock (use --stop)")
		}
		log.Fatal().Err(err).Msg("Monitor exited with error")
	}

	log.Info().Int64("rounds", jnl.Count()).Msg("👋 Done")
}

// applyFlags overlays command-line flags on the env-derived config and
// reports whether --stop was requested.
func applyFlags(cfg *config.Config) bool {
	stop := flag.Bool("stop", false, "terminate the running monitor instance and exit")

	flag.StringVar(&cfg.Symbol, "symbol", cfg.Symbol, "Alpaca crypto symbol")
	flag.DurationVar(&cfg.Interval, "interval", cfg.Interval, "seconds between polling rounds")
	flag.IntVar(&cfg.Polls, "polls", cfg.Polls, "number of rounds to run (0 = until stopped)")
	flag.Float64Var(&cfg.FeeRate, "fee-rate", cfg.FeeRate, "fee threshold an edge must exceed")
	flag.IntVar(&cfg.HistoryBars, "history-bars", cfg.HistoryBars, "1-minute bars to fetch per round")
	flag.IntVar(&cfg.Neighbors, "neighbors", cfg.Neighbors, "KNN neighbor count")
	flag.BoolVar(&cfg.AutoTrade, "auto-trade", cfg.AutoTrade, "place orders on ARBITRAGE rounds")
	flag.Float64Var(&cfg.NotionalUSD, "trade-notional-usd", cfg.NotionalUSD, "notional per order in USD")
	cooldown := flag.Int("trade-cooldown-seconds", int(cfg.Cooldown/time.Second), "minimum seconds between executed trades")
	flag.BoolVar(&cfg.JSONOutput, "json", cfg.JSONOutput, "emit one JSON object per round on stdout")
	flag.StringVar(&cfg.OutputPath, "output-jsonl", cfg.OutputPath, "path of the JSONL round log")
	flag.StringVar(&cfg.PIDFile, "pid-file", cfg.PIDFile, "path of the single-instance PID file")
	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "record store path or postgres DSN (empty disables)")
	flag.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Alpaca credentials YAML file")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")

	flag.Parse()
	cfg.Cooldown = time.Duration(*cooldown) * time.Second
	return *stop
}
