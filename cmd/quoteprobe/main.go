// Quoteprobe - watch live CLOB quotes for the target 5-minute market
//
// Resolves the same market the monitor polls, subscribes to its outcome
// tokens over the CLOB websocket, and prints every top-of-book change.
// Useful for judging how stale the REST quotes are between polling rounds.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantrelay/arbmon/internal/clobws"
	"github.com/quantrelay/arbmon/internal/gamma"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tagSlug := flag.String("tag", "5m", "gamma tag to scan")
	phrase := flag.String("phrase", "bitcoin up or down", "market question filter")
	duration := flag.Duration("duration", 0, "stop after this long (0 = until interrupted)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	markets := gamma.NewClient(&http.Client{Timeout: 15 * time.Second})
	market, err := markets.FetchTargetMarket(ctx, *tagSlug, *phrase)
	if err != nil {
		log.Fatal().Err(err).Str("tag", *tagSlug).Msg("Failed to resolve target market")
	}

	tokens := market.ParseTokenIDs()
	if len(tokens) < 2 {
		log.Fatal().Str("market", market.Slug).Msg("Market has no outcome token IDs")
	}
	labels := labelTokens(market, tokens)

	log.Info().
		Str("question", market.Question).
		Str("slug", market.Slug).
		Msg("🔍 Probing market quotes")

	ws := clobws.New("")
	ws.OnUpdate(func(top clobws.BookTop) {
		fmt.Printf("%s  %-4s  bid=%s ask=%s\n",
			top.UpdatedAt.Format("15:04:05.000"),
			labels[top.TokenID], top.BestBid.StringFixed(3), top.BestAsk.StringFixed(3))
	})

	if err := ws.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect websocket")
	}
	defer ws.Close()

	if err := ws.Subscribe(tokens[0], tokens[1]); err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe")
	}

	<-ctx.Done()
	log.Info().Msg("👋 Done")
}

// labelTokens maps token IDs to their outcome labels so the stream is
// readable. Falls back to positional UP/DOWN when labels are missing.
func labelTokens(market *gamma.Market, tokens []string) map[string]string {
	outcomes := market.ParseOutcomes()
	labels := make(map[string]string, len(tokens))
	for i, tok := range tokens {
		switch {
		case i < len(outcomes) && outcomes[i] != "":
			labels[tok] = outcomes[i]
		case i == 0:
			labels[tok] = "UP"
		default:
			labels[tok] = "DOWN"
		}
	}
	return labels
}
