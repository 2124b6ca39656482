// Records - query the arbmon record store
//
// Prints recent monitor rounds and auto-trade attempts from the SQLite file
// or PostgreSQL DSN the monitor mirrors into.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantrelay/arbmon/internal/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	godotenv.Load()

	defaultDB := os.Getenv("ARBMON_DATABASE_PATH")
	if defaultDB == "" {
		defaultDB = "data/arb_monitor.db"
	}

	dbPath := flag.String("db", defaultDB, "record store path or postgres DSN")
	limit := flag.Int("limit", 20, "rows to show")
	trades := flag.Bool("trades", false, "show trade attempts instead of rounds")
	arbOnly := flag.Bool("arb-only", false, "only show ARBITRAGE rounds")
	flag.Parse()

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open record store")
	}

	if *trades {
		printTrades(db, *limit)
		return
	}
	printRounds(db, *limit, *arbOnly)
}

func printRounds(db *store.Store, limit int, arbOnly bool) {
	rounds, err := db.RecentOpportunities(limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Query failed")
	}

	fmt.Printf("%-20s  %-9s  %-4s  %8s  %7s  %7s  %7s  %10s\n",
		"OBSERVED", "SIGNAL", "SIDE", "EDGE%", "PM_UP", "PM_DN", "MODEL", "SPOT")
	for _, r := range rounds {
		if arbOnly && r.Signal != "ARBITRAGE" {
			continue
		}
		if r.Signal == "ERROR" {
			fmt.Printf("%-20s  %-9s  %s\n",
				r.ObservedAt.Format("2006-01-02 15:04:05"), r.Signal, r.Error)
			continue
		}
		fmt.Printf("%-20s  %-9s  %-4s  %8.3f  %7.4f  %7.4f  %7.4f  %10.2f\n",
			r.ObservedAt.Format("2006-01-02 15:04:05"),
			r.Signal, r.BestSide, r.BestEdge*100,
			r.PMUpProb, r.PMDownProb, r.ModelUpProb, r.SpotPrice)
	}
}

func printTrades(db *store.Store, limit int) {
	rows, err := db.RecentTrades(limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Query failed")
	}

	fmt.Printf("%-20s  %-4s  %-8s  %-22s  %10s  %10s  %s\n",
		"OBSERVED", "SIDE", "EXECUTED", "REASON", "NOTIONAL", "SELL_QTY", "ORDER_ID")
	for _, t := range rows {
		fmt.Printf("%-20s  %-4s  %-8t  %-22s  %10.2f  %10.6f  %s\n",
			t.ObservedAt.Format("2006-01-02 15:04:05"),
			t.Side, t.Executed, t.Reason, t.NotionalUSD, t.SellQty, t.OrderID)
	}
}
