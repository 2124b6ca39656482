// Package store mirrors round records into a relational database so they
// can be queried after the fact. The JSONL journal remains the durable log;
// the store is convenience only and its failures never fail a round.
package store

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quantrelay/arbmon/internal/arb"
)

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// OpportunityRecord is one monitor round.
type OpportunityRecord struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Signal        string `gorm:"index"`
	BestSide      string
	BestEdge      float64
	FeeRate       float64
	Question      string
	MarketSlug    string
	EventSlug     string
	PMUpProb      float64
	PMDownProb    float64
	ModelUpProb   float64
	ModelDownProb float64
	SampleCount   int
	Symbol        string
	SpotPrice     float64
	Paper         bool
	Error         string
	ObservedAt    time.Time `gorm:"index"`
	CreatedAt     time.Time
}

// TradeRecord is one auto-trade attempt.
type TradeRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	OrderID     string `gorm:"index"`
	Side        string
	Executed    bool
	Reason      string
	NotionalUSD float64
	SellQty     float64
	Error       string
	ObservedAt  time.Time `gorm:"index"`
	CreatedAt   time.Time
}

// Open connects to the database at path. A postgres:// or postgresql:// DSN
// uses PostgreSQL; anything else is treated as a SQLite file path.
func Open(path string) (*Store, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://") {
		db, err = gorm.Open(postgres.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("record store connected (PostgreSQL)")
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", path).Msg("record store initialized (SQLite)")
	}

	if err := db.AutoMigrate(&OpportunityRecord{}, &TradeRecord{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// SaveOpportunity persists a round record, plus a trade record when the
// round carried an auto-trade attempt.
func (s *Store) SaveOpportunity(opp arb.Opportunity) error {
	observed, err := time.Parse(time.RFC3339, opp.TimestampUTC)
	if err != nil {
		observed = time.Now().UTC()
	}

	rec := OpportunityRecord{
		Signal:        string(opp.Signal),
		BestSide:      string(opp.BestSide),
		BestEdge:      opp.BestEdge,
		FeeRate:       opp.FeeRate,
		Question:      opp.Question,
		MarketSlug:    opp.MarketSlug,
		EventSlug:     opp.EventSlug,
		PMUpProb:      opp.PMUpProb,
		PMDownProb:    opp.PMDownProb,
		ModelUpProb:   opp.ModelUpProb,
		ModelDownProb: opp.ModelDownProb,
		SampleCount:   opp.ModelMeta.SampleCount,
		Symbol:        opp.Symbol,
		SpotPrice:     opp.SpotPrice,
		Paper:         opp.Paper,
		Error:         opp.Err,
		ObservedAt:    observed,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return err
	}

	if opp.AutoTrade == nil {
		return nil
	}
	trade := TradeRecord{
		OrderID:     opp.AutoTrade.OrderID,
		Side:        opp.AutoTrade.Side,
		Executed:    opp.AutoTrade.Executed,
		Reason:      opp.AutoTrade.Reason,
		NotionalUSD: opp.AutoTrade.NotionalUSD,
		SellQty:     opp.AutoTrade.SellQty,
		Error:       opp.AutoTrade.Error,
		ObservedAt:  observed,
	}
	return s.db.Create(&trade).Error
}

// RecentOpportunities returns the newest rounds, newest first.
func (s *Store) RecentOpportunities(limit int) ([]OpportunityRecord, error) {
	var recs []OpportunityRecord
	err := s.db.Order("observed_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// RecentTrades returns the newest trade attempts, newest first.
func (s *Store) RecentTrades(limit int) ([]TradeRecord, error) {
	var recs []TradeRecord
	err := s.db.Order("observed_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}
