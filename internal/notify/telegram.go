// Package notify sends Telegram alerts when a round finds a tradable edge.
// Alerts are best-effort: a send failure is logged and the round proceeds.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/quantrelay/arbmon/internal/arb"
)

// Notifier posts alerts to a Telegram chat.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// New authorizes the bot token. Returns an error if Telegram rejects it.
func New(token string, chatID int64) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorizing telegram bot: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("telegram alerts enabled")
	return &Notifier{api: api, chatID: chatID}, nil
}

// Alert sends a formatted message for an ARBITRAGE round.
func (n *Notifier) Alert(opp arb.Opportunity) {
	text := fmt.Sprintf(`🚨 *Arbitrage signal*

Side: *%s*  edge %.3f%% (fee %.3f%%)
PM: Up %.2f%% / Down %.2f%%
Model: Up %.2f%%
Spot: $%.2f
%s`,
		opp.BestSide,
		opp.BestEdge*100, opp.FeeRate*100,
		opp.PMUpProb*100, opp.PMDownProb*100,
		opp.ModelUpProb*100,
		opp.SpotPrice,
		opp.Question,
	)

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("telegram alert failed")
	}
}
