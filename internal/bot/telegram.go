package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pricefeed/internal/domain"

	tele "gopkg.in/telebot.v3"
)

const replyTimeout = 20 * time.Second

type PriceReader interface {
	GetPrice(ctx context.Context, symbol string) (domain.PriceRecord, *domain.AggregateResult, bool)
}

var newBot = tele.NewBot

// StartTelegramBot registers the command handlers and starts long polling in
// the background. An empty token disables the bot.
func StartTelegramBot(token string, prices PriceReader) (*tele.Bot, error) {
	if token == "" {
		slog.Info("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	b, err := newBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	cmds := &commands{prices: prices}
	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/price", func(c tele.Context) error {
		return c.Send(cmds.price(c.Args()))
	})
	b.Handle("/gold", func(c tele.Context) error {
		return c.Send(cmds.price([]string{domain.GoldSymbol}))
	})

	slog.Info("Telegram bot started")
	go b.Start()
	return b, nil
}

type commands struct {
	prices PriceReader
}

func (c *commands) price(args []string) string {
	if len(args) == 0 {
		return "Usage: /price BTCUSDT"
	}
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))

	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	rec, result, ok := c.prices.GetPrice(ctx, symbol)
	if !ok {
		msg := "Unknown symbol: " + symbol
		if result != nil && result.Warning != "" {
			msg += "\n" + result.Warning
		}
		return msg
	}
	return formatRecord(rec, result)
}

func formatRecord(rec domain.PriceRecord, result *domain.AggregateResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\nPrice: $%.2f", rec.Symbol, rec.Price)
	if rec.Source == domain.SourceBinance {
		fmt.Fprintf(&sb, "\n24h Change: %.2f%%\n24h Volume: %.0f\n24h Range: $%.2f - $%.2f",
			rec.PriceChangePercent24h, rec.Volume24h, rec.Low24h, rec.High24h)
	} else {
		sb.WriteString("\nSource: reference price")
	}
	if result != nil && result.Warning != "" {
		sb.WriteString("\n" + result.Warning)
	}
	return sb.String()
}
