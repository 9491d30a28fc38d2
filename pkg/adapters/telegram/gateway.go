package telegram

import (
	"context"
	"fmt"

	"github.com/armtemiy/armlab/pkg/domain"
	tele "gopkg.in/telebot.v3"
)

// StarsCurrency is the Telegram Stars currency code.
const StarsCurrency = "XTR"

// Gateway implements ports.PaymentGateway with the Bot API createInvoiceLink method.
type Gateway struct {
	bot           *tele.Bot
	providerToken string
}

// NewGateway wraps bot. providerToken stays empty for Stars payments.
func NewGateway(bot *tele.Bot, providerToken string) *Gateway {
	return &Gateway{bot: bot, providerToken: providerToken}
}

// CreateInvoice returns an invoice link with a single "Premium" price line.
// telebot has no context support, so ctx only short-circuits an already
// expired deadline and bounds the wait for the result.
func (g *Gateway) CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	invoice := tele.Invoice{
		Title:       req.Title,
		Description: req.Description,
		Payload:     req.Payload,
		Currency:    StarsCurrency,
		Token:       g.providerToken,
		Prices:      []tele.Price{{Label: "Premium", Amount: req.Amount}},
	}

	type result struct {
		link string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		link, err := g.bot.CreateInvoiceLink(invoice)
		done <- result{link, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("telegram: %w", r.err)
		}
		return r.link, nil
	}
}
