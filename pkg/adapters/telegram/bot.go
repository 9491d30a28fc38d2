package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/pkg/domain"
	tele "gopkg.in/telebot.v3"
)

// Payments is the part of the payment service the bot needs.
// *payment.Service implements it.
type Payments interface {
	CheckPayload(ctx context.Context, payload string, amount int) error
	MarkPaid(ctx context.Context, payload, chargeID string) (*domain.Purchase, error)
}

// BotOptions configures NewBot.
type BotOptions struct {
	Token string
	// URL overrides the Bot API endpoint (proxies, tests).
	URL string
	// Poll enables long polling; without it the bot only makes outgoing calls.
	Poll        bool
	PollTimeout time.Duration
	Logger      *slog.Logger
}

// NewBot creates the telebot client.
func NewBot(opts BotOptions) (*tele.Bot, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	settings := tele.Settings{
		Token:   opts.Token,
		URL:     opts.URL,
		Offline: !opts.Poll,
		OnError: func(err error, c tele.Context) {
			logger.Error("bot update failed", "err", err)
		},
	}
	if opts.Poll {
		timeout := opts.PollTimeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		settings.Poller = &tele.LongPoller{
			Timeout:        timeout,
			AllowedUpdates: []string{"message", "pre_checkout_query"},
		}
	}
	return tele.NewBot(settings)
}

// PaymentBot answers pre-checkout queries and confirms successful payments.
type PaymentBot struct {
	bot      *tele.Bot
	payments Payments
	logger   *slog.Logger
	onPaid   func(*domain.Purchase)
}

// PaymentBotOption configures a PaymentBot.
type PaymentBotOption func(*PaymentBot)

// WithBotLogger configures a logger for the PaymentBot.
func WithBotLogger(logger *slog.Logger) PaymentBotOption {
	return func(p *PaymentBot) {
		p.logger = logger
	}
}

// WithPaidHook is called after a payment was recorded.
func WithPaidHook(fn func(*domain.Purchase)) PaymentBotOption {
	return func(p *PaymentBot) {
		p.onPaid = fn
	}
}

// NewPaymentBot registers the payment handlers on bot.
func NewPaymentBot(bot *tele.Bot, payments Payments, opts ...PaymentBotOption) *PaymentBot {
	p := &PaymentBot{
		bot:      bot,
		payments: payments,
		logger:   logging.NewNop(),
		onPaid:   func(*domain.Purchase) {},
	}
	for _, opt := range opts {
		opt(p)
	}

	bot.Handle(tele.OnCheckout, p.handleCheckout)
	bot.Handle(tele.OnPayment, p.handlePayment)
	return p
}

// Start polls for updates until Stop is called. It blocks.
func (p *PaymentBot) Start() {
	p.bot.Start()
}

// Stop ends polling.
func (p *PaymentBot) Stop() {
	p.bot.Stop()
}

func (p *PaymentBot) handleCheckout(c tele.Context) error {
	q := c.PreCheckoutQuery()
	if q == nil {
		return nil
	}

	if q.Currency != StarsCurrency {
		return c.Accept("Оплата доступна только в Telegram Stars.")
	}
	if err := p.payments.CheckPayload(context.Background(), q.Payload, q.Total); err != nil {
		p.logger.Warn("pre-checkout rejected", "payload", q.Payload, "err", err)
		return c.Accept("Счет недействителен, создай новый в приложении.")
	}
	return c.Accept()
}

func (p *PaymentBot) handlePayment(c tele.Context) error {
	pay := c.Message().Payment
	if pay == nil {
		return nil
	}

	purchase, err := p.payments.MarkPaid(context.Background(), pay.Payload, pay.TelegramChargeID)
	if err != nil {
		p.logger.Error("failed to confirm payment",
			"payload", pay.Payload,
			"charge_id", pay.TelegramChargeID,
			"err", err,
		)
		return err
	}

	p.onPaid(purchase)
	return c.Send("Премиум-разбор открыт. Вернись в приложение, чтобы увидеть полный результат.")
}
