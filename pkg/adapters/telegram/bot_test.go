package telegram_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/armtemiy/armlab/pkg/adapters/telegram"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

type call struct {
	Method string
	Params map[string]any
}

// fakeBotAPI records Bot API calls and answers with canned results.
type fakeBotAPI struct {
	mu      sync.Mutex
	calls   []call
	fail    bool
	delay   time.Duration
	srv     *httptest.Server
	replies map[string]string
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	f := &fakeBotAPI{replies: map[string]string{
		"createInvoiceLink":      `{"ok":true,"result":"https://t.me/$invoice-1"}`,
		"answerPreCheckoutQuery": `{"ok":true,"result":true}`,
		"sendMessage":            `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1001,"type":"private"}}}`,
	}}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		body, _ := io.ReadAll(r.Body)
		params := map[string]any{}
		_ = json.Unmarshal(body, &params)

		f.mu.Lock()
		f.calls = append(f.calls, call{Method: method, Params: params})
		fail, delay := f.fail, f.delay
		f.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		if fail {
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: currency not supported"}`)
			return
		}
		_, _ = io.WriteString(w, f.replies[method])
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBotAPI) bot(t *testing.T) *tele.Bot {
	b, err := tele.NewBot(tele.Settings{
		Token:       botToken,
		URL:         f.srv.URL,
		Offline:     true,
		Synchronous: true,
	})
	require.NoError(t, err)
	return b
}

func (f *fakeBotAPI) find(method string) (call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Method == method {
			return c, true
		}
	}
	return call{}, false
}

func TestGateway_CreateInvoice(t *testing.T) {
	api := newFakeBotAPI(t)
	gw := telegram.NewGateway(api.bot(t), "")

	link, err := gw.CreateInvoice(context.Background(), domain.InvoiceRequest{
		Amount:      25,
		Payload:     "purchase:p1",
		Title:       "Armtemiy Lab",
		Description: "desc",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/$invoice-1", link)

	c, ok := api.find("createInvoiceLink")
	require.True(t, ok)
	assert.Equal(t, "XTR", c.Params["currency"])
	assert.Equal(t, "purchase:p1", c.Params["payload"])
	assert.Contains(t, c.Params["prices"], "Premium")
}

func TestGateway_Error(t *testing.T) {
	api := newFakeBotAPI(t)
	api.fail = true
	gw := telegram.NewGateway(api.bot(t), "")

	_, err := gw.CreateInvoice(context.Background(), domain.InvoiceRequest{Amount: 1, Payload: "purchase:p1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currency not supported")
}

func TestGateway_Deadline(t *testing.T) {
	api := newFakeBotAPI(t)
	api.delay = 300 * time.Millisecond
	gw := telegram.NewGateway(api.bot(t), "")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := gw.CreateInvoice(ctx, domain.InvoiceRequest{Amount: 1, Payload: "purchase:p1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakePayments struct {
	checkErr error
	paid     []string
}

func (f *fakePayments) CheckPayload(ctx context.Context, payload string, amount int) error {
	return f.checkErr
}

func (f *fakePayments) MarkPaid(ctx context.Context, payload, chargeID string) (*domain.Purchase, error) {
	f.paid = append(f.paid, payload+"|"+chargeID)
	return &domain.Purchase{ID: strings.TrimPrefix(payload, "purchase:"), Status: domain.PurchasePaid, ChargeID: chargeID}, nil
}

func TestPaymentBot_Checkout(t *testing.T) {
	api := newFakeBotAPI(t)
	b := api.bot(t)
	payments := &fakePayments{}
	telegram.NewPaymentBot(b, payments)

	b.ProcessUpdate(tele.Update{PreCheckoutQuery: &tele.PreCheckoutQuery{
		ID:       "q1",
		Sender:   &tele.User{ID: 1001},
		Currency: "XTR",
		Payload:  "purchase:p1",
		Total:    1,
	}})

	c, ok := api.find("answerPreCheckoutQuery")
	require.True(t, ok)
	assert.Equal(t, "q1", c.Params["pre_checkout_query_id"])
	assert.Equal(t, "true", c.Params["ok"])
}

func TestPaymentBot_CheckoutRejected(t *testing.T) {
	api := newFakeBotAPI(t)
	b := api.bot(t)
	telegram.NewPaymentBot(b, &fakePayments{checkErr: errors.New("amount mismatch")})

	b.ProcessUpdate(tele.Update{PreCheckoutQuery: &tele.PreCheckoutQuery{
		ID:       "q2",
		Sender:   &tele.User{ID: 1001},
		Currency: "XTR",
		Payload:  "purchase:p1",
		Total:    99,
	}})

	c, ok := api.find("answerPreCheckoutQuery")
	require.True(t, ok)
	assert.Equal(t, "false", c.Params["ok"])
	assert.NotEmpty(t, c.Params["error_message"])
}

func TestPaymentBot_SuccessfulPayment(t *testing.T) {
	api := newFakeBotAPI(t)
	b := api.bot(t)
	payments := &fakePayments{}

	var confirmed *domain.Purchase
	telegram.NewPaymentBot(b, payments, telegram.WithPaidHook(func(p *domain.Purchase) { confirmed = p }))

	b.ProcessUpdate(tele.Update{Message: &tele.Message{
		ID:     10,
		Sender: &tele.User{ID: 1001},
		Chat:   &tele.Chat{ID: 1001, Type: tele.ChatPrivate},
		Payment: &tele.Payment{
			Currency:         "XTR",
			Total:            1,
			Payload:          "purchase:p1",
			TelegramChargeID: "tg-charge-1",
		},
	}})

	assert.Equal(t, []string{"purchase:p1|tg-charge-1"}, payments.paid)
	require.NotNil(t, confirmed)
	assert.Equal(t, "p1", confirmed.ID)

	_, sent := api.find("sendMessage")
	assert.True(t, sent)
}
