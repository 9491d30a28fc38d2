package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	apihttp "github.com/armtemiy/armlab/pkg/adapters/http"
	"github.com/armtemiy/armlab/pkg/adapters/memory"
	"github.com/armtemiy/armlab/pkg/adapters/telegram"
	"github.com/armtemiy/armlab/pkg/catalog"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/dsl"
	"github.com/armtemiy/armlab/pkg/payment"
	"github.com/armtemiy/armlab/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	botToken = "123456:TEST-TOKEN"
	adminID  = 1
	userID   = 1001
)

func exampleTree() *domain.Tree {
	b := dsl.New("t1").Title("Example")
	b.Add("q1").Question("First?").
		Option("A", "r1").
		Option("B", "q2")
	b.Add("q2").Question("Second?").Option("C", "r1")
	b.Add("r1").Result("Done").
		Diagnosis("diag").
		Recommend("rest").
		Premium("")
	return b.MustBuild()
}

type fakeGateway struct{}

func (fakeGateway) CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (string, error) {
	return "https://t.me/$" + req.Payload, nil
}

type fixture struct {
	handler   http.Handler
	server    *apihttp.Server
	manager   *session.Manager
	catalog   *catalog.Catalog
	results   *memory.ResultStore
	validator *telegram.Validator
}

func newFixture(t *testing.T, opts ...apihttp.Option) *fixture {
	t.Helper()
	f := &fixture{
		catalog:   catalog.New(memory.NewTreeStore(), catalog.WithDefault(exampleTree())),
		results:   memory.NewResultStore(),
		validator: telegram.NewValidator(botToken, time.Hour),
	}
	f.manager = session.NewManager(memory.NewStore(), f.catalog, f.results, session.WithStrictOptions(true))
	payments := payment.NewService(fakeGateway{}, memory.NewPurchaseStore(), payment.WithAdmins(strconv.Itoa(adminID)))

	opts = append([]apihttp.Option{
		apihttp.WithPayments(payments),
		apihttp.WithAuthenticator(f.validator),
		apihttp.WithVersion("1.2.3\n"),
	}, opts...)
	f.server = apihttp.NewServer(f.manager, f.catalog, opts...)
	f.handler = f.server.Handler()
	t.Cleanup(f.manager.Wait)
	return f
}

func (f *fixture) initData(id int) string {
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	values.Set("user", `{"id":`+strconv.Itoa(id)+`,"username":"u`+strconv.Itoa(id)+`"}`)
	values.Set("hash", f.validator.Sign(values))
	return values.Encode()
}

func (f *fixture) do(t *testing.T, method, path string, user int, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != 0 {
		req.Header.Set("Authorization", "tma "+f.initData(user))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/health", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "GET", "/info", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[map[string]any](t, rec)
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "t1", info["tree_id"])
	assert.EqualValues(t, 1, info["tree_revision"])
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "OPTIONS", "/wizard/advance", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestWizardFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/wizard", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[domain.View](t, rec)
	assert.Equal(t, "tg:1001", view.SessionID)
	assert.Equal(t, "q1", view.NodeID)
	assert.False(t, view.CanGoBack)

	rec = f.do(t, "POST", "/wizard/advance", userID, map[string]string{"label": "B", "next": "q2"})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[domain.View](t, rec)
	assert.Equal(t, "q2", view.NodeID)
	assert.True(t, view.CanGoBack)

	rec = f.do(t, "POST", "/wizard/advance", userID, map[string]string{"label": "C", "next": "r1"})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[domain.View](t, rec)
	require.NotNil(t, view.Result)
	assert.True(t, view.Result.Locked)

	f.manager.Wait()
	records := f.results.Results()
	require.Len(t, records, 1)
	assert.Equal(t, map[string]string{"q1": "B", "q2": "C"}, records[0].Answers)

	rec = f.do(t, "POST", "/wizard/back", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "q2", decode[domain.View](t, rec).NodeID)

	rec = f.do(t, "POST", "/wizard/restart", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "q1", decode[domain.View](t, rec).NodeID)
}

func TestWizard_BackOnEmptyHistoryExits(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/wizard/back", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, true, resp["exit"])
}

func TestWizard_BadInput(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/wizard/advance", userID, map[string]string{"label": "Z", "next": "r1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/wizard/advance", userID, map[string]string{"label": "A"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/wizard/advance", userID, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWizard_Authentication(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/wizard", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/wizard", nil)
	req.Header.Set("Authorization", "tma "+strings.Replace(f.initData(userID), "hash=", "hash=00", 1))
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWizard_Anonymous(t *testing.T) {
	f := newFixture(t, apihttp.WithAnonymous(true))

	rec := f.do(t, "GET", "/wizard", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "session header is required")

	req := httptest.NewRequest("GET", "/wizard", nil)
	req.Header.Set("X-Session-ID", "device-1")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anon:device-1", decode[domain.View](t, rec).SessionID)
}

func TestTree_AdminOnly(t *testing.T) {
	f := newFixture(t)
	body := `{"id":"t2","title":"T2","start":"r","nodes":{"r":{"type":"result","title":"R","diagnosis":"d","recommendations":[]}}}`

	assert.Equal(t, http.StatusUnauthorized, f.do(t, "PUT", "/tree", 0, body).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, "PUT", "/tree", userID, body).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, "DELETE", "/tree", userID, nil).Code)
	assert.Equal(t, "t1", f.catalog.Current().Tree.ID)
}

func TestTree_ImportExportReset(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "PUT", "/tree", adminID, `{"id":"t2","title":"T2","start":"","nodes":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid tree", decode[map[string]any](t, rec)["error"])

	yamlTree := `
id: t2
title: T2
start: q
nodes:
  q:
    type: question
    text: Where?
    options:
      - {label: Here, next: ghost}
`
	req := httptest.NewRequest("PUT", "/tree", strings.NewReader(yamlTree))
	req.Header.Set("Authorization", "tma "+f.initData(adminID))
	req.Header.Set("Content-Type", "application/yaml")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "t2", resp["tree_id"])
	assert.EqualValues(t, 2, resp["revision"])
	assert.NotEmpty(t, resp["warnings"])

	rec = f.do(t, "GET", "/tree", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Tree-Revision"))
	assert.Contains(t, rec.Body.String(), `"id": "t2"`)

	rec = f.do(t, "DELETE", "/tree", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[map[string]any](t, rec)
	assert.Equal(t, "default", resp["source"])
	assert.Equal(t, "t1", f.catalog.Current().Tree.ID)
}

func TestWizard_BrokenTree(t *testing.T) {
	f := newFixture(t)
	broken := exampleTree()
	broken.Nodes["q1"] = domain.NewQuestion(domain.Question{Text: "First?", Options: []domain.Option{
		{Label: "Lost", Next: "ghost"},
	}})
	_, err := f.catalog.Replace(context.Background(), broken)
	require.NoError(t, err)

	rec := f.do(t, "POST", "/wizard/advance", userID, map[string]string{"label": "Lost", "next": "ghost"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "broken tree", decode[map[string]any](t, rec)["error"])

	rec = f.do(t, "POST", "/wizard/restart", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "q1", decode[domain.View](t, rec).NodeID)
}

func TestTreeGraph(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/wizard/advance", userID, map[string]string{"label": "B", "next": "q2"})

	rec := f.do(t, "GET", "/tree/graph", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "graph TD"))
	assert.Contains(t, body, "class q2 current")

	rec = f.do(t, "GET", "/tree/graph", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "current")
}

func TestPremiumFlow(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, "POST", "/premium/invoice", 0, nil).Code)

	rec := f.do(t, "POST", "/premium/invoice", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	invoice := decode[domain.Invoice](t, rec)
	assert.Equal(t, "https://t.me/$purchase:"+invoice.PurchaseID, invoice.Link)

	rec = f.do(t, "POST", "/premium/status", userID, map[string]string{"purchase_id": "nope", "status": "paid"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, "POST", "/premium/status", adminID, map[string]string{"purchase_id": invoice.PurchaseID, "status": "paid"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, "POST", "/premium/status", userID, map[string]string{"purchase_id": invoice.PurchaseID, "status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]domain.Access](t, rec)["access"].PremiumUnlocked)

	rec = f.do(t, "POST", "/wizard/advance", userID, map[string]string{"label": "A", "next": "r1"})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[domain.View](t, rec)
	require.NotNil(t, view.Result)
	assert.False(t, view.Result.Locked)

	rec = f.do(t, "GET", "/premium/access", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]domain.Access](t, rec)["access"].PremiumUnlocked)
}

func TestPremium_CancelledIsNotPaid(t *testing.T) {
	f := newFixture(t)

	invoice := decode[domain.Invoice](t, f.do(t, "POST", "/premium/invoice", userID, nil))
	rec := f.do(t, "POST", "/premium/status", userID, map[string]string{"purchase_id": invoice.PurchaseID, "status": "cancelled"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = f.do(t, "POST", "/premium/status", userID, map[string]string{"purchase_id": invoice.PurchaseID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, apihttp.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("armlab_up 1\n"))
	})))

	rec := f.do(t, "GET", "/metrics", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "armlab_up 1\n", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, newFixture(t).do(t, "GET", "/metrics", 0, nil).Code)
}
