package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"PerpMarket/internal/event"
	"PerpMarket/internal/feed"
	"PerpMarket/internal/ledger"
	"PerpMarket/internal/market"
	"PerpMarket/internal/observability"
	"PerpMarket/internal/risk"
	"PerpMarket/internal/server"
	"PerpMarket/internal/testutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fixture struct {
	srv    *httptest.Server
	ledger *ledger.InMemory
	health *observability.HealthChecker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	params := risk.Defaults()
	if err := params.Set(risk.K, big.NewInt(0)); err != nil {
		t.Fatal(err)
	}
	f := feed.NewFixed(1_700_000_000, testutil.Fp(100), nil)
	led := ledger.NewInMemory()

	m, err := market.New(market.Config{
		Feed:         f,
		Params:       params,
		Ledger:       led,
		FeeRecipient: uuid.New(),
		PersistCh:    make(chan event.Envelope, 256),
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}

	health := observability.NewHealthChecker()
	s := server.New(m, params, nil, health, nil, zerolog.Nop())
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return &fixture{srv: ts, ledger: led, health: health}
}

func (fx *fixture) post(t *testing.T, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(fx.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp, decode(t, resp)
}

func (fx *fixture) get(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(fx.srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestBuildAndQueryPosition(t *testing.T) {
	fx := newFixture(t)
	alice := uuid.New()
	if err := fx.ledger.Mint(alice, testutil.Fp(10_000)); err != nil {
		t.Fatal(err)
	}

	resp, body := fx.post(t, "/v1/build", map[string]interface{}{
		"owner":      alice.String(),
		"collateral": testutil.Fp(200).String(),
		"leverage":   testutil.Fp(5).String(),
		"isLong":     true,
		"priceLimit": testutil.Fp(1_000_000_000).String(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("build status: got %d, want 201 (%v)", resp.StatusCode, body)
	}
	if got := body["positionId"].(float64); got != 0 {
		t.Errorf("positionId: got %v, want 0", got)
	}

	resp, body = fx.get(t, fmt.Sprintf("/v1/positions/%s/0", alice))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("position status: got %d, want 200", resp.StatusCode)
	}
	if got := body["notional"].(string); got != testutil.Fp(1000).String() {
		t.Errorf("notional: got %s, want %s", got, testutil.Fp(1000))
	}
	if got := body["debt"].(string); got != testutil.Fp(800).String() {
		t.Errorf("debt: got %s, want %s", got, testutil.Fp(800))
	}
	if !body["isLong"].(bool) {
		t.Error("isLong: got false, want true")
	}

	resp, body = fx.get(t, "/v1/market")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("market status: got %d, want 200", resp.StatusCode)
	}
	if got := body["openPositions"].(float64); got != 1 {
		t.Errorf("openPositions: got %v, want 1", got)
	}
}

func TestBuildRejections(t *testing.T) {
	fx := newFixture(t)
	alice := uuid.New()
	if err := fx.ledger.Mint(alice, testutil.Fp(10_000)); err != nil {
		t.Fatal(err)
	}

	// Sub-1x leverage fails the market precondition, not request parsing.
	resp, _ := fx.post(t, "/v1/build", map[string]interface{}{
		"owner":      alice.String(),
		"collateral": testutil.Fp(200).String(),
		"leverage":   testutil.FpFrac(1, 2).String(),
		"isLong":     true,
		"priceLimit": testutil.Fp(1_000_000_000).String(),
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("low leverage status: got %d, want 422", resp.StatusCode)
	}

	resp, _ = fx.post(t, "/v1/build", map[string]interface{}{
		"owner":      "not-a-uuid",
		"collateral": testutil.Fp(200).String(),
		"leverage":   testutil.Fp(2).String(),
		"isLong":     true,
		"priceLimit": testutil.Fp(1_000_000_000).String(),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad owner status: got %d, want 400", resp.StatusCode)
	}

	// Unfunded owner maps the ledger shortfall onto 409.
	resp, _ = fx.post(t, "/v1/build", map[string]interface{}{
		"owner":      uuid.New().String(),
		"collateral": testutil.Fp(200).String(),
		"leverage":   testutil.Fp(2).String(),
		"isLong":     true,
		"priceLimit": testutil.Fp(1_000_000_000).String(),
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("unfunded status: got %d, want 409", resp.StatusCode)
	}
}

func TestUnwindClosesPosition(t *testing.T) {
	fx := newFixture(t)
	alice := uuid.New()
	if err := fx.ledger.Mint(alice, testutil.Fp(10_000)); err != nil {
		t.Fatal(err)
	}

	resp, _ := fx.post(t, "/v1/build", map[string]interface{}{
		"owner":      alice.String(),
		"collateral": testutil.Fp(200).String(),
		"leverage":   testutil.Fp(2).String(),
		"isLong":     true,
		"priceLimit": testutil.Fp(1_000_000_000).String(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("build status: got %d, want 201", resp.StatusCode)
	}

	resp, _ = fx.post(t, "/v1/unwind", map[string]interface{}{
		"owner":      alice.String(),
		"positionId": 0,
		"fraction":   testutil.Fp(1).String(),
		"priceLimit": "0",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unwind status: got %d, want 200", resp.StatusCode)
	}

	resp, _ = fx.get(t, fmt.Sprintf("/v1/positions/%s/0", alice))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("closed position status: got %d, want 404", resp.StatusCode)
	}

	resp, _ = fx.post(t, "/v1/liquidate", map[string]interface{}{
		"sender":     uuid.New().String(),
		"owner":      alice.String(),
		"positionId": 0,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("liquidate closed status: got %d, want 404", resp.StatusCode)
	}
}

func TestParamRoundTrip(t *testing.T) {
	fx := newFixture(t)

	resp, body := fx.get(t, "/v1/params")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("params status: got %d, want 200", resp.StatusCode)
	}
	if got := body["k"].(string); got != "0" {
		t.Errorf("k before update: got %s, want 0", got)
	}

	resp, _ = fx.post(t, "/v1/params", map[string]string{
		"name":  "tradingFeeRate",
		"value": testutil.FpFrac(1, 1000).String(),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set param status: got %d, want 200", resp.StatusCode)
	}

	_, body = fx.get(t, "/v1/params")
	if got := body["tradingFeeRate"].(string); got != testutil.FpFrac(1, 1000).String() {
		t.Errorf("tradingFeeRate after update: got %s", got)
	}

	// Out-of-bounds and unknown names are rejected without touching state.
	resp, _ = fx.post(t, "/v1/params", map[string]string{
		"name":  "tradingFeeRate",
		"value": testutil.Fp(1).String(),
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("out-of-bounds status: got %d, want 422", resp.StatusCode)
	}
	resp, _ = fx.post(t, "/v1/params", map[string]string{
		"name":  "noSuchParam",
		"value": "1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown param status: got %d, want 400", resp.StatusCode)
	}
}

func TestQuoteAndMarketData(t *testing.T) {
	fx := newFixture(t)

	resp, body := fx.get(t, "/v1/quote?notional=" + testutil.Fp(1000).String() + "&side=long")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quote status: got %d, want 200 (%v)", resp.StatusCode, body)
	}
	price, ok := new(big.Int).SetString(body["price"].(string), 10)
	if !ok || price.Cmp(testutil.Fp(100)) <= 0 {
		t.Errorf("long quote should price above mid 100, got %v", body["price"])
	}

	resp, _ = fx.get(t, "/v1/quote?notional=abc&side=long")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad notional status: got %d, want 400", resp.StatusCode)
	}

	resp, body = fx.get(t, "/v1/data-valid")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("data-valid status: got %d, want 200", resp.StatusCode)
	}
	if !body["dataIsValid"].(bool) {
		t.Error("fixed feed should be valid")
	}

	resp, body = fx.get(t, "/v1/cap")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cap status: got %d, want 200", resp.StatusCode)
	}
	if _, ok := new(big.Int).SetString(body["capNotionalAdjusted"].(string), 10); !ok {
		t.Errorf("cap should be a decimal string, got %v", body["capNotionalAdjusted"])
	}

	resp, _ = fx.post(t, "/v1/update", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("update status: got %d, want 200", resp.StatusCode)
	}
}

func TestReadiness(t *testing.T) {
	fx := newFixture(t)

	resp, _ := fx.get(t, "/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz before ready: got %d, want 503", resp.StatusCode)
	}
	fx.health.SetReady(true)
	resp, _ = fx.get(t, "/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz after ready: got %d, want 200", resp.StatusCode)
	}
	resp, _ = fx.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz: got %d, want 200", resp.StatusCode)
	}
}
