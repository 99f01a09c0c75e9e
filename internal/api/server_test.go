package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/petalworks/blossom/internal/aiclient"
	"github.com/petalworks/blossom/internal/app/gate"
	"github.com/petalworks/blossom/internal/app/purchase"
	"github.com/petalworks/blossom/internal/domain"
	"github.com/petalworks/blossom/internal/infra/dualstore"
	"github.com/petalworks/blossom/internal/ledger"
)

// fixture is a full wallet stack over in-memory backends, with the AI
// client pointed at a stub relay.
type fixture struct {
	server *Server
	ledger *ledger.Ledger
	relay  *httptest.Server
}

// newFixture builds the stack. modelText is what the stub relay's model
// answers with; vendorStatus != 200 makes the relay fail instead.
func newFixture(t *testing.T, modelText string, vendorStatus int) *fixture {
	t.Helper()

	store := dualstore.New(dualstore.NewMemoryBackend(), dualstore.NewMemoryBackend())
	l, err := ledger.New(context.Background(), store)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if vendorStatus != http.StatusOK {
			w.WriteHeader(vendorStatus)
			fmt.Fprint(w, `{"error":"AI service temporarily unavailable","retry":true}`)
			return
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, modelText)
	}))
	t.Cleanup(relay.Close)

	ai := aiclient.New(aiclient.Config{RelayURL: relay.URL})
	g := gate.New(l, nil) // no free-use pool: feature tests want deterministic debits
	f := purchase.New(l, store)

	return &fixture{
		server: NewServer(l, g, f, ai),
		ledger: l,
		relay:  relay,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func jpeg() string { return base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")) }

// ─── Meta ───────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	f := newFixture(t, "{}", http.StatusOK)
	rec := f.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %v", got)
	}
}

func TestVersion(t *testing.T) {
	f := newFixture(t, "{}", http.StatusOK)
	rec := f.do(t, http.MethodGet, "/api/version", nil)
	if got := decode(t, rec)["version"]; got != Version {
		t.Errorf("version = %v, want %v", got, Version)
	}
}

// ─── Wallet ─────────────────────────────────────────────────────────────────

func TestBalance(t *testing.T) {
	f := newFixture(t, "{}", http.StatusOK)
	rec := f.do(t, http.MethodGet, "/api/wallet/balance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	out := decode(t, rec)
	if got := out["balance"].(float64); got != float64(domain.WelcomeGrant) {
		t.Errorf("balance = %v, want %d", got, domain.WelcomeGrant)
	}
	if got := out["new_user"].(bool); !got {
		t.Error("fresh wallet must report new_user")
	}
}

func TestTransactions(t *testing.T) {
	f := newFixture(t, "{}", http.StatusOK)
	f.ledger.Credit(context.Background(), 60, "Starter Pack")

	rec := f.do(t, http.MethodGet, "/api/wallet/transactions?limit=1", nil)
	out := decode(t, rec)
	if got := out["count"].(float64); got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
	txs := out["transactions"].([]interface{})
	first := txs[0].(map[string]interface{})
	if first["reason"] != "Starter Pack" {
		t.Errorf("most recent transaction = %v", first)
	}
}

func TestTransactions_BadLimit(t *testing.T) {
	f := newFixture(t, "{}", http.StatusOK)
	for _, q := range []string{"?limit=abc", "?limit=-1"} {
		rec := f.do(t, http.MethodGet, "/api/wallet/transactions"+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestPurchase_FulfillsOnce(t *testing.T) {
	f := newFixture(t, "{}", http.StatusOK)
	body := map[string]interface{}{"purchase_id": "txn-001", "product_id": "coins.tier1", "verified": true}

	rec := f.do(t, http.MethodPost, "/api/wallet/purchases", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["balance"].(float64); got != float64(domain.WelcomeGrant+60) {
		t.Errorf("balance = %v, want %d", got, domain.WelcomeGrant+60)
	}

	// Redelivery answers 200 with the same balance.
	rec = f.do(t, http.MethodPost, "/api/wallet/purchases", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d", rec.Code)
	}
	if got := decode(t, rec)["balance"].(float64); got != float64(domain.WelcomeGrant+60) {
		t.Errorf("balance after redelivery = %v, want unchanged", got)
	}
}

func TestPurchase_Rejections(t *testing.T) {
	f := newFixture(t, "{}", http.StatusOK)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"unverified", map[string]interface{}{"purchase_id": "t1", "product_id": "coins.tier1", "verified": false}},
		{"unknown product", map[string]interface{}{"purchase_id": "t2", "product_id": "coins.tier9", "verified": true}},
		{"missing ids", map[string]interface{}{"verified": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/wallet/purchases", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	if got := f.ledger.Balance(); got != domain.WelcomeGrant {
		t.Errorf("balance = %d, rejected purchases must not credit", got)
	}
}

// ─── Gated Features ─────────────────────────────────────────────────────────

func TestAnalyze_DebitsOnSuccess(t *testing.T) {
	f := newFixture(t, `{"overall_score": 72, "summary": "promising"}`, http.StatusOK)

	rec := f.do(t, http.MethodPost, "/api/analyze", map[string]interface{}{"image": jpeg()})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	out := decode(t, rec)
	result := out["result"].(map[string]interface{})
	if result["overall_score"].(float64) != 72 {
		t.Errorf("result = %v", result)
	}
	receipt := out["receipt"].(map[string]interface{})
	if receipt["cost"].(float64) != 8 || receipt["balance"].(float64) != float64(domain.WelcomeGrant-8) {
		t.Errorf("receipt = %v", receipt)
	}
	if got := f.ledger.Balance(); got != domain.WelcomeGrant-8 {
		t.Errorf("balance = %d, want %d", got, domain.WelcomeGrant-8)
	}
}

func TestAnalyze_InsufficientBalance(t *testing.T) {
	f := newFixture(t, "{}", http.StatusOK)
	if err := f.ledger.Debit(context.Background(), domain.WelcomeGrant-3, "drain"); err != nil {
		t.Fatalf("drain: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/analyze", map[string]interface{}{"image": jpeg()})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}

	errObj := decode(t, rec)["error"].(map[string]interface{})
	if errObj["type"] != "insufficient_balance" {
		t.Errorf("error type = %v", errObj["type"])
	}
	if errObj["shortfall"].(float64) != 5 {
		t.Errorf("shortfall = %v, want 5", errObj["shortfall"])
	}
}

func TestAnalyze_VendorFailureCostsNothing(t *testing.T) {
	f := newFixture(t, "", http.StatusBadGateway)

	rec := f.do(t, http.MethodPost, "/api/analyze", map[string]interface{}{"image": jpeg()})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if got := f.ledger.Balance(); got != domain.WelcomeGrant {
		t.Errorf("balance = %d, failed call must not debit", got)
	}
}

func TestAnalyze_BadImage(t *testing.T) {
	f := newFixture(t, "{}", http.StatusOK)
	rec := f.do(t, http.MethodPost, "/api/analyze", map[string]interface{}{"image": "!!not-base64!!"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeMulti(t *testing.T) {
	f := newFixture(t, `{"overall_score": 55}`, http.StatusOK)

	rec := f.do(t, http.MethodPost, "/api/analyze/multi", map[string]interface{}{
		"images": []string{jpeg(), jpeg()},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	receipt := decode(t, rec)["receipt"].(map[string]interface{})
	if receipt["cost"].(float64) != 18 {
		t.Errorf("cost = %v, want 18", receipt["cost"])
	}
}

func TestReplies(t *testing.T) {
	f := newFixture(t, `{"cold_replies":["k"],"sweet_replies":["aw"],"drama_replies":["oh?"]}`, http.StatusOK)

	rec := f.do(t, http.MethodPost, "/api/replies", map[string]interface{}{"message": "hey"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	result := decode(t, rec)["result"].(map[string]interface{})
	if cold := result["cold_replies"].([]interface{}); cold[0] != "k" {
		t.Errorf("result = %v", result)
	}
	if got := f.ledger.Balance(); got != domain.WelcomeGrant-3 {
		t.Errorf("balance = %d, want %d", got, domain.WelcomeGrant-3)
	}
}

func TestOracle(t *testing.T) {
	f := newFixture(t, `{"hexagram_name":"Lake over Fire"}`, http.StatusOK)

	rec := f.do(t, http.MethodPost, "/api/oracle", map[string]interface{}{
		"image":    jpeg(),
		"question": "is it over?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	result := decode(t, rec)["result"].(map[string]interface{})
	if result["hexagram_name"] != "Lake over Fire" {
		t.Errorf("result = %v", result)
	}
}
