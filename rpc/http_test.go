package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/core"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/crypto"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/storage"
)

const testToken = "secret-test-token"

func testBech32(fill byte) string {
	return crypto.NewAddress(crypto.NPOPrefix, bytes.Repeat([]byte{fill}, 20)).String()
}

func oneUnitString() string {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil).String()
}

func newTestServer(t *testing.T) (*Server, *core.Node) {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB())
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	var admin, funder [20]byte
	copy(admin[:], bytes.Repeat([]byte{0xAD}, 20))
	copy(funder[:], bytes.Repeat([]byte{0x02}, 20))
	alloc := map[[20]byte]*big.Int{
		funder: new(big.Int).Mul(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), big.NewInt(5)),
	}
	if err := node.InitGenesis(alloc, &admin); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	server := NewServer(node, "")
	server.SetAuthToken(testToken)
	return server, node
}

func post(t *testing.T, server *Server, method string, params interface{}, authed bool) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)

	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, recorder.Body.String())
	}
	return recorder, resp
}

func createViaRPC(t *testing.T, server *Server, donor string) uint64 {
	t.Helper()
	_, resp := post(t, server, "donation_create", map[string]interface{}{
		"donor":            donor,
		"amount":           oneUnitString(),
		"equityPercentage": 5,
		"nonprofitName":    "Clean Water Fund",
		"description":      "wells",
		"valuation":        oneUnitString(),
	}, true)
	if resp.Error != nil {
		t.Fatalf("create: %+v", resp.Error)
	}
	var result struct {
		ID uint64 `json:"id"`
	}
	raw, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return result.ID
}

func TestMutationsRequireBearerToken(t *testing.T) {
	server, _ := newTestServer(t)

	recorder, resp := post(t, server, "donation_create", map[string]interface{}{
		"donor": testBech32(0x01),
	}, false)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("error = %+v", resp.Error)
	}
}

func TestDonationLifecycleOverRPC(t *testing.T) {
	server, _ := newTestServer(t)
	donor := testBech32(0x01)
	funder := testBech32(0x02)

	id := createViaRPC(t, server, donor)
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	_, resp := post(t, server, "donation_fund", map[string]interface{}{
		"id":     id,
		"funder": funder,
		"value":  oneUnitString(),
	}, true)
	if resp.Error != nil {
		t.Fatalf("fund: %+v", resp.Error)
	}

	_, resp = post(t, server, "donation_get", map[string]interface{}{"id": id}, false)
	if resp.Error != nil {
		t.Fatalf("get: %+v", resp.Error)
	}
	var record donationJSON
	raw, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Status != "funded" || record.Nonprofit != funder {
		t.Fatalf("record = %+v", record)
	}

	_, resp = post(t, server, "donation_distribute", map[string]interface{}{
		"id":     id,
		"caller": donor,
	}, true)
	if resp.Error != nil {
		t.Fatalf("distribute: %+v", resp.Error)
	}

	_, resp = post(t, server, "donation_count", map[string]interface{}{}, false)
	if resp.Error != nil {
		t.Fatalf("count: %+v", resp.Error)
	}

	_, resp = post(t, server, "donation_listEvents", map[string]interface{}{}, false)
	if resp.Error != nil {
		t.Fatalf("events: %+v", resp.Error)
	}
	var eventList []eventJSON
	raw, _ = json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &eventList); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(eventList) != 3 {
		t.Fatalf("events = %d, want 3", len(eventList))
	}
}

func TestDonationErrorMapping(t *testing.T) {
	server, _ := newTestServer(t)
	donor := testBech32(0x01)

	// Unknown record maps to 404.
	recorder, resp := post(t, server, "donation_get", map[string]interface{}{"id": 42}, false)
	if recorder.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeDonationNotFound {
		t.Fatalf("status = %d, error = %+v", recorder.Code, resp.Error)
	}

	// Bad bech32 maps to invalid params.
	recorder, resp = post(t, server, "donation_create", map[string]interface{}{
		"donor":  "garbage",
		"amount": "1",
	}, true)
	if recorder.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeDonationInvalidParams {
		t.Fatalf("status = %d, error = %+v", recorder.Code, resp.Error)
	}

	// A donor distributing an unfunded record maps to conflict.
	id := createViaRPC(t, server, donor)
	recorder, resp = post(t, server, "donation_distribute", map[string]interface{}{
		"id":     id,
		"caller": donor,
	}, true)
	if recorder.Code != http.StatusConflict || resp.Error == nil || resp.Error.Code != codeDonationConflict {
		t.Fatalf("status = %d, error = %+v", recorder.Code, resp.Error)
	}
}

func TestAdminMethodsOverRPC(t *testing.T) {
	server, _ := newTestServer(t)
	admin := testBech32(0xAD)
	donor := testBech32(0x01)

	// Non-admin caller maps to 403.
	recorder, resp := post(t, server, "admin_pause", map[string]interface{}{
		"caller": donor,
		"module": "donation",
	}, true)
	if recorder.Code != http.StatusForbidden || resp.Error == nil || resp.Error.Code != codeAdminForbidden {
		t.Fatalf("status = %d, error = %+v", recorder.Code, resp.Error)
	}

	_, resp = post(t, server, "admin_pause", map[string]interface{}{
		"caller": admin,
		"module": "donation",
	}, true)
	if resp.Error != nil {
		t.Fatalf("pause: %+v", resp.Error)
	}

	// Creation now fails with a conflict while paused.
	recorder, resp = post(t, server, "donation_create", map[string]interface{}{
		"donor":            donor,
		"amount":           oneUnitString(),
		"equityPercentage": 5,
		"nonprofitName":    "a",
		"description":      "b",
		"valuation":        oneUnitString(),
	}, true)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", recorder.Code)
	}

	_, resp = post(t, server, "admin_unpause", map[string]interface{}{
		"caller": admin,
		"module": "donation",
	}, true)
	if resp.Error != nil {
		t.Fatalf("unpause: %+v", resp.Error)
	}

	_, resp = post(t, server, "admin_grantRole", map[string]interface{}{
		"caller":  admin,
		"role":    "ROLE_NONPROFIT",
		"address": donor,
	}, true)
	if resp.Error != nil {
		t.Fatalf("grant: %+v", resp.Error)
	}
}

func TestEmergencyWithdrawOverRPC(t *testing.T) {
	server, node := newTestServer(t)
	admin := testBech32(0xAD)
	donor := testBech32(0x01)
	funder := testBech32(0x02)

	id := createViaRPC(t, server, donor)
	_, resp := post(t, server, "donation_fund", map[string]interface{}{
		"id":     id,
		"funder": funder,
		"value":  oneUnitString(),
	}, true)
	if resp.Error != nil {
		t.Fatalf("fund: %+v", resp.Error)
	}

	_, resp = post(t, server, "admin_emergencyWithdraw", map[string]interface{}{
		"caller": admin,
	}, true)
	if resp.Error != nil {
		t.Fatalf("withdraw: %+v", resp.Error)
	}
	var result adminWithdrawResult
	raw, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Amount != oneUnitString() || result.Recipient != admin {
		t.Fatalf("result = %+v", result)
	}

	vault := node.VaultAddress()
	account, err := node.GetAccount(vault[:])
	if err != nil {
		t.Fatalf("vault account: %v", err)
	}
	if account.Balance.Sign() != 0 {
		t.Fatalf("vault balance = %s, want 0", account.Balance)
	}
}

func TestReputationOverRPC(t *testing.T) {
	server, _ := newTestServer(t)
	donor := testBech32(0x01)
	funder := testBech32(0x02)

	id := createViaRPC(t, server, donor)
	_, resp := post(t, server, "donation_fund", map[string]interface{}{
		"id":     id,
		"funder": funder,
		"value":  oneUnitString(),
	}, true)
	if resp.Error != nil {
		t.Fatalf("fund: %+v", resp.Error)
	}

	_, resp = post(t, server, "reputation_rate", map[string]interface{}{
		"subject": funder,
		"rater":   donor,
		"rating":  5,
		"review":  "delivered",
	}, true)
	if resp.Error != nil {
		t.Fatalf("rate: %+v", resp.Error)
	}

	// Repeat rating maps to conflict.
	recorder, resp := post(t, server, "reputation_rate", map[string]interface{}{
		"subject": funder,
		"rater":   donor,
		"rating":  1,
		"review":  "again",
	}, true)
	if recorder.Code != http.StatusConflict || resp.Error == nil || resp.Error.Code != codeReputationConflict {
		t.Fatalf("status = %d, error = %+v", recorder.Code, resp.Error)
	}

	_, resp = post(t, server, "reputation_get", map[string]interface{}{"address": funder}, false)
	if resp.Error != nil {
		t.Fatalf("get: %+v", resp.Error)
	}
	var profile profileJSON
	raw, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.AsNonprofit.Rating != 5 || profile.AsNonprofit.TotalRatings != 1 {
		t.Fatalf("profile = %+v", profile)
	}
}

func TestGetBalanceOverRPC(t *testing.T) {
	server, _ := newTestServer(t)
	funder := testBech32(0x02)

	_, resp := post(t, server, "bank_getBalance", map[string]interface{}{"address": funder}, false)
	if resp.Error != nil {
		t.Fatalf("balance: %+v", resp.Error)
	}
	var result BalanceResult
	raw, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	want := new(big.Int).Mul(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), big.NewInt(5))
	if result.Balance != want.String() {
		t.Fatalf("balance = %s, want %s", result.Balance, want)
	}
}

func TestMalformedRequests(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}

	_, resp := post(t, server, "unknown_method", nil, false)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("error = %+v", resp.Error)
	}
}
