package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	intconfig "freight-backend/internal/config"
	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"
	h "freight-backend/internal/http/handlers"
	"freight-backend/internal/paystack"
	"freight-backend/internal/services"
	"freight-backend/internal/testutil"
	"freight-backend/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

const (
	jwtSecret     = "identity-secret"
	webhookSecret = "sk_test_router"
	refundSecret  = "refund-secret"
)

type testServer struct {
	router *gin.Engine
	store  *testutil.MemStore
	gw     *testutil.FakeGateway
	env    intconfig.Env
}

func newTestServer(t *testing.T, mutate func(*intconfig.Env)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := intconfig.Env{
		PaystackSecretKey:    webhookSecret,
		RefundEndpointSecret: refundSecret,
		IdentityJWTSecret:    jwtSecret,
		AppBaseURL:           "http://localhost:3000",
	}
	if mutate != nil {
		mutate(&env)
	}

	store := testutil.NewMemStore()
	gw := &testutil.FakeGateway{}
	rec := &testutil.Recorder{}
	store.AddTrip(models.Trip{
		ID:            "trip-1",
		Origin:        "Cape Town",
		Destination:   "Gqeberha",
		Price:         decimal.RequireFromString("1250.50"),
		TransporterID: "tr-1",
		CreatedAt:     time.Now().UTC(),
	})

	comp := services.CompensatorService{Store: store, Events: rec}
	ledger := services.LedgerService{Store: store, Gateway: gw, Events: rec, Compensator: comp, CallbackURL: env.CallbackURL()}
	recon := services.ReconciliationService{Store: store, Gateway: gw, Events: rec, Dedupe: &testutil.MemDeduper{}, Compensator: comp, WebhookSecret: env.PaystackSecretKey}

	r := NewRouter(Deps{
		Env:      env,
		Paystack: h.PaystackHandler{Reconcile: recon, CallbackURL: env.CallbackURL()},
		Booking:  h.BookingHandler{Ledger: ledger, Compensator: comp, Docs: services.DocsService{Store: store}},
	})
	return &testServer{router: r, store: store, gw: gw, env: env}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func (s *testServer) do(method, path, bearer string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func (s *testServer) reserve(t *testing.T, userID string) services.StartBookingResult {
	t.Helper()
	w := s.do(http.MethodPost, "/api/booking/reserve", token(t, userID, domain.RoleClient), []byte(`{"tripId":"trip-1","email":"client@example.com"}`), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("reserve status = %d body=%s", w.Code, w.Body.String())
	}
	var res services.StartBookingResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode reserve: %v", err)
	}
	return res
}

func chargeBody(reference string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{"event":"charge.success","data":{"id":7,"status":"success","reference":%q,"amount":%d,"currency":"ZAR","customer":{"email":"client@example.com"},"metadata":{}}}`, reference, amount))
}

func TestSystemRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	if w := s.do(http.MethodGet, "/api/health", "", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	w := s.do(http.MethodGet, "/api/nope", "", nil, nil)
	if w.Code != http.StatusNotFound || decode(t, w)["error"] != "route tidak ditemukan" {
		t.Fatalf("unexpected no-route response %d %s", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodGet, "/metrics", "", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/routes", "", nil, nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/api/paystack/webhook") {
		t.Fatalf("routes listing missing webhook: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("response without request id")
	}
}

func TestAuthGuards(t *testing.T) {
	s := newTestServer(t, nil)

	if w := s.do(http.MethodGet, "/api/booking/x", "", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/booking/x", "not-a-jwt", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d", w.Code)
	}
	w := s.do(http.MethodPost, "/api/paystack/transfer", token(t, "u-1", domain.RoleClient), []byte(`{"amount":10}`), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("client transfer status = %d", w.Code)
	}

	noSecret := newTestServer(t, func(e *intconfig.Env) { e.IdentityJWTSecret = "" })
	if w := noSecret.do(http.MethodGet, "/api/booking/x", token(t, "u-1", domain.RoleClient), nil, nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("missing jwt secret status = %d", w.Code)
	}
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	res := s.reserve(t, "client-1")
	trTok := token(t, "tr-1", domain.RoleTransporter)

	if w := s.do(http.MethodGet, "/api/booking/"+res.PurchaseTripID, token(t, "client-2", domain.RoleClient), nil, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign view status = %d", w.Code)
	}
	w := s.do(http.MethodPost, "/api/booking/"+res.PurchaseTripID+"/confirm", trTok, nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("confirm before payment status = %d body=%s", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodGet, "/api/booking/"+res.PurchaseTripID+"/receipt", token(t, "client-1", domain.RoleClient), nil, nil); w.Code != http.StatusConflict {
		t.Fatalf("receipt before payment status = %d", w.Code)
	}

	body := chargeBody(res.Reference, paystack.ToMinor(res.Amount))
	w = s.do(http.MethodPost, "/api/paystack/webhook", "", body, map[string]string{webhook.SignatureHeader: webhook.Sign(body, webhookSecret)})
	if w.Code != http.StatusOK || decode(t, w)["action"] != services.ActionAuthorized {
		t.Fatalf("webhook status = %d body=%s", w.Code, w.Body.String())
	}

	if w := s.do(http.MethodPost, "/api/booking/"+res.PurchaseTripID+"/confirm", trTok, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("confirm status = %d body=%s", w.Code, w.Body.String())
	}
	trip, _ := s.store.Trip("trip-1")
	if !trip.IsBooked {
		t.Fatalf("trip not booked after confirm")
	}

	w = s.do(http.MethodGet, "/api/booking/"+res.PurchaseTripID+"/receipt", token(t, "client-1", domain.RoleClient), nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("receipt status = %d type=%s", w.Code, w.Header().Get("Content-Type"))
	}

	w = s.do(http.MethodPost, "/api/booking/"+res.PurchaseTripID+"/cancel", token(t, "client-1", domain.RoleClient), nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("cancel with authorized payment status = %d", w.Code)
	}

	w = s.do(http.MethodPost, "/api/booking/"+res.PurchaseTripID+"/status", trTok, []byte(`{"status":"Shipped"}`), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status code = %d body=%s", w.Code, w.Body.String())
	}
	w = s.do(http.MethodPost, "/api/booking/"+res.PurchaseTripID+"/status", trTok, []byte(`{"status":"Dispatched"}`), nil)
	if w.Code != http.StatusOK || decode(t, w)["status"] != string(domain.ReservationDispatched) {
		t.Fatalf("dispatch status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestWebhookResponses(t *testing.T) {
	s := newTestServer(t, nil)
	res := s.reserve(t, "client-1")

	body := chargeBody(res.Reference, paystack.ToMinor(res.Amount))
	w := s.do(http.MethodPost, "/api/paystack/webhook", "", body, map[string]string{webhook.SignatureHeader: webhook.Sign(body, "wrong")})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature status = %d", w.Code)
	}
	if p, _ := s.store.Payment(res.PaymentID); p.Status != domain.PaymentPending {
		t.Fatalf("payment moved on bad signature: %s", p.Status)
	}

	tampered := chargeBody(res.Reference, 100)
	w = s.do(http.MethodPost, "/api/paystack/webhook", "", tampered, map[string]string{webhook.SignatureHeader: webhook.Sign(tampered, webhookSecret)})
	out := decode(t, w)
	if w.Code != http.StatusOK || out["received"] != true || out["error"] == nil {
		t.Fatalf("amount mismatch should be acknowledged with error, got %d %v", w.Code, out)
	}

	noKey := newTestServer(t, func(e *intconfig.Env) { e.PaystackSecretKey = "" })
	w = noKey.do(http.MethodPost, "/api/paystack/webhook", "", body, map[string]string{webhook.SignatureHeader: webhook.Sign(body, "")})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("webhook without secret status = %d", w.Code)
	}
}

func TestRefundRouteNeedsServerSecret(t *testing.T) {
	s := newTestServer(t, nil)
	res := s.reserve(t, "client-1")
	body := chargeBody(res.Reference, paystack.ToMinor(res.Amount))
	s.do(http.MethodPost, "/api/paystack/webhook", "", body, map[string]string{webhook.SignatureHeader: webhook.Sign(body, webhookSecret)})

	refund := []byte(fmt.Sprintf(`{"paymentId":%q,"amount":0}`, res.PaymentID))
	if w := s.do(http.MethodPost, "/api/paystack/refund", "", refund, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("refund without secret header status = %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/paystack/refund", "", refund, map[string]string{"x-server-secret": "nope"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("refund with wrong secret status = %d", w.Code)
	}
	w := s.do(http.MethodPost, "/api/paystack/refund", "", refund, map[string]string{"x-server-secret": refundSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("refund status = %d body=%s", w.Code, w.Body.String())
	}
	if p, _ := s.store.Payment(res.PaymentID); p.Status != domain.PaymentRefunded {
		t.Fatalf("payment status after refund = %s, want refunded", p.Status)
	}
	if w := s.do(http.MethodPost, "/api/paystack/refund", "", refund, map[string]string{"x-server-secret": refundSecret}); w.Code != http.StatusConflict {
		t.Fatalf("second refund status = %d", w.Code)
	}

	unset := newTestServer(t, func(e *intconfig.Env) { e.RefundEndpointSecret = "" })
	if w := unset.do(http.MethodPost, "/api/paystack/refund", "", refund, map[string]string{"x-server-secret": ""}); w.Code != http.StatusInternalServerError {
		t.Fatalf("refund with unset secret status = %d", w.Code)
	}
}

func TestGatewayErrorsMapTo502(t *testing.T) {
	s := newTestServer(t, nil)
	s.gw.InitializeFunc = func(req paystack.InitializeRequest) (paystack.InitializeResult, error) {
		return paystack.InitializeResult{}, &domain.GatewayError{Op: "initialize", StatusCode: http.StatusBadRequest, Body: `{"status":false,"message":"Invalid email"}`}
	}
	w := s.do(http.MethodPost, "/api/booking/reserve", token(t, "client-1", domain.RoleClient), []byte(`{"tripId":"trip-1","email":"client@example.com"}`), nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	details, _ := decode(t, w)["details"].(map[string]any)
	if details["gateway_status"].(float64) != http.StatusBadRequest || details["gateway_body"] == "" {
		t.Fatalf("gateway details missing: %v", details)
	}
	if pts, pays := s.store.Counts(); pts != 0 || pays != 0 {
		t.Fatalf("rejected initialize left %d reservations and %d payments", pts, pays)
	}

	unconfigured := newTestServer(t, nil)
	unconfigured.gw.Unconfigured = true
	w = unconfigured.do(http.MethodGet, "/api/paystack/verify/ref-1", token(t, "client-1", domain.RoleClient), nil, nil)
	if w.Code != http.StatusInternalServerError || decode(t, w)["error"] != "PAYSTACK_SECRET_KEY belum dikonfigurasi" {
		t.Fatalf("unconfigured verify: %d %s", w.Code, w.Body.String())
	}
}

func TestCleanupRouteChecksOwner(t *testing.T) {
	s := newTestServer(t, nil)
	res := s.reserve(t, "client-1")
	req := []byte(fmt.Sprintf(`{"purchaseTripId":%q,"reason":"user_abandoned"}`, res.PurchaseTripID))

	if w := s.do(http.MethodPost, "/api/booking/cleanup", token(t, "client-2", domain.RoleClient), req, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign cleanup status = %d", w.Code)
	}
	w := s.do(http.MethodPost, "/api/booking/cleanup", token(t, "client-1", domain.RoleClient), req, nil)
	if w.Code != http.StatusOK || decode(t, w)["cleaned"].(float64) < 1 {
		t.Fatalf("cleanup status = %d body=%s", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodPost, "/api/booking/cleanup", token(t, "client-1", domain.RoleClient), req, nil); w.Code != http.StatusOK {
		t.Fatalf("repeated cleanup status = %d", w.Code)
	}
}

func TestCreateRecipientAsTransporter(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(http.MethodPost, "/api/paystack/create-recipient", token(t, "tr-1", domain.RoleTransporter), []byte(`{"name":"Karoo","accountNumber":"0123456789","bankCode":"632005"}`), nil)
	if w.Code != http.StatusCreated || decode(t, w)["recipientCode"] != "RCP_0123456789" {
		t.Fatalf("create recipient: %d %s", w.Code, w.Body.String())
	}
	if got := s.store.Recipients("tr-1"); len(got) != 1 {
		t.Fatalf("recipients stored = %d", len(got))
	}

	w = s.do(http.MethodGet, "/api/paystack/recipients", token(t, "tr-1", domain.RoleTransporter), nil, nil)
	list, _ := decode(t, w)["recipients"].([]any)
	if w.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list recipients: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodGet, "/api/paystack/recipients?transporter_id=tr-1", token(t, "tr-2", domain.RoleTransporter), nil, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign recipient list status = %d", w.Code)
	}
}
