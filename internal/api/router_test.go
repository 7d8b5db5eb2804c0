package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	dbpkg "inspection_system/internal/db"
	"inspection_system/internal/domain"
	"inspection_system/internal/gateway"
	"inspection_system/internal/service"
	"inspection_system/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "router-secret"

var dbSeq atomic.Int64

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	gw     *gateway.Fake
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:api%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, dbpkg.Migrate(db))

	gw := gateway.NewFake("whsec_router")
	revenue := service.NewRevenue(db, nil, "NGN")
	payments := service.NewPayments(db, gw, revenue, nil, false)
	withdrawals := service.NewWithdrawals(db, gw, nil)
	router := NewRouter(Deps{
		DB:          db,
		JWTSecret:   testSecret,
		Accounts:    service.NewAccounts(db, "NGN"),
		Ledger:      service.NewLedger(db, nil, "NGN"),
		Inspections: service.NewInspections(db, domain.DefaultFeePolicy(), "NGN"),
		Payments:    payments,
		Revenue:     revenue,
		Signatures:  service.NewSignatures(db),
		Withdrawals: withdrawals,
		Webhooks:    service.NewWebhooks(gw, payments, withdrawals),
	})
	return &testServer{router: router, db: db, gw: gw}
}

// envelope mirrors Response with a raw payload for per-test decoding
type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Details map[string]any  `json:"details"`
	Meta    *Meta           `json:"meta"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *testServer) webhook(t *testing.T, payload []byte, signature string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/hooks/payment-webhook", bytes.NewReader(payload))
	req.Header.Set(gateway.SignatureHeader, signature)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

// register creates an account over HTTP and logs it in
func (s *testServer) register(t *testing.T, username string, role domain.Role) (uint, string) {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/user", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password1",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, code)
	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	code, env = s.do(t, http.MethodPost, "/user/login", "", gin.H{"username": username, "password": "password1"})
	require.Equal(t, http.StatusOK, code)
	var auth AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.Equal(t, role, auth.Role)
	return created.ID, auth.Token
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", domain.RoleCustomer)

	tests := map[string]gin.H{
		"non alphabetic username": {"username": "carol2", "email": "c@example.com", "password": "password1"},
		"short password":          {"username": "erin", "email": "e@example.com", "password": "short"},
		"missing email":           {"username": "erin", "password": "password1"},
		"admin self-service":      {"username": "erin", "email": "e@example.com", "password": "password1", "role": "admin"},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/user", "", body)
			require.Equal(t, http.StatusBadRequest, code)
			require.Equal(t, string(domain.KindValidation), env.Code)
		})
	}

	code, env := s.do(t, http.MethodPost, "/user", "", gin.H{"username": "Carol", "email": "x@example.com", "password": "password1"})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, string(domain.KindIntegrityViolation), env.Code)

	code, env = s.do(t, http.MethodPost, "/user/login", "", gin.H{"username": "carol", "password": "wrongpass"})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "invalid_credentials", env.Code)

	code, _ = s.do(t, http.MethodGet, "/wallet", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestPaidInspectionFlow(t *testing.T) {
	s := newTestServer(t)
	customerID, customer := s.register(t, "carol", domain.RoleCustomer)
	dealerID, dealer := s.register(t, "dave", domain.RoleDealer)
	inspectorID, _ := s.register(t, "ivan", domain.RoleInspector)
	require.NotZero(t, customerID)

	code, env := s.do(t, http.MethodGet, "/inspections/quote?type=standard", customer, nil)
	require.Equal(t, http.StatusOK, code)
	quote := decodeData[service.Quote](t, env)
	require.True(t, decimal.NewFromInt(50000).Equal(quote.Fee))

	booking := gin.H{
		"type":          "standard",
		"dealer_id":     dealerID,
		"inspector_id":  inspectorID,
		"vehicle_make":  "Honda",
		"vehicle_model": "Accord",
		"vehicle_year":  2020,
	}
	code, _ = s.do(t, http.MethodPost, "/inspections", dealer, booking)
	require.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodPost, "/inspections", customer, booking)
	require.Equal(t, http.StatusCreated, code)
	insp := decodeData[domain.VehicleInspection](t, env)
	require.Equal(t, domain.InspectionPendingPayment, insp.Status)
	inspPath := fmt.Sprintf("/inspections/%d", insp.ID)

	code, env = s.do(t, http.MethodPost, inspPath+"/pay", customer, gin.H{"amount": "49000", "method": "card"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, string(domain.KindValidation), env.Code)
	require.Equal(t, "50000.00", env.Details["inspection_fee"])

	code, env = s.do(t, http.MethodPost, inspPath+"/pay", customer, gin.H{"amount": "50000"})
	require.Equal(t, http.StatusCreated, code)
	started := decodeData[service.PaymentInitiation](t, env)
	require.NotEmpty(t, started.RedirectURL)
	s.gw.Settle(started.Reference, decimal.NewFromInt(50000), "NGN", insp.ID)

	payload := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q}}`, started.Reference))
	code, env = s.webhook(t, payload, "deadbeef")
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "invalid_signature", env.Code)

	signature := hex.EncodeToString(gateway.Sign(s.gw.Secret, payload))
	for _, want := range []service.WebhookOutcome{service.WebhookProcessed, service.WebhookAlreadyProcessed} {
		code, env = s.webhook(t, payload, signature)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, want, decodeData[struct {
			Outcome service.WebhookOutcome `json:"outcome"`
		}](t, env).Outcome)
	}

	code, env = s.do(t, http.MethodPost, inspPath+"/verify-payment", customer, gin.H{"reference": started.Reference})
	require.Equal(t, http.StatusOK, code)
	require.True(t, decodeData[service.PaymentConfirmation](t, env).AlreadyProcessed)

	code, env = s.do(t, http.MethodGet, inspPath, customer, nil)
	require.Equal(t, http.StatusOK, code)
	got := decodeData[domain.VehicleInspection](t, env)
	require.Equal(t, domain.InspectionDraft, got.Status)
	require.Equal(t, domain.PaymentPaid, got.PaymentStatus)

	code, env = s.do(t, http.MethodGet, "/wallet", dealer, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "30000.00", decodeData[map[string]any](t, env)["available_balance"])

	code, env = s.do(t, http.MethodGet, "/revenue/splits", dealer, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Meta)
	require.EqualValues(t, 1, env.Meta.Total)

	code, _ = s.do(t, http.MethodGet, "/revenue/splits", customer, nil)
	require.Equal(t, http.StatusForbidden, code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	customerID, customer := s.register(t, "carol", domain.RoleCustomer)

	admin := domain.User{Username: "alice", Email: "alice@example.com", Password: "x", Role: domain.RoleAdmin}
	require.NoError(t, s.db.Omit("Wallet").Create(&admin).Error)
	adminToken, err := utils.GenerateJWT(admin.ID, string(admin.Role), testSecret)
	require.NoError(t, err)

	deposit := gin.H{"user_id": customerID, "amount": "2500"}
	code, _ := s.do(t, http.MethodPost, "/admin/wallets/deposit", customer, deposit)
	require.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/admin/wallets/deposit", adminToken, deposit)
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodGet, "/wallet", customer, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "2500.00", decodeData[map[string]any](t, env)["available_balance"])

	code, env = s.do(t, http.MethodPost, "/admin/revenue-settings", adminToken, gin.H{
		"dealer_percentage":   "55",
		"platform_percentage": "40",
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, string(domain.KindValidation), env.Code)

	code, env = s.do(t, http.MethodPost, "/admin/revenue-settings", adminToken, gin.H{
		"dealer_percentage":   "70",
		"platform_percentage": "30",
		"activate":            true,
	})
	require.Equal(t, http.StatusCreated, code)
	settings := decodeData[domain.InspectionRevenueSettings](t, env)
	require.True(t, settings.IsActive)

	code, env = s.do(t, http.MethodGet, "/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 2, env.Meta.Total)

	code, _ = s.do(t, http.MethodPost, "/admin/withdrawal-requests/abc/approve", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestVerifyPaymentIsScopedToInspection(t *testing.T) {
	s := newTestServer(t)
	_, customer := s.register(t, "carol", domain.RoleCustomer)
	dealerID, _ := s.register(t, "dave", domain.RoleDealer)
	inspectorID, _ := s.register(t, "ivan", domain.RoleInspector)
	_, stranger := s.register(t, "mallory", domain.RoleCustomer)

	book := func() domain.VehicleInspection {
		code, env := s.do(t, http.MethodPost, "/inspections", customer, gin.H{
			"type":          "basic",
			"dealer_id":     dealerID,
			"inspector_id":  inspectorID,
			"vehicle_make":  "Kia",
			"vehicle_model": "Rio",
		})
		require.Equal(t, http.StatusCreated, code)
		return decodeData[domain.VehicleInspection](t, env)
	}
	first, second := book(), book()

	code, env := s.do(t, http.MethodPost, fmt.Sprintf("/inspections/%d/pay", first.ID), customer, gin.H{"amount": "25000"})
	require.Equal(t, http.StatusCreated, code)
	started := decodeData[service.PaymentInitiation](t, env)

	verify := func(token string, id uint) (int, envelope) {
		return s.do(t, http.MethodPost, fmt.Sprintf("/inspections/%d/verify-payment", id), token, gin.H{"reference": started.Reference})
	}

	code, env = verify(customer, first.ID)
	require.Equal(t, http.StatusPaymentRequired, code)
	require.Equal(t, "payment_pending", env.Code)

	s.gw.Settle(started.Reference, decimal.NewFromInt(25000), "NGN", first.ID)

	code, _ = verify(stranger, first.ID)
	require.Equal(t, http.StatusForbidden, code)

	code, env = verify(customer, second.ID)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "reference_mismatch", env.Code)

	code, env = s.do(t, http.MethodGet, fmt.Sprintf("/inspections/%d", first.ID), customer, nil)
	require.Equal(t, http.StatusOK, code)
	got := decodeData[domain.VehicleInspection](t, env)
	require.Equal(t, domain.InspectionPendingPayment, got.Status)
	require.Equal(t, domain.PaymentUnpaid, got.PaymentStatus)

	code, env = verify(customer, first.ID)
	require.Equal(t, http.StatusOK, code)
	conf := decodeData[service.PaymentConfirmation](t, env)
	require.Equal(t, domain.PaymentPaid, conf.PaymentStatus)
	require.False(t, conf.AlreadyProcessed)
}
