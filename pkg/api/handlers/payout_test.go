package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qutab/affiliate-ledger/pkg/export"
	"github.com/qutab/affiliate-ledger/pkg/ledger"
	"github.com/qutab/affiliate-ledger/pkg/models"
	"github.com/qutab/affiliate-ledger/pkg/payout"
	"github.com/qutab/affiliate-ledger/pkg/registry"
)

const testMinimumPayout = 50000

type payoutTestEnv struct {
	db       *gorm.DB
	handler  *PayoutHandler
	registry *registry.Service
	ledger   *ledger.Service
	payout   *payout.Service
}

func setupPayoutTest(t *testing.T) *payoutTestEnv {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Affiliate{},
		&models.LedgerEntry{},
		&models.PayoutRequest{},
	))

	registrySvc := registry.NewService(db, nil, nil)
	ledgerSvc := ledger.NewService(db, nil, nil)
	payoutSvc := payout.NewService(db, ledgerSvc, registrySvc, nil, nil, testMinimumPayout)
	handler := NewPayoutHandler(payoutSvc, registrySvc, export.NewService(db), nil, nil)

	return &payoutTestEnv{
		db:       db,
		handler:  handler,
		registry: registrySvc,
		ledger:   ledgerSvc,
		payout:   payoutSvc,
	}
}

// fundedRequest walks an affiliate through verification, credits the ledger
// and leaves one pending payout request.
func fundedRequest(t *testing.T, env *payoutTestEnv, email, holder string, balance, amount int64) *models.PayoutRequest {
	ctx := context.Background()

	aff, err := env.registry.Register(ctx, "Budi Santoso", email, "+6281234567890")
	require.NoError(t, err)

	_, err = env.registry.SubmitBankDetails(ctx, aff.ID, registry.BankDetailsInput{
		BankName:      "BCA",
		AccountNumber: "1234567890",
		AccountHolder: holder,
		KTPName:       "Budi Santoso",
		KTPNumber:     "3173051234567890",
		KTPPhotoRef:   "ktp/budi.jpg",
	})
	require.NoError(t, err)

	_, err = env.registry.ReviewVerification(ctx, aff.ID, "approve", "", "admin")
	require.NoError(t, err)

	_, err = env.ledger.Credit(ctx, aff.ID, balance, "referral commission", "admin")
	require.NoError(t, err)

	request, err := env.payout.Request(ctx, aff.ID, amount)
	require.NoError(t, err)
	return request
}

func settleContext(e *echo.Echo, requestID uint, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/payouts/"+strconv.Itoa(int(requestID))+"/settle", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(requestID)))
	c.Set("actor_name", "finance")
	c.Set("role", "finance")
	return c, rec
}

func TestPayoutHandler_Settle_Success(t *testing.T) {
	env := setupPayoutTest(t)
	request := fundedRequest(t, env, "budi@example.com", "Budi Santoso", 1000000, 800000)

	e := echo.New()
	c, rec := settleContext(e, request.ID, `{"transaction_ref":"TRX-001"}`)

	err := env.handler.Settle(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var settled models.PayoutRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settled))
	assert.Equal(t, models.PayoutPaid, settled.Status)
	assert.Equal(t, "TRX-001", settled.TransactionRef)
	assert.Equal(t, "finance", settled.ResolvedBy)

	balance, err := env.ledger.Balance(context.Background(), settled.AffiliateID)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), balance)
}

func TestPayoutHandler_Settle_NameMismatchBlocked(t *testing.T) {
	env := setupPayoutTest(t)
	request := fundedRequest(t, env, "budi@example.com", "Ahmad Fauzi", 500000, 100000)

	e := echo.New()
	c, rec := settleContext(e, request.ID, `{"transaction_ref":"TRX-002"}`)

	err := env.handler.Settle(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "name_mismatch", resp.Error)

	// Request stays pending and the ledger is untouched
	var stored models.PayoutRequest
	require.NoError(t, env.db.First(&stored, request.ID).Error)
	assert.Equal(t, models.PayoutPending, stored.Status)

	balance, err := env.ledger.Balance(context.Background(), stored.AffiliateID)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), balance)
}

func TestPayoutHandler_Settle_OverrideRequiresNote(t *testing.T) {
	env := setupPayoutTest(t)
	request := fundedRequest(t, env, "budi@example.com", "Ahmad Fauzi", 500000, 100000)

	e := echo.New()
	c, rec := settleContext(e, request.ID, `{"transaction_ref":"TRX-003","override":true}`)

	err := env.handler.Settle(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayoutHandler_Settle_OverrideWithNote(t *testing.T) {
	env := setupPayoutTest(t)
	request := fundedRequest(t, env, "budi@example.com", "Ahmad Fauzi", 500000, 100000)

	e := echo.New()
	c, rec := settleContext(e, request.ID, `{"transaction_ref":"TRX-004","override":true,"override_note":"holder confirmed by phone"}`)

	err := env.handler.Settle(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var settled models.PayoutRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settled))
	assert.Equal(t, models.PayoutPaid, settled.Status)
	assert.Equal(t, models.NameCheckMismatch, settled.NameCheck)
	assert.Equal(t, "holder confirmed by phone", settled.OverrideNote)
}

func TestPayoutHandler_Settle_MissingTransactionRef(t *testing.T) {
	env := setupPayoutTest(t)
	request := fundedRequest(t, env, "budi@example.com", "Budi Santoso", 500000, 100000)

	e := echo.New()
	c, rec := settleContext(e, request.ID, `{}`)

	err := env.handler.Settle(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayoutHandler_Settle_NotFound(t *testing.T) {
	env := setupPayoutTest(t)

	e := echo.New()
	c, rec := settleContext(e, 99999, `{"transaction_ref":"TRX-404"}`)

	err := env.handler.Settle(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPayoutHandler_Reject(t *testing.T) {
	env := setupPayoutTest(t)
	request := fundedRequest(t, env, "budi@example.com", "Budi Santoso", 500000, 100000)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/payouts/"+strconv.Itoa(int(request.ID))+"/reject",
		strings.NewReader(`{"reason":"account number does not exist"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(request.ID)))
	c.Set("actor_name", "finance")

	err := env.handler.Reject(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var rejected models.PayoutRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejected))
	assert.Equal(t, models.PayoutRejected, rejected.Status)
	assert.Equal(t, "account number does not exist", rejected.RejectionReason)
}

func TestPayoutHandler_ListPending(t *testing.T) {
	env := setupPayoutTest(t)
	fundedRequest(t, env, "budi@example.com", "Budi Santoso", 500000, 100000)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/payouts", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := env.handler.ListPending(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var response models.PayoutListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response.Data, 1)
}

func TestPayoutHandler_ExportRecap(t *testing.T) {
	env := setupPayoutTest(t)
	fundedRequest(t, env, "budi@example.com", "Budi Santoso", 500000, 100000)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/payouts/export?from=2026-01-01&to=2027-01-01", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := env.handler.ExportRecap(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")
	assert.NotEmpty(t, rec.Body.Bytes())
}
