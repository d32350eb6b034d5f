package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/policy"
	"github.com/uptownfs/dealflow/internal/testutil"
)

func newCalculateHandler(units *testutil.MockUnitRepository) *CalculateHandler {
	resolver := policy.NewResolver(&testutil.MockPolicyRepository{})
	return NewCalculateHandler(units, resolver)
}

func postJSON(t *testing.T, h echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h(c))
	return rec
}

const happyPathBody = `{
	"stdPlan": {"totalPrice": "1000000", "annualRatePercent": "12", "standardPV": "1000000"},
	"inputs": {
		"salesDiscountPercent": "0",
		"dpType": "percentage",
		"downPaymentValue": "20",
		"planDurationYears": 4,
		"installmentFrequency": "quarterly",
		"handoverYear": 2,
		"additionalHandoverPayment": "0",
		"subsequentYears": [
			{"totalNominal": "200000", "frequency": "quarterly"},
			{"totalNominal": "200000", "frequency": "quarterly"},
			{"totalNominal": "200000", "frequency": "quarterly"},
			{"totalNominal": "200000", "frequency": "quarterly"}
		]
	}
}`

func TestCalculate_HappyPath(t *testing.T) {
	h := newCalculateHandler(testutil.NewMockUnitRepository())
	rec := postJSON(t, h.Calculate, "/api/v1/calculate", happyPathBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		OK   bool              `json:"ok"`
		Data CalculateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.OK)

	require.Len(t, envelope.Data.Schedule, 17)
	require.Equal(t, "Down Payment", envelope.Data.Schedule[0].Label)
	require.Equal(t, 0, envelope.Data.Schedule[0].MonthOffset)
	require.Equal(t, "200000.00", envelope.Data.Schedule[0].Amount)
	require.Equal(t, 3, envelope.Data.Schedule[1].MonthOffset)
	require.Equal(t, "50000.00", envelope.Data.Schedule[1].Amount)

	require.Equal(t, "ACCEPT", envelope.Data.Evaluation.Decision)
	require.False(t, envelope.Data.Evaluation.UsedStoredFMPV)

	y1 := envelope.Data.Evaluation.Conditions["cumulative_y1"]
	actual, err := decimal.NewFromString(y1.Actual.Percent)
	require.NoError(t, err)
	require.True(t, actual.GreaterThanOrEqual(decimal.NewFromInt(35)))
}

func TestCalculate_InvalidInputs(t *testing.T) {
	h := newCalculateHandler(testutil.NewMockUnitRepository())
	body := `{
		"stdPlan": {"totalPrice": "1000000", "annualRatePercent": "12", "standardPV": "1000000"},
		"inputs": {"dpType": "percentage", "downPaymentValue": "20", "planDurationYears": 13, "installmentFrequency": "weekly"}
	}`
	rec := postJSON(t, h.Calculate, "/api/v1/calculate", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Error.Details)
	require.NotEmpty(t, envelope.Timestamp)
}

func TestCalculate_MissingUnit(t *testing.T) {
	h := newCalculateHandler(testutil.NewMockUnitRepository())
	body := `{"unitId": 99, "inputs": {"dpType": "percentage", "downPaymentValue": "20", "planDurationYears": 4, "installmentFrequency": "quarterly"}}`
	rec := postJSON(t, h.Calculate, "/api/v1/calculate", body)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalculate_UnitWithoutPricing(t *testing.T) {
	units := testutil.NewMockUnitRepository()
	units.Units[1] = &domain.Unit{ID: 1, Code: "A-101", Status: domain.UnitStatusAvailable, Available: true}
	h := newCalculateHandler(units)

	body := `{"unitId": 1, "inputs": {"dpType": "percentage", "downPaymentValue": "20", "planDurationYears": 4, "installmentFrequency": "quarterly"}}`
	rec := postJSON(t, h.Calculate, "/api/v1/calculate", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "Unit has no standard plan configured", envelope.Error.Message)
}

func TestGeneratePlan_IncludesDatesAndWords(t *testing.T) {
	h := newCalculateHandler(testutil.NewMockUnitRepository())
	body := strings.Replace(happyPathBody, `"inputs": {`, `"startDate": "2025-01-01", "inputs": {`, 1)
	rec := postJSON(t, h.GeneratePlan, "/api/v1/generate-plan", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data CalculateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "2025-01-01", envelope.Data.Schedule[0].DueDate)
	require.Equal(t, "two hundred thousand", envelope.Data.Schedule[0].AmountWords)
	require.Equal(t, "2025-04-01", envelope.Data.Schedule[1].DueDate)
	require.Equal(t, "one million", envelope.Data.Totals.GrandTotalWords)
}
