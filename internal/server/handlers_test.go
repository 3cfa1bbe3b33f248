package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/anomaly"
	"github.com/smartpantry/paragon/internal/confidence"
	"github.com/smartpantry/paragon/internal/parser"
	"github.com/smartpantry/paragon/internal/pipeline"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	processor := pipeline.NewProcessor(
		parser.New(parser.Options{}, logger),
		anomaly.NewDetector(anomaly.Config{}, logger),
		confidence.NewScorer(confidence.DefaultThresholds(), logger),
		nil,
		nil,
		logger,
	)
	return NewRouter(NewHandler(processor, nil, nil, logger), logger)
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestParseReceiptEndpoint(t *testing.T) {
	router := newTestRouter()

	w := postJSON(t, router, "/api/v1/receipts", ParseRequest{
		RawText: "Sklep spozywczy\nMleko 2% 3,49\nChleb wiejski 4,50\nSUMA 7,99\n",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, pipeline.SourceParser, result.Source)
	assert.Len(t, result.Receipt.Products, 2)
	assert.Equal(t, 7.99, result.Receipt.CalculatedTotal)
}

func TestParseReceiptMissingBody(t *testing.T) {
	router := newTestRouter()

	w := postJSON(t, router, "/api/v1/receipts", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseReceiptUnparseable(t *testing.T) {
	router := newTestRouter()

	w := postJSON(t, router, "/api/v1/receipts", ParseRequest{
		RawText: "PARAGON FISKALNY\nSUMA PLN 0,00\n",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetReceiptInvalidID(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/receipts/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
