package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-tick-excel/internal/api/constant"
	"live-tick-excel/internal/api/usecase"
	"live-tick-excel/internal/api/usecase/mocks"
	"live-tick-excel/internal/export"
	"live-tick-excel/internal/ingest"
	"live-tick-excel/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func setupRouter(uc usecase.UsecaseItf) *gin.Engine {
	gin.SetMode(gin.TestMode)
	// A short timeout for testing
	return NewHandler(uc, "live_prices").InitRoutes(100*time.Millisecond, zap.NewNop())
}

var snapshotRows = [][]string{
	export.Header,
	{"INFY", "408065", "1500.50", "2024-01-10 14:15:00.000000", "1480.00", "1510.00", "1475.00", "1490.00", "250000", "1498.75", "0", "1200", "800"},
	{"NIFTY 50", "256265", "", "", "", "", "", "", "", "", "", "", ""},
}

func TestIntegratedSnapshotHandlers(t *testing.T) {
	/**
	These mostly test integration of the handlers with the error and timeout
	middleware and the (mock) usecase, plus the response formats.
	**/
	usecaseError := errors.New("a simulated usecase error")

	testCases := []struct {
		name                 string
		url                  string
		setupMock            func(mockUC *mocks.UsecaseItf)
		expectedStatusCode   int
		expectedContentType  string
		expectedBodyContains string
		assertions           func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name: "Success - CSV download",
			url:  "/live_prices.csv",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetSnapshot", mock.Anything).Return(snapshotRows, nil)
			},
			expectedStatusCode:   http.StatusOK,
			expectedContentType:  constant.CSVContentType,
			expectedBodyContains: "INFY,408065,1500.50,2024-01-10 14:15:00.000000,1480.00,1510.00,1475.00,1490.00,250000,1498.75,0,1200,800\n",
			assertions: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "attachment; filename=live_prices.csv", w.Header().Get("Content-Disposition"))
				assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
				assert.Contains(t, w.Body.String(), "NIFTY 50,256265,,,,,,,,,,,\n")
			},
		},
		{
			name: "Success - CSV of an empty watch-list is only the header",
			url:  "/live_prices.csv",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetSnapshot", mock.Anything).Return([][]string{export.Header}, nil)
			},
			expectedStatusCode:   http.StatusOK,
			expectedBodyContains: "Instrument_Name,Instrument_Token,Last_Price,Timestamp,OHLC_Open,OHLC_High,OHLC_Low,OHLC_Close,Volume,Average_Price,OI,Buy_Quantity,Sell_Quantity\n",
			assertions: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, 1, bytes.Count(w.Body.Bytes(), []byte("\n")))
			},
		},
		{
			name: "Success - XLSX download",
			url:  "/live_prices.xlsx",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetSnapshot", mock.Anything).Return(snapshotRows, nil)
			},
			expectedStatusCode:  http.StatusOK,
			expectedContentType: constant.XLSXContentType,
			assertions: func(t *testing.T, w *httptest.ResponseRecorder) {
				f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
				require.NoError(t, err)
				defer f.Close()
				rows, err := f.GetRows("live_prices")
				require.NoError(t, err)
				assert.Equal(t, snapshotRows[1], rows[1])
			},
		},
		{
			name: "Success - JSON snapshot",
			url:  "/api/v1/snapshot",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetSnapshot", mock.Anything).Return(snapshotRows, nil)
			},
			expectedStatusCode:   http.StatusOK,
			expectedBodyContains: `"columns":["Instrument_Name","Instrument_Token"`,
			assertions: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Contains(t, w.Body.String(), `"success":true`)
				assert.Contains(t, w.Body.String(), `["NIFTY 50","256265","","","","","","","","","","",""]`)
			},
		},
		{
			name: "Success - snapshot with format=csv",
			url:  "/api/v1/snapshot?format=csv",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetSnapshot", mock.Anything).Return(snapshotRows, nil)
			},
			expectedStatusCode:   http.StatusOK,
			expectedContentType:  constant.CSVContentType,
			expectedBodyContains: "INFY,408065,1500.50",
		},
		{
			name: "Failure - unsupported format (validation error)",
			url:  "/api/v1/snapshot?format=pdf",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				// The usecase should NOT be called if binding fails.
			},
			expectedStatusCode:   http.StatusBadRequest,
			expectedBodyContains: `"field":"Format"`,
		},
		{
			name: "Failure - usecase returns a custom error",
			url:  "/live_prices.csv",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetSnapshot", mock.Anything).Return(nil, constant.ErrRenderSnapshot)
			},
			expectedStatusCode:   http.StatusInternalServerError,
			expectedBodyContains: constant.ErrRenderSnapshot.Error(),
		},
		{
			name: "Failure - usecase returns a generic error",
			url:  "/api/v1/snapshot",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetSnapshot", mock.Anything).Return(nil, usecaseError)
			},
			expectedStatusCode:   http.StatusInternalServerError,
			expectedBodyContains: usecaseError.Error(),
		},
		{
			name: "Failure - usecase is too slow and times out",
			url:  "/live_prices.csv",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetSnapshot", mock.Anything).
					// This mock will sleep for longer than the middleware timeout.
					After(200*time.Millisecond).
					Return(snapshotRows, nil)
			},
			expectedStatusCode:   http.StatusGatewayTimeout,
			expectedBodyContains: "request timed out",
		},
		{
			name: "Failure - JSON snapshot finishes after the deadline",
			url:  "/api/v1/snapshot",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetSnapshot", mock.Anything).
					After(150*time.Millisecond).
					Return(snapshotRows, nil)
			},
			expectedStatusCode:   http.StatusGatewayTimeout,
			expectedBodyContains: "request timed out",
			assertions: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.NotContains(t, w.Body.String(), "INFY")
			},
		},
		{
			name: "Health - connected",
			url:  "/health",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetStatus", mock.Anything).Return(usecase.Status{
					Instruments: 2,
					Stream:      stream.Status{State: "connected", Connected: true, Subscribed: 2},
					Ingest:      ingest.Stats{Applied: 10},
				}, nil)
			},
			expectedStatusCode:   http.StatusOK,
			expectedBodyContains: `"state":"connected"`,
			assertions: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Contains(t, w.Body.String(), `"success":true,"error":null`)
				assert.Contains(t, w.Body.String(), `"applied":10`)
			},
		},
		{
			name: "Health - reconnecting is unavailable",
			url:  "/api/v1/health",
			setupMock: func(mockUC *mocks.UsecaseItf) {
				mockUC.On("GetStatus", mock.Anything).Return(usecase.Status{
					Instruments: 2,
					Stream:      stream.Status{State: "reconnecting", ReconnectAttempt: 3},
				}, nil)
			},
			expectedStatusCode:   http.StatusServiceUnavailable,
			expectedBodyContains: `"error":"stream reconnecting"`,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			// ARRANGE
			mockUC := new(mocks.UsecaseItf)
			tt.setupMock(mockUC)
			router := setupRouter(mockUC)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", tt.url, nil)

			// ACT
			router.ServeHTTP(w, req)

			// ASSERT
			assert.Equal(t, tt.expectedStatusCode, w.Code, "status code should match")
			assert.Contains(t, w.Body.String(), tt.expectedBodyContains, "response body should contain expected text")
			if tt.expectedContentType != "" {
				assert.Equal(t, tt.expectedContentType, w.Header().Get("Content-Type"))
			}
			if tt.assertions != nil {
				tt.assertions(t, w)
			}

			// Verify that the mock was called as expected.
			mockUC.AssertExpectations(t)
		})
	}
}

func TestSnapshotUsesRequestContext(t *testing.T) {
	mockUC := new(mocks.UsecaseItf)
	mockUC.On("GetSnapshot", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return(snapshotRows, nil)
	router := setupRouter(mockUC)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/snapshot?format=json", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockUC.AssertExpectations(t)
}
