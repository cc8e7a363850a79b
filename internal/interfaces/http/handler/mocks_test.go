package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	deliveryapp "github.com/deliverysync/backend/internal/application/delivery"
	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/interfaces/http/dto"
	"github.com/deliverysync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testRestaurant = "rest-1"

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

type registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// newTestRouter mounts h behind the header-based restaurant context
func newTestRouter(h registrar) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	api := router.Group("/api/v1/delivery")
	api.Use(middleware.RequireRestaurant(true))
	h.RegisterRoutes(api)
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/api/v1/delivery"+path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.RestaurantIDHeader, testRestaurant)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decode unmarshals the envelope and its data into out (which may be nil)
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var raw struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return raw.Response
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockSessionUseCase struct {
	mock.Mock
}

func (m *mockSessionUseCase) InitSession(ctx context.Context, restaurantID string, input deliveryapp.InitSessionInput) (*deliveryapp.ActionResult, error) {
	args := m.Called(ctx, restaurantID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deliveryapp.ActionResult), args.Error(1)
}

func (m *mockSessionUseCase) GetSessionInfo(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.SessionInfo, error) {
	args := m.Called(ctx, restaurantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*delivery.SessionInfo), args.Error(1)
}

func (m *mockSessionUseCase) TestSession(ctx context.Context, restaurantID string, platform delivery.Platform) (*deliveryapp.SessionTestResult, error) {
	args := m.Called(ctx, restaurantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deliveryapp.SessionTestResult), args.Error(1)
}

func (m *mockSessionUseCase) DeleteSession(ctx context.Context, restaurantID string, platform delivery.Platform) (*deliveryapp.ActionResult, error) {
	args := m.Called(ctx, restaurantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deliveryapp.ActionResult), args.Error(1)
}

func (m *mockSessionUseCase) ListSessions(ctx context.Context, restaurantID string) ([]delivery.SessionInfo, error) {
	args := m.Called(ctx, restaurantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]delivery.SessionInfo), args.Error(1)
}

func (m *mockSessionUseCase) CleanupExpiredSessions(ctx context.Context, restaurantID string, maxAgeDays int) (int64, error) {
	args := m.Called(ctx, restaurantID, maxAgeDays)
	return args.Get(0).(int64), args.Error(1)
}

type mockCredentialUseCase struct {
	mock.Mock
}

func (m *mockCredentialUseCase) SaveCredentials(ctx context.Context, restaurantID string, input deliveryapp.SaveCredentialsInput) (*delivery.CredentialView, error) {
	args := m.Called(ctx, restaurantID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*delivery.CredentialView), args.Error(1)
}

func (m *mockCredentialUseCase) GetCredentials(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.CredentialView, error) {
	args := m.Called(ctx, restaurantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*delivery.CredentialView), args.Error(1)
}

func (m *mockCredentialUseCase) GetAllCredentials(ctx context.Context, restaurantID string) ([]delivery.CredentialView, error) {
	args := m.Called(ctx, restaurantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]delivery.CredentialView), args.Error(1)
}

func (m *mockCredentialUseCase) UpdateCredentials(ctx context.Context, restaurantID string, platform delivery.Platform, patch delivery.CredentialPatch) (*delivery.CredentialView, error) {
	args := m.Called(ctx, restaurantID, platform, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*delivery.CredentialView), args.Error(1)
}

func (m *mockCredentialUseCase) DeleteCredentials(ctx context.Context, restaurantID string, platform delivery.Platform) error {
	return m.Called(ctx, restaurantID, platform).Error(0)
}

func (m *mockCredentialUseCase) TestCredentials(ctx context.Context, restaurantID string, input deliveryapp.TestCredentialsInput) (*deliveryapp.ActionResult, error) {
	args := m.Called(ctx, restaurantID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deliveryapp.ActionResult), args.Error(1)
}

type mockSyncUseCase struct {
	mock.Mock
}

func (m *mockSyncUseCase) SyncMenuToPlatform(ctx context.Context, restaurantID string, platform delivery.Platform, syncType delivery.SyncType) (*delivery.SyncOutcome, error) {
	args := m.Called(ctx, restaurantID, platform, syncType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*delivery.SyncOutcome), args.Error(1)
}

func (m *mockSyncUseCase) SyncAll(ctx context.Context, restaurantID string, syncType delivery.SyncType) (*delivery.BatchOutcome, error) {
	args := m.Called(ctx, restaurantID, syncType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*delivery.BatchOutcome), args.Error(1)
}

func (m *mockSyncUseCase) ListSyncLogs(ctx context.Context, filter delivery.SyncLogFilter) ([]delivery.SyncLog, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]delivery.SyncLog), args.Get(1).(int64), args.Error(2)
}
