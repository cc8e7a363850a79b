package handler

import (
	"net/http"
	"testing"
	"time"

	deliveryapp "github.com/deliverysync/backend/internal/application/delivery"
	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func credentialView(platform delivery.Platform) *delivery.CredentialView {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &delivery.CredentialView{
		ID:           uuid.New(),
		RestaurantID: testRestaurant,
		Platform:     platform,
		Username:     "chef@example.com",
		HasPassword:  true,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCredentialHandler_Create(t *testing.T) {
	t.Run("platform from path", func(t *testing.T) {
		uc := new(mockCredentialUseCase)
		uc.On("SaveCredentials", mock.Anything, testRestaurant, deliveryapp.SaveCredentialsInput{
			Platform: delivery.PlatformDoorDash,
			Username: "chef@example.com",
			Password: "s3cret",
		}).Return(credentialView(delivery.PlatformDoorDash), nil)

		w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPost, "/credentials/doordash",
			`{"username":"chef@example.com","password":"s3cret"}`)

		require.Equal(t, http.StatusCreated, w.Code)
		var view map[string]any
		decode(t, w, &view)
		assert.Equal(t, "doordash", view["platform"])
		assert.Equal(t, true, view["has_password"])
		assert.NotContains(t, w.Body.String(), "s3cret")
		uc.AssertExpectations(t)
	})

	t.Run("platform from body with sync config", func(t *testing.T) {
		uc := new(mockCredentialUseCase)
		uc.On("SaveCredentials", mock.Anything, testRestaurant, mock.MatchedBy(func(in deliveryapp.SaveCredentialsInput) bool {
			return in.Platform == delivery.PlatformUberEats &&
				in.SyncConfig != nil && in.SyncConfig.AutoSync &&
				in.SyncConfig.ItemMapping["item-1"] == "Pad Thai"
		})).Return(credentialView(delivery.PlatformUberEats), nil)

		w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPost, "/credentials",
			`{"platform":"UberEats","username":"chef@example.com","password":"pw","sync_config":{"auto_sync":true,"item_mapping":{"item-1":"Pad Thai"}}}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		uc.AssertExpectations(t)
	})

	t.Run("same platform in path and body", func(t *testing.T) {
		uc := new(mockCredentialUseCase)
		uc.On("SaveCredentials", mock.Anything, testRestaurant, mock.Anything).
			Return(credentialView(delivery.PlatformDoorDash), nil)

		w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPost, "/credentials/doordash",
			`{"platform":"DoorDash","username":"u","password":"p"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("path and body disagree", func(t *testing.T) {
		uc := new(mockCredentialUseCase)

		w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPost, "/credentials/doordash",
			`{"platform":"ubereats","username":"u","password":"p"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		uc.AssertNotCalled(t, "SaveCredentials", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no platform at all", func(t *testing.T) {
		uc := new(mockCredentialUseCase)

		w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPost, "/credentials",
			`{"username":"u","password":"p"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing password", func(t *testing.T) {
		uc := new(mockCredentialUseCase)

		w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPost, "/credentials/doordash", `{"username":"u"}`)

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.NotEmpty(t, resp.Error.Details)
		assert.Equal(t, "password", resp.Error.Details[0].Field)
	})

	t.Run("already stored", func(t *testing.T) {
		uc := new(mockCredentialUseCase)
		uc.On("SaveCredentials", mock.Anything, testRestaurant, mock.Anything).
			Return(nil, delivery.NewCredentialConflictError(delivery.PlatformDoorDash))

		w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPost, "/credentials/doordash",
			`{"username":"u","password":"p"}`)

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w, nil)
		assert.Equal(t, dto.ErrCodeConflict, resp.Error.Code)
	})
}

func TestCredentialHandler_Get(t *testing.T) {
	uc := new(mockCredentialUseCase)
	uc.On("GetCredentials", mock.Anything, testRestaurant, delivery.PlatformDoorDash).
		Return(nil, delivery.NewNotFoundError("credentials", testRestaurant, delivery.PlatformDoorDash))
	uc.On("GetCredentials", mock.Anything, testRestaurant, delivery.PlatformUberEats).
		Return(credentialView(delivery.PlatformUberEats), nil)
	router := newTestRouter(NewCredentialHandler(uc))

	w := do(router, http.MethodGet, "/credentials/doordash", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/credentials/ubereats", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/credentials/grubhub", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCredentialHandler_List(t *testing.T) {
	uc := new(mockCredentialUseCase)
	uc.On("GetAllCredentials", mock.Anything, testRestaurant).Return([]delivery.CredentialView{
		*credentialView(delivery.PlatformDoorDash),
		*credentialView(delivery.PlatformUberEats),
	}, nil)

	w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodGet, "/credentials", "")

	require.Equal(t, http.StatusOK, w.Code)
	var views []map[string]any
	decode(t, w, &views)
	assert.Len(t, views, 2)
}

func TestCredentialHandler_Update(t *testing.T) {
	uc := new(mockCredentialUseCase)
	uc.On("UpdateCredentials", mock.Anything, testRestaurant, delivery.PlatformDoorDash,
		mock.MatchedBy(func(p delivery.CredentialPatch) bool {
			return p.Password != nil && *p.Password == "rotated" &&
				p.Username == nil && p.IsActive != nil && !*p.IsActive
		})).Return(credentialView(delivery.PlatformDoorDash), nil)

	w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPut, "/credentials/doordash",
		`{"password":"rotated","is_active":false}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "rotated")
	uc.AssertExpectations(t)
}

func TestCredentialHandler_Delete(t *testing.T) {
	uc := new(mockCredentialUseCase)
	uc.On("DeleteCredentials", mock.Anything, testRestaurant, delivery.PlatformUberEats).Return(nil)

	w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodDelete, "/credentials/ubereats", "")

	require.Equal(t, http.StatusOK, w.Code)
	var result deliveryapp.ActionResult
	decode(t, w, &result)
	assert.True(t, result.Success)
	assert.Equal(t, "Uber Eats credentials deleted", result.Message)
}

func TestCredentialHandler_Test(t *testing.T) {
	t.Run("rejected login is not an error", func(t *testing.T) {
		uc := new(mockCredentialUseCase)
		uc.On("TestCredentials", mock.Anything, testRestaurant, deliveryapp.TestCredentialsInput{
			Platform: delivery.PlatformDoorDash,
			Username: "chef@example.com",
			Password: "wrong",
		}).Return(&deliveryapp.ActionResult{Success: false, Message: "DoorDash rejected the login"}, nil)

		w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPost, "/test-credentials",
			`{"platform":"doordash","username":"chef@example.com","password":"wrong"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var result deliveryapp.ActionResult
		resp := decode(t, w, &result)
		assert.True(t, resp.Success)
		assert.False(t, result.Success)
	})

	t.Run("portal timeout", func(t *testing.T) {
		uc := new(mockCredentialUseCase)
		uc.On("TestCredentials", mock.Anything, testRestaurant, mock.Anything).
			Return(nil, delivery.NewTimeoutError(delivery.PlatformDoorDash, "login"))

		w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPost, "/test-credentials",
			`{"platform":"doordash","username":"u","password":"p"}`)

		assert.Equal(t, http.StatusRequestTimeout, w.Code)
	})

	t.Run("invalid portal url", func(t *testing.T) {
		uc := new(mockCredentialUseCase)

		w := do(newTestRouter(NewCredentialHandler(uc)), http.MethodPost, "/test-credentials",
			`{"platform":"doordash","username":"u","password":"p","portal_url":"not a url"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
