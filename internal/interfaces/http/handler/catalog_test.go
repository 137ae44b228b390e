package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appcatalog "github.com/erp/storefront/internal/application/catalog"
	appidentity "github.com/erp/storefront/internal/application/identity"
	"github.com/erp/storefront/internal/domain/catalog"
	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
)

func TestCatalogHandler_GetCatalog(t *testing.T) {
	env := newTestEnv(t, appidentity.StrategySDK)
	env.stockFruits("Shop A")

	requireError(t, env.do(http.MethodGet, "/catalog", ""), http.StatusUnauthorized, shared.CodeUnauthorized)

	env.login(t, "sid-1", &identity.UserIdentity{UserID: "U1", DisplayName: "Alice", CustomerName: "Alice"})
	w := env.do(http.MethodGet, "/catalog", "")
	statusOK(t, w)

	var state appcatalog.State
	decode(t, w, &state)
	require.Len(t, state.Categories, 2)
	assert.Equal(t, "蘋果", state.Categories[0].Name, "categories are collated")
	assert.Equal(t, catalog.CategoryIndex("2"), state.ActiveCategory)
	assert.Equal(t, appcatalog.StatusLoaded, state.Status)
	require.Len(t, state.Items, 2)
	assert.Equal(t, "Fuji / box", state.Items[0].Label)

	t.Run("second call does not reload", func(t *testing.T) {
		statusOK(t, env.do(http.MethodGet, "/catalog", ""))
		env.backend.AssertNumberOfCalls(t, "FetchInitialData", 1)
	})

	t.Run("saved customer name is persisted", func(t *testing.T) {
		var resp SessionResponse
		decode(t, env.do(http.MethodGet, "/session", ""), &resp)
		assert.Equal(t, "Shop A", resp.User.CustomerName)
	})
}

func TestCatalogHandler_GetCatalog_BackendDown(t *testing.T) {
	env := newTestEnv(t, appidentity.StrategySDK)
	env.backend.On("FetchInitialData", mock.Anything, mock.Anything).
		Return(nil, shared.NewRemoteRequestFailed("network request failed: connection refused"))
	env.login(t, "sid-1", &identity.UserIdentity{UserID: "U1", DisplayName: "Alice"})

	info := requireError(t, env.do(http.MethodGet, "/catalog", ""), http.StatusBadGateway, shared.CodeRemoteRequestFailed)
	assert.Contains(t, info.Message, "connection refused")
}

func TestCatalogHandler_SelectCategory(t *testing.T) {
	env := newTestEnv(t, appidentity.StrategySDK)
	env.stockFruits("")
	env.backend.On("FetchItems", mock.Anything, catalog.CategoryIndex("3")).
		Return(nil, shared.NewRemoteRequestFailed("sheet not found"))
	env.login(t, "sid-1", &identity.UserIdentity{UserID: "U1", DisplayName: "Alice"})

	w := env.do(http.MethodPost, "/catalog/categories/1/select", "")
	statusOK(t, w)
	var state appcatalog.State
	decode(t, w, &state)
	assert.Equal(t, catalog.CategoryIndex("1"), state.ActiveCategory)
	require.Len(t, state.Items, 1)
	assert.Equal(t, "Cavendish", state.Items[0].Item)

	requireError(t, env.do(http.MethodPost, "/catalog/categories/9/select", ""), http.StatusNotFound, shared.CodeNotFound)
}
