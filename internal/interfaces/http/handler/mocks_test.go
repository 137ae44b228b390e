package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appidentity "github.com/erp/storefront/internal/application/identity"
	"github.com/erp/storefront/internal/application/storefront"
	"github.com/erp/storefront/internal/domain/catalog"
	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/order"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/auth"
	"github.com/erp/storefront/internal/infrastructure/cache"
	"github.com/erp/storefront/internal/infrastructure/config"
	"github.com/erp/storefront/internal/infrastructure/line"
	"github.com/erp/storefront/internal/interfaces/http/dto"
	"github.com/erp/storefront/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSessionHeader = "X-Test-Session"
	testPublicOrigin  = "https://shop.example.com"
	testBackendOrigin = "https://script.example.com"
)

// MockBackend is a mock implementation of storefront.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) FetchInitialData(ctx context.Context, user *identity.UserIdentity) (*catalog.InitialData, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.InitialData), args.Error(1)
}

func (m *MockBackend) FetchItems(ctx context.Context, index catalog.CategoryIndex) ([]catalog.CatalogItem, error) {
	args := m.Called(ctx, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.CatalogItem), args.Error(1)
}

func (m *MockBackend) SubmitOrder(ctx context.Context, payload *order.Payload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// MockPlatform is a mock implementation of appidentity.Platform
type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) VerifyAccessToken(ctx context.Context, accessToken string) (*line.TokenInfo, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*line.TokenInfo), args.Error(1)
}

func (m *MockPlatform) GetProfile(ctx context.Context, accessToken string) (*line.Profile, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*line.Profile), args.Error(1)
}

func (m *MockPlatform) GetFriendship(ctx context.Context, accessToken string) (bool, error) {
	args := m.Called(ctx, accessToken)
	return args.Bool(0), args.Error(1)
}

func (m *MockPlatform) AuthorizeURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockPlatform) ExchangeCode(ctx context.Context, code string) (*line.Token, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*line.Token), args.Error(1)
}

type testEnv struct {
	router   *gin.Engine
	backend  *MockBackend
	platform *MockPlatform
	sessions *appidentity.SessionService
	registry *storefront.Registry
}

// newTestEnv wires the handlers against mocked remotes. The session id is
// taken from testSessionHeader, "sid-1" by default.
func newTestEnv(t *testing.T, strategy string) *testEnv {
	t.Helper()

	identities := cache.NewInMemoryIdentityStore()
	tickets := cache.NewInMemoryTicketStore()
	keys := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() {
		_ = identities.Close()
		_ = tickets.Close()
		_ = keys.Close()
	})

	backend := new(MockBackend)
	platform := new(MockPlatform)
	tokens := auth.NewJWTService(config.SessionConfig{
		Secret: "test-secret-key-at-least-32-chars",
		TTL:    time.Hour,
		Issuer: "storefront-test",
	}, 2*time.Minute)

	var resolver appidentity.Resolver = appidentity.NewSDKResolver(platform, nil)
	if strategy == appidentity.StrategyPopup {
		resolver = appidentity.NewPopupResolver(tickets, appidentity.AuthorizeURLSource(platform), platform, tokens,
			appidentity.PopupConfig{PublicOrigin: testPublicOrigin, BackendOrigin: testBackendOrigin, TicketTTL: time.Minute}, nil)
	}
	sessions := appidentity.NewSessionService(identities, resolver, time.Hour, nil)

	registry := storefront.NewRegistry(storefront.Dependencies{
		Backend:           backend,
		Identities:        sessions,
		Idempotency:       keys,
		IdempotencyConfig: shared.DefaultIdempotencyConfig(),
		CollationLocale:   catalog.DefaultCollationLocale,
	}, time.Hour)
	t.Cleanup(func() { _ = registry.Close() })

	middleware.SetupValidator()
	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		sid := c.GetHeader(testSessionHeader)
		if sid == "" {
			sid = "sid-1"
		}
		c.Set(middleware.SessionIDKey, sid)
		c.Next()
	})

	sh := NewSessionHandler(sessions, registry)
	r.GET("/session", sh.GetSession)
	r.DELETE("/session", sh.Logout)
	r.POST("/session/sdk", sh.LoginSDK)
	r.POST("/session/popup/begin", sh.BeginPopup)
	r.GET("/session/popup/callback", sh.PopupCallback)
	r.POST("/session/popup/message", sh.PopupMessage)

	authed := r.Group("", middleware.RequireIdentity(sessions))
	ch := NewCatalogHandler(registry)
	authed.GET("/catalog", ch.GetCatalog)
	authed.POST("/catalog/categories/:index/select", ch.SelectCategory)
	cart := NewCartHandler(registry)
	authed.GET("/cart", cart.GetCart)
	authed.PUT("/cart/items/:item", cart.SetQuantity)
	authed.POST("/cart/items/:item/adjust", cart.AdjustQuantity)
	authed.DELETE("/cart/items/:item", cart.RemoveItem)
	oh := NewOrderHandler(registry)
	authed.GET("/order/form", oh.GetForm)
	authed.POST("/order/review", oh.OpenReview)
	authed.DELETE("/order/review/lines/:item", oh.RemoveReviewLine)
	authed.POST("/order/submit", oh.Submit)

	return &testEnv{router: r, backend: backend, platform: platform, sessions: sessions, registry: registry}
}

// login caches an identity for the session
func (e *testEnv) login(t *testing.T, sessionID string, user *identity.UserIdentity) {
	t.Helper()
	require.NoError(t, e.sessions.SaveIdentity(context.Background(), sessionID, user))
}

// stockFruits makes the backend serve two categories; "2" (蘋果) sorts first
func (e *testEnv) stockFruits(customerName string) {
	e.backend.On("FetchInitialData", mock.Anything, mock.Anything).Return(&catalog.InitialData{
		CustomerName: customerName,
		Categories: []catalog.Category{
			{Index: "1", Name: "香蕉"},
			{Index: "2", Name: "蘋果"},
		},
	}, nil)
	e.backend.On("FetchItems", mock.Anything, catalog.CategoryIndex("2")).Return([]catalog.CatalogItem{
		{Item: "Fuji", Unit: "box", Price: decimal.NewFromInt(50)},
		{Item: "Gala", Price: decimal.NewFromInt(30)},
	}, nil)
	e.backend.On("FetchItems", mock.Anything, catalog.CategoryIndex("1")).Return([]catalog.CatalogItem{
		{Item: "Cavendish", Price: decimal.NewFromInt(20)},
	}, nil)
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

// decode unmarshals the response envelope, and its data into out when given
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) *dto.ErrorInfo {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	env := decode(t, w, nil)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
	return env.Error
}

func statusOK(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
