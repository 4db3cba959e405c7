package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"b2b-storefront/auth"
	"b2b-storefront/cart"
	"b2b-storefront/catalog"
	"b2b-storefront/checkout"
	"b2b-storefront/delivery"
	"b2b-storefront/errs"
	"b2b-storefront/events"
	"b2b-storefront/export"
	"b2b-storefront/models"
	"b2b-storefront/orders"
	"b2b-storefront/pricing"
	"b2b-storefront/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const secret = "test-secret"

var (
	alice = auth.Actor{ID: "alice", Role: auth.RoleCustomer}
	bob   = auth.Actor{ID: "bob", Role: auth.RoleCustomer}
	admin = auth.Actor{ID: "root", Role: auth.RoleAdmin}
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	hub    *events.Hub
	repo   *orders.MemoryRepository
	carts  *cart.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	products := catalog.NewMemoryCatalog(
		models.Product{ID: "p1", Article: "A-1", Name: "Leche entera", Brand: "Serenisima", Category: "Lacteos", Price: decimal.NewFromInt(1000), Active: true},
		models.Product{ID: "p2", Article: "A-2", Name: "Combo desayuno", Category: " ", Price: decimal.NewFromInt(15000), Active: true},
		models.Product{ID: "p3", Article: "A-3", Name: "Yerba", Brand: "Playadito", Category: "Almacen", Price: decimal.NewFromInt(3000), Active: true},
	)
	hub := events.NewHub()
	repo := orders.NewMemoryRepository()
	repo.SetCustomer(models.Customer{ID: "alice", Handle: "almacen-alice"})
	carts := cart.NewService(cart.NewMemoryBackend(), hub)

	monday := time.Date(2024, 3, 4, 13, 0, 0, 0, time.UTC)
	workflow := checkout.NewWorkflow(products, carts, repo, pricing.Default(), delivery.NewScheduler(time.UTC, delivery.DefaultCutoffHour), hub, nil, checkout.Options{
		IdempotencyTTL: time.Minute,
		Now:            func() time.Time { return monday },
	})
	registry := orders.NewRegistry(repo, hub, nil)
	logger := zap.NewNop()

	router := SetupRouter(Handlers{
		Products: NewProductController(products, logger),
		Cart:     NewCartController(carts, workflow, logger),
		Orders:   NewOrderController(workflow, registry, time.UTC, logger),
		Events:   NewEventController(hub, logger),
	}, secret, logger)
	return &testServer{router: router, hub: hub, repo: repo, carts: carts}
}

func (s *testServer) do(t *testing.T, actor *auth.Actor, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := utils.IssueToken(secret, *actor, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *testServer) placeOrder(t *testing.T, actor auth.Actor) int64 {
	t.Helper()
	_, err := s.carts.Set(context.Background(), actor.ID, "p2", 2)
	require.NoError(t, err)
	w := s.do(t, &actor, http.MethodPost, "/api/checkout", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(decode(t, w)["order_id"].(float64))
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, nil, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListProducts_Filters(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, &alice, http.MethodGet, "/api/products?q=LECHE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])

	w = s.do(t, &alice, http.MethodGet, "/api/products?brand=Playadito&category=Almacen", nil)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = s.do(t, &alice, http.MethodGet, "/api/products?category=Bebidas", nil)
	assert.EqualValues(t, 0, decode(t, w)["total"])
}

func TestListCategories_PromosLast(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, &alice, http.MethodGet, "/api/products/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []models.CategoryGroup `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 3)
	assert.Equal(t, "Almacen", body.Data[0].Category)
	assert.Equal(t, "Lacteos", body.Data[1].Category)
	assert.Equal(t, catalog.PromoCategory, body.Data[2].Category)
}

func TestCart_AddSetAndQuote(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, &alice, http.MethodPost, "/api/cart/items", gin.H{"product_id": "p1", "quantity": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, &alice, http.MethodPost, "/api/cart/items", gin.H{"product_id": "p1", "quantity": 6})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, &alice, http.MethodPut, "/api/cart/items/p2", gin.H{"quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, &alice, http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, map[string]interface{}{"p1": float64(10), "p2": float64(1)}, body["items"])
	resumen := body["resumen"].(map[string]interface{})
	assert.Equal(t, "23800", resumen["total"])
	assert.Equal(t, "25000", resumen["total_sin_descuento"])
	assert.Equal(t, true, body["alcanza_minimo"])

	w = s.do(t, &alice, http.MethodPut, "/api/cart/items/p1", gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"p2": float64(1)}, decode(t, w)["items"])
}

func TestCart_RejectsBadBodies(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, &alice, http.MethodPost, "/api/cart/items", gin.H{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, &alice, http.MethodPut, "/api/cart/items/p1", gin.H{"quantity": "many"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errs.ErrMsgInvalidQuantity, decode(t, w)["error"])
}

func TestCart_Clear(t *testing.T) {
	s := newTestServer(t)
	_, err := s.carts.Set(context.Background(), "alice", "p1", 3)
	require.NoError(t, err)

	w := s.do(t, &alice, http.MethodDelete, "/api/cart", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	c, err := s.carts.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestCheckout_BelowMinimumIs422(t *testing.T) {
	s := newTestServer(t)
	_, err := s.carts.Set(context.Background(), "alice", "p1", 1)
	require.NoError(t, err)

	w := s.do(t, &alice, http.MethodPost, "/api/checkout", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "FAILED_PRECONDITION", decode(t, w)["code"])
	assert.Equal(t, 0, s.repo.Count())
}

func TestCheckout_IdempotencyKeyReplays(t *testing.T) {
	s := newTestServer(t)
	_, err := s.carts.Set(context.Background(), "alice", "p2", 2)
	require.NoError(t, err)

	first := s.do(t, &alice, http.MethodPost, "/api/checkout", nil, IdempotencyHeader, "k1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := s.do(t, &alice, http.MethodPost, "/api/checkout", nil, IdempotencyHeader, "k1")
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, decode(t, first)["order_id"], decode(t, second)["order_id"])
	assert.Equal(t, true, decode(t, second)["replayed"])
	assert.Equal(t, 1, s.repo.Count())
}

func TestOrders_VisibilityAndStatus(t *testing.T) {
	s := newTestServer(t)
	aliceOrder := s.placeOrder(t, alice)
	s.placeOrder(t, bob)

	w := s.do(t, &alice, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = s.do(t, &admin, http.MethodGet, "/api/orders", nil)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	path := "/api/orders/" + itoa(aliceOrder)
	w = s.do(t, &bob, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, &alice, http.MethodPut, path+"/status", gin.H{"estado": "entregado"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, &admin, http.MethodPut, path+"/status", gin.H{"estado": "enviado"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, &admin, http.MethodPut, path+"/status", gin.H{"estado": "entregado"})
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "entregado", data["estado"])
	assert.Equal(t, "Entregado", data["estado_label"])

	w = s.do(t, &alice, http.MethodGet, "/api/orders?status=entregado", nil)
	assert.EqualValues(t, 1, decode(t, w)["total"])
	w = s.do(t, &alice, http.MethodGet, "/api/orders?status=pendiente", nil)
	assert.EqualValues(t, 0, decode(t, w)["total"])
	w = s.do(t, &alice, http.MethodGet, "/api/orders?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrders_InvalidID(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, &alice, http.MethodGet, "/api/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errs.ErrMsgInvalidOrderID, decode(t, w)["error"])
}

func TestOrders_Export(t *testing.T) {
	s := newTestServer(t)
	s.placeOrder(t, alice)

	w := s.do(t, &admin, http.MethodGet, "/api/orders/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "pedidos_")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"almacen-alice", "A-2", "2", "30000", "Pendiente", "04/03/2024 13:00"}, rows[1])
}

func TestEvents_StreamsOwnEvents(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	token, err := utils.IssueToken(secret, alice, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.router.ServeHTTP(w, req)
	}()

	require.Eventually(t, func() bool { return s.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.hub.Publish(context.Background(), events.New(events.TopicOrders, events.TypeOrderCreated, "bob", nil)))
	require.NoError(t, s.hub.Publish(context.Background(), events.New(events.TopicCart, events.TypeCartChanged, "alice", nil)))

	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event:cart.changed")
	assert.False(t, strings.Contains(body, "orders.created"))
	assert.Equal(t, 0, s.hub.Subscribers())
}

func TestFilterFor_AdminSeesAllOrders(t *testing.T) {
	orderEv := events.New(events.TopicOrders, events.TypeOrderCreated, "bob", nil)
	cartEv := events.New(events.TopicCart, events.TypeCartChanged, "bob", nil)

	assert.True(t, filterFor(admin)(orderEv))
	assert.False(t, filterFor(admin)(cartEv))
	assert.False(t, filterFor(alice)(orderEv))
	assert.True(t, filterFor(bob)(cartEv))
}

func TestActorOrAbort_UsesRequestContext(t *testing.T) {
	r := gin.New()
	r.GET("/whoami", func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.ID})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req = req.WithContext(auth.WithActor(req.Context(), bob))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"bob"}`, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(errs.InvalidArgument))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(errs.FailedPrecondition))
	assert.Equal(t, http.StatusForbidden, statusFor(errs.PermissionDenied))
	assert.Equal(t, http.StatusNotFound, statusFor(errs.NotFound))
	assert.Equal(t, http.StatusUnauthorized, statusFor(errs.Unauthenticated))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errs.Internal))
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
