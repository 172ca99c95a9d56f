package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/workorder-cli/internal/model"
	"github.com/shopdesk/workorder-cli/internal/pipeline"
	"github.com/shopdesk/workorder-cli/internal/store"
)

const testMaxUpload = 8 << 20

func newTestEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	// Media-free submissions never reach the extraction clients, so the
	// stages can stay nil here.
	orch := pipeline.NewOrchestrator(st, nil, nil, nil, nil)
	return &pipelineEnv{
		Store:       st,
		Coordinator: pipeline.NewCoordinator(st, orch, &pipeline.Runner{}),
	}
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestBuildMux_HealthEndpoint(t *testing.T) {
	mux := buildMux(newTestEnv(t), testMaxUpload)

	rr := doJSON(t, mux, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildMux_IntakeAccepted(t *testing.T) {
	env := newTestEnv(t)
	mux := buildMux(env, testMaxUpload)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("customer_name", "jane doe"))
	require.NoError(t, mw.WriteField("customer_phone", "555-0100"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/work-orders", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])
	assert.Equal(t, "pending", resp["status"])

	env.Coordinator.Wait()

	wo, err := env.Store.GetWorkOrder(context.Background(), resp["id"])
	require.NoError(t, err)
	assert.Equal(t, model.StatusNeedsReview, wo.Status)
	assert.NotEmpty(t, wo.CustomerID)

	c, err := env.Store.GetCustomer(context.Background(), wo.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "jane doe", c.FullName())
}

func TestBuildMux_IntakeUnknownCustomerID(t *testing.T) {
	mux := buildMux(newTestEnv(t), testMaxUpload)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("customer_id", "nope"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/work-orders", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBuildMux_WorkOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	mux := buildMux(env, testMaxUpload)
	ctx := context.Background()

	wo := &model.WorkOrder{
		Status:      model.StatusPending,
		VehicleInfo: map[string]string{model.InfoVIN: "1HGBH41JXMN109186"},
		WorkSummary: "Brake job",
	}
	require.NoError(t, env.Store.CreateWorkOrder(ctx, wo))

	rr := doJSON(t, mux, http.MethodGet, "/work-orders/"+wo.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var detail workOrderDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, wo.ID, detail.ID)
	assert.Nil(t, detail.Customer)

	rr = doJSON(t, mux, http.MethodGet, "/work-orders?status=pending", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var orders []model.WorkOrder
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &orders))
	require.Len(t, orders, 1)

	rr = doJSON(t, mux, http.MethodGet, "/work-orders?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	bad := model.WorkOrderStatus("bogus")
	rr = doJSON(t, mux, http.MethodPut, "/work-orders/"+wo.ID, model.WorkOrderUpdate{Status: &bad})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	processed := model.StatusProcessed
	rr = doJSON(t, mux, http.MethodPut, "/work-orders/"+wo.ID, model.WorkOrderUpdate{Status: &processed})
	require.Equal(t, http.StatusOK, rr.Code)
	var updated model.WorkOrder
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, model.StatusProcessed, updated.Status)

	rr = doJSON(t, mux, http.MethodDelete, "/work-orders/"+wo.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, mux, http.MethodGet, "/work-orders/"+wo.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBuildMux_GetWorkOrderEmbedsReferences(t *testing.T) {
	env := newTestEnv(t)
	mux := buildMux(env, testMaxUpload)
	ctx := context.Background()

	customer := &model.Customer{FirstName: "Sam", LastName: "Lee"}
	require.NoError(t, env.Store.CreateCustomer(ctx, customer))
	vehicle := &model.Vehicle{CustomerID: customer.ID, VIN: "1HGBH41JXMN109186", Make: "Honda"}
	require.NoError(t, env.Store.CreateVehicle(ctx, vehicle))

	wo := &model.WorkOrder{
		Status:     model.StatusProcessed,
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
	}
	require.NoError(t, env.Store.CreateWorkOrder(ctx, wo))

	rr := doJSON(t, mux, http.MethodGet, "/work-orders/"+wo.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var detail workOrderDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	require.NotNil(t, detail.Customer)
	assert.Equal(t, "Sam Lee", detail.Customer.FullName())
	require.NotNil(t, detail.Vehicle)
	assert.Equal(t, "Honda", detail.Vehicle.Make)
}

func TestBuildMux_CustomerEndpoints(t *testing.T) {
	env := newTestEnv(t)
	mux := buildMux(env, testMaxUpload)

	rr := doJSON(t, mux, http.MethodPost, "/customers", map[string]string{"last_name": "NoFirst"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, mux, http.MethodPost, "/customers", map[string]string{
		"first_name": "Jane",
		"last_name":  "Doe",
		"phone":      "555-0100",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var created model.Customer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rr = doJSON(t, mux, http.MethodGet, "/customers/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, mux, http.MethodPut, "/customers/"+created.ID, map[string]string{"address": "12 Main St"})
	require.Equal(t, http.StatusOK, rr.Code)
	var updated model.Customer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "12 Main St", updated.Address)

	rr = doJSON(t, mux, http.MethodGet, "/customers", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), created.ID))

	rr = doJSON(t, mux, http.MethodGet, "/customers/"+created.ID+"/work-orders", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// Vehicles hang off the customer.
	rr = doJSON(t, mux, http.MethodPost, "/vehicles", map[string]string{"vin": "1HGBH41JXMN109186"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, mux, http.MethodPost, "/vehicles", map[string]string{
		"customer_id": "missing",
		"vin":         "1HGBH41JXMN109186",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, mux, http.MethodPost, "/vehicles", map[string]string{
		"customer_id": created.ID,
		"vin":         "1HGBH41JXMN109186",
		"make":        "Honda",
		"model":       "Accord",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var vehicle model.Vehicle
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &vehicle))

	mileage := 42000
	rr = doJSON(t, mux, http.MethodPut, "/vehicles/"+vehicle.ID, model.VehicleUpdate{Mileage: &mileage})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, mux, http.MethodGet, "/customers/"+created.ID+"/vehicles", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var vehicles []model.Vehicle
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &vehicles))
	require.Len(t, vehicles, 1)
	assert.Equal(t, 42000, vehicles[0].Mileage)

	rr = doJSON(t, mux, http.MethodDelete, "/vehicles/"+vehicle.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = doJSON(t, mux, http.MethodDelete, "/vehicles/"+vehicle.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, mux, http.MethodDelete, "/customers/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = doJSON(t, mux, http.MethodGet, "/customers/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = doJSON(t, mux, http.MethodDelete, "/customers/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestParseOrderFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/work-orders?status=processed&customer_id=c1&limit=5&offset=10", nil)
	filter, err := parseOrderFilter(req)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, filter.Status)
	assert.Equal(t, "c1", filter.CustomerID)
	assert.Equal(t, 5, filter.Limit)
	assert.Equal(t, 10, filter.Offset)

	req = httptest.NewRequest(http.MethodGet, "/work-orders?limit=-1", nil)
	_, err = parseOrderFilter(req)
	assert.Error(t, err)

	req = httptest.NewRequest(http.MethodGet, "/work-orders?limit=abc", nil)
	_, err = parseOrderFilter(req)
	assert.Error(t, err)
}
