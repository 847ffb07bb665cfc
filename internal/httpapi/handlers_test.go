package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DiegoBT27/VenPos/internal/domain"
	"github.com/DiegoBT27/VenPos/internal/service"
	"github.com/DiegoBT27/VenPos/internal/store/memory"
)

type testRate struct{}

func (testRate) Current() decimal.Decimal {
	return decimal.NewFromInt(100)
}

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	repo := memory.New()
	svc := service.New(repo, testRate{}, "", decimal.NewFromInt(5), time.UTC)
	auth := NewAuthManager("test-secret-test-secret-test-secret", time.Hour, repo)
	return New(svc, auth, "http://127.0.0.1:3000").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, handler http.Handler, email string, password string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email:    email,
		Password: password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s failed with status %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	return resp.AccessToken
}

func decodeField[T any](t *testing.T, rec *httptest.ResponseRecorder, field string) T {
	t.Helper()
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope failed: %v", err)
	}
	var value T
	if err := json.Unmarshal(envelope[field], &value); err != nil {
		t.Fatalf("decode field %q failed: %v", field, err)
	}
	return value
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/ventas", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	adminToken := login(t, handler, "admin@venpos.local", "admin123")
	cajeroToken := login(t, handler, "cajero@venpos.local", "cajero123")
	supervisorToken := login(t, handler, "supervisor@venpos.local", "supervisor123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", adminToken, domain.ProductoCreateRequest{
		Nombre:       "Harina de Maíz 1kg",
		PrecioBs:     decimal.RequireFromString("42.50"),
		Unidad:       domain.UnidadPaquete,
		StockInicial: decimal.NewFromInt(3),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product failed with %d: %s", rec.Code, rec.Body.String())
	}
	producto := decodeField[domain.Producto](t, rec, "producto")

	// Sale before opening a turno is a conflict.
	ventaReq := domain.VentaRequest{
		Productos:   []domain.LineaCarrito{{ProductoID: producto.ID, Cantidad: decimal.NewFromInt(2)}},
		MetodosPago: []domain.MetodoPago{domain.PagoEfectivoBs},
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/ventas", cajeroToken, ventaReq)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 without open turno, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/turnos/open", cajeroToken, domain.TurnoOpenRequest{
		FondoBs: decimal.RequireFromString("100.00"),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open turno failed with %d: %s", rec.Code, rec.Body.String())
	}
	turno := decodeField[domain.Turno](t, rec, "turno")

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/ventas", cajeroToken, ventaReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("venta failed with %d: %s", rec.Code, rec.Body.String())
	}
	venta := decodeField[domain.Venta](t, rec, "venta")
	if !venta.TotalBs.Equal(decimal.RequireFromString("85.00")) {
		t.Fatalf("expected total 85.00, got %s", venta.TotalBs)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/ventas/"+venta.ID, cajeroToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("venta lookup failed with %d", rec.Code)
	}

	// Only 1 unit left: selling 2 more conflicts and leaves stock alone.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/ventas", cajeroToken, ventaReq)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/cashier", cajeroToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cashier report failed with %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/turnos/close", supervisorToken, domain.TurnoCloseRequest{
		TurnoID:           turno.ID,
		EfectivoContadoBs: decimal.RequireFromString("185.00"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("close turno failed with %d: %s", rec.Code, rec.Body.String())
	}
	closed := decodeField[domain.Turno](t, rec, "turno")
	if closed.Estado != domain.TurnoCerrado {
		t.Fatalf("expected estado cerrado, got %s", closed.Estado)
	}
	if !closed.DescuadreBs.IsZero() {
		t.Fatalf("expected balanced arqueo, descuadre got %s", closed.DescuadreBs)
	}
}

func TestRoleEnforcementOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	cajeroToken := login(t, handler, "cajero@venpos.local", "cajero123")
	supervisorToken := login(t, handler, "supervisor@venpos.local", "supervisor123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/turnos/close", cajeroToken, domain.TurnoCloseRequest{TurnoID: "x"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cajero closing a turno must be 403, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/turnos/open", supervisorToken, domain.TurnoOpenRequest{})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("supervisor opening a turno must be 403, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/dashboard", cajeroToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cajero reading the dashboard must be 403, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users", supervisorToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("supervisor listing users must be 403, got %d", rec.Code)
	}
}

func TestProductSearchOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	adminToken := login(t, handler, "admin@venpos.local", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", adminToken, domain.ProductoCreateRequest{
		Nombre:       "Café Molido 250g",
		CodigoBarras: "7591001000042",
		PrecioBs:     decimal.RequireFromString("98.90"),
		Unidad:       domain.UnidadPaquete,
		StockInicial: decimal.NewFromInt(10),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product failed with %d", rec.Code)
	}
	producto := decodeField[domain.Producto](t, rec, "producto")

	for _, q := range []string{producto.Codigo, "7591001000042", "caf"} {
		rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/search?q="+q, adminToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("search %q failed with %d", q, rec.Code)
		}
		found := decodeField[[]domain.Producto](t, rec, "productos")
		if len(found) != 1 || found[0].ID != producto.ID {
			t.Fatalf("search %q expected 1 hit, got %d", q, len(found))
		}
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/search?q=", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty query must be 400, got %d", rec.Code)
	}
}

func TestCurrentRateOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	cajeroToken := login(t, handler, "cajero@venpos.local", "cajero123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/rates/current", cajeroToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rates endpoint failed with %d", rec.Code)
	}
	rate := decodeField[decimal.Decimal](t, rec, "tasa_dolar")
	if !rate.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected rate 100, got %s", rate)
	}
}

func TestLoginRateLimit(t *testing.T) {
	handler := newTestAPI(t)

	for i := 0; i < 5; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
			Email:    "cajero@venpos.local",
			Password: fmt.Sprintf("wrong-%d", i),
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401, got %d", i, rec.Code)
		}
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email:    "cajero@venpos.local",
		Password: "cajero123",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exhausted attempts, got %d", rec.Code)
	}
}
