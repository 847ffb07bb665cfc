package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/DiegoBT27/VenPos/internal/domain"
	"github.com/DiegoBT27/VenPos/internal/store"
)

func createProducto(t *testing.T, s *Store, nombre string, precio string, stock string) domain.Producto {
	t.Helper()
	created, err := s.CreateProducto(context.Background(), domain.Producto{
		Nombre:   nombre,
		PrecioBs: decimal.RequireFromString(precio),
		Unidad:   domain.UnidadUnidad,
		Stock:    decimal.RequireFromString(stock),
	})
	if err != nil {
		t.Fatalf("create producto failed: %v", err)
	}
	return *created
}

func TestCreateProductoAssignsSequentialCodigos(t *testing.T) {
	s := New()

	first := createProducto(t, s, "Pan Canilla", "25.00", "40")
	second := createProducto(t, s, "Refresco 2L", "89.50", "36")

	if first.Codigo != "1" || second.Codigo != "2" {
		t.Fatalf("expected codigos 1 and 2, got %q and %q", first.Codigo, second.Codigo)
	}

	updated, err := s.UpdateProducto(context.Background(), domain.Producto{
		ID:       first.ID,
		Nombre:   "Pan Campesino",
		PrecioBs: decimal.RequireFromString("30.00"),
		Unidad:   domain.UnidadUnidad,
		Stock:    decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Codigo != "1" {
		t.Fatalf("codigo must survive updates, got %q", updated.Codigo)
	}
}

func TestCreateVentaSuffixesCollidingFacturas(t *testing.T) {
	s := New()
	producto := createProducto(t, s, "Pan Canilla", "25.00", "40")

	draft := store.VentaDraft{
		UsuarioUID:    "uid-1",
		TurnoID:       "turno-1",
		Lineas:        []domain.LineaCarrito{{ProductoID: producto.ID, Cantidad: decimal.NewFromInt(1)}},
		MetodosPago:   []domain.MetodoPago{domain.PagoEfectivoBs},
		TasaDolar:     decimal.NewFromInt(100),
		NumeroFactura: "20260831120000",
	}

	numeros := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		venta, err := s.CreateVenta(context.Background(), draft)
		if err != nil {
			t.Fatalf("venta %d failed: %v", i, err)
		}
		numeros = append(numeros, venta.NumeroFactura)
	}

	want := []string{"20260831120000", "20260831120000-2", "20260831120000-3"}
	for i, numero := range numeros {
		if numero != want[i] {
			t.Fatalf("factura %d: expected %q, got %q", i, want[i], numero)
		}
	}
}

func TestCreateVentaChecksStockAcrossRepeatedLines(t *testing.T) {
	s := New()
	producto := createProducto(t, s, "Pan Canilla", "25.00", "3")

	// Two lines for the same product must draw from the same stock.
	_, err := s.CreateVenta(context.Background(), store.VentaDraft{
		UsuarioUID: "uid-1",
		TurnoID:    "turno-1",
		Lineas: []domain.LineaCarrito{
			{ProductoID: producto.ID, Cantidad: decimal.NewFromInt(2)},
			{ProductoID: producto.ID, Cantidad: decimal.NewFromInt(2)},
		},
		MetodosPago:   []domain.MetodoPago{domain.PagoEfectivoBs},
		TasaDolar:     decimal.NewFromInt(100),
		NumeroFactura: "20260831120001",
	})
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	// The first line already committed 2 of the 3 units.
	if !stockErr.Disponible.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected disponible 1 after first line, got %s", stockErr.Disponible)
	}

	remaining, err := s.GetProductoByID(context.Background(), producto.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !remaining.Stock.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("stock must be untouched after rejection, got %s", remaining.Stock)
	}
}

func TestNewSeededCatalog(t *testing.T) {
	s := NewSeeded()

	productos, err := s.ListProductos(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(productos) != 10 {
		t.Fatalf("expected 10 seeded productos, got %d", len(productos))
	}
	for _, p := range productos {
		if p.Codigo == "" || p.PrecioBs.Sign() <= 0 {
			t.Fatalf("seeded producto %q incomplete: %+v", p.Nombre, p)
		}
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := New()

	user := domain.UserAccount{
		Email:    "Nueva@VenPos.local",
		Nombre:   "Nueva",
		Password: "hash",
		Rol:      domain.RolCajero,
		Activo:   true,
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if err := s.CreateUser(context.Background(), user); !errors.Is(err, store.ErrInvalidUser) {
		t.Fatalf("duplicate email must be an invalid user, got %v", err)
	}
	if err := s.CreateUser(context.Background(), domain.UserAccount{Nombre: "Sin Correo"}); !errors.Is(err, store.ErrInvalidUser) {
		t.Fatalf("empty email must be an invalid user, got %v", err)
	}

	stored, err := s.GetUserByEmail(context.Background(), "NUEVA@venpos.local")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.Email != "nueva@venpos.local" {
		t.Fatalf("email must be stored lowercased, got %q", stored.Email)
	}
}
