package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DiegoBT27/VenPos/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidVenta     = errors.New("invalid venta")
	ErrInvalidProducto  = errors.New("invalid producto")
	ErrInvalidTurno     = errors.New("invalid turno")
	ErrInvalidUser      = errors.New("invalid user")
	ErrProductoNotFound = errors.New("producto not found")
	ErrTurnoAlreadyOpen = errors.New("turno already open")
	ErrTurnoNotOpen     = errors.New("turno is not open")
	ErrNoTurnoAbierto   = errors.New("no open turno for cashier")
)

// InsufficientStockError carries the available quantity so callers can tell
// the cashier exactly how much can still be sold.
type InsufficientStockError struct {
	ProductoID string
	Nombre     string
	Disponible decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para %q: disponible %s", e.Nombre, e.Disponible.String())
}

// VentaDraft is what the service hands the store for an atomic commit.
// Prices, names and totals are deliberately absent: the store re-reads the
// authoritative product records inside its transaction and computes them.
type VentaDraft struct {
	UsuarioUID    string
	UsuarioNombre string
	TurnoID       string
	Lineas        []domain.LineaCarrito
	DescuentoBs   decimal.Decimal
	MetodosPago   []domain.MetodoPago
	TasaDolar     decimal.Decimal
	// NumeroFactura is the time-derived base number; the store appends a
	// suffix if another venta committed within the same second.
	NumeroFactura string
	Fecha         time.Time
}

// CierreTurno carries the only client-supplied inputs of an arqueo: the
// counted cash and the supervisor who counted it. Every total is recomputed
// from persisted ventas inside the close transaction.
type CierreTurno struct {
	EfectivoContadoBs  decimal.Decimal
	EfectivoContadoUsd decimal.Decimal
	SupervisorUID      string
	SupervisorNombre   string
	FechaCierre        time.Time
}

type Repository interface {
	ListProductos(ctx context.Context) ([]domain.Producto, error)
	CreateProducto(ctx context.Context, producto domain.Producto) (*domain.Producto, error)
	UpdateProducto(ctx context.Context, producto domain.Producto) (*domain.Producto, error)
	GetProductoByID(ctx context.Context, id string) (*domain.Producto, error)
	SearchProductos(ctx context.Context, query string, limit int) ([]domain.Producto, error)
	CountProductosBajos(ctx context.Context, umbral decimal.Decimal) (int, error)
	ListProductosBajos(ctx context.Context, umbral decimal.Decimal, limit int) ([]domain.Producto, error)

	CreateVenta(ctx context.Context, draft VentaDraft) (*domain.Venta, error)
	GetVentaByID(ctx context.Context, id string) (*domain.Venta, error)
	ListVentasByTurno(ctx context.Context, turnoID string) ([]domain.Venta, error)
	ListVentasBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Venta, error)

	CreateTurno(ctx context.Context, turno domain.Turno) (*domain.Turno, error)
	GetTurnoByID(ctx context.Context, id string) (*domain.Turno, error)
	GetActiveTurnoByUID(ctx context.Context, usuarioUID string) (*domain.Turno, error)
	CloseTurno(ctx context.Context, turnoID string, cierre CierreTurno) (*domain.Turno, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
