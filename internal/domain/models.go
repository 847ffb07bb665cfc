package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type UnidadMedida string

const (
	UnidadKg      UnidadMedida = "kg"
	UnidadUnidad  UnidadMedida = "unidad"
	UnidadLitro   UnidadMedida = "litro"
	UnidadPaquete UnidadMedida = "paquete"
)

func (u UnidadMedida) Valid() bool {
	switch u {
	case UnidadKg, UnidadUnidad, UnidadLitro, UnidadPaquete:
		return true
	}
	return false
}

// Fraccionable reports whether the unit admits fractional quantities
// (e.g. 0.250 kg). Countable units require whole numbers.
func (u UnidadMedida) Fraccionable() bool {
	return u == UnidadKg || u == UnidadLitro
}

type MetodoPago string

const (
	PagoEfectivoBs    MetodoPago = "efectivo_bs"
	PagoEfectivoUsd   MetodoPago = "efectivo_usd"
	PagoTransferencia MetodoPago = "transferencia"
	PagoPagoMovil     MetodoPago = "pago_movil"
	PagoZelle         MetodoPago = "zelle"
)

var TodosMetodosPago = []MetodoPago{
	PagoEfectivoBs,
	PagoEfectivoUsd,
	PagoTransferencia,
	PagoPagoMovil,
	PagoZelle,
}

func (m MetodoPago) Valid() bool {
	switch m {
	case PagoEfectivoBs, PagoEfectivoUsd, PagoTransferencia, PagoPagoMovil, PagoZelle:
		return true
	}
	return false
}

// EsEfectivo reports whether the method puts physical cash in the drawer
// and therefore participates in the expected-cash calculation at close.
func (m MetodoPago) EsEfectivo() bool {
	return m == PagoEfectivoBs || m == PagoEfectivoUsd
}

// EnDolares reports whether the method is denominated in USD.
func (m MetodoPago) EnDolares() bool {
	return m == PagoEfectivoUsd || m == PagoZelle
}

type Producto struct {
	ID           string          `json:"id"`
	Codigo       string          `json:"codigo"`
	CodigoBarras string          `json:"codigo_barras,omitempty"`
	Nombre       string          `json:"nombre"`
	Descripcion  string          `json:"descripcion,omitempty"`
	PrecioBs     decimal.Decimal `json:"precio_bs"`
	Unidad       UnidadMedida    `json:"unidad"`
	Stock        decimal.Decimal `json:"stock"`
}

type ProductoCreateRequest struct {
	Nombre       string          `json:"nombre"`
	Descripcion  string          `json:"descripcion,omitempty"`
	CodigoBarras string          `json:"codigo_barras,omitempty"`
	PrecioBs     decimal.Decimal `json:"precio_bs"`
	Unidad       UnidadMedida    `json:"unidad"`
	StockInicial decimal.Decimal `json:"stock_inicial"`
}

type ProductoUpdateRequest struct {
	Nombre       *string          `json:"nombre,omitempty"`
	Descripcion  *string          `json:"descripcion,omitempty"`
	CodigoBarras *string          `json:"codigo_barras,omitempty"`
	PrecioBs     *decimal.Decimal `json:"precio_bs,omitempty"`
	Stock        *decimal.Decimal `json:"stock,omitempty"`
}

// LineaCarrito is one uncommitted cart entry. Price and name are looked up
// server-side at commit time; the client only chooses product and quantity.
type LineaCarrito struct {
	ProductoID string          `json:"producto_id"`
	Cantidad   decimal.Decimal `json:"cantidad"`
}

type VentaRequest struct {
	Productos   []LineaCarrito  `json:"productos"`
	DescuentoBs decimal.Decimal `json:"descuento_bs"`
	MetodosPago []MetodoPago    `json:"metodo_pago"`
}

type ProductoVendido struct {
	ProductoID  string          `json:"id"`
	Codigo      string          `json:"codigo"`
	Nombre      string          `json:"nombre"`
	PrecioBs    decimal.Decimal `json:"precio_bs"`
	Unidad      UnidadMedida    `json:"unidad"`
	Cantidad    decimal.Decimal `json:"cantidad"`
	SubtotalBs  decimal.Decimal `json:"subtotal_bs"`
	SubtotalUsd decimal.Decimal `json:"subtotal_usd"`
}

// Venta is immutable once created: it is written exactly once, inside the
// same transaction that decrements stock, and never updated or deleted.
type Venta struct {
	ID               string            `json:"id"`
	NumeroFactura    string            `json:"numero_factura"`
	Fecha            time.Time         `json:"fecha"`
	UsuarioUID       string            `json:"usuario_uid"`
	UsuarioNombre    string            `json:"usuario_nombre"`
	TurnoID          string            `json:"turno_id"`
	Productos        []ProductoVendido `json:"productos"`
	SubtotalBs       decimal.Decimal   `json:"subtotal_bs"`
	SubtotalUsd      decimal.Decimal   `json:"subtotal_usd"`
	DescuentoBs      decimal.Decimal   `json:"descuento_bs"`
	TotalBs          decimal.Decimal   `json:"total_bs"`
	TotalUsd         decimal.Decimal   `json:"total_usd"`
	MetodosPago      []MetodoPago      `json:"metodo_pago"`
	TasaDolarMomento decimal.Decimal   `json:"tasa_dolar_momento"`
}

const (
	TurnoAbierto = "abierto"
	TurnoCerrado = "cerrado"
)

// Turno is a cashier's shift: the unit of cash accountability. It is
// mutated exactly once, at close, and then kept forever as an audit record.
type Turno struct {
	ID            string     `json:"id"`
	UsuarioUID    string     `json:"usuario_uid"`
	UsuarioNombre string     `json:"usuario_nombre"`
	FechaApertura time.Time  `json:"fecha_apertura"`
	FechaCierre   *time.Time `json:"fecha_cierre,omitempty"`

	FondoBs  decimal.Decimal `json:"fondo_bs"`
	FondoUsd decimal.Decimal `json:"fondo_usd"`

	Estado string `json:"estado"`

	// Per-method totals, recomputed server-side at close from the ventas
	// attributed to this turno. Never taken from the client.
	TotalVentasBs        decimal.Decimal `json:"total_ventas_bs"`
	TotalEfectivoBs      decimal.Decimal `json:"total_efectivo_bs"`
	TotalEfectivoUsd     decimal.Decimal `json:"total_efectivo_usd"`
	TotalTransferenciaBs decimal.Decimal `json:"total_transferencia_bs"`
	TotalPagoMovilBs     decimal.Decimal `json:"total_pago_movil_bs"`
	TotalZelleUsd        decimal.Decimal `json:"total_zelle_usd"`

	// Arqueo: counted cash entered by the supervisor and the resulting
	// variance (descuadre = contado - esperado; negative means shortage).
	EfectivoContadoBs  decimal.Decimal `json:"efectivo_contado_bs"`
	EfectivoContadoUsd decimal.Decimal `json:"efectivo_contado_usd"`
	DescuadreBs        decimal.Decimal `json:"descuadre_bs"`
	DescuadreUsd       decimal.Decimal `json:"descuadre_usd"`

	SupervisorUID    string `json:"supervisor_uid,omitempty"`
	SupervisorNombre string `json:"supervisor_nombre,omitempty"`
}

type TurnoOpenRequest struct {
	FondoBs  decimal.Decimal `json:"fondo_bs"`
	FondoUsd decimal.Decimal `json:"fondo_usd"`
}

type TurnoCloseRequest struct {
	TurnoID            string          `json:"turno_id"`
	EfectivoContadoBs  decimal.Decimal `json:"efectivo_contado_bs"`
	EfectivoContadoUsd decimal.Decimal `json:"efectivo_contado_usd"`
}

// TotalesTurno is the close-time aggregation over a turno's ventas.
type TotalesTurno struct {
	TotalVentasBs        decimal.Decimal
	TotalEfectivoBs      decimal.Decimal
	TotalEfectivoUsd     decimal.Decimal
	TotalTransferenciaBs decimal.Decimal
	TotalPagoMovilBs     decimal.Decimal
	TotalZelleUsd        decimal.Decimal
}

const (
	RolAdmin      = "admin"
	RolCajero     = "cajero"
	RolSupervisor = "supervisor"
)

type Actor struct {
	UID    string
	Nombre string
	Rol    string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	UID           string
	Email         string
	Nombre        string
	Password      string
	Rol           string
	Activo        bool
	FechaRegistro time.Time
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UID         string `json:"uid"`
	Nombre      string `json:"nombre"`
	Rol         string `json:"rol"`
	ExpiresAt   string `json:"expires_at"`
}

type UserCreateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nombre   string `json:"nombre"`
	Rol      string `json:"rol"`
}

type UserResponse struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	Nombre        string    `json:"nombre"`
	Rol           string    `json:"rol"`
	Activo        bool      `json:"activo"`
	FechaRegistro time.Time `json:"fecha_registro"`
}

// ReporteCajero summarizes the ventas of a cashier's currently open turno.
type ReporteCajero struct {
	TurnoID          string                         `json:"turno_id"`
	TotalVendidoBs   decimal.Decimal                `json:"total_vendido_bs"`
	TotalVentas      int                            `json:"total_ventas"`
	TicketPromedioBs decimal.Decimal                `json:"ticket_promedio_bs"`
	MontoPorMetodo   map[MetodoPago]decimal.Decimal `json:"monto_por_metodo"`
	Ventas           []Venta                        `json:"ventas"`
}

type VentaDiaria struct {
	Fecha   string          `json:"fecha"`
	TotalBs decimal.Decimal `json:"total"`
}

// ReporteDashboard carries the read-only KPI rollups. Day boundaries follow
// the configured business timezone, not UTC truncation.
type ReporteDashboard struct {
	VentasHoyBs      decimal.Decimal `json:"ventas_hoy"`
	VentasSemanaBs   decimal.Decimal `json:"ventas_semana"`
	TransaccionesHoy int             `json:"transacciones_hoy"`
	ProductosActivos int             `json:"productos_activos"`
	ProductosBajos   int             `json:"productos_bajos"`
	VentasDiarias    []VentaDiaria   `json:"ventas_diarias"`
}

type AuditLog struct {
	ID          string    `json:"id"`
	ActorUID    string    `json:"actor_uid"`
	ActorNombre string    `json:"actor_nombre"`
	Accion      string    `json:"accion"`
	EntidadTipo string    `json:"entidad_tipo"`
	EntidadID   string    `json:"entidad_id"`
	Detalle     string    `json:"detalle"`
	Fecha       time.Time `json:"fecha"`
}
