package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DiegoBT27/VenPos/internal/domain"
	"github.com/DiegoBT27/VenPos/internal/money"
	"github.com/DiegoBT27/VenPos/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// ErrPermisoDenegado is returned when the acting user's rol does not
// allow the operation.
var ErrPermisoDenegado = errors.New("permiso denegado")

// RateSource yields the current Bs-per-USD exchange rate. The source is
// read once per sale and stamped into the venta, so later rate changes
// never rewrite history.
type RateSource interface {
	Current() decimal.Decimal
}

type Service struct {
	repo           store.Repository
	rates          RateSource
	invoicePrefix  string
	lowStockUmbral decimal.Decimal
	tz             *time.Location
}

func New(repo store.Repository, rates RateSource, invoicePrefix string, lowStockUmbral decimal.Decimal, tz *time.Location) *Service {
	if lowStockUmbral.Sign() <= 0 {
		lowStockUmbral = decimal.NewFromInt(5)
	}
	if tz == nil {
		tz = time.UTC
	}

	return &Service{
		repo:           repo,
		rates:          rates,
		invoicePrefix:  invoicePrefix,
		lowStockUmbral: lowStockUmbral,
		tz:             tz,
	}
}

func (s *Service) ListProductos(ctx context.Context) ([]domain.Producto, error) {
	return s.repo.ListProductos(ctx)
}

func (s *Service) GetProducto(ctx context.Context, id string) (domain.Producto, error) {
	producto, err := s.repo.GetProductoByID(ctx, id)
	if err != nil {
		return domain.Producto{}, err
	}
	return *producto, nil
}

func (s *Service) SearchProductos(ctx context.Context, query string, limit int) ([]domain.Producto, error) {
	if limit < 1 || limit > 50 {
		limit = 20
	}
	return s.repo.SearchProductos(ctx, query, limit)
}

func (s *Service) CreateProducto(ctx context.Context, req domain.ProductoCreateRequest) (domain.Producto, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Rol != domain.RolAdmin {
		return domain.Producto{}, fmt.Errorf("%w: se requiere rol admin", ErrPermisoDenegado)
	}

	req.Nombre = strings.TrimSpace(req.Nombre)
	req.CodigoBarras = strings.TrimSpace(req.CodigoBarras)
	if req.Nombre == "" || !req.Unidad.Valid() {
		return domain.Producto{}, store.ErrInvalidProducto
	}
	if req.PrecioBs.Sign() <= 0 || req.StockInicial.Sign() < 0 {
		return domain.Producto{}, store.ErrInvalidProducto
	}

	created, err := s.repo.CreateProducto(ctx, domain.Producto{
		Nombre:       req.Nombre,
		Descripcion:  strings.TrimSpace(req.Descripcion),
		CodigoBarras: req.CodigoBarras,
		PrecioBs:     money.RoundBs(req.PrecioBs),
		Unidad:       req.Unidad,
		Stock:        money.RoundQty(req.StockInicial),
	})
	if err != nil {
		return domain.Producto{}, err
	}

	s.logAudit(ctx, "producto_create", "producto", created.ID, fmt.Sprintf("nombre=%s,precio_bs=%s,stock=%s", created.Nombre, created.PrecioBs, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProducto(ctx context.Context, id string, req domain.ProductoUpdateRequest) (domain.Producto, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Rol != domain.RolAdmin {
		return domain.Producto{}, fmt.Errorf("%w: se requiere rol admin", ErrPermisoDenegado)
	}

	existing, err := s.repo.GetProductoByID(ctx, id)
	if err != nil {
		return domain.Producto{}, err
	}

	updated := *existing
	if req.Nombre != nil {
		nombre := strings.TrimSpace(*req.Nombre)
		if nombre == "" {
			return domain.Producto{}, store.ErrInvalidProducto
		}
		updated.Nombre = nombre
	}
	if req.Descripcion != nil {
		updated.Descripcion = strings.TrimSpace(*req.Descripcion)
	}
	if req.CodigoBarras != nil {
		updated.CodigoBarras = strings.TrimSpace(*req.CodigoBarras)
	}
	if req.PrecioBs != nil {
		if req.PrecioBs.Sign() <= 0 {
			return domain.Producto{}, store.ErrInvalidProducto
		}
		updated.PrecioBs = money.RoundBs(*req.PrecioBs)
	}
	if req.Stock != nil {
		if req.Stock.Sign() < 0 {
			return domain.Producto{}, store.ErrInvalidProducto
		}
		updated.Stock = money.RoundQty(*req.Stock)
	}

	saved, err := s.repo.UpdateProducto(ctx, updated)
	if err != nil {
		return domain.Producto{}, err
	}

	s.logAudit(ctx, "producto_update", "producto", saved.ID, fmt.Sprintf("nombre=%s,precio_bs=%s,stock=%s", saved.Nombre, saved.PrecioBs, saved.Stock))
	return *saved, nil
}

func (s *Service) ListProductosBajos(ctx context.Context, limit int) ([]domain.Producto, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return s.repo.ListProductosBajos(ctx, s.lowStockUmbral, limit)
}

// CommitVenta validates the cart and hands the store an atomic commit.
// Totals and line prices come from the store's own product records, the
// exchange rate is stamped once, and the sale is attributed to the
// cashier's open turno. No open turno, no sale.
func (s *Service) CommitVenta(ctx context.Context, req domain.VentaRequest) (domain.Venta, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Rol != domain.RolCajero && actor.Rol != domain.RolAdmin) {
		return domain.Venta{}, fmt.Errorf("%w: se requiere rol cajero", ErrPermisoDenegado)
	}

	if len(req.Productos) == 0 {
		return domain.Venta{}, store.ErrInvalidVenta
	}
	if req.DescuentoBs.Sign() < 0 {
		return domain.Venta{}, store.ErrInvalidVenta
	}

	metodos, err := normalizeMetodos(req.MetodosPago)
	if err != nil {
		return domain.Venta{}, err
	}

	tasa := s.rates.Current()
	if tasa.Sign() <= 0 {
		return domain.Venta{}, fmt.Errorf("tasa de cambio no disponible")
	}

	turno, err := s.repo.GetActiveTurnoByUID(ctx, actor.UID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Venta{}, store.ErrNoTurnoAbierto
		}
		return domain.Venta{}, err
	}

	now := time.Now().UTC()
	draft := store.VentaDraft{
		UsuarioUID:    actor.UID,
		UsuarioNombre: actor.Nombre,
		TurnoID:       turno.ID,
		Lineas:        req.Productos,
		DescuentoBs:   money.RoundBs(req.DescuentoBs),
		MetodosPago:   metodos,
		TasaDolar:     tasa,
		NumeroFactura: s.invoicePrefix + now.In(s.tz).Format("20060102150405"),
		Fecha:         now,
	}

	venta, err := s.repo.CreateVenta(ctx, draft)
	if err != nil {
		return domain.Venta{}, err
	}

	s.logAudit(ctx, "venta_commit", "venta", venta.ID, fmt.Sprintf("factura=%s,total_bs=%s,turno=%s", venta.NumeroFactura, venta.TotalBs, venta.TurnoID))
	return *venta, nil
}

func (s *Service) GetVenta(ctx context.Context, id string) (domain.Venta, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return domain.Venta{}, ErrPermisoDenegado
	}
	venta, err := s.repo.GetVentaByID(ctx, id)
	if err != nil {
		return domain.Venta{}, err
	}
	return *venta, nil
}

func (s *Service) OpenTurno(ctx context.Context, req domain.TurnoOpenRequest) (domain.Turno, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Rol != domain.RolCajero && actor.Rol != domain.RolAdmin) {
		return domain.Turno{}, fmt.Errorf("%w: se requiere rol cajero", ErrPermisoDenegado)
	}
	if req.FondoBs.Sign() < 0 || req.FondoUsd.Sign() < 0 {
		return domain.Turno{}, fmt.Errorf("%w: fondos must not be negative", store.ErrInvalidTurno)
	}

	turno, err := s.repo.CreateTurno(ctx, domain.Turno{
		UsuarioUID:    actor.UID,
		UsuarioNombre: actor.Nombre,
		FechaApertura: time.Now().UTC(),
		FondoBs:       money.RoundBs(req.FondoBs),
		FondoUsd:      money.RoundUsd(req.FondoUsd),
		Estado:        domain.TurnoAbierto,
	})
	if err != nil {
		return domain.Turno{}, err
	}

	s.logAudit(ctx, "turno_open", "turno", turno.ID, fmt.Sprintf("fondo_bs=%s,fondo_usd=%s", turno.FondoBs, turno.FondoUsd))
	return *turno, nil
}

// CloseTurno performs the arqueo: the supervisor enters counted cash, the
// store recomputes expected totals from persisted ventas, and the
// descuadre (counted minus expected) is recorded on the closed turno.
func (s *Service) CloseTurno(ctx context.Context, req domain.TurnoCloseRequest) (domain.Turno, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Rol != domain.RolSupervisor && actor.Rol != domain.RolAdmin) {
		return domain.Turno{}, fmt.Errorf("%w: se requiere rol supervisor", ErrPermisoDenegado)
	}
	if strings.TrimSpace(req.TurnoID) == "" {
		return domain.Turno{}, fmt.Errorf("%w: turno_id required", store.ErrInvalidTurno)
	}
	if req.EfectivoContadoBs.Sign() < 0 || req.EfectivoContadoUsd.Sign() < 0 {
		return domain.Turno{}, fmt.Errorf("%w: counted cash must not be negative", store.ErrInvalidTurno)
	}

	closed, err := s.repo.CloseTurno(ctx, req.TurnoID, store.CierreTurno{
		EfectivoContadoBs:  money.RoundBs(req.EfectivoContadoBs),
		EfectivoContadoUsd: money.RoundUsd(req.EfectivoContadoUsd),
		SupervisorUID:      actor.UID,
		SupervisorNombre:   actor.Nombre,
		FechaCierre:        time.Now().UTC(),
	})
	if err != nil {
		return domain.Turno{}, err
	}

	s.logAudit(ctx, "turno_close", "turno", closed.ID, fmt.Sprintf("descuadre_bs=%s,descuadre_usd=%s", closed.DescuadreBs, closed.DescuadreUsd))
	return *closed, nil
}

func (s *Service) GetActiveTurno(ctx context.Context) (domain.Turno, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Turno{}, ErrPermisoDenegado
	}
	turno, err := s.repo.GetActiveTurnoByUID(ctx, actor.UID)
	if err != nil {
		return domain.Turno{}, err
	}
	return *turno, nil
}

// GetCashierReport summarizes the acting cashier's open turno: running
// total, ticket count and average, per-method breakdown and the ventas.
func (s *Service) GetCashierReport(ctx context.Context) (domain.ReporteCajero, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.ReporteCajero{}, ErrPermisoDenegado
	}

	turno, err := s.repo.GetActiveTurnoByUID(ctx, actor.UID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ReporteCajero{}, store.ErrNoTurnoAbierto
		}
		return domain.ReporteCajero{}, err
	}

	ventas, err := s.repo.ListVentasByTurno(ctx, turno.ID)
	if err != nil {
		return domain.ReporteCajero{}, err
	}

	total := decimal.Zero
	for _, v := range ventas {
		total = total.Add(v.TotalBs)
	}
	promedio := decimal.Zero
	if len(ventas) > 0 {
		promedio = total.DivRound(decimal.NewFromInt(int64(len(ventas))), 2)
	}

	return domain.ReporteCajero{
		TurnoID:          turno.ID,
		TotalVendidoBs:   total,
		TotalVentas:      len(ventas),
		TicketPromedioBs: promedio,
		MontoPorMetodo:   domain.MontoPorMetodoDeVentas(ventas),
		Ventas:           ventas,
	}, nil
}

// GetDashboardReport aggregates the last 7 business days. Day boundaries
// follow the configured business timezone, not UTC truncation.
func (s *Service) GetDashboardReport(ctx context.Context) (domain.ReporteDashboard, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Rol != domain.RolAdmin && actor.Rol != domain.RolSupervisor) {
		return domain.ReporteDashboard{}, fmt.Errorf("%w: se requiere rol supervisor", ErrPermisoDenegado)
	}

	now := time.Now().In(s.tz)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.tz)
	weekStart := todayStart.AddDate(0, 0, -6)

	ventas, err := s.repo.ListVentasBetween(ctx, weekStart.UTC(), now.UTC().Add(time.Second))
	if err != nil {
		return domain.ReporteDashboard{}, err
	}

	report := domain.ReporteDashboard{
		VentasHoyBs:    decimal.Zero,
		VentasSemanaBs: decimal.Zero,
	}

	porDia := make(map[string]decimal.Decimal, 7)
	for _, v := range ventas {
		local := v.Fecha.In(s.tz)
		dia := local.Format("2006-01-02")
		prev, ok := porDia[dia]
		if !ok {
			prev = decimal.Zero
		}
		porDia[dia] = prev.Add(v.TotalBs)

		report.VentasSemanaBs = report.VentasSemanaBs.Add(v.TotalBs)
		if !local.Before(todayStart) {
			report.VentasHoyBs = report.VentasHoyBs.Add(v.TotalBs)
			report.TransaccionesHoy++
		}
	}

	report.VentasDiarias = make([]domain.VentaDiaria, 0, 7)
	for d := weekStart; !d.After(todayStart); d = d.AddDate(0, 0, 1) {
		dia := d.Format("2006-01-02")
		total, ok := porDia[dia]
		if !ok {
			total = decimal.Zero
		}
		report.VentasDiarias = append(report.VentasDiarias, domain.VentaDiaria{Fecha: dia, TotalBs: total})
	}

	productos, err := s.repo.ListProductos(ctx)
	if err != nil {
		return domain.ReporteDashboard{}, err
	}
	report.ProductosActivos = len(productos)

	bajos, err := s.repo.CountProductosBajos(ctx, s.lowStockUmbral)
	if err != nil {
		return domain.ReporteDashboard{}, err
	}
	report.ProductosBajos = bajos

	return report, nil
}

func (s *Service) CreateUser(ctx context.Context, user domain.UserAccount) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Rol != domain.RolAdmin {
		return fmt.Errorf("%w: se requiere rol admin", ErrPermisoDenegado)
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return err
	}
	s.logAudit(ctx, "user_create", "user", user.UID, fmt.Sprintf("email=%s,rol=%s", user.Email, user.Rol))
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Rol != domain.RolAdmin {
		return nil, fmt.Errorf("%w: se requiere rol admin", ErrPermisoDenegado)
	}
	return s.repo.ListUsers(ctx)
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Rol != domain.RolAdmin {
		return nil, fmt.Errorf("%w: se requiere rol admin", ErrPermisoDenegado)
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Minute)
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// CurrentRate exposes the rate the next venta would be stamped with.
func (s *Service) CurrentRate(ctx context.Context) (decimal.Decimal, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return decimal.Zero, ErrPermisoDenegado
	}
	return s.rates.Current(), nil
}

// normalizeMetodos validates and dedupes payment methods, preserving the
// order of first appearance. The split-by-method attribution at close
// depends on the deduped count.
func normalizeMetodos(metodos []domain.MetodoPago) ([]domain.MetodoPago, error) {
	if len(metodos) == 0 {
		return nil, store.ErrInvalidVenta
	}

	seen := make(map[domain.MetodoPago]struct{}, len(metodos))
	normalized := make([]domain.MetodoPago, 0, len(metodos))
	for _, m := range metodos {
		if !m.Valid() {
			return nil, fmt.Errorf("%w: metodo de pago desconocido %q", store.ErrInvalidVenta, string(m))
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		normalized = append(normalized, m)
	}
	return normalized, nil
}

func (s *Service) logAudit(ctx context.Context, accion string, entidadTipo string, entidadID string, detalle string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{UID: "system", Nombre: "system", Rol: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUID:    actor.UID,
		ActorNombre: actor.Nombre,
		Accion:      accion,
		EntidadTipo: entidadTipo,
		EntidadID:   entidadID,
		Detalle:     detalle,
		Fecha:       time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log accion=%s entidad=%s/%s: %v", accion, entidadTipo, entidadID, err)
	}
}
