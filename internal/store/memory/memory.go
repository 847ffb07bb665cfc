package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/DiegoBT27/VenPos/internal/domain"
	"github.com/DiegoBT27/VenPos/internal/money"
	"github.com/DiegoBT27/VenPos/internal/store"
	"github.com/DiegoBT27/VenPos/internal/xid"
)

// Store is an in-memory Repository used by unit tests and dev mode. All
// multi-record operations run under the single write lock, which gives the
// same all-or-nothing visibility the postgres store gets from serializable
// transactions.
type Store struct {
	mu             sync.RWMutex
	productos      map[string]domain.Producto
	nextCodigo     int
	ventasByID     map[string]domain.Venta
	facturas       map[string]struct{}
	turnosByID     map[string]domain.Turno
	openTurnoByUID map[string]string
	auditLogs      []domain.AuditLog
	usersByEmail   map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		productos:      make(map[string]domain.Producto),
		nextCodigo:     1,
		ventasByID:     make(map[string]domain.Venta),
		facturas:       make(map[string]struct{}),
		turnosByID:     make(map[string]domain.Turno),
		openTurnoByUID: make(map[string]string),
		auditLogs:      make([]domain.AuditLog, 0, 128),
		usersByEmail:   seedUsers(),
	}
}

// NewSeeded returns a store preloaded with a small Venezuelan bodega
// catalog, enough to exercise every unit type.
func NewSeeded() *Store {
	s := New()

	seed := []struct {
		nombre string
		precio string
		unidad domain.UnidadMedida
		stock  string
		barras string
	}{
		{"Harina de Maíz 1kg", "42.50", domain.UnidadPaquete, "80", "7591001000011"},
		{"Arroz Blanco 1kg", "55.00", domain.UnidadPaquete, "64", "7591001000028"},
		{"Queso Blanco Duro", "310.00", domain.UnidadKg, "12.500", ""},
		{"Jamón de Pierna", "415.75", domain.UnidadKg, "6.250", ""},
		{"Café Molido 250g", "98.90", domain.UnidadPaquete, "30", "7591001000042"},
		{"Azúcar Refinada 1kg", "48.00", domain.UnidadPaquete, "55", "7591001000059"},
		{"Aceite Vegetal", "160.00", domain.UnidadLitro, "24", "7591001000066"},
		{"Pan Canilla", "25.00", domain.UnidadUnidad, "40", ""},
		{"Refresco 2L", "89.50", domain.UnidadUnidad, "36", "7591001000080"},
		{"Cartón de Huevos", "175.00", domain.UnidadPaquete, "20", "7591001000097"},
	}

	for _, p := range seed {
		precio, _ := decimal.NewFromString(p.precio)
		stock, _ := decimal.NewFromString(p.stock)
		_, err := s.CreateProducto(context.Background(), domain.Producto{
			Nombre:       p.nombre,
			CodigoBarras: p.barras,
			PrecioBs:     precio,
			Unidad:       p.unidad,
			Stock:        stock,
		})
		if err != nil {
			log.Fatalf("[memory-store] failed to seed producto %q: %v", p.nombre, err)
		}
	}

	return s
}

// seedUsers builds the initial accounts for dev/demo mode. Passwords come
// from SEED_*_PASSWORD environment variables, with warned-about defaults.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cajeroPwd := envOr("SEED_CAJERO_PASSWORD", "cajero123")
	supervisorPwd := envOr("SEED_SUPERVISOR_PASSWORD", "supervisor123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CAJERO_PASSWORD") == "" || os.Getenv("SEED_SUPERVISOR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD, SEED_CAJERO_PASSWORD and SEED_SUPERVISOR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		email    string
		nombre   string
		password string
		rol      string
	}{
		{"admin@venpos.local", "Administrador", adminPwd, domain.RolAdmin},
		{"cajero@venpos.local", "Cajero Principal", cajeroPwd, domain.RolCajero},
		{"supervisor@venpos.local", "Supervisora de Caja", supervisorPwd, domain.RolSupervisor},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.email, err)
		}
		users[u.email] = domain.UserAccount{
			UID:           xid.New("user"),
			Email:         u.email,
			Nombre:        u.nombre,
			Password:      string(hash),
			Rol:           u.rol,
			Activo:        true,
			FechaRegistro: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) ListProductos(_ context.Context) ([]domain.Producto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	productos := make([]domain.Producto, 0, len(s.productos))
	for _, p := range s.productos {
		productos = append(productos, p)
	}
	slices.SortFunc(productos, func(a, b domain.Producto) int {
		return strings.Compare(a.Nombre, b.Nombre)
	})
	return productos, nil
}

func (s *Store) CreateProducto(_ context.Context, producto domain.Producto) (*domain.Producto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	producto.Nombre = strings.TrimSpace(producto.Nombre)
	if producto.Nombre == "" || !producto.Unidad.Valid() {
		return nil, store.ErrInvalidProducto
	}
	if producto.PrecioBs.Sign() <= 0 || producto.Stock.Sign() < 0 {
		return nil, store.ErrInvalidProducto
	}

	if producto.ID == "" {
		producto.ID = xid.New("prod")
	}
	producto.Codigo = strconv.Itoa(s.nextCodigo)
	s.nextCodigo++
	producto.Stock = money.RoundQty(producto.Stock)

	s.productos[producto.ID] = producto
	created := producto
	return &created, nil
}

func (s *Store) UpdateProducto(_ context.Context, producto domain.Producto) (*domain.Producto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.productos[producto.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(producto.Nombre) == "" || producto.PrecioBs.Sign() <= 0 || producto.Stock.Sign() < 0 {
		return nil, store.ErrInvalidProducto
	}

	// Codigo is assigned once at creation and never reassigned.
	producto.Codigo = existing.Codigo
	s.productos[producto.ID] = producto
	updated := producto
	return &updated, nil
}

func (s *Store) GetProductoByID(_ context.Context, id string) (*domain.Producto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	producto, ok := s.productos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copia := producto
	return &copia, nil
}

func (s *Store) SearchProductos(_ context.Context, query string, limit int) ([]domain.Producto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []domain.Producto{}, nil
	}

	matches := make([]domain.Producto, 0, 16)
	for _, p := range s.productos {
		if p.Codigo == q || (p.CodigoBarras != "" && p.CodigoBarras == q) || strings.HasPrefix(strings.ToLower(p.Nombre), q) {
			matches = append(matches, p)
		}
	}
	slices.SortFunc(matches, func(a, b domain.Producto) int {
		return strings.Compare(a.Nombre, b.Nombre)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) CountProductosBajos(_ context.Context, umbral decimal.Decimal) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.productos {
		if p.Stock.Cmp(umbral) <= 0 {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListProductosBajos(_ context.Context, umbral decimal.Decimal, limit int) ([]domain.Producto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bajos := make([]domain.Producto, 0, 16)
	for _, p := range s.productos {
		if p.Stock.Cmp(umbral) <= 0 {
			bajos = append(bajos, p)
		}
	}
	slices.SortFunc(bajos, func(a, b domain.Producto) int {
		return a.Stock.Cmp(b.Stock)
	})
	if limit > 0 && len(bajos) > limit {
		bajos = bajos[:limit]
	}
	return bajos, nil
}

// CreateVenta checks and decrements stock and records the venta as one
// atomic step under the write lock. Nothing is mutated until every line
// has passed its stock check.
func (s *Store) CreateVenta(_ context.Context, draft store.VentaDraft) (*domain.Venta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(draft.Lineas) == 0 || len(draft.MetodosPago) == 0 || draft.TasaDolar.Sign() <= 0 {
		return nil, store.ErrInvalidVenta
	}
	if draft.DescuentoBs.Sign() < 0 {
		return nil, store.ErrInvalidVenta
	}

	// First pass: validate every line against the authoritative records.
	subtotalBs := decimal.Zero
	vendidos := make([]domain.ProductoVendido, 0, len(draft.Lineas))
	decremento := make(map[string]decimal.Decimal, len(draft.Lineas))
	for _, linea := range draft.Lineas {
		producto, ok := s.productos[linea.ProductoID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", store.ErrProductoNotFound, linea.ProductoID)
		}
		cantidad := money.RoundQty(linea.Cantidad)
		if cantidad.Sign() <= 0 {
			return nil, store.ErrInvalidVenta
		}
		if !producto.Unidad.Fraccionable() && !money.IsIntegral(cantidad) {
			return nil, store.ErrInvalidVenta
		}

		// Repeated lines for the same product draw from the same stock,
		// so the running decrement counts toward the check.
		comprometido := decremento[producto.ID]
		disponible := producto.Stock.Sub(comprometido)
		if disponible.Cmp(cantidad) < 0 {
			return nil, &store.InsufficientStockError{
				ProductoID: producto.ID,
				Nombre:     producto.Nombre,
				Disponible: disponible,
			}
		}
		decremento[producto.ID] = comprometido.Add(cantidad)

		lineaBs := producto.PrecioBs.Mul(cantidad)
		vendidos = append(vendidos, domain.ProductoVendido{
			ProductoID:  producto.ID,
			Codigo:      producto.Codigo,
			Nombre:      producto.Nombre,
			PrecioBs:    producto.PrecioBs,
			Unidad:      producto.Unidad,
			Cantidad:    cantidad,
			SubtotalBs:  lineaBs,
			SubtotalUsd: money.ToUSD(lineaBs, draft.TasaDolar),
		})
		subtotalBs = subtotalBs.Add(lineaBs)
	}

	if draft.DescuentoBs.Cmp(subtotalBs) > 0 {
		return nil, store.ErrInvalidVenta
	}
	totalBs := subtotalBs.Sub(draft.DescuentoBs)

	// Second pass: every check passed, apply the decrements.
	for id, cantidad := range decremento {
		producto := s.productos[id]
		producto.Stock = money.RoundQty(producto.Stock.Sub(cantidad))
		s.productos[id] = producto
	}

	fecha := draft.Fecha
	if fecha.IsZero() {
		fecha = time.Now().UTC()
	}

	venta := domain.Venta{
		ID:               xid.New("venta"),
		NumeroFactura:    s.claimFacturaLocked(draft.NumeroFactura),
		Fecha:            fecha,
		UsuarioUID:       draft.UsuarioUID,
		UsuarioNombre:    draft.UsuarioNombre,
		TurnoID:          draft.TurnoID,
		Productos:        vendidos,
		SubtotalBs:       subtotalBs,
		SubtotalUsd:      money.ToUSD(subtotalBs, draft.TasaDolar),
		DescuentoBs:      draft.DescuentoBs,
		TotalBs:          totalBs,
		TotalUsd:         money.ToUSD(totalBs, draft.TasaDolar),
		MetodosPago:      slices.Clone(draft.MetodosPago),
		TasaDolarMomento: draft.TasaDolar,
	}

	s.ventasByID[venta.ID] = venta
	created := venta
	return &created, nil
}

// claimFacturaLocked resolves invoice-number collisions from two ventas
// committed within the same second by appending a short ordinal suffix.
func (s *Store) claimFacturaLocked(base string) string {
	if base == "" {
		base = time.Now().UTC().Format("20060102150405")
	}
	numero := base
	for i := 2; ; i++ {
		if _, taken := s.facturas[numero]; !taken {
			break
		}
		numero = fmt.Sprintf("%s-%d", base, i)
	}
	s.facturas[numero] = struct{}{}
	return numero
}

func (s *Store) GetVentaByID(_ context.Context, id string) (*domain.Venta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	venta, ok := s.ventasByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copia := venta
	copia.Productos = slices.Clone(venta.Productos)
	copia.MetodosPago = slices.Clone(venta.MetodosPago)
	return &copia, nil
}

func (s *Store) ListVentasByTurno(_ context.Context, turnoID string) ([]domain.Venta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ventas := make([]domain.Venta, 0, 32)
	for _, v := range s.ventasByID {
		if v.TurnoID == turnoID {
			ventas = append(ventas, v)
		}
	}
	sortVentasDesc(ventas)
	return ventas, nil
}

func (s *Store) ListVentasBetween(_ context.Context, from time.Time, to time.Time) ([]domain.Venta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ventas := make([]domain.Venta, 0, 32)
	for _, v := range s.ventasByID {
		if !v.Fecha.Before(from) && v.Fecha.Before(to) {
			ventas = append(ventas, v)
		}
	}
	sortVentasDesc(ventas)
	return ventas, nil
}

func sortVentasDesc(ventas []domain.Venta) {
	slices.SortFunc(ventas, func(a, b domain.Venta) int {
		if a.Fecha.Equal(b.Fecha) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.Fecha.After(b.Fecha) {
			return -1
		}
		return 1
	})
}

// CreateTurno enforces the single-open-turno invariant through the
// openTurnoByUID slot, claimed under the same lock as the insert.
func (s *Store) CreateTurno(_ context.Context, turno domain.Turno) (*domain.Turno, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(turno.UsuarioUID) == "" {
		return nil, store.ErrInvalidTurno
	}
	if turno.FondoBs.Sign() < 0 || turno.FondoUsd.Sign() < 0 {
		return nil, store.ErrInvalidTurno
	}
	if _, open := s.openTurnoByUID[turno.UsuarioUID]; open {
		return nil, store.ErrTurnoAlreadyOpen
	}

	if turno.ID == "" {
		turno.ID = xid.New("turno")
	}
	if turno.FechaApertura.IsZero() {
		turno.FechaApertura = time.Now().UTC()
	}
	turno.Estado = domain.TurnoAbierto
	turno.FechaCierre = nil

	s.turnosByID[turno.ID] = turno
	s.openTurnoByUID[turno.UsuarioUID] = turno.ID
	created := turno
	return &created, nil
}

func (s *Store) GetTurnoByID(_ context.Context, id string) (*domain.Turno, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turno, ok := s.turnosByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copia := turno
	return &copia, nil
}

func (s *Store) GetActiveTurnoByUID(_ context.Context, usuarioUID string) (*domain.Turno, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turnoID, open := s.openTurnoByUID[usuarioUID]
	if !open {
		return nil, store.ErrNotFound
	}
	turno := s.turnosByID[turnoID]
	copia := turno
	return &copia, nil
}

// CloseTurno recomputes every total from the turno's persisted ventas and
// flips the estado, all under the write lock. Closed turnos are terminal.
func (s *Store) CloseTurno(_ context.Context, turnoID string, cierre store.CierreTurno) (*domain.Turno, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turno, ok := s.turnosByID[turnoID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if turno.Estado != domain.TurnoAbierto {
		return nil, store.ErrTurnoNotOpen
	}

	ventas := make([]domain.Venta, 0, 32)
	for _, v := range s.ventasByID {
		if v.TurnoID == turnoID {
			ventas = append(ventas, v)
		}
	}
	totales := domain.TotalesDeVentas(ventas)

	esperadoBs := turno.FondoBs.Add(totales.TotalEfectivoBs)
	esperadoUsd := turno.FondoUsd.Add(totales.TotalEfectivoUsd)

	fechaCierre := cierre.FechaCierre
	if fechaCierre.IsZero() {
		fechaCierre = time.Now().UTC()
	}

	turno.Estado = domain.TurnoCerrado
	turno.FechaCierre = &fechaCierre
	turno.TotalVentasBs = totales.TotalVentasBs
	turno.TotalEfectivoBs = totales.TotalEfectivoBs
	turno.TotalEfectivoUsd = totales.TotalEfectivoUsd
	turno.TotalTransferenciaBs = totales.TotalTransferenciaBs
	turno.TotalPagoMovilBs = totales.TotalPagoMovilBs
	turno.TotalZelleUsd = totales.TotalZelleUsd
	turno.EfectivoContadoBs = cierre.EfectivoContadoBs
	turno.EfectivoContadoUsd = cierre.EfectivoContadoUsd
	turno.DescuadreBs = cierre.EfectivoContadoBs.Sub(esperadoBs)
	turno.DescuadreUsd = cierre.EfectivoContadoUsd.Sub(esperadoUsd)
	turno.SupervisorUID = cierre.SupervisorUID
	turno.SupervisorNombre = cierre.SupervisorNombre

	s.turnosByID[turnoID] = turno
	delete(s.openTurnoByUID, turno.UsuarioUID)
	closed := turno
	return &closed, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.Fecha.IsZero() {
		entry.Fecha = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, 32)
	for _, entry := range s.auditLogs {
		if !entry.Fecha.Before(from) && entry.Fecha.Before(to) {
			logs = append(logs, entry)
		}
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		if a.Fecha.After(b.Fecha) {
			return -1
		}
		if a.Fecha.Before(b.Fecha) {
			return 1
		}
		return 0
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" {
		return store.ErrInvalidUser
	}
	if _, exists := s.usersByEmail[email]; exists {
		return fmt.Errorf("%w: email already registered", store.ErrInvalidUser)
	}
	if user.UID == "" {
		user.UID = xid.New("user")
	}
	user.Email = email
	s.usersByEmail[email] = user
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	copia := user
	return &copia, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByEmail))
	for _, u := range s.usersByEmail {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Email, b.Email)
	})
	return users, nil
}
