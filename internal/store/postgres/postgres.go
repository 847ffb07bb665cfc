package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/DiegoBT27/VenPos/internal/domain"
	"github.com/DiegoBT27/VenPos/internal/money"
	"github.com/DiegoBT27/VenPos/internal/store"
	"github.com/DiegoBT27/VenPos/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProductos(ctx context.Context) ([]domain.Producto, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, codigo, COALESCE(codigo_barras,''), nombre, COALESCE(descripcion,''), precio_bs, unidad, stock
		FROM productos
		ORDER BY nombre ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	productos := make([]domain.Producto, 0, 128)
	for rows.Next() {
		p, err := scanProducto(rows)
		if err != nil {
			return nil, err
		}
		productos = append(productos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return productos, nil
}

func (s *Store) CreateProducto(ctx context.Context, producto domain.Producto) (*domain.Producto, error) {
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
	producto.Stock = money.RoundQty(producto.Stock)

	// codigo is an identity column; the short numeric code the cashier
	// types comes back from the insert.
	var codigo int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO productos (id, codigo_barras, nombre, descripcion, precio_bs, unidad, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		RETURNING codigo
	`, producto.ID, nullIfEmpty(producto.CodigoBarras), producto.Nombre, producto.Descripcion, producto.PrecioBs, string(producto.Unidad), producto.Stock).Scan(&codigo)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidProducto
		}
		return nil, err
	}
	producto.Codigo = strconv.Itoa(codigo)

	created := producto
	return &created, nil
}

func (s *Store) UpdateProducto(ctx context.Context, producto domain.Producto) (*domain.Producto, error) {
	if strings.TrimSpace(producto.Nombre) == "" || producto.PrecioBs.Sign() <= 0 || producto.Stock.Sign() < 0 {
		return nil, store.ErrInvalidProducto
	}

	var codigo int
	err := s.db.QueryRowContext(ctx, `
		UPDATE productos
		SET nombre = $2, descripcion = $3, codigo_barras = $4, precio_bs = $5, stock = $6, updated_at = now()
		WHERE id = $1
		RETURNING codigo
	`, producto.ID, producto.Nombre, producto.Descripcion, nullIfEmpty(producto.CodigoBarras), producto.PrecioBs, money.RoundQty(producto.Stock)).Scan(&codigo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	producto.Codigo = strconv.Itoa(codigo)

	updated := producto
	return &updated, nil
}

func (s *Store) GetProductoByID(ctx context.Context, id string) (*domain.Producto, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, codigo, COALESCE(codigo_barras,''), nombre, COALESCE(descripcion,''), precio_bs, unidad, stock
		FROM productos
		WHERE id = $1
	`, id)
	p, err := scanProducto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) SearchProductos(ctx context.Context, query string, limit int) ([]domain.Producto, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []domain.Producto{}, nil
	}
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, codigo, COALESCE(codigo_barras,''), nombre, COALESCE(descripcion,''), precio_bs, unidad, stock
		FROM productos
		WHERE codigo::text = $1
			OR codigo_barras = $1
			OR lower(nombre) LIKE lower($1) || '%'
		ORDER BY nombre ASC
		LIMIT $2
	`, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	productos := make([]domain.Producto, 0, limit)
	for rows.Next() {
		p, err := scanProducto(rows)
		if err != nil {
			return nil, err
		}
		productos = append(productos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return productos, nil
}

func (s *Store) CountProductosBajos(ctx context.Context, umbral decimal.Decimal) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::int FROM productos WHERE stock <= $1
	`, umbral).Scan(&count)
	return count, err
}

func (s *Store) ListProductosBajos(ctx context.Context, umbral decimal.Decimal, limit int) ([]domain.Producto, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, codigo, COALESCE(codigo_barras,''), nombre, COALESCE(descripcion,''), precio_bs, unidad, stock
		FROM productos
		WHERE stock <= $1
		ORDER BY stock ASC, nombre ASC
		LIMIT $2
	`, umbral, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	productos := make([]domain.Producto, 0, limit)
	for rows.Next() {
		p, err := scanProducto(rows)
		if err != nil {
			return nil, err
		}
		productos = append(productos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return productos, nil
}

// CreateVenta commits a sale atomically: stock rows are locked, every line
// is checked against locked stock, decrements and the venta insert land in
// one serializable transaction. Any failed check rolls everything back.
func (s *Store) CreateVenta(ctx context.Context, draft store.VentaDraft) (*domain.Venta, error) {
	if len(draft.Lineas) == 0 || len(draft.MetodosPago) == 0 || draft.TasaDolar.Sign() <= 0 {
		return nil, store.ErrInvalidVenta
	}
	if draft.DescuentoBs.Sign() < 0 {
		return nil, store.ErrInvalidVenta
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	ids := uniqueProductoIDs(draft.Lineas)
	if len(ids) == 0 {
		return nil, store.ErrInvalidVenta
	}

	productRows, err := pgTx.QueryContext(ctx, `
		SELECT id, codigo, COALESCE(codigo_barras,''), nombre, COALESCE(descripcion,''), precio_bs, unidad, stock
		FROM productos
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	productMap := make(map[string]domain.Producto, len(ids))
	for productRows.Next() {
		p, err := scanProducto(productRows)
		if err != nil {
			_ = productRows.Close()
			return nil, err
		}
		productMap[p.ID] = p
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	subtotalBs := decimal.Zero
	vendidos := make([]domain.ProductoVendido, 0, len(draft.Lineas))
	decremento := make(map[string]decimal.Decimal, len(ids))
	for _, linea := range draft.Lineas {
		producto, ok := productMap[linea.ProductoID]
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

		// Repeated lines for the same product draw from the same locked
		// stock, so the running decrement counts toward the check.
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

	for id, cantidad := range decremento {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE productos
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2
		`, cantidad, id)
		if err != nil {
			return nil, err
		}
	}

	numeroFactura, err := claimFactura(ctx, pgTx, draft.NumeroFactura)
	if err != nil {
		return nil, err
	}

	fecha := draft.Fecha
	if fecha.IsZero() {
		fecha = time.Now().UTC()
	}

	venta := domain.Venta{
		ID:               xid.New("venta"),
		NumeroFactura:    numeroFactura,
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
		MetodosPago:      draft.MetodosPago,
		TasaDolarMomento: draft.TasaDolar,
	}

	productosJSON, err := json.Marshal(venta.Productos)
	if err != nil {
		return nil, err
	}
	metodosJSON, err := json.Marshal(venta.MetodosPago)
	if err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO ventas (
			id, numero_factura, fecha, usuario_uid, usuario_nombre, turno_id,
			productos, subtotal_bs, subtotal_usd, descuento_bs, total_bs, total_usd,
			metodo_pago, tasa_dolar_momento
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, venta.ID, venta.NumeroFactura, venta.Fecha, venta.UsuarioUID, venta.UsuarioNombre, venta.TurnoID,
		productosJSON, venta.SubtotalBs, venta.SubtotalUsd, venta.DescuentoBs, venta.TotalBs, venta.TotalUsd,
		metodosJSON, venta.TasaDolarMomento)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &venta, nil
}

// claimFactura resolves same-second invoice collisions inside the commit
// transaction: the base number and its suffixed variants are read under
// the serializable isolation, and the first free one is claimed.
func claimFactura(ctx context.Context, pgTx *sql.Tx, base string) (string, error) {
	if base == "" {
		base = time.Now().UTC().Format("20060102150405")
	}

	rows, err := pgTx.QueryContext(ctx, `
		SELECT numero_factura
		FROM ventas
		WHERE numero_factura = $1 OR numero_factura LIKE $1 || '-%'
	`, base)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	taken := make(map[string]struct{}, 4)
	for rows.Next() {
		var numero string
		if err := rows.Scan(&numero); err != nil {
			return "", err
		}
		taken[numero] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	numero := base
	for i := 2; ; i++ {
		if _, used := taken[numero]; !used {
			return numero, nil
		}
		numero = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *Store) GetVentaByID(ctx context.Context, id string) (*domain.Venta, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, numero_factura, fecha, usuario_uid, usuario_nombre, turno_id,
			productos, subtotal_bs, subtotal_usd, descuento_bs, total_bs, total_usd,
			metodo_pago, tasa_dolar_momento
		FROM ventas
		WHERE id = $1
	`, id)
	venta, err := scanVenta(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return venta, nil
}

func (s *Store) ListVentasByTurno(ctx context.Context, turnoID string) ([]domain.Venta, error) {
	return s.listVentas(ctx, `
		SELECT id, numero_factura, fecha, usuario_uid, usuario_nombre, turno_id,
			productos, subtotal_bs, subtotal_usd, descuento_bs, total_bs, total_usd,
			metodo_pago, tasa_dolar_momento
		FROM ventas
		WHERE turno_id = $1
		ORDER BY fecha DESC
	`, turnoID)
}

func (s *Store) ListVentasBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Venta, error) {
	return s.listVentas(ctx, `
		SELECT id, numero_factura, fecha, usuario_uid, usuario_nombre, turno_id,
			productos, subtotal_bs, subtotal_usd, descuento_bs, total_bs, total_usd,
			metodo_pago, tasa_dolar_momento
		FROM ventas
		WHERE fecha >= $1 AND fecha < $2
		ORDER BY fecha DESC
	`, from, to)
}

func (s *Store) listVentas(ctx context.Context, query string, args ...any) ([]domain.Venta, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ventas := make([]domain.Venta, 0, 64)
	for rows.Next() {
		venta, err := scanVenta(rows)
		if err != nil {
			return nil, err
		}
		ventas = append(ventas, *venta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ventas, nil
}

// CreateTurno relies on the partial unique index over open turnos per
// cashier; a violation maps to ErrTurnoAlreadyOpen so concurrent opens
// cannot race past each other.
func (s *Store) CreateTurno(ctx context.Context, turno domain.Turno) (*domain.Turno, error) {
	if strings.TrimSpace(turno.UsuarioUID) == "" {
		return nil, store.ErrInvalidTurno
	}
	if turno.FondoBs.Sign() < 0 || turno.FondoUsd.Sign() < 0 {
		return nil, store.ErrInvalidTurno
	}
	if turno.ID == "" {
		turno.ID = xid.New("turno")
	}
	if turno.FechaApertura.IsZero() {
		turno.FechaApertura = time.Now().UTC()
	}
	turno.Estado = domain.TurnoAbierto
	turno.FechaCierre = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turnos (id, usuario_uid, usuario_nombre, fecha_apertura, fondo_bs, fondo_usd, estado)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, turno.ID, turno.UsuarioUID, turno.UsuarioNombre, turno.FechaApertura, turno.FondoBs, turno.FondoUsd, turno.Estado)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrTurnoAlreadyOpen
		}
		return nil, err
	}
	created := turno
	return &created, nil
}

func (s *Store) GetTurnoByID(ctx context.Context, id string) (*domain.Turno, error) {
	row := s.db.QueryRowContext(ctx, turnoSelect+` WHERE id = $1`, id)
	turno, err := scanTurno(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return turno, nil
}

func (s *Store) GetActiveTurnoByUID(ctx context.Context, usuarioUID string) (*domain.Turno, error) {
	row := s.db.QueryRowContext(ctx, turnoSelect+`
		WHERE usuario_uid = $1 AND estado = 'abierto'
		ORDER BY fecha_apertura DESC
		LIMIT 1
	`, usuarioUID)
	turno, err := scanTurno(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return turno, nil
}

// CloseTurno recomputes every total from the turno's persisted ventas
// inside one serializable transaction. Client-sent totals never reach
// this path; only the counted cash does.
func (s *Store) CloseTurno(ctx context.Context, turnoID string, cierre store.CierreTurno) (*domain.Turno, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	row := pgTx.QueryRowContext(ctx, turnoSelect+` WHERE id = $1 FOR UPDATE`, turnoID)
	turno, err := scanTurno(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if turno.Estado != domain.TurnoAbierto {
		return nil, store.ErrTurnoNotOpen
	}

	ventaRows, err := pgTx.QueryContext(ctx, `
		SELECT id, numero_factura, fecha, usuario_uid, usuario_nombre, turno_id,
			productos, subtotal_bs, subtotal_usd, descuento_bs, total_bs, total_usd,
			metodo_pago, tasa_dolar_momento
		FROM ventas
		WHERE turno_id = $1
	`, turnoID)
	if err != nil {
		return nil, err
	}
	ventas := make([]domain.Venta, 0, 64)
	for ventaRows.Next() {
		venta, err := scanVenta(ventaRows)
		if err != nil {
			_ = ventaRows.Close()
			return nil, err
		}
		ventas = append(ventas, *venta)
	}
	if err := ventaRows.Err(); err != nil {
		_ = ventaRows.Close()
		return nil, err
	}
	_ = ventaRows.Close()

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

	_, err = pgTx.ExecContext(ctx, `
		UPDATE turnos
		SET estado = 'cerrado', fecha_cierre = $2,
			total_ventas_bs = $3, total_efectivo_bs = $4, total_efectivo_usd = $5,
			total_transferencia_bs = $6, total_pago_movil_bs = $7, total_zelle_usd = $8,
			efectivo_contado_bs = $9, efectivo_contado_usd = $10,
			descuadre_bs = $11, descuadre_usd = $12,
			supervisor_uid = $13, supervisor_nombre = $14
		WHERE id = $1 AND estado = 'abierto'
	`, turno.ID, fechaCierre,
		turno.TotalVentasBs, turno.TotalEfectivoBs, turno.TotalEfectivoUsd,
		turno.TotalTransferenciaBs, turno.TotalPagoMovilBs, turno.TotalZelleUsd,
		turno.EfectivoContadoBs, turno.EfectivoContadoUsd,
		turno.DescuadreBs, turno.DescuadreUsd,
		nullIfEmpty(turno.SupervisorUID), nullIfEmpty(turno.SupervisorNombre))
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return turno, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.Fecha.IsZero() {
		entry.Fecha = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_uid, actor_nombre, accion, entidad_tipo, entidad_id, detalle, fecha)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUID, entry.ActorNombre, entry.Accion, entry.EntidadTipo, entry.EntidadID, entry.Detalle, entry.Fecha)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_uid, actor_nombre, accion, entidad_tipo, entidad_id, detalle, fecha
		FROM audit_logs
		WHERE fecha >= $1 AND fecha < $2
		ORDER BY fecha DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUID, &entry.ActorNombre, &entry.Accion, &entry.EntidadTipo, &entry.EntidadID, &entry.Detalle, &entry.Fecha); err != nil {
			return nil, err
		}
		entry.Fecha = entry.Fecha.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidUser
	}
	if user.UID == "" {
		user.UID = xid.New("user")
	}
	if user.Rol == "" {
		user.Rol = domain.RolCajero
	}
	if user.FechaRegistro.IsZero() {
		user.FechaRegistro = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (uid, email, nombre, password, rol, activo, fecha_registro, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, user.UID, user.Email, user.Nombre, user.Password, user.Rol, user.Activo, user.FechaRegistro)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", store.ErrInvalidUser)
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT uid, email, nombre, password, rol, activo, fecha_registro
		FROM app_users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(
		&user.UID, &user.Email, &user.Nombre, &user.Password, &user.Rol, &user.Activo, &user.FechaRegistro,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.FechaRegistro = user.FechaRegistro.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, email, nombre, password, rol, activo, fecha_registro
		FROM app_users
		ORDER BY email ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.UID, &user.Email, &user.Nombre, &user.Password, &user.Rol, &user.Activo, &user.FechaRegistro); err != nil {
			return nil, err
		}
		user.FechaRegistro = user.FechaRegistro.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

const turnoSelect = `
	SELECT id, usuario_uid, usuario_nombre, fecha_apertura, fecha_cierre,
		fondo_bs, fondo_usd, estado,
		total_ventas_bs, total_efectivo_bs, total_efectivo_usd,
		total_transferencia_bs, total_pago_movil_bs, total_zelle_usd,
		efectivo_contado_bs, efectivo_contado_usd, descuadre_bs, descuadre_usd,
		COALESCE(supervisor_uid,''), COALESCE(supervisor_nombre,'')
	FROM turnos
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProducto(row rowScanner) (domain.Producto, error) {
	var p domain.Producto
	var codigo int
	var unidad string
	if err := row.Scan(&p.ID, &codigo, &p.CodigoBarras, &p.Nombre, &p.Descripcion, &p.PrecioBs, &unidad, &p.Stock); err != nil {
		return p, err
	}
	p.Codigo = strconv.Itoa(codigo)
	p.Unidad = domain.UnidadMedida(unidad)
	return p, nil
}

func scanVenta(row rowScanner) (*domain.Venta, error) {
	var venta domain.Venta
	var productosJSON []byte
	var metodosJSON []byte
	err := row.Scan(
		&venta.ID,
		&venta.NumeroFactura,
		&venta.Fecha,
		&venta.UsuarioUID,
		&venta.UsuarioNombre,
		&venta.TurnoID,
		&productosJSON,
		&venta.SubtotalBs,
		&venta.SubtotalUsd,
		&venta.DescuentoBs,
		&venta.TotalBs,
		&venta.TotalUsd,
		&metodosJSON,
		&venta.TasaDolarMomento,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(productosJSON, &venta.Productos); err != nil {
		return nil, fmt.Errorf("decode venta productos: %w", err)
	}
	if err := json.Unmarshal(metodosJSON, &venta.MetodosPago); err != nil {
		return nil, fmt.Errorf("decode venta metodo_pago: %w", err)
	}
	venta.Fecha = venta.Fecha.UTC()
	return &venta, nil
}

func scanTurno(row rowScanner) (*domain.Turno, error) {
	var turno domain.Turno
	var fechaCierre sql.NullTime
	err := row.Scan(
		&turno.ID,
		&turno.UsuarioUID,
		&turno.UsuarioNombre,
		&turno.FechaApertura,
		&fechaCierre,
		&turno.FondoBs,
		&turno.FondoUsd,
		&turno.Estado,
		&turno.TotalVentasBs,
		&turno.TotalEfectivoBs,
		&turno.TotalEfectivoUsd,
		&turno.TotalTransferenciaBs,
		&turno.TotalPagoMovilBs,
		&turno.TotalZelleUsd,
		&turno.EfectivoContadoBs,
		&turno.EfectivoContadoUsd,
		&turno.DescuadreBs,
		&turno.DescuadreUsd,
		&turno.SupervisorUID,
		&turno.SupervisorNombre,
	)
	if err != nil {
		return nil, err
	}
	turno.FechaApertura = turno.FechaApertura.UTC()
	if fechaCierre.Valid {
		at := fechaCierre.Time.UTC()
		turno.FechaCierre = &at
	}
	return &turno, nil
}

func uniqueProductoIDs(lineas []domain.LineaCarrito) []string {
	if len(lineas) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(lineas))
	for _, linea := range lineas {
		if linea.ProductoID == "" {
			continue
		}
		set[linea.ProductoID] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
