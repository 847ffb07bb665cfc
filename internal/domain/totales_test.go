package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func ventaBs(total string, tasa string, metodos ...MetodoPago) Venta {
	return Venta{
		TotalBs:          decimal.RequireFromString(total),
		TasaDolarMomento: decimal.RequireFromString(tasa),
		MetodosPago:      metodos,
	}
}

func TestTotalesDeVentasSingleMethod(t *testing.T) {
	totales := TotalesDeVentas([]Venta{
		ventaBs("100", "100", PagoEfectivoBs),
		ventaBs("50", "100", PagoTransferencia),
		ventaBs("200", "100", PagoEfectivoUsd),
	})

	if !totales.TotalVentasBs.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("expected total 350, got %s", totales.TotalVentasBs)
	}
	if !totales.TotalEfectivoBs.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected efectivo 100, got %s", totales.TotalEfectivoBs)
	}
	if !totales.TotalTransferenciaBs.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected transferencia 50, got %s", totales.TotalTransferenciaBs)
	}
	if !totales.TotalEfectivoUsd.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected efectivo usd 2, got %s", totales.TotalEfectivoUsd)
	}
}

func TestTotalesDeVentasSplitsEqually(t *testing.T) {
	totales := TotalesDeVentas([]Venta{
		ventaBs("100", "100", PagoEfectivoBs, PagoPagoMovil),
	})

	if !totales.TotalEfectivoBs.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected efectivo share 50, got %s", totales.TotalEfectivoBs)
	}
	if !totales.TotalPagoMovilBs.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected pago_movil share 50, got %s", totales.TotalPagoMovilBs)
	}
}

func TestTotalesDeVentasSplitSumsExactlyToTotal(t *testing.T) {
	// 100 / 3 does not divide evenly; the first method absorbs the
	// rounding remainder.
	totales := TotalesDeVentas([]Venta{
		ventaBs("100", "100", PagoEfectivoBs, PagoTransferencia, PagoPagoMovil),
	})

	if !totales.TotalEfectivoBs.Equal(decimal.RequireFromString("33.3334")) {
		t.Fatalf("expected efectivo share 33.3334, got %s", totales.TotalEfectivoBs)
	}
	if !totales.TotalTransferenciaBs.Equal(decimal.RequireFromString("33.3333")) {
		t.Fatalf("expected transferencia share 33.3333, got %s", totales.TotalTransferenciaBs)
	}
	if !totales.TotalPagoMovilBs.Equal(decimal.RequireFromString("33.3333")) {
		t.Fatalf("expected pago_movil share 33.3333, got %s", totales.TotalPagoMovilBs)
	}

	suma := totales.TotalEfectivoBs.Add(totales.TotalTransferenciaBs).Add(totales.TotalPagoMovilBs)
	if !suma.Equal(totales.TotalVentasBs) {
		t.Fatalf("per-method shares must sum to the total: %s vs %s", suma, totales.TotalVentasBs)
	}
}

func TestTotalesDeVentasConvertsAtEachVentasOwnRate(t *testing.T) {
	totales := TotalesDeVentas([]Venta{
		ventaBs("100", "100", PagoZelle),
		ventaBs("100", "200", PagoZelle),
	})

	// 1 USD at rate 100 plus 0.5 USD at rate 200.
	if !totales.TotalZelleUsd.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("expected zelle 1.5 USD, got %s", totales.TotalZelleUsd)
	}
}

func TestMontoPorMetodoDeVentas(t *testing.T) {
	montos := MontoPorMetodoDeVentas([]Venta{
		ventaBs("90", "100", PagoPagoMovil),
		ventaBs("100", "100", PagoEfectivoBs, PagoZelle),
	})

	if !montos[PagoPagoMovil].Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected pago_movil 90, got %s", montos[PagoPagoMovil])
	}
	if !montos[PagoEfectivoBs].Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected efectivo 50, got %s", montos[PagoEfectivoBs])
	}
	if !montos[PagoZelle].Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("expected zelle 0.5 USD, got %s", montos[PagoZelle])
	}
}

func TestFraccionable(t *testing.T) {
	if !UnidadKg.Fraccionable() || !UnidadLitro.Fraccionable() {
		t.Fatalf("kg and litro must admit fractions")
	}
	if UnidadUnidad.Fraccionable() || UnidadPaquete.Fraccionable() {
		t.Fatalf("unidad and paquete must not admit fractions")
	}
}

func TestMetodoPagoClassification(t *testing.T) {
	if !PagoEfectivoBs.EsEfectivo() || !PagoEfectivoUsd.EsEfectivo() {
		t.Fatalf("cash methods must count toward the drawer")
	}
	if PagoZelle.EsEfectivo() || PagoTransferencia.EsEfectivo() || PagoPagoMovil.EsEfectivo() {
		t.Fatalf("electronic methods must not count toward the drawer")
	}
	if !PagoEfectivoUsd.EnDolares() || !PagoZelle.EnDolares() {
		t.Fatalf("usd methods misclassified")
	}
	if MetodoPago("tarjeta").Valid() {
		t.Fatalf("unknown method must be invalid")
	}
}
