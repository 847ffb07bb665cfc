package domain

import (
	"github.com/shopspring/decimal"

	"github.com/DiegoBT27/VenPos/internal/money"
)

// repartirPorMetodo splits a venta's total equally across its payment
// methods. A mixed payment does not record per-method amounts, so the
// equal split is the best attribution available for the arqueo. The
// first method absorbs the rounding remainder so the shares always sum
// exactly to the total.
func repartirPorMetodo(v Venta, apply func(m MetodoPago, bs decimal.Decimal)) {
	n := len(v.MetodosPago)
	if n == 0 {
		return
	}
	if n == 1 {
		apply(v.MetodosPago[0], v.TotalBs)
		return
	}

	share := v.TotalBs.DivRound(decimal.NewFromInt(int64(n)), 4)
	primera := v.TotalBs.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
	for i, m := range v.MetodosPago {
		if i == 0 {
			apply(m, primera)
			continue
		}
		apply(m, share)
	}
}

// TotalesDeVentas recomputes the per-method totals of a turno from its
// persisted ventas. USD-denominated methods accumulate in dollars using
// each venta's own exchange rate at sale time.
func TotalesDeVentas(ventas []Venta) TotalesTurno {
	var t TotalesTurno
	t.TotalVentasBs = decimal.Zero
	t.TotalEfectivoBs = decimal.Zero
	t.TotalEfectivoUsd = decimal.Zero
	t.TotalTransferenciaBs = decimal.Zero
	t.TotalPagoMovilBs = decimal.Zero
	t.TotalZelleUsd = decimal.Zero

	for _, v := range ventas {
		t.TotalVentasBs = t.TotalVentasBs.Add(v.TotalBs)
		repartirPorMetodo(v, func(m MetodoPago, bs decimal.Decimal) {
			switch m {
			case PagoEfectivoBs:
				t.TotalEfectivoBs = t.TotalEfectivoBs.Add(bs)
			case PagoEfectivoUsd:
				t.TotalEfectivoUsd = t.TotalEfectivoUsd.Add(money.ToUSD(bs, v.TasaDolarMomento))
			case PagoTransferencia:
				t.TotalTransferenciaBs = t.TotalTransferenciaBs.Add(bs)
			case PagoPagoMovil:
				t.TotalPagoMovilBs = t.TotalPagoMovilBs.Add(bs)
			case PagoZelle:
				t.TotalZelleUsd = t.TotalZelleUsd.Add(money.ToUSD(bs, v.TasaDolarMomento))
			}
		})
	}
	return t
}

// MontoPorMetodoDeVentas builds the per-method breakdown for reports,
// with USD methods expressed in dollars.
func MontoPorMetodoDeVentas(ventas []Venta) map[MetodoPago]decimal.Decimal {
	result := make(map[MetodoPago]decimal.Decimal, len(TodosMetodosPago))
	for _, v := range ventas {
		repartirPorMetodo(v, func(m MetodoPago, bs decimal.Decimal) {
			monto := bs
			if m.EnDolares() {
				monto = money.ToUSD(bs, v.TasaDolarMomento)
			}
			prev, ok := result[m]
			if !ok {
				prev = decimal.Zero
			}
			result[m] = prev.Add(monto)
		})
	}
	return result
}
