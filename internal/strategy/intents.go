package strategy

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// qtyEpsilon absorbs float accumulation error in quantity comparisons.
const qtyEpsilon = 1e-9

func placeIntent(symbol string, side domain.OrderSide, typ domain.OrderType, price domain.PriceTicks, qty float64, reduceOnly bool, reason string, now time.Time) domain.OrderIntent {
	return domain.OrderIntent{
		ID:         uuid.New().String(),
		Kind:       domain.IntentPlace,
		Symbol:     symbol,
		Side:       side,
		Type:       typ,
		PriceTicks: price,
		Qty:        qty,
		ReduceOnly: reduceOnly,
		Reason:     reason,
		CreatedAt:  now,
	}
}

func cancelIntent(symbol, orderID, reason string, now time.Time) domain.OrderIntent {
	return domain.OrderIntent{
		ID:        uuid.New().String(),
		Kind:      domain.IntentCancel,
		Symbol:    symbol,
		OrderID:   orderID,
		Reason:    reason,
		CreatedAt: now,
	}
}

func cancelAllIntent(symbol, reason string, now time.Time) domain.OrderIntent {
	return domain.OrderIntent{
		ID:        uuid.New().String(),
		Kind:      domain.IntentCancelAll,
		Symbol:    symbol,
		Reason:    reason,
		CreatedAt: now,
	}
}

// safetyValve returns a reduce-only market intent trimming the position back
// to the cap once it has drifted beyond cap plus buffer, nil otherwise. Both
// engines run it first on every cycle, regardless of signal state.
func safetyValve(cfg Config, in CycleInput) *domain.OrderIntent {
	pos := in.Account.PositionSize
	if math.Abs(pos) <= cfg.MaxPositionSize+cfg.PositionBuffer+qtyEpsilon {
		return nil
	}
	excess := math.Abs(pos) - cfg.MaxPositionSize
	side := domain.OrderSideSell
	if pos < 0 {
		side = domain.OrderSideBuy
	}
	iv := placeIntent(cfg.Symbol, side, domain.OrderTypeMarket, 0, excess, true, "position beyond cap, trimming excess", in.Now)
	return &iv
}

// hasEntryCapacity reports whether one more entry of OrderSize fits under
// both the position cap and the per-side resting-quantity cap. openQty is
// the side's resting entry quantity after any cancel emitted this cycle.
func hasEntryCapacity(cfg Config, in CycleInput, openQty float64) bool {
	if math.Abs(in.Account.PositionSize) >= cfg.MaxPositionSize-qtyEpsilon {
		return false
	}
	capQty := cfg.OrderSize * float64(cfg.MaxOpenOrdersPerSide)
	return openQty+cfg.OrderSize <= capQty+qtyEpsilon
}

// manageSide maintains one side's resting entries against a target price.
// When an entry deviates from the target by more than the reprice threshold
// it cancels exactly one such order, the worst offender, and replaces it at
// the target when capacity permits. When the side has no resting entries it
// places one, capacity permitting. At most one reprice action per side per
// cycle.
func manageSide(cfg Config, in CycleInput, side domain.OrderSide, target domain.PriceTicks, reason string) []domain.OrderIntent {
	if target <= 0 {
		return nil
	}
	target = in.Instrument.RoundPrice(target)
	targetPx := target.Float64()

	entries := in.Account.EntryOrdersBySide(side)
	openQty := in.Account.OpenQtyBySide(side)

	var worst *domain.OrderRecord
	var worstDev float64
	for i := range entries {
		o := entries[i]
		dev := math.Abs(o.Price()-targetPx) / targetPx
		if dev <= cfg.RepriceThresholdPct {
			continue
		}
		if worst == nil || dev > worstDev || (dev == worstDev && o.OrderID < worst.OrderID) {
			worst = &entries[i]
			worstDev = dev
		}
	}

	var out []domain.OrderIntent
	if worst != nil {
		out = append(out, cancelIntent(cfg.Symbol, worst.OrderID, reason, in.Now))
		openQty -= worst.Qty - worst.FilledQty
		if hasEntryCapacity(cfg, in, openQty) {
			out = append(out, placeIntent(cfg.Symbol, side, domain.OrderTypeLimit, target, cfg.OrderSize, false, reason, in.Now))
		}
		return out
	}

	if len(entries) == 0 && hasEntryCapacity(cfg, in, openQty) {
		out = append(out, placeIntent(cfg.Symbol, side, domain.OrderTypeLimit, target, cfg.OrderSize, false, reason, in.Now))
	}
	return out
}
