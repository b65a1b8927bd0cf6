package orderbook

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ai-exchange/models"
	"ai-exchange/observability"
)

// MaxLevels caps the number of levels per side
const MaxLevels = 50

var (
	ErrInvalidReferencePrice = errors.New("reference price must be positive")
	ErrInvalidLevels         = errors.New("levels must be at least 1")
	ErrInvalidSpread         = errors.New("spread bps must be positive")
	ErrInvalidSymbol         = errors.New("symbol is required")
)

var (
	priceTick    = decimal.New(1, -2)
	bpsDivisor   = decimal.NewFromInt(10000)
	hundred      = decimal.NewFromInt(100)
	two          = decimal.NewFromInt(2)
	quantityBase = 100.0 // smallest top-of-book size before the seeded multiplier
	levelDecay   = 0.85  // size retained per level away from mid
)

// Builder produces synthetic bid/ask ladders around a reference price.
// Output depends only on its inputs, apart from the snapshot timestamp.
type Builder struct {
	now     func() time.Time
	metrics *observability.Metrics
}

// NewBuilder creates a Builder. A nil clock uses time.Now and nil metrics
// disables instrumentation.
func NewBuilder(now func() time.Time, metrics *observability.Metrics) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now, metrics: metrics}
}

// Build returns a book of up to levels price levels per side with levels
// spaced spreadBps basis points of the reference apart.
//
// Bid levels at or below zero are dropped. Prices sit on the 0.01 tick and
// strictly move away from the reference, so the best bid is always below the
// best ask.
func (b *Builder) Build(symbol string, referencePrice decimal.Decimal, levels int, spreadBps float64) (*models.OrderBook, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}
	if !referencePrice.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidReferencePrice, referencePrice)
	}
	if levels < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLevels, levels)
	}
	if spreadBps <= 0 || math.IsNaN(spreadBps) || math.IsInf(spreadBps, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidSpread, spreadBps)
	}
	if levels > MaxLevels {
		levels = MaxLevels
	}

	unit := decimal.NewFromFloat(spreadBps).Div(bpsDivisor)
	bids := buildSide(symbol, models.BookSideBid, referencePrice, unit, levels)
	asks := buildSide(symbol, models.BookSideAsk, referencePrice, unit, levels)

	book := &models.OrderBook{
		Symbol:         symbol,
		ReferencePrice: referencePrice,
		Bids:           bids,
		Asks:           asks,
		Depth:          append(depth(models.BookSideBid, bids), depth(models.BookSideAsk, asks)...),
		MidPrice:       referencePrice,
		Timestamp:      b.now(),
	}
	if len(bids) > 0 {
		book.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		book.BestAsk = asks[0].Price
	}
	if book.HasLiquidity() {
		book.MidPrice = book.BestBid.Add(book.BestAsk).Div(two)
		book.Spread = book.BestAsk.Sub(book.BestBid)
		book.SpreadPercent = book.Spread.Div(referencePrice).Mul(hundred).Round(4)
	}

	if b.metrics != nil {
		b.metrics.RecordOrderBookBuild(symbol)
	}
	return book, nil
}

func buildSide(symbol string, side models.BookSide, ref, unit decimal.Decimal, levels int) []models.OrderBookEntry {
	seed := sideSeed(symbol, side, ref)
	entries := make([]models.OrderBookEntry, 0, levels)

	prev := ref
	prevQty := int64(math.MaxInt64)
	total := decimal.Zero
	for i := 1; i <= levels; i++ {
		offset := unit.Mul(decimal.NewFromInt(int64(i)))

		var price decimal.Decimal
		if side == models.BookSideBid {
			price = ref.Mul(decimal.NewFromInt(1).Sub(offset)).RoundFloor(2)
			if price.GreaterThanOrEqual(prev) {
				price = prev.Sub(priceTick)
			}
			if !price.IsPositive() {
				break
			}
		} else {
			price = ref.Mul(decimal.NewFromInt(1).Add(offset)).RoundCeil(2)
			if price.LessThanOrEqual(prev) {
				price = prev.Add(priceTick)
			}
		}

		qty := levelQuantity(seed, i)
		if qty > prevQty {
			qty = prevQty
		}

		total = total.Add(price.Mul(decimal.NewFromInt(qty)))
		entries = append(entries, models.OrderBookEntry{
			Price:    price,
			Quantity: qty,
			Total:    total,
		})
		prev = price
		prevQty = qty
	}
	return entries
}

// levelQuantity decays geometrically from a seeded top-of-book size with a
// seeded jitter per level. Callers clamp it to be non-increasing.
func levelQuantity(seed uint64, level int) int64 {
	top := quantityBase * (1 + 9*unitFloat(seed, 0))
	jitter := 0.75 + 0.25*unitFloat(seed, uint64(level))
	qty := int64(top * math.Pow(levelDecay, float64(level-1)) * jitter)
	if qty < 1 {
		qty = 1
	}
	return qty
}

func depth(side models.BookSide, entries []models.OrderBookEntry) []models.DepthEntry {
	points := make([]models.DepthEntry, 0, len(entries))
	var cumulative int64
	for _, e := range entries {
		cumulative += e.Quantity
		points = append(points, models.DepthEntry{
			Price:      e.Price,
			Quantity:   e.Quantity,
			Cumulative: cumulative,
			Side:       side,
		})
	}
	return points
}

func sideSeed(symbol string, side models.BookSide, ref decimal.Decimal) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte{0})
	h.Write([]byte(side))
	h.Write([]byte{0})
	h.Write([]byte(ref.String()))
	return h.Sum64()
}

// unitFloat hashes (seed, n) into [0, 1)
func unitFloat(seed, n uint64) float64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	binary.LittleEndian.PutUint64(buf[8:], n)
	h := fnv.New64a()
	h.Write(buf[:])
	return float64(h.Sum64()>>11) / float64(1<<53)
}
