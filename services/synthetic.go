package services

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ai-exchange/models"
)

// DefaultTickPeriod is the synthetic walk step and matches the market refresh interval
const DefaultTickPeriod = 30 * time.Second

// walkPeriods are the cycle lengths, in ticks, of the components of the walk.
// Mutually prime so the combined path does not visibly repeat.
var walkPeriods = [...]float64{17, 61, 241}

// SyntheticGenerator produces deterministic, symbol-seeded price samples.
//
// The log price at tick t is a sum of phase-shifted cycles plus per-tick noise,
// so any tick can be computed directly without replaying the walk. Amplitudes
// are sized so two consecutive ticks never differ by more than MaxMovePercent.
type SyntheticGenerator struct {
	maxMove float64
	period  time.Duration
	now     func() time.Time
}

// NewSyntheticGenerator creates a generator bounded to maxMovePercent per tick
func NewSyntheticGenerator(maxMovePercent float64, period time.Duration, now func() time.Time) *SyntheticGenerator {
	if maxMovePercent <= 0 {
		maxMovePercent = 2.0
	}
	if period <= 0 {
		period = DefaultTickPeriod
	}
	if now == nil {
		now = time.Now
	}
	return &SyntheticGenerator{
		maxMove: maxMovePercent / 100,
		period:  period,
		now:     now,
	}
}

// Tick returns the walk index containing at
func (g *SyntheticGenerator) Tick(at time.Time) int64 {
	ns := at.UnixNano()
	p := g.period.Nanoseconds()
	tick := ns / p
	if ns%p < 0 {
		tick--
	}
	return tick
}

// TickTime returns the start of the given tick
func (g *SyntheticGenerator) TickTime(tick int64) time.Time {
	return time.Unix(0, tick*g.period.Nanoseconds()).UTC()
}

// Price returns the current synthetic sample for symbol
func (g *SyntheticGenerator) Price(symbol string) models.PricePoint {
	return g.PriceAt(symbol, g.Tick(g.now()))
}

// PriceAt returns the synthetic sample for symbol at a given tick
func (g *SyntheticGenerator) PriceAt(symbol string, tick int64) models.PricePoint {
	symbol = strings.ToUpper(symbol)
	price := g.closeAt(symbol, tick)
	previous := g.closeAt(symbol, tick-1)
	return models.NewPricePoint(symbol, price, previous, g.volumeAt(symbol, tick), g.TickTime(tick), models.SourceSynthetic)
}

// History returns n bars ending at the current tick, oldest first
func (g *SyntheticGenerator) History(symbol string, n int) []models.HistoricalBar {
	if n <= 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)
	current := g.Tick(g.now())
	bars := make([]models.HistoricalBar, 0, n)
	for tick := current - int64(n) + 1; tick <= current; tick++ {
		bars = append(bars, models.HistoricalBar{
			Close:     g.closeAt(symbol, tick),
			Volume:    g.volumeAt(symbol, tick),
			Timestamp: g.TickTime(tick),
		})
	}
	return bars
}

func (g *SyntheticGenerator) closeAt(symbol string, tick int64) decimal.Decimal {
	seed := symbolSeed(symbol)
	price := basePrice(seed) * math.Exp(g.logOffset(seed, tick))
	return decimal.NewFromFloat(price).Round(2)
}

// logOffset is bounded per step: each cycle moves at most amp*2π/period and
// the noise at most 2*noiseAmp, and the budgets sum to 90% of ln(1+maxMove).
// The rest absorbs rounding to the cent.
func (g *SyntheticGenerator) logOffset(seed uint64, tick int64) float64 {
	budget := math.Log1p(g.maxMove) * 0.9
	cycleBudget := budget / 2 / float64(len(walkPeriods))
	noiseAmp := budget / 4

	var offset float64
	for i, period := range walkPeriods {
		amp := cycleBudget * period / (2 * math.Pi)
		phase := unitFloat(seed, uint64(i)) * 2 * math.Pi
		offset += amp * math.Sin(2*math.Pi*float64(tick)/period+phase)
	}
	offset += noiseAmp * (2*unitFloat(seed, uint64(tick)+1<<32) - 1)
	return offset
}

func (g *SyntheticGenerator) volumeAt(symbol string, tick int64) int64 {
	seed := symbolSeed(symbol)
	base := float64(500_000 + seed%5_000_000)
	return int64(base * (0.5 + unitFloat(seed, uint64(tick)+1<<33)))
}

// basePrice maps a seed into a 20..1000 price band
func basePrice(seed uint64) float64 {
	return 20 + float64(seed%98_000)/100
}

func symbolSeed(symbol string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
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
