package strategy

import (
	"context"
	"math"

	"jax-trading-assistant/internal/domain"
	"jax-trading-assistant/libs/strategies"
)

// indicatorWindow is a fixed-capacity ring of recent closes and volumes used
// to compute the technical indicators libs/strategies.AnalysisInput expects.
// A MarketSnapshot only carries raw prices and bars (§4.2); the adapter is
// where that gets turned into SMA/RSI/MACD/ATR/Bollinger history.
type indicatorWindow struct {
	closes  []float64
	highs   []float64
	lows    []float64
	volumes []float64
}

const maxWindow = 200

func (w *indicatorWindow) push(bar domain.Bar) {
	w.closes = append(w.closes, bar.Close)
	w.highs = append(w.highs, bar.High)
	w.lows = append(w.lows, bar.Low)
	w.volumes = append(w.volumes, bar.Volume)
	if len(w.closes) > maxWindow {
		w.closes = w.closes[len(w.closes)-maxWindow:]
		w.highs = w.highs[len(w.highs)-maxWindow:]
		w.lows = w.lows[len(w.lows)-maxWindow:]
		w.volumes = w.volumes[len(w.volumes)-maxWindow:]
	}
}

func sma(xs []float64, n int) float64 {
	if len(xs) < n || n <= 0 {
		return 0
	}
	sum := 0.0
	for _, v := range xs[len(xs)-n:] {
		sum += v
	}
	return sum / float64(n)
}

func ema(xs []float64, n int) float64 {
	if len(xs) == 0 || n <= 0 {
		return 0
	}
	if len(xs) < n {
		return sma(xs, len(xs))
	}
	k := 2.0 / float64(n+1)
	e := sma(xs[:n], n)
	for _, v := range xs[n:] {
		e = v*k + e*(1-k)
	}
	return e
}

func rsi(closes []float64, n int) float64 {
	if len(closes) < n+1 {
		return 50
	}
	recent := closes[len(closes)-(n+1):]
	var gain, loss float64
	for i := 1; i < len(recent); i++ {
		delta := recent[i] - recent[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	gain /= float64(n)
	loss /= float64(n)
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs))
}

func atr(highs, lows, closes []float64, n int) float64 {
	if len(closes) < n+1 {
		return 0
	}
	trs := make([]float64, 0, n)
	start := len(closes) - n
	for i := start; i < len(closes); i++ {
		tr := highs[i] - lows[i]
		if i > 0 {
			tr = math.Max(tr, math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		}
		trs = append(trs, tr)
	}
	return sma(trs, len(trs))
}

func macd(closes []float64) strategies.MACD {
	value := ema(closes, 12) - ema(closes, 26)
	// Signal line: EMA9 of the MACD value series. With only the running
	// closes in hand we approximate it against the trailing value itself,
	// which is exact once the window holds enough history for both EMAs to
	// have converged past their seed periods.
	signal := value
	if len(closes) > 35 {
		series := make([]float64, 0, len(closes)-26)
		for i := 26; i <= len(closes); i++ {
			sub := closes[:i]
			series = append(series, ema(sub, 12)-ema(sub, 26))
		}
		signal = ema(series, 9)
	}
	return strategies.MACD{Value: value, Signal: signal, Histogram: value - signal}
}

func bollinger(closes []float64, n int) strategies.BollingerBands {
	mid := sma(closes, n)
	if mid == 0 || len(closes) < n {
		return strategies.BollingerBands{}
	}
	window := closes[len(closes)-n:]
	var variance float64
	for _, v := range window {
		variance += (v - mid) * (v - mid)
	}
	stddev := math.Sqrt(variance / float64(n))
	return strategies.BollingerBands{Upper: mid + 2*stddev, Middle: mid, Lower: mid - 2*stddev}
}

func trend(closes []float64) string {
	if len(closes) < 2 {
		return "neutral"
	}
	fast, slow := sma(closes, 20), sma(closes, 50)
	switch {
	case fast == 0 || slow == 0:
		return "neutral"
	case fast > slow:
		return "bullish"
	case fast < slow:
		return "bearish"
	default:
		return "neutral"
	}
}

// Adapter runs a libs/strategies.Strategy inside the backtest/live pipeline
// by turning each tick's MarketSnapshot into the indicator-rich
// AnalysisInput that strategy was built against, maintaining the rolling
// per-symbol history the indicators need between calls.
//
// Grounded on libs/strategies' MACrossoverStrategy/MACDCrossoverStrategy/
// RSIMomentumStrategy, which all consume AnalysisInput directly; this is
// the seam that lets those strategies run against the engines without
// rewriting either side's domain types.
// Adapter also consumes the wrapped strategy's StrategyMetadata.MinRR: each
// strategy emits TakeProfit as an ordered list of progressively further
// targets, and a strategy declaring a higher MinRR has its signals carried
// through at the farthest target instead of the nearest one, so MinRR picks
// the target instead of sitting unread.
type Adapter struct {
	inner   strategies.Strategy
	meta    strategies.StrategyMetadata
	windows map[string]*indicatorWindow
}

// NewAdapter wraps a libs/strategies.Strategy for use as a strategy.Strategy,
// reading its GetMetadata().MinRR once at construction.
func NewAdapter(inner strategies.Strategy) *Adapter {
	return &Adapter{inner: inner, meta: inner.GetMetadata(), windows: make(map[string]*indicatorWindow)}
}

// minRRTargetThreshold is the MinRR above which the adapter prefers a
// strategy's farthest declared take-profit target over its nearest one.
const minRRTargetThreshold = 2.25

// GenerateSignals implements Strategy.
func (a *Adapter) GenerateSignals(ctx context.Context, snapshot domain.MarketSnapshot) ([]domain.Signal, error) {
	out := make([]domain.Signal, 0, len(snapshot.Bars))
	for symbol, bar := range snapshot.Bars {
		w, ok := a.windows[symbol]
		if !ok {
			w = &indicatorWindow{}
			a.windows[symbol] = w
		}
		w.push(bar)

		avgVol20 := sma(w.volumes, 20)
		input := strategies.AnalysisInput{
			Symbol:         symbol,
			Price:          bar.Close,
			Timestamp:      snapshot.Timestamp,
			RSI:            rsi(w.closes, 14),
			MACD:           macd(w.closes),
			SMA20:          sma(w.closes, 20),
			SMA50:          sma(w.closes, 50),
			SMA200:         sma(w.closes, 200),
			ATR:            atr(w.highs, w.lows, w.closes, 14),
			BollingerBands: bollinger(w.closes, 20),
			Volume:         int64(bar.Volume),
			AvgVolume20:    int64(avgVol20),
			MarketTrend:    trend(w.closes),
			SectorTrend:    trend(w.closes),
		}

		sig, err := a.inner.Analyze(ctx, input)
		if err != nil {
			return nil, err
		}
		if sig.Type == strategies.SignalHold {
			continue
		}

		action := domain.ActionBuy
		if sig.Type == strategies.SignalSell {
			action = domain.ActionSell
		}
		domainSig := domain.Signal{
			Action:         action,
			Symbol:         sig.Symbol,
			ReferencePrice: bar.Close,
			Timestamp:      sig.Timestamp,
		}
		if sig.StopLoss != 0 {
			sl := sig.StopLoss
			domainSig.StopLoss = &sl
		}
		if len(sig.TakeProfit) > 0 {
			idx := 0
			if a.meta.MinRR >= minRRTargetThreshold {
				idx = len(sig.TakeProfit) - 1
			}
			tp := sig.TakeProfit[idx]
			domainSig.TakeProfit = &tp
		}
		if sig.Confidence != 0 {
			c := sig.Confidence
			domainSig.Confidence = &c
		}
		out = append(out, domainSig)
	}
	return out, nil
}
