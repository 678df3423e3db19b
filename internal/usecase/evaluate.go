package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	icache "FinSignal/internal/service/cache"
	"FinSignal/pkg/util"
)

// HybridEngine runs the per-timeframe evaluator stack over the latest known
// readings. It keeps a snapshot of the most recent reading per instrument and
// timeframe; a snapshot older than twice its timeframe span is considered
// stale and drops out of evaluation.
type HybridEngine struct {
	trend    domsvc.TrendEvaluator
	timing   domsvc.TimingEvaluator
	momentum domsvc.MomentumEvaluator // nil disables the third vote
	combiner domsvc.HybridCombiner
	metrics  domrepo.Metrics

	timeframes []domrepo.Timeframe
	snaps      *icache.TTLCache
}

func NewHybridEngine(
	trend domsvc.TrendEvaluator,
	timing domsvc.TimingEvaluator,
	momentum domsvc.MomentumEvaluator,
	combiner domsvc.HybridCombiner,
	metrics domrepo.Metrics,
	timeframes []domrepo.Timeframe,
) *HybridEngine {
	if len(timeframes) == 0 {
		timeframes = domrepo.AllTimeframes()
	}
	sort.Slice(timeframes, func(i, j int) bool {
		return domrepo.SortIndex(timeframes[i]) < domrepo.SortIndex(timeframes[j])
	})
	return &HybridEngine{
		trend:      trend,
		timing:     timing,
		momentum:   momentum,
		combiner:   combiner,
		metrics:    metrics,
		timeframes: timeframes,
		snaps:      icache.NewTTLCache(),
	}
}

func snapKey(instrumentID string, tf domrepo.Timeframe) string {
	return instrumentID + "|" + string(tf)
}

// Observe stores r as the latest snapshot for its instrument and timeframe
// and returns the hybrid signal for that single timeframe.
func (e *HybridEngine) Observe(ctx context.Context, r *models.IndicatorReading) models.Signal {
	tf := domrepo.Timeframe(r.Timeframe)
	e.snaps.Set(snapKey(r.InstrumentID, tf), r, 2*util.TimeframeDuration(string(tf)))
	return e.evaluateOne(ctx, r, e.Latest)
}

// Latest returns the freshest non-stale reading for the pair, or nil.
func (e *HybridEngine) Latest(instrumentID string, tf domrepo.Timeframe) *models.IndicatorReading {
	v, ok := e.snaps.Get(snapKey(instrumentID, tf))
	if !ok {
		return nil
	}
	r, _ := v.(*models.IndicatorReading)
	return r
}

// EvaluateInstrument evaluates every configured timeframe that has a live
// snapshot for the instrument, in parallel, and returns the hybrid signals
// ordered finest to coarsest. Timeframes without a snapshot are skipped.
func (e *HybridEngine) EvaluateInstrument(ctx context.Context, instrumentID string) []models.Signal {
	var pending []*models.IndicatorReading
	for _, tf := range e.timeframes {
		if r := e.Latest(instrumentID, tf); r != nil {
			pending = append(pending, r)
		}
	}
	return e.evaluateSet(ctx, pending, e.Latest)
}

// EvaluateBatch evaluates caller-supplied readings as a self-contained set:
// trend confirmation is looked up inside the batch, snapshots are neither
// read nor written. Used by the ad-hoc evaluation endpoint.
func (e *HybridEngine) EvaluateBatch(ctx context.Context, readings []*models.IndicatorReading) []models.Signal {
	byTF := make(map[domrepo.Timeframe]*models.IndicatorReading, len(readings))
	for _, r := range readings {
		byTF[domrepo.Timeframe(r.Timeframe)] = r
	}
	lookup := func(_ string, tf domrepo.Timeframe) *models.IndicatorReading {
		return byTF[tf]
	}
	return e.evaluateSet(ctx, readings, lookup)
}

// Timeframes returns the configured evaluation set, finest to coarsest.
func (e *HybridEngine) Timeframes() []domrepo.Timeframe {
	return e.timeframes
}

func (e *HybridEngine) evaluateSet(
	ctx context.Context,
	readings []*models.IndicatorReading,
	lookup func(string, domrepo.Timeframe) *models.IndicatorReading,
) []models.Signal {
	if len(readings) == 0 {
		return nil
	}

	ch := make(chan models.Signal, len(readings))
	var wg sync.WaitGroup
	for _, r := range readings {
		wg.Add(1)
		go func(r *models.IndicatorReading) {
			defer wg.Done()
			ch <- e.evaluateOne(ctx, r, lookup)
		}(r)
	}
	go func() { wg.Wait(); close(ch) }()

	out := make([]models.Signal, 0, len(readings))
	for s := range ch {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return domrepo.SortIndex(domrepo.Timeframe(out[i].Timeframe)) <
			domrepo.SortIndex(domrepo.Timeframe(out[j].Timeframe))
	})
	return out
}

// evaluateOne runs the evaluator stack for a single reading. The trend
// confirmation flag comes from the reading one step up the ladder: absence
// of higher evidence confirms, a contradicting higher direction does not.
func (e *HybridEngine) evaluateOne(
	ctx context.Context,
	r *models.IndicatorReading,
	lookup func(string, domrepo.Timeframe) *models.IndicatorReading,
) models.Signal {
	start := time.Now()
	tf := domrepo.Timeframe(r.Timeframe)

	confirmed := true
	if higher := domrepo.HigherTimeframe(tf); higher != "" {
		if hr := lookup(r.InstrumentID, higher); hr != nil {
			confirmed = e.trend.LocalDirection(hr) == e.trend.LocalDirection(r)
		}
	}

	trendSig := e.trend.EvaluateConfirmed(ctx, r, confirmed)
	timingSig := e.timing.Evaluate(ctx, r)

	var out models.Signal
	if e.momentum != nil {
		out = e.combiner.CombineThree(trendSig, timingSig, e.momentum.Evaluate(ctx, r))
	} else {
		out = e.combiner.Combine(trendSig, timingSig)
	}

	e.metrics.RecordEvaluation(r.InstrumentID, r.Timeframe)
	e.metrics.RecordLatency("evaluate", time.Since(start).Seconds())
	return out
}
