// Package pipeline runs purchase line items through normalization,
// classification, mapping, enrichment and consumption inference, and appends
// the resulting interpretation to the store.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bitegraph/internal/adapter"
	"github.com/sells-group/bitegraph/internal/classify"
	"github.com/sells-group/bitegraph/internal/consume"
	"github.com/sells-group/bitegraph/internal/enrich"
	"github.com/sells-group/bitegraph/internal/mapper"
	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/normalize"
	"github.com/sells-group/bitegraph/internal/resilience"
	"github.com/sells-group/bitegraph/internal/store"
	"github.com/sells-group/bitegraph/internal/templates"
)

const defaultPortion = 1.0

// Result is the outcome for one input item. On a validation failure only
// Item and Err are set.
type Result struct {
	Item            model.PurchaseLineItem         `json:"item"`
	Classification  *model.ClassificationResult    `json:"classification"`
	Mapping         *model.MappingResult           `json:"mapping"`
	Enrichment      *model.NutritionFlavorResult   `json:"enrichment,omitempty"`
	Consumption     *model.ConsumptionInference    `json:"consumption"`
	Interpretation  *model.FoodEventInterpretation `json:"interpretation"`
	Appended        bool                           `json:"appended"`
	TemplateVersion string                         `json:"template_version,omitempty"`
	Err             error                          `json:"-"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets how many items are processed concurrently.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithClock replaces the clock used for updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithClassifier sets classifier options.
func WithClassifier(opts classify.Options) Option {
	return func(r *Runner) { r.classifyOpts = opts }
}

// WithMapper sets mapper thresholds.
func WithMapper(opts mapper.Options) Option {
	return func(r *Runner) { r.mapperOpts = opts }
}

// WithSignals supplies observed-consumption signals.
func WithSignals(src consume.SignalSource) Option {
	return func(r *Runner) { r.signals = src }
}

// Runner is safe for concurrent use. Concurrent runs share the per-event
// write lock, so the same event is never written by two runs at once.
type Runner struct {
	holder   *templates.Holder
	store    store.Store
	registry *adapter.Registry

	workers      int
	now          func() time.Time
	classifyOpts classify.Options
	mapperOpts   mapper.Options
	signals      consume.SignalSource
	engine       *consume.Engine
	locks        *keyLock

	mu     sync.Mutex
	cached *stages
}

// stages are the per-snapshot stage instances.
type stages struct {
	snap       *templates.Snapshot
	normalizer *normalize.Normalizer
	classifier *classify.Classifier
	mapper     *mapper.Mapper
	enricher   *enrich.Enricher
}

// New creates a Runner. A nil store falls back to an in-memory log.
func New(holder *templates.Holder, st store.Store, registry *adapter.Registry, opts ...Option) *Runner {
	if st == nil {
		st = store.NewMemory(store.PolicySkipUnchanged)
	}
	r := &Runner{
		holder:     holder,
		store:      st,
		registry:   registry,
		workers:    4,
		now:        time.Now,
		mapperOpts: mapper.DefaultOptions(),
		engine:     consume.New(),
		locks:      newKeyLock(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Store returns the interpretation store the runner writes to.
func (r *Runner) Store() store.Store {
	return r.store
}

// RunPipeline finds the adapter for meta, parses raw and runs the items.
// Adapter failures are returned as *adapter.InvalidInputError.
func (r *Runner) RunPipeline(ctx context.Context, raw []byte, meta model.Metadata) ([]Result, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if r.registry == nil {
		return nil, eris.New("pipeline: no adapter registry configured")
	}
	a, err := r.registry.Find(meta)
	if err != nil {
		return nil, err
	}
	items, err := a.Parse(raw, meta)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("pipeline: parsed payload",
		zap.String("source", a.SourceID()),
		zap.Int("items", len(items)),
	)
	return r.Run(ctx, items), nil
}

// Run processes items independently and returns one Result per item in
// input order. A failure on one item never affects the others.
func (r *Runner) Run(ctx context.Context, items []model.PurchaseLineItem) []Result {
	runID := uuid.NewString()
	start := time.Now()
	st := r.stagesFor(r.holder.Current())

	log := zap.L().With(
		zap.String("run_id", runID),
		zap.String("template_version", st.snap.Version),
	)
	log.Info("pipeline: run started", zap.Int("items", len(items)))

	results := make([]Result, len(items))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, item := range items {
		g.Go(func() error {
			results[i] = r.process(ctx, st, item)
			return nil
		})
	}
	_ = g.Wait()

	var appended, unchanged, failed int
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
			log.Warn("pipeline: item failed", zap.String("event_id", res.Item.EventID), zap.Error(res.Err))
		case res.Appended:
			appended++
		default:
			unchanged++
		}
	}
	log.Info("pipeline: run complete",
		zap.Int("appended", appended),
		zap.Int("unchanged", unchanged),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results
}

func (r *Runner) stagesFor(snap *templates.Snapshot) *stages {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil && r.cached.snap == snap {
		return r.cached
	}
	r.cached = &stages{
		snap:       snap,
		normalizer: normalize.New(snap),
		classifier: classify.New(snap, r.classifyOpts),
		mapper:     mapper.New(snap, r.mapperOpts),
		enricher:   enrich.New(snap),
	}
	return r.cached
}

func (r *Runner) process(ctx context.Context, st *stages, item model.PurchaseLineItem) Result {
	res := Result{Item: item, TemplateVersion: st.snap.Version}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if err := item.Validate(); err != nil {
		res.Err = err
		return res
	}

	norm := st.normalizer.Normalize(item)
	cls := st.classifier.Classify(norm)
	mapping := st.mapper.Map(norm, cls)

	var signals []consume.Signal
	if r.signals != nil {
		signals = r.signals.SignalsFor(norm.EventID)
	}
	cons := r.engine.Infer(norm, cls, mapping, signals...)

	res.Item = norm
	res.Classification = &cls
	res.Mapping = &mapping
	res.Enrichment = st.enricher.Enrich(norm, cls, mapping)
	res.Consumption = &cons

	put, err := r.put(ctx, interpretation(norm, cls, mapping, r.now()))
	if err != nil {
		res.Err = err
		return res
	}
	res.Interpretation = &put.Interpretation
	res.Appended = put.Appended
	return res
}

func (r *Runner) put(ctx context.Context, interp model.FoodEventInterpretation) (*store.PutResult, error) {
	unlock := r.locks.Lock(interp.EventID)
	defer unlock()

	cfg := resilience.WriteRetry(store.IsConflict)
	cfg.OnRetry = resilience.RetryLogger("pipeline: put interpretation", zap.String("event_id", interp.EventID))
	put, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*store.PutResult, error) {
		return r.store.Put(ctx, interp.EventID, interp)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: put %s", interp.EventID)
	}
	return put, nil
}

// interpretation combines classification and mapping into the stored overlay.
func interpretation(item model.PurchaseLineItem, cls model.ClassificationResult, mapping model.MappingResult, now time.Time) model.FoodEventInterpretation {
	reasons := make([]string, 0, len(cls.Reasons)+len(mapping.Reasons))
	reasons = append(reasons, cls.Reasons...)
	reasons = append(reasons, mapping.Reasons...)

	provenance := mapping.Provenance
	if provenance == "" {
		provenance = model.ProvenanceRulesV1
	}

	return model.FoodEventInterpretation{
		EventID:             item.EventID,
		Vertical:            cls.Vertical,
		FoodKind:            cls.FoodKind,
		CanonicalFoodID:     mapping.CanonicalFoodID,
		IngredientProfileID: mapping.IngredientProfileID,
		PortionMultiplier:   defaultPortion,
		Confidence:          (cls.Confidence + mapping.Confidence) / 2,
		Provenance:          provenance,
		Reasons:             reasons,
		UpdatedAt:           now.UTC(),
	}
}
