package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bitegraph/internal/adapter"
	"github.com/sells-group/bitegraph/internal/adapter/builtin"
	"github.com/sells-group/bitegraph/internal/classify"
	"github.com/sells-group/bitegraph/internal/db"
	"github.com/sells-group/bitegraph/internal/fetcher"
	"github.com/sells-group/bitegraph/internal/mapper"
	"github.com/sells-group/bitegraph/internal/pipeline"
	"github.com/sells-group/bitegraph/internal/store"
	"github.com/sells-group/bitegraph/internal/templates"
)

// pipelineEnv holds the store, template holder, adapter registry, and
// runner shared by the pipeline and serve commands.
type pipelineEnv struct {
	Store    store.Store
	Holder   *templates.Holder
	Registry *adapter.Registry
	Runner   *pipeline.Runner
	Watcher  *templates.Watcher // nil unless templates.watch is set
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Watcher != nil {
		pe.Watcher.Stop()
	}
	if pe.Store != nil {
		if err := pe.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// envOptions carries per-command overrides of the loaded config.
type envOptions struct {
	AssumeFood bool
	Watch      bool
}

// initPipeline validates the config for mode, opens the store, loads the
// templates, and builds the runner. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, opts envOptions) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	holder, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &pipelineEnv{
		Store:    st,
		Holder:   holder,
		Registry: builtin.Default(),
	}

	if opts.Watch && cfg.Templates.Dir != "" {
		w, err := templates.NewWatcher(cfg.Templates.Dir, holder)
		if err != nil {
			env.Close()
			return nil, err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			env.Close()
			return nil, err
		}
		env.Watcher = w
	}

	env.Runner = pipeline.New(holder, st, env.Registry,
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithClassifier(classifierOptions(opts.AssumeFood)),
		pipeline.WithMapper(mapperOptions()),
	)

	zap.L().Info("pipeline ready",
		zap.String("template_version", holder.Current().Version),
		zap.String("store", cfg.Store.Driver),
		zap.Strings("sources", env.Registry.SourceIDs()),
	)
	return env, nil
}

// initStore opens the configured interpretation store.
func initStore(ctx context.Context) (store.Store, error) {
	policy, err := store.ParsePolicy(cfg.Store.Policy)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		Policy:      policy,
		Pool: &db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// loadTemplates loads templates.dir, or the embedded set when it is empty.
func loadTemplates() (*templates.Holder, error) {
	var (
		snap *templates.Snapshot
		err  error
	)
	if cfg.Templates.Dir != "" {
		snap, err = templates.LoadDir(cfg.Templates.Dir)
	} else {
		snap, err = templates.Default()
	}
	if err != nil {
		return nil, eris.Wrap(err, "load templates")
	}
	return templates.NewHolder(snap), nil
}

func classifierOptions(assumeFood bool) classify.Options {
	return classify.Options{AssumeFoodIfPriced: assumeFood || cfg.Classifier.AssumeFoodIfPriced}
}

func mapperOptions() mapper.Options {
	return mapper.Options{
		MatchThreshold: cfg.Mapper.MatchThreshold,
		MinConfidence:  cfg.Mapper.MinConfidence,
		LowDefault:     cfg.Mapper.LowDefault,
	}
}

// newLoader builds the payload loader from the fetch config.
func newLoader(entry string) *fetcher.Loader {
	remote := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:           time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.Fetch.MaxRetries,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	})
	return fetcher.NewLoader(remote,
		fetcher.WithMaxBytes(int64(cfg.Fetch.MaxMB)<<20),
		fetcher.WithEntry(entry),
	)
}
