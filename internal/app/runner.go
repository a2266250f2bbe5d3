package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/curlkit/internal/config"
	"github.com/samvad-hq/curlkit/internal/logger"
	"github.com/samvad-hq/curlkit/internal/storage"
	"github.com/samvad-hq/curlkit/pkg/curl"
	"github.com/samvad-hq/curlkit/pkg/extract"
	"github.com/samvad-hq/curlkit/pkg/requests"
	"github.com/samvad-hq/curlkit/pkg/sinks"
)

// Runner executes the request catalog and fans results out to sinks. It
// owns the digest store used to suppress unchanged responses.
type Runner struct {
	cfg      *config.Config
	catalog  *requests.Catalog
	fanout   *sinks.Fanout
	store    storage.Store
	interval time.Duration
	log      logger.Logger

	closeOnce sync.Once
}

// NewRunner builds a runner from config files.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	catalog, err := requests.Load(cfg.RequestsFile)
	if err != nil {
		return nil, fmt.Errorf("load requests catalog: %w", err)
	}
	entries := catalog.All()
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	log.InfoObj("requests catalog loaded", "requests_meta", map[string]any{
		"count": len(ids),
		"ids":   ids,
	})

	fanout, err := buildFanout(ctx, cfg.SinksFile, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		TTL:             cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"ttl_seconds":              int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return &Runner{
		cfg:      cfg,
		catalog:  catalog,
		fanout:   fanout,
		store:    store,
		interval: cfg.WatchInterval,
		log:      log,
	}, nil
}

// buildFanout loads enabled sinks. A missing sinks file leaves results
// log-only.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*sinks.Fanout, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		log.WarnObj("no sinks file configured; results are only logged", "sinks_file", path)
		return sinks.NewFanout(nil), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.WarnObj("sinks file not found; results are only logged", "sinks_file", path)
		return sinks.NewFanout(nil), nil
	}

	reg, err := sinks.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load sinks registry: %w", err)
	}

	enabled := reg.Enabled()
	built, err := sinks.BuildAll(ctx, sinks.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, c := range enabled {
		summaries = append(summaries, map[string]string{"id": c.ID, "type": c.Type})
	}
	log.InfoObj("sinks registry loaded", "sinks_meta", map[string]any{
		"count": len(summaries),
		"sinks": summaries,
	})
	return sinks.NewFanout(built), nil
}

// Run executes one pass, then repeats every watch interval until ctx ends.
// With no interval configured it returns after the first pass.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.catalog == nil {
		return fmt.Errorf("runner is not initialized")
	}
	defer r.close()

	entries := r.catalog.All()
	if len(entries) == 0 {
		r.log.WarnObj("no requests configured; runner idle", "requests_file", r.cfg.RequestsFile)
		return nil
	}

	r.log.InfoObj("runner starting", "runner_state", map[string]any{
		"requests_count": len(entries),
		"sinks_count":    r.fanout.Size(),
		"watch_interval": r.interval.String(),
	})

	err := r.runOnce(ctx, entries)
	if r.interval <= 0 {
		return err
	}
	if err != nil {
		r.log.ErrorObj("initial pass failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("runner loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx, entries); err != nil {
				r.log.ErrorObj("scheduled pass failed", "error", err)
			}
		}
	}
}

// runOnce executes every entry, collecting per-entry failures.
func (r *Runner) runOnce(ctx context.Context, entries []requests.Entry) error {
	start := time.Now()
	var errs []error
	for _, e := range entries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.runEntry(ctx, e); err != nil {
			errs = append(errs, err)
			r.log.ErrorObj("request handling failed", "request_error", map[string]any{
				"request_id": e.ID,
				"error":      err.Error(),
			})
		}
	}
	r.log.InfoObj("pass completed", "pass_meta", map[string]any{
		"requests_count": len(entries),
		"failed":         len(errs),
		"elapsed_ms":     time.Since(start).Milliseconds(),
	})
	return errors.Join(errs...)
}

func (r *Runner) runEntry(ctx context.Context, e requests.Entry) error {
	timeout := r.cfg.TimeoutSeconds
	if e.TimeoutSeconds > 0 {
		timeout = e.TimeoutSeconds
	}
	client := curl.New(curl.WithTimeout(timeout), curl.WithVerbose(r.cfg.Verbose))

	method := e.MethodValue()
	body, ok := client.Execute(method, e.URL, e.HeaderList(), e.BodyBytes())
	res := sinks.NewResult(e.ID, method.String(), e.URL, body, ok)

	if ok {
		if e.Extract != "" {
			extracted, err := extract.Parse(body, e.Extract)
			if err != nil {
				r.log.WarnObj("extract failed", "extract_error", map[string]any{
					"request_id": e.ID,
					"rule":       e.Extract,
					"error":      err.Error(),
				})
			}
			res.Extracted = extracted
		}

		res.Digest = storage.Digest(body)
		changed, err := r.store.Changed(e.ID, res.Digest)
		if err != nil {
			return fmt.Errorf("check digest for %s: %w", e.ID, err)
		}
		if !changed {
			r.log.DebugObj("response unchanged; skipping", "request_id", e.ID)
			return nil
		}
	}

	r.log.InfoObj("request executed", "request_result", map[string]any{
		"request_id": e.ID,
		"method":     res.Method,
		"ok":         ok,
		"bytes":      len(body),
		"extracted":  len(res.Extracted),
	})

	if r.fanout.Size() == 0 {
		if ok {
			return r.store.Remember(e.ID, res.Digest)
		}
		return nil
	}

	delivered, err := r.fanout.Publish(ctx, res)
	if err != nil {
		return fmt.Errorf("publish %s (%d/%d sinks ok): %w", e.ID, delivered, r.fanout.Size(), err)
	}
	if ok {
		if err := r.store.Remember(e.ID, res.Digest); err != nil {
			return fmt.Errorf("remember digest for %s: %w", e.ID, err)
		}
	}
	return nil
}

// close releases sinks and the storage backend once, logging failures.
func (r *Runner) close() {
	r.closeOnce.Do(func() {
		if err := r.fanout.Close(); err != nil {
			r.log.ErrorObj("sinks close failed", "error", err)
		}
		if r.store != nil {
			if err := r.store.Close(); err != nil {
				r.log.ErrorObj("storage close failed", "error", err)
			}
		}
	})
}
