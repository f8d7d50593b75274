package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/metrics"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline/reconciler"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline/resolver"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline/retry"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pncp"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	defaultRetryMaxAttempts = 4
	defaultBackoffInitial   = 200 * time.Millisecond
	defaultBackoffMax       = 3 * time.Second
	defaultSafetyMargin     = 20 * time.Second
)

// PageFetcher retrieves one page of raw tender records.
type PageFetcher interface {
	FetchPage(ctx context.Context, req pncp.PageRequest) (*pncp.Page, error)
}

// PageResolver guarantees reference rows exist for a page.
type PageResolver interface {
	ResolvePage(ctx context.Context, records []pncp.Record) (*resolver.Resolution, error)
}

// PageReconciler applies a page's tender records.
type PageReconciler interface {
	ReconcilePage(ctx context.Context, records []pncp.Record, res *resolver.Resolution, mode reconciler.Mode) (*reconciler.Result, error)
}

// ProgressTracker plans and checkpoints per-key walks.
type ProgressTracker interface {
	Plan(ctx context.Context, key model.SyncKey) (startPage int, done bool, err error)
	Checkpoint(ctx context.Context, key model.SyncKey, page, totalPages int) error
}

// Config tunes one Syncer.
type Config struct {
	PageSize         int
	RetryMaxAttempts int
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	// SafetyMargin is how much wall-clock headroom must remain before a
	// new page is started; crossing it aborts the run with a resume payload.
	SafetyMargin time.Duration
}

// Report is the outcome of one run, serialized on the trigger endpoint.
type Report struct {
	Success     bool   `json:"success"`
	Status      string `json:"status,omitempty"`
	Message     string `json:"message,omitempty"`
	CurrentPage int    `json:"currentPage,omitempty"`
	Modality    int    `json:"modalidade,omitempty"`

	PagesProcessed int `json:"pagesProcessed"`
	Created        int `json:"created"`
	Updated        int `json:"updated"`
	Unchanged      int `json:"unchanged"`
	Rejected       int `json:"rejected"`
	KeysSkipped    int `json:"keysSkipped"`
	KeysAborted    int `json:"keysAborted"`
}

// Syncer walks every (endpoint, modality) key for a date range: pages are
// fetched, references resolved, tenders reconciled and progress
// checkpointed strictly in page order. Keys are independent; an
// unrecoverable failure on one key is logged and the walk moves on to the
// next. Only the wall-clock budget stops the whole run.
type Syncer struct {
	fetcher    PageFetcher
	resolver   PageResolver
	reconciler PageReconciler
	tracker    ProgressTracker
	cfg        Config
	logger     *slog.Logger
	sleepFn    func(ctx context.Context, d time.Duration) error
}

func NewSyncer(
	fetcher PageFetcher,
	pageResolver PageResolver,
	pageReconciler PageReconciler,
	tracker ProgressTracker,
	cfg Config,
	logger *slog.Logger,
) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = pncp.DefaultPageSize
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = defaultBackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaultBackoffMax
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = defaultSafetyMargin
	}
	return &Syncer{
		fetcher:    fetcher,
		resolver:   pageResolver,
		reconciler: pageReconciler,
		tracker:    tracker,
		cfg:        cfg,
		logger:     logger.With("component", "syncer"),
		sleepFn:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var endpointModes = []struct {
	endpoint pncp.Endpoint
	mode     reconciler.Mode
}{
	{pncp.EndpointPublication, reconciler.ModeCreate},
	{pncp.EndpointUpdate, reconciler.ModeDelta},
}

// Run walks all modality codes for both consulta endpoints over the given
// range. deadline zero means no budget. The returned Report is always
// usable; the error is reserved for failures that invalidate the whole
// run (context cancellation).
func (s *Syncer) Run(ctx context.Context, dateStart, dateEnd string, deadline time.Time, trigger string) (*Report, error) {
	metrics.SyncRunsTotal.WithLabelValues(trigger).Inc()
	report := &Report{}

	s.logger.Info("sync run started",
		"trigger", trigger,
		"date_start", dateStart,
		"date_end", dateEnd,
		"has_budget", !deadline.IsZero(),
	)

	for _, em := range endpointModes {
		for _, modality := range pncp.ModalityCodes {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			key := model.SyncKey{
				ModalityCode: modality,
				DateStart:    dateStart,
				DateEnd:      dateEnd,
				Endpoint:     string(em.endpoint),
			}

			interrupted, page, err := s.walkKey(ctx, key, em.endpoint, em.mode, deadline, report)
			if err != nil {
				// Uniform abort granularity: give up on this key for this
				// run and continue with the next one.
				metrics.SyncKeysAborted.WithLabelValues(string(em.endpoint)).Inc()
				report.KeysAborted++
				s.logger.Error("key walk aborted",
					"modality", modality,
					"endpoint", em.endpoint,
					"page", page,
					"error", err,
				)
				continue
			}
			if interrupted {
				metrics.SyncBudgetAborts.WithLabelValues(trigger).Inc()
				report.Success = false
				report.Message = "tempo limite atingido, sincronização será retomada"
				report.CurrentPage = page
				report.Modality = modality
				s.logger.Warn("sync run interrupted by budget",
					"modality", modality,
					"endpoint", em.endpoint,
					"resume_page", page,
				)
				return report, nil
			}
		}
	}

	report.Success = true
	report.Status = "Concluído com sucesso"
	s.logger.Info("sync run completed",
		"pages", report.PagesProcessed,
		"created", report.Created,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"rejected", report.Rejected,
		"keys_skipped", report.KeysSkipped,
		"keys_aborted", report.KeysAborted,
	)
	return report, nil
}

// walkKey pages through one key in increasing page order. It returns
// interrupted=true with the resume page when the budget ran out, and a
// non-nil error when the key must be abandoned for this run.
func (s *Syncer) walkKey(
	ctx context.Context,
	key model.SyncKey,
	endpoint pncp.Endpoint,
	mode reconciler.Mode,
	deadline time.Time,
	report *Report,
) (interrupted bool, currentPage int, err error) {
	startPage, done, err := s.tracker.Plan(ctx, key)
	if err != nil {
		return false, startPage, err
	}
	if done {
		metrics.SyncKeysSkipped.WithLabelValues(string(endpoint)).Inc()
		report.KeysSkipped++
		s.logger.Debug("key already synced, skipping",
			"modality", key.ModalityCode,
			"endpoint", endpoint,
		)
		return false, startPage, nil
	}

	page := startPage
	for {
		if err := ctx.Err(); err != nil {
			return false, page, err
		}
		if !deadline.IsZero() && time.Until(deadline) < s.cfg.SafetyMargin {
			return true, page, nil
		}

		result, lastPage, empty, err := s.processPage(ctx, key, endpoint, mode, page)
		if err != nil {
			return false, page, err
		}
		if empty {
			// Empty on the first requested page means no data for this
			// key; empty later means the range was exhausted between runs.
			return false, page, nil
		}

		report.PagesProcessed++
		report.Created += result.Created
		report.Updated += result.Updated
		report.Unchanged += result.Unchanged
		report.Rejected += result.RejectedTotal()

		if err := s.tracker.Checkpoint(ctx, key, page, lastPage); err != nil {
			return false, page, err
		}

		if lastPage > 0 && page >= lastPage {
			return false, page, nil
		}
		page++
	}
}

// processPage runs fetch → resolve → reconcile for one page. The fetch is
// retried with exponential backoff while the failure classifies as
// transient; resolve/reconcile failures are never retried because their
// writes are idempotent and the next run replays the page safely.
func (s *Syncer) processPage(
	ctx context.Context,
	key model.SyncKey,
	endpoint pncp.Endpoint,
	mode reconciler.Mode,
	page int,
) (result *reconciler.Result, totalPages int, empty bool, err error) {
	spanCtx, span := tracing.Tracer("syncer").Start(ctx, "syncer.processPage",
		otelTrace.WithAttributes(
			attribute.String("endpoint", string(endpoint)),
			attribute.Int("modality", key.ModalityCode),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.SyncPageLatency.WithLabelValues(string(endpoint)).Observe(time.Since(start).Seconds())
	}()

	fetched, err := s.fetchWithRetry(spanCtx, key, endpoint, page)
	if err != nil {
		metrics.FetcherErrors.WithLabelValues(string(endpoint)).Inc()
		return nil, 0, false, fmt.Errorf("fetch page %d: %w", page, err)
	}
	if fetched.Empty {
		return nil, fetched.TotalPages, true, nil
	}

	resolution, err := s.resolver.ResolvePage(spanCtx, fetched.Records)
	if err != nil {
		return nil, 0, false, fmt.Errorf("resolve references page %d: %w", page, err)
	}

	result, err = s.reconciler.ReconcilePage(spanCtx, fetched.Records, resolution, mode)
	if err != nil {
		return nil, 0, false, fmt.Errorf("reconcile page %d: %w", page, err)
	}

	metrics.SyncPagesProcessed.WithLabelValues(string(endpoint)).Inc()
	return result, fetched.TotalPages, false, nil
}

func (s *Syncer) fetchWithRetry(ctx context.Context, key model.SyncKey, endpoint pncp.Endpoint, page int) (*pncp.Page, error) {
	req := pncp.PageRequest{
		Endpoint:     endpoint,
		DateStart:    key.DateStart,
		DateEnd:      key.DateEnd,
		ModalityCode: key.ModalityCode,
		Page:         page,
		PageSize:     s.cfg.PageSize,
	}

	backoff := s.cfg.BackoffInitial
	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryMaxAttempts; attempt++ {
		fetched, err := s.fetcher.FetchPage(ctx, req)
		if err == nil {
			return fetched, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		decision := retry.Classify(err)
		if !decision.IsTransient() {
			return nil, fmt.Errorf("terminal fetch failure attempt=%d reason=%s: %w", attempt, decision.Reason, err)
		}
		if attempt == s.cfg.RetryMaxAttempts {
			break
		}

		s.logger.Warn("page fetch failed, retrying",
			"modality", key.ModalityCode,
			"endpoint", endpoint,
			"page", page,
			"attempt", attempt,
			"classification_reason", decision.Reason,
			"backoff", backoff.String(),
			"error", err,
		)
		if err := s.sleepFn(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > s.cfg.BackoffMax {
			backoff = s.cfg.BackoffMax
		}
	}
	return nil, fmt.Errorf("retry attempts exhausted: %w", lastErr)
}
