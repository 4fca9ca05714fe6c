package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jobtailor/jobtailor/internal/config"
	"github.com/jobtailor/jobtailor/internal/model"
)

// State names one phase of the processing loop.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateQualifying State = "qualifying"
	StateEnriching  State = "enriching"
	StateValidating State = "validating"
	StateAnalyzing  State = "analyzing"
	StateGenerating State = "generating"
	StateFinalizing State = "finalizing"
)

// sleepChunk bounds each individual sleep so shutdown never waits more than
// a few seconds for the controller to notice.
const sleepChunk = 5 * time.Second

// Controller drives the pipeline through its fixed stage sequence in an
// endless loop, backing off exponentially when cycles stop producing
// progress and waking early when only a rate limit stood in the way.
type Controller struct {
	pipeline *Pipeline
	pacing   config.PacingConfig
	logger   *slog.Logger

	state            State
	idleDelay        time.Duration
	noProgressCycles int

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// NewController wires a controller around a pipeline.
func NewController(p *Pipeline, pacing config.PacingConfig, logger *slog.Logger) *Controller {
	return &Controller{
		pipeline:  p,
		pacing:    pacing,
		logger:    logger,
		state:     StateIdle,
		idleDelay: pacing.BaseIdle,
		sleep:     sleepCtx,
	}
}

// State returns the controller's current phase.
func (c *Controller) State() State { return c.state }

// Run executes processing cycles until the context is canceled or the
// pipeline has nothing left it could ever do. Returns nil on clean
// shutdown.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.pipeline.WarmCaches(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		progress, err := c.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("cycle failed", "error", err)
		}

		done, checkErr := c.exhausted(ctx)
		if checkErr == nil && done {
			c.logger.Info("all records settled and no new work possible, stopping")
			return nil
		}

		c.waitForNextCycle(ctx, progress)
	}
}

// RunCycle executes one pass through every stage and returns the total
// progress count. Stage errors are logged, not fatal: a broken stage must
// not starve the ones after it.
func (c *Controller) RunCycle(ctx context.Context) (int, error) {
	c.pipeline.ResetRateLimitFlag()
	total := 0

	c.enter(StateCollecting)
	newKeys, err := c.pipeline.Collect(ctx)
	if err != nil {
		c.logger.Error("collection failed", "error", err)
	}
	total += len(newKeys)

	c.enter(StateQualifying)
	scope := keySet(newKeys)
	n, err := c.pipeline.Qualify(ctx, scope, false)
	if err != nil {
		c.logger.Error("qualification failed", "error", err)
	}
	total += n

	c.enter(StateEnriching)
	n, err = c.pipeline.EnrichOverviews(ctx)
	if err != nil {
		c.logger.Error("overview enrichment failed", "error", err)
	}
	total += n
	n, err = c.pipeline.EnrichDescriptions(ctx)
	if err != nil {
		c.logger.Error("description enrichment failed", "error", err)
	}
	total += n
	n, err = c.pipeline.CheckExpirations(ctx)
	if err != nil {
		c.logger.Error("expiration recheck failed", "error", err)
	}
	total += n

	c.enter(StateValidating)
	n, err = c.pipeline.Validate(ctx)
	if err != nil {
		c.logger.Error("sustainability validation failed", "error", err)
	}
	total += n

	c.enter(StateAnalyzing)
	n, err = c.pipeline.Analyze(ctx)
	if err != nil {
		c.logger.Error("fit analysis failed", "error", err)
	}
	total += n

	c.enter(StateGenerating)
	n, err = c.pipeline.Generate(ctx)
	if err != nil {
		c.logger.Error("artifact generation failed", "error", err)
	}
	total += n

	c.enter(StateFinalizing)
	n, err = c.finalize(ctx)
	if err != nil {
		c.logger.Error("finalization failed", "error", err)
	}
	total += n

	c.logger.Info("cycle complete", "progress", total,
		"rate_limited", c.pipeline.RateLimitObserved())
	return total, ctx.Err()
}

// finalize flushes the under-full qualification remainder, rewrites the
// on-disk ordering so external readers always see best-first, and lets the
// filter auto-adjustment learn from the cycle's scores.
func (c *Controller) finalize(ctx context.Context) (int, error) {
	n, err := c.pipeline.Qualify(ctx, nil, true)
	if err != nil {
		return n, err
	}
	if err := c.pipeline.deps.Store.SortByPriority(ctx); err != nil {
		return n, err
	}
	adjusted, err := c.pipeline.AutoAdjustFilters(ctx)
	return n + adjusted, err
}

// waitForNextCycle picks the idle duration: the short rate-limit wait when
// a rate limit was the only obstacle, otherwise an exponential backoff that
// doubles on every consecutive no-progress cycle after the first, capped at
// MaxIdle, and resets on progress.
func (c *Controller) waitForNextCycle(ctx context.Context, progress int) {
	c.enter(StateIdle)

	if progress > 0 {
		c.noProgressCycles = 0
		c.idleDelay = c.pacing.BaseIdle
	} else {
		c.noProgressCycles++
		if c.noProgressCycles >= 2 {
			c.idleDelay = min(c.idleDelay*2, c.pacing.MaxIdle)
		}
	}

	delay := c.idleDelay
	if progress == 0 && c.pipeline.RateLimitObserved() {
		delay = c.pacing.RateLimitWait
	}

	c.logger.Info("sleeping until next cycle", "delay", delay)
	c.sleepChunked(ctx, delay)
}

// sleepChunked sleeps in short chunks so cancellation is observed promptly.
func (c *Controller) sleepChunked(ctx context.Context, d time.Duration) {
	for d > 0 && ctx.Err() == nil {
		chunk := min(d, sleepChunk)
		c.sleep(ctx, chunk)
		d -= chunk
	}
}

// exhausted reports whether the pipeline can never produce more work:
// every record settled, no crawl path, and the listing provider gone.
func (c *Controller) exhausted(ctx context.Context) (bool, error) {
	if c.pipeline.deps.Features.CrawlDescriptions {
		return false, nil
	}
	if c.pipeline.deps.Provider != nil && c.pipeline.deps.Provider.Available() {
		return false, nil
	}

	records, err := c.pipeline.deps.Store.GetAll(ctx)
	if err != nil {
		return false, err
	}
	for i := range records {
		r := &records[i]
		if r.Excluded() {
			continue
		}
		if r.FitScore == model.Unscored {
			return false, nil
		}
		if r.HasQualifyingScore() && r.TailoredResumeRef == "" {
			return false, nil
		}
	}
	return true, nil
}

func (c *Controller) enter(s State) {
	if c.state != s {
		c.state = s
		c.logger.Debug("state change", "state", string(s))
	}
}

func keySet(keys []model.RecordKey) map[model.RecordKey]bool {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[model.RecordKey]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
