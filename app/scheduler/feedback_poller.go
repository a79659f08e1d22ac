// Package scheduler runs the periodic remote feedback sync
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/revlyhq/revly-backend/app/middleware"
	"github.com/revlyhq/revly-backend/app/services"
	businessflow "github.com/revlyhq/revly-backend/business_flow"
	"github.com/revlyhq/revly-backend/config"
	"github.com/revlyhq/revly-backend/models"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FeedbackPoller periodically pulls one tenant's remote feedback streams and
// reconciles them into the session. One poller per session; the session's
// mutex serializes it against the API and the send queue.
type FeedbackPoller struct {
	session  *businessflow.Session
	store    services.FeedbackStoreClient
	interval time.Duration
	logger   *log.Logger
}

// NewFeedbackPoller creates a poller for one tenant session
func NewFeedbackPoller(session *businessflow.Session, store services.FeedbackStoreClient, cfg config.PollerConfig) *FeedbackPoller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	p := &FeedbackPoller{
		session:  session,
		store:    store,
		interval: interval,
	}
	p.initLogger(cfg)
	return p
}

// initLogger configures a logger writing to stdout and a size-rotated file
func (p *FeedbackPoller) initLogger(cfg config.PollerConfig) {
	if cfg.LogDir == "" {
		p.logger = log.New(os.Stdout, "poller ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "poller.log"),
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}
	mw := io.MultiWriter(os.Stdout, rotator)
	p.logger = log.New(mw, "poller ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the poll loop in a background goroutine and returns a stop
// function
func (p *FeedbackPoller) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.RunOnce(ctx)
			}
		}
	}()

	return cancel
}

// Run services the poll loop until the context is cancelled. Used by the
// session manager, which owns goroutine lifecycles itself.
func (p *FeedbackPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sync pass. The cursor advances to the tick's
// start time even when a sentiment stream fails: records the failed query
// missed carry dates at or after the previous cursor, so the next full
// history replay is bounded and reconciliation dedup keeps the pass safe.
func (p *FeedbackPoller) RunOnce(ctx context.Context) {
	tenantID := p.session.TenantID()
	tickStart := time.Now().UTC()
	since := p.session.Cursor()

	total := 0
	for _, sentiment := range models.AllSentiments() {
		records, err := p.store.QuerySince(ctx, tenantID, string(sentiment), since)
		if err != nil {
			p.logger.Printf("tenant %s: %s stream query failed: %v", tenantID, sentiment, err)
			continue
		}
		if len(records) == 0 {
			continue
		}

		result, err := p.session.ReconcileRemote(ctx, records)
		if err != nil {
			p.logger.Printf("tenant %s: reconcile of %d %s records failed: %v", tenantID, len(records), sentiment, err)
			continue
		}
		total += result.Accepted
		middleware.FeedbackReconciled.WithLabelValues(tenantID, "accepted").Add(float64(result.Accepted))
		middleware.FeedbackReconciled.WithLabelValues(tenantID, "duplicate").Add(float64(result.Duplicates))
		middleware.FeedbackReconciled.WithLabelValues(tenantID, "malformed").Add(float64(result.Malformed))
		if result.Accepted > 0 || result.Duplicates > 0 || result.Malformed > 0 {
			p.logger.Printf("tenant %s: %s stream: %d accepted, %d duplicates, %d malformed, %d known",
				tenantID, sentiment, result.Accepted, result.Duplicates, result.Malformed, result.Known)
		}
	}

	if err := p.session.AdvanceCursor(ctx, tickStart); err != nil && !businessflow.IsSessionClosed(err) {
		p.logger.Printf("tenant %s: cursor advance failed: %v", tenantID, err)
	}

	if total > 0 {
		p.logger.Printf("tenant %s: sync pass done, %d new entries", tenantID, total)
	}
}
