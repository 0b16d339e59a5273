// Package worker keeps the exported yearly reports in step with the ledger.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"mycontrol/internal/amqp"
	"mycontrol/internal/log"
	"mycontrol/internal/services"
	"mycontrol/internal/sheets"
)

const exportTimeout = 2 * time.Minute

// ReportSource computes the report of one calendar year.
type ReportSource interface {
	Report(ctx context.Context, year int) (services.YearReport, error)
}

// ReportWorker recomputes and exports a year report when a transaction of
// that year changes, and on a fixed schedule for the current year.
type ReportWorker struct {
	reports  ReportSource
	exporter sheets.ReportExporter
	logger   *log.Logger
	loc      *time.Location
	now      func() time.Time

	group singleflight.Group
	cron  *cron.Cron
}

func NewReportWorker(reports ReportSource, exporter sheets.ReportExporter, loc *time.Location, logger *log.Logger) *ReportWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportWorker{
		reports:  reports,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		loc:      loc,
		now:      time.Now,
	}
}

// HandleEvent is an amqp.EventHandler.
func (w *ReportWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	w.logger.InfoContext(ctx, "Processing transaction event",
		"message_id", ev.MessageID,
		"id", ev.ID,
		log.FieldAction, string(ev.Action),
		log.FieldYear, ev.Year,
		log.FieldMonth, ev.Month)
	return w.ExportYear(ctx, ev.Year)
}

// ExportYear recomputes and exports one year. Concurrent calls for the same
// year share a single export.
func (w *ReportWorker) ExportYear(ctx context.Context, year int) error {
	_, err, shared := w.group.Do(strconv.Itoa(year), func() (any, error) {
		return nil, w.export(ctx, year)
	})
	if shared {
		w.logger.DebugContext(ctx, "Export coalesced", log.FieldYear, year)
	}
	return err
}

func (w *ReportWorker) export(ctx context.Context, year int) error {
	start := time.Now()
	report, err := w.reports.Report(ctx, year)
	if err != nil {
		return fmt.Errorf("compute report %d: %w", year, err)
	}
	if err := w.exporter.ExportReport(ctx, report); err != nil {
		w.logger.ErrorContext(ctx, "Report export failed",
			log.FieldYear, year,
			log.FieldError, err.Error())
		return fmt.Errorf("export report %d: %w", year, err)
	}
	w.logger.InfoContext(ctx, "Report exported",
		log.FieldYear, year,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// ExportCurrentYear exports the year of the worker's clock in its location.
func (w *ReportWorker) ExportCurrentYear(ctx context.Context) error {
	return w.ExportYear(ctx, w.now().In(w.loc).Year())
}

// Schedule registers a periodic export of the current year using a standard
// five field cron expression evaluated in the worker's location.
func (w *ReportWorker) Schedule(spec string) error {
	if w.cron == nil {
		w.cron = cron.New(cron.WithLocation(w.loc))
	}
	logger := w.logger.WithComponent(log.ComponentScheduler)
	_, err := w.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		if err := w.ExportCurrentYear(ctx); err != nil {
			logger.Error("Scheduled export failed", log.FieldError, err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	logger.Info("Report export scheduled", "schedule", spec, "timezone", w.loc.String())
	return nil
}

// Start runs the scheduler in the background. It is a no-op without a
// schedule.
func (w *ReportWorker) Start() {
	if w.cron != nil {
		w.cron.Start()
	}
}

// Stop halts the scheduler and waits for a running export or ctx.
func (w *ReportWorker) Stop(ctx context.Context) {
	if w.cron == nil {
		return
	}
	select {
	case <-w.cron.Stop().Done():
	case <-ctx.Done():
		w.logger.Warn("Scheduled export still running at shutdown")
	}
}
