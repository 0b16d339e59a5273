package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"mycontrol/internal/amqp"
	"mycontrol/internal/log"
	"mycontrol/internal/services"
)

type fakeReports struct {
	mu    sync.Mutex
	years []int
	err   error
	block chan struct{}
}

func (f *fakeReports) Report(_ context.Context, year int) (services.YearReport, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.years = append(f.years, year)
	return services.YearReport{Year: year}, f.err
}

type fakeExporter struct {
	mu       sync.Mutex
	exported []int
	err      error
}

func (f *fakeExporter) ExportReport(_ context.Context, r services.YearReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.exported = append(f.exported, r.Year)
	return nil
}

func newTestWorker(r *fakeReports, e *fakeExporter) *ReportWorker {
	return NewReportWorker(r, e, time.UTC, log.New(log.Config{Output: io.Discard}))
}

func TestHandleEventExportsEventYear(t *testing.T) {
	reports := &fakeReports{}
	exporter := &fakeExporter{}
	w := newTestWorker(reports, exporter)

	ev := amqp.NewTransactionEvent(7, amqp.ActionPaid, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(exporter.exported) != 1 || exporter.exported[0] != 2025 {
		t.Errorf("exported = %v, want [2025]", exporter.exported)
	}
}

func TestExportYearErrors(t *testing.T) {
	t.Run("report failure skips export", func(t *testing.T) {
		exporter := &fakeExporter{}
		w := newTestWorker(&fakeReports{err: errors.New("db down")}, exporter)
		if err := w.ExportYear(context.Background(), 2026); err == nil {
			t.Fatal("expected error")
		}
		if len(exporter.exported) != 0 {
			t.Errorf("exported = %v, want none", exporter.exported)
		}
	})

	t.Run("export failure is returned", func(t *testing.T) {
		sentinel := errors.New("quota exceeded")
		w := newTestWorker(&fakeReports{}, &fakeExporter{err: sentinel})
		if err := w.ExportYear(context.Background(), 2026); !errors.Is(err, sentinel) {
			t.Fatalf("err = %v, want wrapping %v", err, sentinel)
		}
	})
}

func TestExportCurrentYearUsesLocation(t *testing.T) {
	exporter := &fakeExporter{}
	w := NewReportWorker(&fakeReports{}, exporter, time.FixedZone("BRT", -3*3600), log.New(log.Config{Output: io.Discard}))
	// 01:00 UTC on Jan 1st is still Dec 31st in UTC-3
	w.now = func() time.Time { return time.Date(2026, time.January, 1, 1, 0, 0, 0, time.UTC) }

	if err := w.ExportCurrentYear(context.Background()); err != nil {
		t.Fatalf("ExportCurrentYear: %v", err)
	}
	if len(exporter.exported) != 1 || exporter.exported[0] != 2025 {
		t.Errorf("exported = %v, want [2025]", exporter.exported)
	}
}

func TestExportYearCoalescesConcurrentCalls(t *testing.T) {
	reports := &fakeReports{block: make(chan struct{})}
	w := newTestWorker(reports, &fakeExporter{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.ExportYear(context.Background(), 2026)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(reports.block)
	wg.Wait()

	reports.mu.Lock()
	defer reports.mu.Unlock()
	if len(reports.years) == 0 || len(reports.years) > 5 {
		t.Fatalf("report computed %d times", len(reports.years))
	}
	if len(reports.years) != 1 {
		t.Logf("report computed %d times; some calls arrived after the first finished", len(reports.years))
	}
}

func TestSchedule(t *testing.T) {
	w := newTestWorker(&fakeReports{}, &fakeExporter{})

	if err := w.Schedule("not a cron"); err == nil {
		t.Error("expected error for invalid expression")
	}
	if err := w.Schedule("0 6 * * *"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	w.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
}

func TestStopWithoutSchedule(t *testing.T) {
	w := newTestWorker(&fakeReports{}, &fakeExporter{})
	w.Start()
	w.Stop(context.Background())
}
