// Package google writes yearly reports to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"mycontrol/internal/cache"
	"mycontrol/internal/log"
	"mycontrol/internal/services"
	"mycontrol/internal/sheets"
)

const (
	tabCacheSize = 32
	tabCacheTTL  = 30 * time.Minute
)

// valuesAPI is the slice of the Sheets API the exporter needs.
type valuesAPI interface {
	SheetIDs(ctx context.Context) (map[string]int64, error)
	AddSheet(ctx context.Context, title string) (int64, error)
	Clear(ctx context.Context, rng string) error
	Write(ctx context.Context, rng string, rows [][]any) error
}

// Exporter replaces the contents of one tab per year with the report.
type Exporter struct {
	api    valuesAPI
	prefix string
	tabs   *cache.LRUCache[int64]
	logger *log.Logger
}

var _ sheets.ReportExporter = (*Exporter)(nil)

// New creates an exporter authenticated with a service account key.
func New(ctx context.Context, spreadsheetID string, credentialsJSON []byte, prefix string, logger *log.Logger) (*Exporter, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if len(credentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newExporter(&serviceAPI{svc: svc, spreadsheetID: spreadsheetID}, prefix, logger), nil
}

func newExporter(api valuesAPI, prefix string, logger *log.Logger) *Exporter {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Relatório"
	}
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &Exporter{
		api:    api,
		prefix: prefix,
		tabs:   cache.NewLRUCache[int64](tabCacheSize, tabCacheTTL),
		logger: logger.WithComponent(log.ComponentSheets),
	}
}

// TabCache exposes the tab ID cache so its expired entries can be purged by
// a cache.Manager.
func (e *Exporter) TabCache() *cache.LRUCache[int64] {
	return e.tabs
}

// ExportReport overwrites the "<year> <prefix>" tab with r, creating the tab
// when it does not exist.
func (e *Exporter) ExportReport(ctx context.Context, r services.YearReport) error {
	title := TabName(e.prefix, r.Year)
	start := time.Now()

	if err := e.ensureTab(ctx, title); err != nil {
		return err
	}

	rows := ReportRows(r)
	quoted := quoteTitle(title)
	if err := e.api.Clear(ctx, quoted+"!A:Z"); err != nil {
		// the tab may have been deleted by hand
		e.tabs.Delete(title)
		return fmt.Errorf("clear %s: %w", title, err)
	}
	if err := e.api.Write(ctx, quoted+"!A1", rows); err != nil {
		e.tabs.Delete(title)
		return fmt.Errorf("write %s: %w", title, err)
	}

	e.logger.InfoContext(ctx, "Report exported",
		log.FieldSheetTab, title,
		log.FieldYear, r.Year,
		"rows", len(rows),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (e *Exporter) ensureTab(ctx context.Context, title string) error {
	if _, ok := e.tabs.Get(title); ok {
		return nil
	}

	ids, err := e.api.SheetIDs(ctx)
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}
	for name, id := range ids {
		e.tabs.Set(name, id)
	}
	if _, ok := ids[title]; ok {
		return nil
	}

	id, err := e.api.AddSheet(ctx, title)
	if err != nil {
		return fmt.Errorf("add tab %s: %w", title, err)
	}
	e.tabs.Set(title, id)
	e.logger.InfoContext(ctx, "Report tab created", log.FieldSheetTab, title)
	return nil
}

// TabName returns "<year> <prefix>" unless prefix already starts with a
// four digit year.
func TabName(prefix string, year int) string {
	prefix = strings.TrimSpace(prefix)
	if len(prefix) >= 5 {
		if y, err := strconv.Atoi(prefix[0:4]); err == nil && prefix[4] == ' ' && y > 1900 && y < 3000 {
			return prefix
		}
	}
	return fmt.Sprintf("%d %s", year, prefix)
}

// quoteTitle quotes a tab title for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

type serviceAPI struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (a *serviceAPI) SheetIDs(ctx context.Context) (map[string]int64, error) {
	resp, err := a.svc.Spreadsheets.Get(a.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			out[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	return out, nil
}

func (a *serviceAPI) AddSheet(ctx context.Context, title string) (int64, error) {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	resp, err := a.svc.Spreadsheets.BatchUpdate(a.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, errors.New("add sheet: empty reply")
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (a *serviceAPI) Clear(ctx context.Context, rng string) error {
	_, err := a.svc.Spreadsheets.Values.Clear(a.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (a *serviceAPI) Write(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := a.svc.Spreadsheets.Values.Update(a.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}
