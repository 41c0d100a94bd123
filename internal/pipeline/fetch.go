package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tap-appstore/internal/appstore"
	"tap-appstore/internal/model"
)

// ReportClient is the part of the vendor API the engine calls.
type ReportClient interface {
	DownloadSalesReport(ctx context.Context, filters map[string]string) (*appstore.Report, error)
	DownloadFinanceReport(ctx context.Context, filters map[string]string) (*appstore.Report, error)
}

type familyBehavior struct {
	granularity model.Granularity
	dateLayout  string
	download    func(ReportClient, context.Context, map[string]string) (*appstore.Report, error)
}

var families = map[model.ReportFamily]familyBehavior{
	model.FamilySales: {
		granularity: model.GranularityDay,
		dateLayout:  "2006-01-02",
		download:    ReportClient.DownloadSalesReport,
	},
	model.FamilyFinancial: {
		granularity: model.GranularityMonth,
		dateLayout:  "2006-01",
		download:    ReportClient.DownloadFinanceReport,
	},
}

func behaviorOf(f model.ReportFamily) (familyBehavior, error) {
	b, ok := families[f]
	if !ok {
		return familyBehavior{}, Permanent(fmt.Errorf("unknown report family %q", f))
	}
	return b, nil
}

// ReportDate formats a window start the way the family's endpoint expects.
func ReportDate(d model.StreamDescriptor, start time.Time) (string, error) {
	b, err := behaviorOf(d.Family)
	if err != nil {
		return "", err
	}
	return start.UTC().Format(b.dateLayout), nil
}

// SkipFunc is told about every window the fetcher gave up on.
type SkipFunc func(stream, reportDate string, err error)

// Fetcher downloads and parses one report per window.
type Fetcher struct {
	client ReportClient
	vendor string
	logger *slog.Logger
	onSkip SkipFunc
}

// NewFetcher returns a Fetcher for the given vendor account.
func NewFetcher(client ReportClient, vendor string, logger *slog.Logger, onSkip SkipFunc) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, vendor: vendor, logger: logger, onSkip: onSkip}
}

// Filters returns the request filters of one window.
func (f *Fetcher) Filters(d model.StreamDescriptor, start time.Time) (map[string]string, error) {
	reportDate, err := ReportDate(d, start)
	if err != nil {
		return nil, err
	}
	filters := d.Filters()
	filters["reportDate"] = reportDate
	filters["vendorNumber"] = f.vendor
	return filters, nil
}

// Fetch downloads the report of the window starting at start. ok is false
// when the vendor rejected the request or answered with an object; those
// windows are logged and skipped. Any other failure is returned.
func (f *Fetcher) Fetch(ctx context.Context, d model.StreamDescriptor, start time.Time) (lines []model.RawReportLine, ok bool, err error) {
	b, err := behaviorOf(d.Family)
	if err != nil {
		return nil, false, err
	}
	filters, err := f.Filters(d, start)
	if err != nil {
		return nil, false, err
	}
	reportDate := filters["reportDate"]
	log := f.logger.With("stream", d.Name, "report_date", reportDate)

	report, err := b.download(f.client, ctx, filters)
	if err != nil {
		var apiErr *appstore.APIError
		if errors.As(err, &apiErr) {
			log.Error("report request rejected", "status", apiErr.StatusCode, "code", apiErr.Code(), "error", apiErr)
			f.skip(d.Name, reportDate, apiErr)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetch %s %s: %w", d.Name, reportDate, err)
	}
	if !report.Tabular() {
		log.Log(ctx, LevelCritical, "received a JSON object instead of the report", "response", report.Object)
		f.skip(d.Name, reportDate, appstore.ErrObjectResponse)
		return nil, false, nil
	}
	return ParseReport(report.Text), true, nil
}

func (f *Fetcher) skip(stream, reportDate string, err error) {
	if f.onSkip != nil {
		f.onSkip(stream, reportDate, err)
	}
}
