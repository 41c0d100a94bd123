package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tap-appstore/internal/model"
)

// Stream drives the window loop of one report stream. It is built per
// stream per attempt and owns state only while Run executes.
type Stream struct {
	descriptor model.StreamDescriptor
	fetcher    *Fetcher
	conformer  *Conformer
	sink       Sink
	state      *model.State
	tracker    *Tracker
	logger     *slog.Logger

	startDate    time.Time
	lookbackDays int
	vendor       string
	now          time.Time // fixed when the stream starts; also the extraction instant
}

// initialCheckpoint resolves where the stream resumes: the stored bookmark,
// else the configured start date, aligned and clamped by the lookback.
func (s *Stream) initialCheckpoint(g model.Granularity) (time.Time, error) {
	checkpoint := s.startDate
	if stored, ok := s.state.StartDate(s.descriptor.Name); ok {
		t, err := ParseCheckpoint(stored)
		if err != nil {
			return time.Time{}, Permanent(fmt.Errorf("stream %s: bad bookmark %q: %w", s.descriptor.Name, stored, err))
		}
		checkpoint = t
	}
	checkpoint = Align(checkpoint, g)

	if s.lookbackDays > 0 {
		floor := Align(s.now.AddDate(0, 0, -s.lookbackDays), g)
		if checkpoint.Before(floor) {
			s.logger.Info("checkpoint older than lookback, clamping",
				"checkpoint", FormatCheckpoint(checkpoint), "floor", FormatCheckpoint(floor))
			checkpoint = floor
		}
	}
	return checkpoint, nil
}

func (s *Stream) flush() error {
	if err := s.sink.WriteState(s.state); err != nil {
		return fmt.Errorf("stream %s: flush state: %w", s.descriptor.Name, err)
	}
	return nil
}

// Run processes eligible windows in ascending order until the next window
// ends after now. A window whose fetch was skipped still advances the
// checkpoint.
func (s *Stream) Run(ctx context.Context) error {
	name := s.descriptor.Name
	b, err := behaviorOf(s.descriptor.Family)
	if err != nil {
		return err
	}
	checkpoint, err := s.initialCheckpoint(b.granularity)
	if err != nil {
		return err
	}

	announced := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		w, eligible := NextWindow(checkpoint, b.granularity, s.now)
		if !eligible {
			s.logger.Debug("no eligible window", "next_start", FormatCheckpoint(w.Start))
			return nil
		}

		// The first window of a run is always announced; later ones only
		// when the stored value is not already the window start.
		start := FormatCheckpoint(w.Start)
		if stored, _ := s.state.StartDate(name); !announced || stored != start {
			announced = true
			s.state.SetStartDate(name, start)
			if err := s.flush(); err != nil {
				return err
			}
		}

		reportDate := w.Start.Format(b.dateLayout)
		s.logger.Info("requesting report", "report_date", reportDate)

		lines, ok, err := s.fetcher.Fetch(ctx, s.descriptor, w.Start)
		if err != nil {
			return err
		}
		if ok {
			records := Enrich(lines, reportDate, s.now, s.vendor)
			for _, rec := range records {
				out, err := s.conformer.Conform(rec)
				if err != nil {
					return err
				}
				if err := s.sink.WriteRecord(name, out, s.now); err != nil {
					return fmt.Errorf("stream %s: write record: %w", name, err)
				}
			}
			s.tracker.WindowFetched(name, len(records))
		}

		checkpoint = w.End
		end := FormatCheckpoint(w.End)
		s.state.SetStartDate(name, end)
		if err := s.flush(); err != nil {
			return err
		}
		s.tracker.Checkpoint(name, end)
	}
}
