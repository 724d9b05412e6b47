package csvtogeo

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// RowSource yields data rows in file order and io.EOF after the last one.
type RowSource interface {
	Next() (Row, error)
}

// SkipReport summarizes the rows a Driver rejected.
type SkipReport struct {
	Total      int
	Accepted   int
	Skipped    int
	Percent    float64 // Skipped share of Total, for display
	MaxPercent int
	Skips      []Skip
	ByReason   map[SkipReason]int
}

// Exceeded reports whether more rows were skipped than MaxPercent allows.
// The comparison is exact: skipped/total > max/100.
func (r SkipReport) Exceeded() bool {
	return r.Skipped*100 > r.MaxPercent*r.Total
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithLogger logs every skipped row at info level.
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithContext stops the Driver between rows once ctx is done.
func WithContext(ctx context.Context) DriverOption {
	return func(d *Driver) {
		d.ctx = ctx
	}
}

// Driver pulls rows from a RowSource, transforms them and yields the
// accepted features in order. A Driver makes a single pass and is not safe
// for concurrent use.
type Driver struct {
	transformer *Transformer
	src         RowSource
	logger      *slog.Logger
	ctx         context.Context

	report SkipReport
	done   error // Terminal error, repeated once reached
}

// NewDriver returns a Driver reading rows for s from src.
func NewDriver(s *Schema, src RowSource, opts ...DriverOption) *Driver {
	d := &Driver{
		transformer: NewTransformer(s),
		src:         src,
		ctx:         context.Background(),
		report: SkipReport{
			MaxPercent: s.Globals().MaxSkipPercent,
			ByReason:   make(map[SkipReason]int),
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next accepted feature. After the last row it returns
// io.EOF, or a *ThresholdExceededError when too many rows were skipped.
// Errors from the row source end the pass and are returned unchanged.
func (d *Driver) Next() (*Feature, error) {
	if d.done != nil {
		return nil, d.done
	}

	for {
		if err := d.ctx.Err(); err != nil {
			d.done = err
			return nil, err
		}

		row, err := d.src.Next()
		if errors.Is(err, io.EOF) {
			d.done = d.finish()
			return nil, d.done
		}
		if err != nil {
			d.done = err
			return nil, err
		}

		d.report.Total++
		f, err := d.transformer.Transform(row)
		if err != nil {
			var skip *Skip
			if !errors.As(err, &skip) {
				d.done = err
				return nil, err
			}
			d.skip(skip)
			continue
		}

		d.report.Accepted++
		return f, nil
	}
}

func (d *Driver) skip(s *Skip) {
	d.report.Skipped++
	d.report.Skips = append(d.report.Skips, *s)
	d.report.ByReason[s.Reason]++
	if d.logger != nil {
		d.logger.Info("row skipped", "line", s.Line, "reason", string(s.Reason), "error", s.Err)
	}
}

func (d *Driver) finish() error {
	r := d.Report()
	if r.Exceeded() {
		return &ThresholdExceededError{
			Skipped:    r.Skipped,
			Total:      r.Total,
			Percent:    r.Percent,
			MaxPercent: r.MaxPercent,
		}
	}
	return io.EOF
}

// Collect drains the Driver and returns every accepted feature.
func (d *Driver) Collect() ([]*Feature, error) {
	var features []*Feature
	for {
		f, err := d.Next()
		if errors.Is(err, io.EOF) {
			return features, nil
		}
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
}

// Report returns the skip report so far. It is complete once Next has
// returned a terminal error.
func (d *Driver) Report() SkipReport {
	r := d.report
	if r.Total > 0 {
		r.Percent = 100 * float64(r.Skipped) / float64(r.Total)
	}
	r.Skips = append([]Skip(nil), d.report.Skips...)
	r.ByReason = make(map[SkipReason]int, len(d.report.ByReason))
	for k, v := range d.report.ByReason {
		r.ByReason[k] = v
	}
	return r
}
