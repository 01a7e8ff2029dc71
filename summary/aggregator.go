package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"validation-recorder/models"

	"github.com/sirupsen/logrus"
)

// Store is the part of the result store the aggregator reads and writes
type Store interface {
	QueryRunResultCounts(ctx context.Context, since time.Time) (*models.StatusCounts, error)
	QueryScanCheckCounts(ctx context.Context, since time.Time) (*models.StatusCounts, error)
	InsertSummary(ctx context.Context, summary *models.ValidationSummary) error
}

// Aggregator writes one validation summary per tool for the current day
type Aggregator struct {
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewAggregator creates a new summary aggregator
func NewAggregator(store Store, log logrus.FieldLogger) *Aggregator {
	return &Aggregator{store: store, log: log, now: time.Now}
}

// WithClock overrides the clock that decides the current day.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// StartOfDay returns midnight UTC of the day t falls on.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Aggregate counts today's rows for every validation type and appends a
// summary for each type that has any. Types are independent: a failure on
// one does not stop the other, and all failures are returned joined.
func (a *Aggregator) Aggregate(ctx context.Context) ([]*models.ValidationSummary, error) {
	since := StartOfDay(a.now())

	var summaries []*models.ValidationSummary
	var errs []error
	for _, validationType := range models.ValidationTypes {
		summary, err := a.aggregate(ctx, validationType, since)
		if err != nil {
			a.log.WithError(err).WithField("validation_type", validationType).Error("Failed to save validation summary")
			errs = append(errs, err)
			continue
		}
		if summary != nil {
			summaries = append(summaries, summary)
		}
	}

	return summaries, errors.Join(errs...)
}

func (a *Aggregator) aggregate(ctx context.Context, validationType models.ValidationType, since time.Time) (*models.ValidationSummary, error) {
	counts, err := a.count(ctx, validationType, since)
	if err != nil {
		return nil, err
	}

	log := a.log.WithField("validation_type", validationType)
	if counts.Total == 0 {
		log.Info("No results recorded today, skipping summary")
		return nil, nil
	}

	summary := &models.ValidationSummary{
		ValidationType: validationType,
		StatusCounts:   *counts,
	}
	if err := a.store.InsertSummary(ctx, summary); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"total":  counts.Total,
		"passed": counts.Passed,
		"failed": counts.Failed,
		"other":  counts.ErrorOrOther,
	}).Info("Validation summary saved")

	return summary, nil
}

func (a *Aggregator) count(ctx context.Context, validationType models.ValidationType, since time.Time) (*models.StatusCounts, error) {
	switch validationType {
	case models.ValidationTypeRunTool:
		return a.store.QueryRunResultCounts(ctx, since)
	case models.ValidationTypeScanTool:
		return a.store.QueryScanCheckCounts(ctx, since)
	default:
		return nil, fmt.Errorf("unknown validation type %q", validationType)
	}
}
