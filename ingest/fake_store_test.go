package ingest

import (
	"context"
	"fmt"

	"validation-recorder/models"
)

// fakeStore records inserted rows and can be told to fail after n inserts
type fakeStore struct {
	runResults []*models.RunResult
	checks     []*models.ScanCheck
	metrics    []*models.ScanMetric
	failAfter  int
	inserts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{failAfter: -1}
}

func (f *fakeStore) insert() error {
	if f.failAfter >= 0 && f.inserts >= f.failAfter {
		return fmt.Errorf("%w: constraint violated", models.ErrPersistence)
	}
	f.inserts++
	return nil
}

func (f *fakeStore) InsertRunResult(_ context.Context, result *models.RunResult) error {
	if err := f.insert(); err != nil {
		return err
	}
	result.ID = int64(f.inserts)
	f.runResults = append(f.runResults, result)
	return nil
}

func (f *fakeStore) InsertScanCheck(_ context.Context, check *models.ScanCheck) error {
	if err := f.insert(); err != nil {
		return err
	}
	check.ID = int64(f.inserts)
	f.checks = append(f.checks, check)
	return nil
}

func (f *fakeStore) InsertScanMetric(_ context.Context, metric *models.ScanMetric) error {
	if err := f.insert(); err != nil {
		return err
	}
	metric.ID = int64(f.inserts)
	f.metrics = append(f.metrics, metric)
	return nil
}
