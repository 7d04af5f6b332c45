package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOverdueMarker struct {
	marked int64
	err    error
	asOf   time.Time
}

func (s *stubOverdueMarker) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	s.asOf = asOf
	return s.marked, s.err
}

type stubInvalidator struct {
	months []int
	years  []int
}

func (s *stubInvalidator) InvalidateFinancial(ctx context.Context, month, year int) {
	s.months = append(s.months, month)
	s.years = append(s.years, year)
}

func TestSweepMarksAndInvalidates(t *testing.T) {
	marker := &stubOverdueMarker{marked: 3}
	invalidator := &stubInvalidator{}
	sweeper := NewOverdueSweeper(marker, invalidator, "", nil)
	sweeper.now = func() time.Time { return time.Date(2026, 4, 10, 1, 0, 0, 0, time.UTC) }

	count, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, []int{4}, invalidator.months)
	assert.Equal(t, []int{2026}, invalidator.years)
}

func TestSweepSkipsInvalidationWhenNothingMarked(t *testing.T) {
	invalidator := &stubInvalidator{}
	sweeper := NewOverdueSweeper(&stubOverdueMarker{marked: 0}, invalidator, "", nil)

	count, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, invalidator.months)
}

func TestSweepPropagatesMarkerFailure(t *testing.T) {
	sweeper := NewOverdueSweeper(&stubOverdueMarker{err: errors.New("db down")}, nil, "", nil)

	_, err := sweeper.Sweep(context.Background())
	require.Error(t, err)
}
