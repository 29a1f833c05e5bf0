package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

const (
	notEnoughSeriesMessage  = "Need at least 2 snapshots with this metric to draw a trend."
	notEnoughBetweenMessage = "Need at least 2 consecutive snapshots with this metric to compare."
)

type TrendUseCase struct {
	history HistorySource
}

func NewTrendUseCase(history HistorySource) *TrendUseCase {
	return &TrendUseCase{history: history}
}

func (uc *TrendUseCase) Trend(ctx context.Context, sess domain.Session, metric domain.MetricID, mode domain.TrendMode) (*domain.Trend, error) {
	info, ok := domain.LookupMetric(metric)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "trend", fmt.Errorf("unknown metric %q", metric))
	}
	if mode == "" {
		mode = domain.TrendTimeSeries
	}
	if !mode.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "trend", fmt.Errorf("unknown mode %q", mode))
	}

	timeline, err := uc.history.History(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	oldestFirst := reversed(timeline)

	var trend domain.Trend
	switch mode {
	case domain.TrendBetweenReports:
		trend = BetweenReports(oldestFirst, info)
	default:
		trend = TimeSeries(oldestFirst, info)
	}
	return &trend, nil
}

// TimeSeries builds one point per snapshot (oldest first) and fits a least
// squares line over the non-null points.
func TimeSeries(oldestFirst []domain.TimelineEntry, metric domain.MetricInfo) domain.Trend {
	trend := domain.Trend{Metric: metric, Mode: domain.TrendTimeSeries}
	points := make([]domain.TrendPoint, 0, len(oldestFirst))
	xs := make([]float64, 0, len(oldestFirst))
	ys := make([]float64, 0, len(oldestFirst))

	for i, entry := range oldestFirst {
		point := domain.TrendPoint{
			Index:      i,
			SnapshotID: entry.Snapshot.ID,
			Label:      DateLabel(entry.Snapshot),
		}
		if v, ok := MetricValue(entry.Detail, metric.ID); ok {
			value := v
			point.Value = &value
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
		points = append(points, point)
	}
	trend.Points = points

	slope, intercept, ok := FitLine(xs, ys)
	if len(ys) < 2 || !ok {
		trend.Enough = false
		trend.Message = notEnoughSeriesMessage
		return trend
	}

	trend.Enough = true
	trend.Line = &domain.TrendLine{
		Slope:     slope,
		Intercept: intercept,
		Direction: trendDirection(slope),
	}
	for i := range trend.Points {
		fitted := slope*float64(trend.Points[i].Index) + intercept
		trend.Points[i].Fitted = &fitted
	}
	return trend
}

// BetweenReports emits one delta per consecutive pair of snapshots where both
// values are present. Pairs with a missing side are skipped, not bridged.
func BetweenReports(oldestFirst []domain.TimelineEntry, metric domain.MetricInfo) domain.Trend {
	trend := domain.Trend{Metric: metric, Mode: domain.TrendBetweenReports}
	between := make([]domain.BetweenPoint, 0, len(oldestFirst))

	for i := 1; i < len(oldestFirst); i++ {
		prev, curr := oldestFirst[i-1], oldestFirst[i]
		pv, ok := MetricValue(prev.Detail, metric.ID)
		if !ok {
			continue
		}
		cv, ok := MetricValue(curr.Detail, metric.ID)
		if !ok {
			continue
		}
		between = append(between, domain.BetweenPoint{
			FromID: prev.Snapshot.ID,
			ToID:   curr.Snapshot.ID,
			Label:  DateLabel(prev.Snapshot) + " → " + DateLabel(curr.Snapshot),
			Delta:  roundTo(cv-pv, 2),
		})
	}

	trend.Between = between
	trend.Enough = len(between) > 0
	if !trend.Enough {
		trend.Message = notEnoughBetweenMessage
	}
	return trend
}

// FitLine is ordinary least squares over (x, y). ok is false when fewer than
// two points are given or all x are equal.
func FitLine(xs, ys []float64) (slope, intercept float64, ok bool) {
	n := float64(len(xs))
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, 0, false
	}

	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}

func trendDirection(slope float64) domain.TrendDirection {
	switch {
	case slope > domain.StableSlopeThreshold:
		return domain.TrendImproving
	case slope < -domain.StableSlopeThreshold:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

// DateLabel is the short axis label of a snapshot, e.g. "Feb 8".
func DateLabel(s domain.Snapshot) string {
	return s.EffectiveTime().Format("Jan 2")
}

func reversed(timeline []domain.TimelineEntry) []domain.TimelineEntry {
	out := make([]domain.TimelineEntry, len(timeline))
	for i, entry := range timeline {
		out[len(timeline)-1-i] = entry
	}
	return out
}
