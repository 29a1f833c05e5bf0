package usecase

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

// HistorySource returns the full timeline of a user, newest first, without
// resolving image URLs.
type HistorySource interface {
	History(ctx context.Context, sess domain.Session) ([]domain.TimelineEntry, error)
}

type CompareUseCase struct {
	history HistorySource
	rules   []domain.DeltaRule
}

func NewCompareUseCase(history HistorySource, rules []domain.DeltaRule) *CompareUseCase {
	if len(rules) == 0 {
		rules = domain.DefaultDeltaRules()
	}
	return &CompareUseCase{history: history, rules: rules}
}

func (uc *CompareUseCase) Compare(ctx context.Context, sess domain.Session, snapshotID string) (*domain.Comparison, error) {
	timeline, err := uc.history.History(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	idx := indexOf(timeline, snapshotID)
	if idx < 0 {
		return nil, domain.WrapError(domain.ErrSnapshotNotFound, "compare snapshot", fmt.Errorf("id=%s", snapshotID))
	}
	current := timeline[idx]

	reference, ok := FindReference(timeline, snapshotID)
	if !ok {
		return &domain.Comparison{
			SnapshotID: snapshotID,
			Available:  false,
			Message:    domain.NoComparisonMessage,
			Deltas:     []domain.Delta{},
		}, nil
	}

	return &domain.Comparison{
		SnapshotID:  snapshotID,
		ReferenceID: reference.Snapshot.ID,
		Available:   true,
		Deltas:      Compare(current.Detail, reference.Detail, uc.rules),
	}, nil
}

// FindReference returns the nearest earlier entry of the same screen type as
// the target. The timeline must be ordered newest first.
func FindReference(timeline []domain.TimelineEntry, targetID string) (domain.TimelineEntry, bool) {
	idx := indexOf(timeline, targetID)
	if idx < 0 {
		return domain.TimelineEntry{}, false
	}
	screen := timeline[idx].Snapshot.ScreenType
	for _, candidate := range timeline[idx+1:] {
		if candidate.Snapshot.ScreenType == screen {
			return candidate, true
		}
	}
	return domain.TimelineEntry{}, false
}

// Compare computes the displayed deltas between two detail records.
func Compare(current, previous domain.Detail, rules []domain.DeltaRule) []domain.Delta {
	out := make([]domain.Delta, 0, len(rules))
	for _, rule := range rules {
		cur, ok := MetricValue(current, rule.Metric)
		if !ok {
			continue
		}
		prev, ok := MetricValue(previous, rule.Metric)
		if !ok {
			continue
		}

		diff := roundTo(cur-prev, 2)
		if rule.Policy == domain.PolicyIncreaseOnly && diff <= 0 {
			continue
		}

		delta := domain.Delta{
			Metric:     rule.Metric,
			Label:      rule.Label,
			Unit:       rule.Unit,
			Policy:     rule.Policy,
			Previous:   prev,
			Current:    cur,
			Difference: diff,
			Direction:  directionOf(diff),
			ShowFromTo: rule.ShowFromTo,
		}
		delta.Text = deltaText(delta)
		out = append(out, delta)
	}
	return out
}

func directionOf(diff float64) domain.Direction {
	switch {
	case diff > 0:
		return domain.DirectionUp
	case diff < 0:
		return domain.DirectionDown
	default:
		return domain.DirectionNone
	}
}

func deltaText(d domain.Delta) string {
	if d.Direction == domain.DirectionNone {
		return "No change"
	}
	sign := "+"
	if d.Difference < 0 {
		sign = "-"
	}
	out := sign + formatNumber(math.Abs(d.Difference))
	if d.Unit != "" {
		out += " " + d.Unit
	}
	if d.ShowFromTo {
		out += fmt.Sprintf(" (%s → %s)", formatNumber(d.Previous), formatNumber(d.Current))
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(roundTo(v, 2), 'f', -1, 64)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func indexOf(timeline []domain.TimelineEntry, id string) int {
	for i, entry := range timeline {
		if entry.Snapshot.ID == id {
			return i
		}
	}
	return -1
}
