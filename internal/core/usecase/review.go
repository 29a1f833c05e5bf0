package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/ports"
)

const reviewAudioMime = "audio/mpeg"

type ReviewUseCase struct {
	history HistorySource
	writer  ports.ReviewWriter
	speech  ports.SpeechSynthesizer
	storage ports.ObjectStorage
}

func NewReviewUseCase(
	history HistorySource,
	writer ports.ReviewWriter,
	speech ports.SpeechSynthesizer,
	storage ports.ObjectStorage,
) *ReviewUseCase {
	return &ReviewUseCase{
		history: history,
		writer:  writer,
		speech:  speech,
		storage: storage,
	}
}

// Review returns the spoken review of a snapshot against its reference. A
// previously generated review is served from object storage.
func (uc *ReviewUseCase) Review(ctx context.Context, sess domain.Session, snapshotID string) (*domain.VoiceReview, error) {
	timeline, err := uc.history.History(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	idx := indexOf(timeline, snapshotID)
	if idx < 0 {
		return nil, domain.WrapError(domain.ErrSnapshotNotFound, "voice review", fmt.Errorf("id=%s", snapshotID))
	}
	current := timeline[idx]
	reference, hasReference := FindReference(timeline, snapshotID)

	review := &domain.VoiceReview{SnapshotID: snapshotID, MimeType: reviewAudioMime}
	if hasReference {
		review.ReferenceID = reference.Snapshot.ID
	}
	if uc.loadCached(ctx, review) {
		return review, nil
	}

	previous := ""
	if hasReference {
		previous = SummarizeEntry(reference)
	}
	reviewText, err := uc.writer.WriteReview(ctx, sess, SummarizeEntry(current), previous)
	if err != nil {
		return nil, fmt.Errorf("write review text: %w", err)
	}
	audio, mime, err := uc.speech.Synthesize(ctx, reviewText)
	if err != nil {
		return nil, fmt.Errorf("synthesize review audio: %w", err)
	}

	review.Text = reviewText
	review.Audio = audio
	if mime != "" {
		review.MimeType = mime
	}
	uc.storeCached(ctx, review)
	return review, nil
}

func (uc *ReviewUseCase) loadCached(ctx context.Context, review *domain.VoiceReview) bool {
	if uc.storage == nil {
		return false
	}
	cachedText, err := uc.readObject(ctx, reviewTextKey(review.SnapshotID))
	if err != nil {
		return false
	}
	audio, err := uc.readObject(ctx, reviewAudioKey(review.SnapshotID))
	if err != nil {
		return false
	}
	review.Text = string(cachedText)
	review.Audio = audio
	return true
}

func (uc *ReviewUseCase) storeCached(ctx context.Context, review *domain.VoiceReview) {
	if uc.storage == nil {
		return
	}
	if err := uc.storage.Save(ctx, reviewAudioKey(review.SnapshotID), bytes.NewReader(review.Audio)); err != nil {
		slog.Warn("review_cache_store_failed", "snapshot_id", review.SnapshotID, "error", err)
		return
	}
	if err := uc.storage.Save(ctx, reviewTextKey(review.SnapshotID), strings.NewReader(review.Text)); err != nil {
		slog.Warn("review_cache_store_failed", "snapshot_id", review.SnapshotID, "error", err)
	}
}

func (uc *ReviewUseCase) readObject(ctx context.Context, key string) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func reviewAudioKey(snapshotID string) string {
	return fmt.Sprintf("%s/%s.mp3", domain.AudioBucket, snapshotID)
}

func reviewTextKey(snapshotID string) string {
	return fmt.Sprintf("%s/%s.txt", domain.AudioBucket, snapshotID)
}

// SummarizeEntry renders a snapshot as plain text for the review writer.
func SummarizeEntry(entry domain.TimelineEntry) string {
	date := "Unknown date"
	if entry.Snapshot.CapturedAt != nil {
		date = entry.Snapshot.CapturedAt.Format("2 January 2006")
	}

	var b strings.Builder
	switch d := entry.Detail.(type) {
	case *domain.RideMenu:
		fmt.Fprintf(&b, "Ride on %s:\n", date)
		fmt.Fprintf(&b, "- Distance: %s km\n", num(d.ThisRide.DistanceKm))
		fmt.Fprintf(&b, "- Duration: %s minutes\n", num(d.ThisRide.DurationMinutes))
		fmt.Fprintf(&b, "- Elevation: %s m\n", num(d.ThisRide.ElevationM))
		fmt.Fprintf(&b, "- Calories: %s kcal\n", num(d.ThisRide.Calories))
		fmt.Fprintf(&b, "- Average Power: %s W\n", num(d.Averages.AvgPowerW))
		fmt.Fprintf(&b, "- Average Heart Rate: %s bpm\n", optionalNum(d.Averages.AvgHeartRateBPM))
		fmt.Fprintf(&b, "- Best 5s power: %s W\n", num(d.ThisRide.Power5sW))
		fmt.Fprintf(&b, "- Best 1min power: %s W\n", num(d.ThisRide.Power1mW))
		fmt.Fprintf(&b, "- Best 5min power: %s W\n", num(d.ThisRide.Power5mW))
		fmt.Fprintf(&b, "- Best 20min power: %s W\n", num(d.ThisRide.Power20mW))
		fmt.Fprintf(&b, "- Rider Score: %s\n", num(d.RiderScore.Score))
		fmt.Fprintf(&b, "- Total Distance to date: %s km", num(d.Totals.TotalDistanceKm))
	case *domain.ProgressReport:
		if d.Performance == nil && d.Fitness == nil {
			return "No progress report data available."
		}
		level, xp := "N/A", "N/A"
		if d.Career != nil {
			level = strconv.Itoa(d.Level)
			xp = num(d.Career.ThisRideXP)
		}
		fmt.Fprintf(&b, "Progress Report on %s:\n", date)
		fmt.Fprintf(&b, "- Level: %s\n", level)
		fmt.Fprintf(&b, "- XP this ride: %s\n", xp)
		if p := d.Performance; p != nil {
			fmt.Fprintf(&b, "- FTP: %s W\n", num(p.FTPW))
			fmt.Fprintf(&b, "- Racing Score: %s\n", num(p.RacingScore))
			fmt.Fprintf(&b, "- Best 5s: %s W, 1min: %s W, 5min: %s W, 20min: %s W\n",
				num(p.Best5sW), num(p.Best1mW), num(p.Best5mW), num(p.Best20mW))
		}
		if f := d.Fitness; f != nil {
			fmt.Fprintf(&b, "- Weekly progress: %s / %s km\n", num(f.WeeklyProgressKm), num(f.WeeklyGoalKm))
			fmt.Fprintf(&b, "- Total distance: %s km\n", num(f.TotalDistanceKm))
		}
		if t := d.Training; t != nil {
			fmt.Fprintf(&b, "- Training Score: %s (delta: %s)\n", num(t.TrainingScore), num(t.TrainingScoreDelta))
			fmt.Fprintf(&b, "- Freshness: %s", t.FreshnessState)
		}
	default:
		if entry.Snapshot.ScreenType == domain.ScreenRideMenu {
			return "No ride menu data available."
		}
		return "No progress report data available."
	}
	return strings.TrimSpace(b.String())
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalNum(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return num(*v)
}
