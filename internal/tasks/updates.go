package tasks

import (
	"fmt"

	"github.com/desertthunder/threadx/internal/models"
)

// ProgressUpdate represents a progress event while a thread is being posted.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase    Phase   // Operation phase
	Step     int     // Completed work units
	Total    int     // Work units in this run
	Fraction float64 // Step/Total, 0 after a failure
	Message  string  // Human-readable message for display
	Data     any     // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Prepare Phase = iota
	UploadMedia
	PublishItem
	Complete
	Failed
)

func (p Phase) String() string {
	switch p {
	case Prepare:
		return "prepare"
	case UploadMedia:
		return "upload_media"
	case PublishItem:
		return "publish_item"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func fraction(step, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(step) / float64(total)
}

func prepareUpdate(total, items int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Prepare,
		Total:   total,
		Message: fmt.Sprintf("Posting %d item(s)...", items),
	}
}

func uploadUpdate(step, total, item, n, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:    UploadMedia,
		Step:     step,
		Total:    total,
		Fraction: fraction(step, total),
		Message:  fmt.Sprintf("[%d/%d] Uploaded image %d/%d for item %d", step, total, n, count, item+1),
	}
}

func publishUpdate(step, total, item int, post *models.PublishedPost) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PublishItem,
		Step:     step,
		Total:    total,
		Fraction: fraction(step, total),
		Message:  fmt.Sprintf("[%d/%d] ✓ Item %d posted: %s", step, total, item+1, post.ViewURL()),
		Data:     post,
	}
}

func completeUpdate(total int, thread *models.Thread) ProgressUpdate {
	return ProgressUpdate{
		Phase:    Complete,
		Step:     total,
		Total:    total,
		Fraction: 1,
		Message:  fmt.Sprintf("Thread #%d posted", thread.Sequence()),
		Data:     thread,
	}
}

func failedUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ Posting failed: %v", err),
	}
}
