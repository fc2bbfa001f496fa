package moderator

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// WarningStatus describes the cooldown state of a single user.
type WarningStatus struct {
	UserID      int64
	LastWarning time.Time
	Elapsed     time.Duration
	Remaining   time.Duration
}

// Available reports whether the user may be warned again.
func (s WarningStatus) Available() bool {
	return s.Remaining <= 0
}

// Snapshot returns the state of every warned user, most recent warning first.
func (w *Warner) Snapshot(ctx context.Context) ([]WarningStatus, error) {
	records, err := w.Cooldowns.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading warnings: %w", err)
	}

	now := w.now()
	result := make([]WarningStatus, 0, len(records))
	for userID, ts := range records {
		elapsed := max(time.Duration(now.Unix()-ts)*time.Second, 0)
		result = append(result, WarningStatus{
			UserID:      userID,
			LastWarning: time.Unix(ts, 0),
			Elapsed:     elapsed,
			Remaining:   max(w.Cooldown-elapsed, 0),
		})
	}

	slices.SortFunc(result, func(a, b WarningStatus) int {
		if c := b.LastWarning.Compare(a.LastWarning); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})

	return result, nil
}

// FormatStats renders the cooldown records as an HTML message.
func (w *Warner) FormatStats(ctx context.Context) (string, error) {
	statuses, err := w.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("<b>Warning statistics</b>\n\n")

	if len(statuses) == 0 {
		sb.WriteString("No warnings yet.")
		return sb.String(), nil
	}

	for _, s := range statuses {
		status := "available"
		if !s.Available() {
			status = fmt.Sprintf("cooldown %ds", int64(s.Remaining/time.Second))
		}

		fmt.Fprintf(&sb, "ID <code>%d</code>: %s [%s]\n", s.UserID, formatElapsed(s.Elapsed), status)
	}

	fmt.Fprintf(&sb, "\nCooldown: %ds", int64(w.Cooldown/time.Second))
	return sb.String(), nil
}

func formatElapsed(d time.Duration) string {
	seconds := int64(d / time.Second)

	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds ago", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	default:
		return fmt.Sprintf("%dh ago", seconds/3600)
	}
}
