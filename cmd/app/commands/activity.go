package commands

import (
	"fmt"
	"io"
	"time"

	activityDomain "github.com/alexfok/gate-controller/internal/activity/domain"
	activityUsecase "github.com/alexfok/gate-controller/internal/activity/usecase"
)

// RunListActivity lists recent activity entries, newest first, optionally
// filtered by event type and capped at limit (0 for all).
func RunListActivity(
	recorder *activityUsecase.Recorder,
	writer io.Writer,
	limit int,
	eventType string,
	format string,
) error {
	entries := recorder.Entries(limit, activityDomain.EventType(eventType))

	if format == "json" {
		writeJSON(entries, writer)
		return nil
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(writer, "No activity recorded.")
		return nil
	}

	for _, entry := range entries {
		_, _ = fmt.Fprintf(writer, "%s  %-18s  %s\n",
			entry.Timestamp.Format(time.RFC3339), entry.Type, entry.Message)
	}

	return nil
}

// RunClearActivity clears the activity log.
func RunClearActivity(recorder *activityUsecase.Recorder, writer io.Writer) error {
	recorder.Clear()
	_, _ = fmt.Fprintln(writer, "Activity log cleared.")
	return nil
}
