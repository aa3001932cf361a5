package agenda

import (
	"fmt"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/store"
)

// GeneralTaskID marks a tracker that is not tied to any task.
const GeneralTaskID = 0

// AddTracker schedules a PENDING check-in. The time is validated with the
// same parsers the check-in loop uses and stored in CanonicalLayout.
func AddTracker(st *store.UserState, taskID int, checkIn string, loc *time.Location) (*store.ProgressTracker, error) {
	at, err := ParseCheckInTime(checkIn, loc)
	if err != nil {
		return nil, err
	}
	if taskID != GeneralTaskID && st.FindTask(taskID) == nil {
		return nil, naviErrors.NotFound(fmt.Sprintf("task %d", taskID))
	}

	id := st.Metadata.NextProgressTrackerID
	st.Metadata.NextProgressTrackerID++
	st.ProgressTrackers = append(st.ProgressTrackers, store.ProgressTracker{
		TrackerID:   id,
		TaskID:      taskID,
		CheckInTime: FormatCheckInTime(at, loc),
		Status:      store.TrackerPending,
	})
	return &st.ProgressTrackers[len(st.ProgressTrackers)-1], nil
}

// DueTracker is a pending tracker whose time has come.
type DueTracker struct {
	TrackerID int
	TaskID    int
	At        time.Time
}

// UnparseableTracker is a pending tracker whose time could not be read.
type UnparseableTracker struct {
	TrackerID   int
	CheckInTime string
	Err         error
}

// DueTrackers scans pending trackers in document order. Trackers with an
// unreadable time are reported separately and stay PENDING.
func DueTrackers(st *store.UserState, now time.Time, loc *time.Location) ([]DueTracker, []UnparseableTracker) {
	var due []DueTracker
	var bad []UnparseableTracker
	for _, tr := range st.ProgressTrackers {
		if tr.Status != store.TrackerPending {
			continue
		}
		at, err := ParseCheckInTime(tr.CheckInTime, loc)
		if err != nil {
			bad = append(bad, UnparseableTracker{TrackerID: tr.TrackerID, CheckInTime: tr.CheckInTime, Err: err})
			continue
		}
		if !now.Before(at) {
			due = append(due, DueTracker{TrackerID: tr.TrackerID, TaskID: tr.TaskID, At: at})
		}
	}
	return due, bad
}

// MarkNotified moves a tracker from PENDING to NOTIFIED. It reports false
// when the tracker is missing or already notified; NOTIFIED is terminal.
func MarkNotified(st *store.UserState, trackerID int) bool {
	tr := st.FindTracker(trackerID)
	if tr == nil || tr.Status != store.TrackerPending {
		return false
	}
	tr.Status = store.TrackerNotified
	return true
}

// PendingTrackers lists trackers that have not fired yet.
func PendingTrackers(st *store.UserState) []store.ProgressTracker {
	var out []store.ProgressTracker
	for _, tr := range st.ProgressTrackers {
		if tr.Status == store.TrackerPending {
			out = append(out, tr)
		}
	}
	return out
}
