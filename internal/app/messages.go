package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/brensch/flatpack/internal/extractor"
	"github.com/brensch/flatpack/internal/orchestrator"
)

// --- Progress Messages ---

// ProgressMsg updates the overall progress bar.
type ProgressMsg struct {
	Tag      string // Identifier for the overall task (e.g., "Extract")
	Current  int64  // Jobs finished
	Total    int64  // Jobs submitted
	Activity string // Short description of current activity (optional)
}

// FileProgressMsg updates the row for one input.
type FileProgressMsg struct {
	FileID      string        // Unique ID (input path)
	FileName    string        // Display name
	Status      string        // e.g., "Extracting", "Complete", "Error", "Skipped"
	Nested      int           // Nested archives decoded so far
	Produced    int           // Files left on disk
	ElapsedTime time.Duration // Optional: Time taken for this file
	ErrMsg      string        // Error message if Status is "Error"
}

// TaskFinishedMsg signals the completion of the background task.
type TaskFinishedMsg struct {
	Tag       string // Identifier (matches ProgressMsg.Tag)
	Err       error  // Error if the task failed overall
	StartTime time.Time
	EndTime   time.Time
	Message   string // Optional summary message
}

// GeneralErrorMsg signals an error that might not be tied to a specific task.
type GeneralErrorMsg struct {
	Err error
}

// --- Message Constructors ---

func NewProgress(tag string, current, total int64, activity string) ProgressMsg {
	return ProgressMsg{Tag: tag, Current: current, Total: total, Activity: activity}
}

func NewTaskFinished(tag string, start time.Time, err error, msg string) TaskFinishedMsg {
	return TaskFinishedMsg{
		Tag:       tag,
		StartTime: start,
		EndTime:   time.Now(),
		Err:       err,
		Message:   msg,
	}
}

func NewError(err error) GeneralErrorMsg {
	return GeneralErrorMsg{Err: err}
}

// statusOf maps a finished outcome to a row status.
func statusOf(o extractor.Outcome) string {
	switch o.Result {
	case extractor.ResultExtracted, extractor.ResultRescanned:
		if o.NestedFailures > 0 {
			return "Partial"
		}
		return "Complete"
	case extractor.ResultEmpty:
		return "Empty"
	case extractor.ResultMissing, extractor.ResultNotArchive:
		return "Skipped"
	}
	return "Error"
}

// FromProgress translates a coordinator progress event into UI messages.
func FromProgress(tag string, p orchestrator.Progress) (ProgressMsg, FileProgressMsg) {
	fp := FileProgressMsg{FileID: p.Path, FileName: filepath.Base(p.Path), Status: "Extracting"}
	if p.Done {
		fp.Status = statusOf(p.Outcome)
		fp.Nested = p.Outcome.Nested
		fp.Produced = len(p.Outcome.Produced)
		fp.ElapsedTime = p.Elapsed
		if p.Outcome.Err != nil {
			fp.ErrMsg = p.Outcome.Err.Error()
		}
	}
	return NewProgress(tag, int64(p.Completed), int64(p.Total), fp.FileName), fp
}

// Implement the error interface for relevant messages
func (e GeneralErrorMsg) Error() string {
	return e.Err.Error()
}
func (t TaskFinishedMsg) Error() string {
	if t.Err != nil {
		return t.Err.Error()
	}
	return ""
}

func (p ProgressMsg) String() string {
	return fmt.Sprintf("Progress %s: %d/%d", p.Tag, p.Current, p.Total)
}
func (fp FileProgressMsg) String() string {
	return fmt.Sprintf("FileProgress %s: %s", fp.FileID, fp.Status)
}
func (tf TaskFinishedMsg) String() string { return fmt.Sprintf("TaskFinished %s", tf.Tag) }
func (ge GeneralErrorMsg) String() string { return fmt.Sprintf("GeneralError: %s", ge.Err) }
