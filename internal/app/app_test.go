package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brensch/flatpack/internal/extractor"
	"github.com/brensch/flatpack/internal/orchestrator"

	tea "github.com/charmbracelet/bubbletea"
)

func noopTask(ctx context.Context, progress chan<- orchestrator.Progress) error { return nil }

func TestFromProgress(t *testing.T) {
	start := orchestrator.Progress{Index: 0, Total: 3, Path: "/in/photos.zip"}
	overall, file := FromProgress("Extract", start)
	if file.Status != "Extracting" || file.FileName != "photos.zip" || file.FileID != "/in/photos.zip" {
		t.Errorf("start row = %+v", file)
	}
	if overall.Total != 3 || overall.Current != 0 || overall.Tag != "Extract" {
		t.Errorf("start overall = %+v", overall)
	}

	done := orchestrator.Progress{
		Total:     3,
		Path:      "/in/photos.zip",
		Done:      true,
		Completed: 2,
		Elapsed:   time.Second,
		Outcome: extractor.Outcome{
			Result:         extractor.ResultExtracted,
			Nested:         2,
			NestedFailures: 1,
			Produced:       []string{"a", "b", "c"},
		},
	}
	overall, file = FromProgress("Extract", done)
	if file.Status != "Partial" || file.Nested != 2 || file.Produced != 3 || file.ElapsedTime != time.Second {
		t.Errorf("done row = %+v", file)
	}
	if overall.Current != 2 {
		t.Errorf("done overall = %+v", overall)
	}
}

func TestStatusOf(t *testing.T) {
	cases := map[extractor.Result]string{
		extractor.ResultExtracted:  "Complete",
		extractor.ResultRescanned:  "Complete",
		extractor.ResultEmpty:      "Empty",
		extractor.ResultMissing:    "Skipped",
		extractor.ResultNotArchive: "Skipped",
		extractor.ResultFailed:     "Error",
	}
	for r, want := range cases {
		if got := statusOf(extractor.Outcome{Result: r}); got != want {
			t.Errorf("statusOf(%s) = %s, want %s", r, got, want)
		}
	}
}

func TestUpdateTracksRows(t *testing.T) {
	m := NewAppModel(context.Background(), "flatpack", "Extract", noopTask, nil)

	m.Update(NewProgress("Extract", 0, 2, "a.zip"))
	m.Update(FileProgressMsg{FileID: "/a.zip", FileName: "a.zip", Status: "Extracting"})
	m.Update(FileProgressMsg{FileID: "/a.zip", FileName: "a.zip", Status: "Error", ErrMsg: "decode failed"})
	m.Update(NewProgress("Extract", 1, 2, "a.zip"))
	// A late start event must not move the bar backwards.
	m.Update(NewProgress("Extract", 0, 2, "b.zip"))

	if len(m.fileOrder) != 1 {
		t.Fatalf("rows = %v", m.fileOrder)
	}
	if fp := m.fileProgress["/a.zip"]; fp.Status != "Error" || fp.ErrMsg != "decode failed" {
		t.Errorf("row = %+v", fp)
	}
	if m.overallCurrent != 1 || m.overallTotal != 2 {
		t.Errorf("overall = %d/%d", m.overallCurrent, m.overallTotal)
	}
	view := m.View()
	if !strings.Contains(view, "a.zip") || !strings.Contains(view, "decode failed") {
		t.Errorf("view missing row:\n%s", view)
	}
}

func TestUpdateTaskFinished(t *testing.T) {
	m := NewAppModel(context.Background(), "flatpack", "Extract", noopTask, nil)
	_, cmd := m.Update(NewTaskFinished("Extract", time.Now(), nil, "Finished 2/2 inputs."))
	if m.State != Finished || cmd == nil {
		t.Fatalf("state = %v", m.State)
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("finished task should quit")
	}

	m = NewAppModel(context.Background(), "flatpack", "Extract", noopTask, nil)
	m.Update(NewTaskFinished("Extract", time.Now(), errors.New("boom"), ""))
	if m.State != ShowError || m.FatalErr == nil {
		t.Errorf("state = %v err = %v", m.State, m.FatalErr)
	}
	if !strings.Contains(m.View(), "boom") {
		t.Error("error view missing message")
	}
}

func TestQuitCancelsTask(t *testing.T) {
	m := NewAppModel(context.Background(), "flatpack", "Extract", noopTask, nil)
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.Quitting || m.State != Exiting {
		t.Errorf("quitting=%v state=%v", m.Quitting, m.State)
	}
	if m.ctx.Err() == nil {
		t.Error("task context not cancelled")
	}
}

func TestRunTaskDeliversFinish(t *testing.T) {
	task := func(ctx context.Context, progress chan<- orchestrator.Progress) error {
		progress <- orchestrator.Progress{Total: 1, Path: "/x.zip"}
		progress <- orchestrator.Progress{Total: 1, Path: "/x.zip", Done: true, Completed: 1,
			Outcome: extractor.Outcome{Result: extractor.ResultEmpty}}
		return nil
	}
	m := NewAppModel(context.Background(), "flatpack", "Extract", task, nil)
	m.taskStartTime = time.Now()
	ch := make(chan tea.Msg)
	m.uiMsgChan = ch
	m.startTask(ch)()

	var finished bool
	for msg := range ch {
		m.Update(msg)
		if _, ok := msg.(TaskFinishedMsg); ok {
			finished = true
		}
	}
	if !finished || m.State != Finished {
		t.Fatalf("finished=%v state=%v", finished, m.State)
	}
	if m.fileProgress["/x.zip"].Status != "Empty" {
		t.Errorf("row = %+v", m.fileProgress["/x.zip"])
	}
}

func TestWrapText(t *testing.T) {
	if got := wrapText("one two three", 7); got != "one two\nthree" {
		t.Errorf("wrapText = %q", got)
	}
}
