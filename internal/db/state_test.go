package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := InitializeSchema(conn); err != nil {
		t.Fatalf("InitializeSchema: %v", err)
	}
	return conn
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestInitializeSchemaIdempotent(t *testing.T) {
	conn := openTestDB(t)
	if err := InitializeSchema(conn); err != nil {
		t.Fatalf("second InitializeSchema: %v", err)
	}
}

func TestLogAndLatestEvent(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	d := 1500 * time.Millisecond

	for _, ev := range []string{EventExtractStart, EventExtractEnd} {
		err := LogFileEvent(ctx, conn, Event{RunID: "r1", Path: "/in/a.zip", FileType: FileTypeArchive, Event: ev, Format: "zip", Duration: &d})
		if err != nil {
			t.Fatalf("LogFileEvent: %v", err)
		}
	}

	event, _, _, found, err := GetLatestFileEvent(ctx, conn, "/in/a.zip", FileTypeArchive)
	if err != nil || !found {
		t.Fatalf("GetLatestFileEvent found=%v err=%v", found, err)
	}
	if event != EventExtractEnd {
		t.Errorf("latest event = %q, want %q", event, EventExtractEnd)
	}

	_, _, _, found, err = GetLatestFileEvent(ctx, conn, "/in/other.zip", FileTypeArchive)
	if err != nil || found {
		t.Errorf("unexpected result for unknown path: found=%v err=%v", found, err)
	}
}

func TestLedgerRecordsUnderRunID(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	ledger := NewLedger(conn, discard())
	if ledger.RunID() == "" {
		t.Fatal("empty run id")
	}

	ledger.Record(ctx, Event{Path: "/in/a.zip", FileType: FileTypeArchive, Event: EventExtractEnd})
	ledger.Record(ctx, Event{Path: "/in/b.zip", FileType: FileTypeArchive, Event: EventExtractEnd})
	ledger.Record(ctx, Event{Path: "/in/c.txt", FileType: FileTypeArchive, Event: EventNotArchive})

	counts, err := RunEventCounts(ctx, conn, ledger.RunID())
	if err != nil {
		t.Fatalf("RunEventCounts: %v", err)
	}
	if counts[EventExtractEnd] != 2 || counts[EventNotArchive] != 1 {
		t.Errorf("counts = %v", counts)
	}

	completed, err := GetCompletedArchives(ctx, conn, discard())
	if err != nil {
		t.Fatalf("GetCompletedArchives: %v", err)
	}
	if !completed["/in/a.zip"] || !completed["/in/b.zip"] || completed["/in/c.txt"] {
		t.Errorf("completed = %v", completed)
	}
}

func TestNilLedgerIsSafe(t *testing.T) {
	var ledger *Ledger
	ledger.Record(context.Background(), Event{Path: "x", Event: EventError})
	if ledger.RunID() != "" || ledger.DB() != nil {
		t.Error("nil ledger should report zero values")
	}
}

func TestGetCompletionStatusBatch(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	ledger := NewLedger(conn, discard())
	ledger.Record(ctx, Event{Path: "/in/done.zip", FileType: FileTypeArchive, Event: EventExtractEnd})
	ledger.Record(ctx, Event{Path: "/in/failed.zip", FileType: FileTypeArchive, Event: EventError})

	status, err := GetCompletionStatusBatch(ctx, conn, []string{"/in/done.zip", "/in/failed.zip", "/in/new.zip", "/in/done.zip"}, FileTypeArchive, EventExtractEnd)
	if err != nil {
		t.Fatalf("GetCompletionStatusBatch: %v", err)
	}
	if !status["/in/done.zip"] || status["/in/failed.zip"] || status["/in/new.zip"] {
		t.Errorf("status = %v", status)
	}
}

func TestExportEventLog(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	ledger := NewLedger(conn, discard())
	ledger.Record(ctx, Event{Path: "/in/a.zip", FileType: FileTypeArchive, Event: EventExtractEnd})

	out, err := ExportEventLog(ctx, conn, t.TempDir(), ledger.RunID(), discard())
	if err != nil {
		t.Fatalf("ExportEventLog: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Fatalf("export file missing or empty: %v", err)
	}

	var n int
	if err := conn.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM read_parquet('%s')", out)).Scan(&n); err != nil {
		t.Fatalf("read back parquet: %v", err)
	}
	if n != 1 {
		t.Errorf("exported rows = %d, want 1", n)
	}
}
