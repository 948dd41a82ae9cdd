package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// Export file names, one JSON object per line.
const (
	TasksFile       = "tasks.jsonl"
	CompletionsFile = "task_completion.jsonl"
	NotesFile       = "task_notes.jsonl"
)

// ExportResult counts the records written per file.
type ExportResult struct {
	Tasks       int
	Completions int
	Notes       int
}

// ExportUser writes every task, completion and note owned by userID into
// dir as JSONL. Each file is replaced atomically.
func (b *Backend) ExportUser(ctx context.Context, userID, dir string) (ExportResult, error) {
	var result ExportResult

	db, err := b.handle()
	if err != nil {
		return result, err
	}
	if _, err := b.GetUser(ctx, userID); err != nil {
		return result, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, fmt.Errorf("create export dir: %w", err)
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var tasks []taskRow
	if err := db.SelectContext(ctx, &tasks,
		db.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY created_at, task_id`), userID); err != nil {
		return result, types.Persistence("export tasks", err)
	}
	hydrated, err := hydrateTasks(tasks)
	if err != nil {
		return result, err
	}
	if result.Tasks, err = writeRecords(filepath.Join(dir, TasksFile), hydrated); err != nil {
		return result, err
	}

	var completions []completionRow
	if err := db.SelectContext(ctx, &completions,
		db.Rebind(`SELECT `+completionColumns+` FROM task_completion WHERE user_id = ? ORDER BY completion_date, task_id`), userID); err != nil {
		return result, types.Persistence("export completions", err)
	}
	if result.Completions, err = writeRecords(filepath.Join(dir, CompletionsFile), hydrateCompletions(completions)); err != nil {
		return result, err
	}

	var notes []noteRow
	if err := db.SelectContext(ctx, &notes,
		db.Rebind(`SELECT `+noteColumns+` FROM task_notes WHERE user_id = ? ORDER BY created_at, note_id`), userID); err != nil {
		return result, types.Persistence("export notes", err)
	}
	hydratedNotes, err := hydrateNotes(notes)
	if err != nil {
		return result, err
	}
	if result.Notes, err = writeRecords(filepath.Join(dir, NotesFile), hydratedNotes); err != nil {
		return result, err
	}
	return result, nil
}

// writeRecords marshals each record and hands them to writeJSONL.
func writeRecords[T any](path string, records []T) (int, error) {
	lines := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("marshaling record for %s: %w", filepath.Base(path), err)
		}
		lines = append(lines, data)
	}
	if err := writeJSONL(path, lines); err != nil {
		return 0, err
	}
	return len(lines), nil
}

// writeJSONL writes records to path through a temp file, fsync and
// rename, so readers never observe a partial file.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(format string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf(format, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
