package store

import (
	"context"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

const noteColumns = `note_id, task_id, user_id, note, created_at`

// noteRow mirrors the task_notes table.
type noteRow struct {
	NoteID    string `db:"note_id"`
	TaskID    string `db:"task_id"`
	UserID    string `db:"user_id"`
	Note      string `db:"note"`
	CreatedAt string `db:"created_at"`
}

// AddNote inserts n and fills in its ID and timestamp.
func (b *Backend) AddNote(ctx context.Context, n *types.TaskNote) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	created, stamp := b.timestamp()
	id := newID()
	_, err = db.ExecContext(ctx,
		db.Rebind(`INSERT INTO task_notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?)`),
		id, n.TaskID, n.UserID, n.Note, stamp)
	if err != nil {
		return types.Persistence("add note", err)
	}
	n.NoteID = id
	n.CreatedAt = created
	return nil
}

// ListNotes returns the notes of taskID, newest first.
func (b *Backend) ListNotes(ctx context.Context, taskID string) ([]types.TaskNote, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var rows []noteRow
	err = db.SelectContext(ctx, &rows,
		db.Rebind(`SELECT `+noteColumns+` FROM task_notes WHERE task_id = ? ORDER BY created_at DESC, note_id DESC`),
		taskID)
	if err != nil {
		return nil, types.Persistence("list notes", err)
	}
	return hydrateNotes(rows)
}

func hydrateNotes(rows []noteRow) ([]types.TaskNote, error) {
	notes := make([]types.TaskNote, 0, len(rows))
	for _, r := range rows {
		created, err := parseTimestamp("created_at", r.CreatedAt)
		if err != nil {
			return nil, err
		}
		notes = append(notes, types.TaskNote{
			NoteID:    r.NoteID,
			TaskID:    r.TaskID,
			UserID:    r.UserID,
			Note:      r.Note,
			CreatedAt: created,
		})
	}
	return notes, nil
}
