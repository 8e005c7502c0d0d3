// Package store provides the SQLite-backed workspace state: the committed
// baseline, pending changes, deleted items and the local changeset history.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"tfvc/internal/util"
	"tfvc/internal/vc"
)

//go:embed schema.sql
var schema string

const (
	metaNextItemID    = "next_item_id"
	metaNextChangeset = "next_changeset"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs statements against a connection or a transaction.
type Queries struct {
	db dbtx
}

// DB wraps the SQLite database connection.
type DB struct {
	*Queries
	conn *sql.DB
}

// BaselineItem is a committed item the workspace is synchronized to.
type BaselineItem struct {
	ServerPath string
	ItemID     int64
	IsFolder   bool
	Hash       string
	Size       int64
	Changeset  int
}

// DeletedItem is an item removed by a checked-in delete.
type DeletedItem struct {
	DeletionID int
	ServerPath string
	ItemID     int64
	IsFolder   bool
	Hash       string
	Size       int64
}

// Changeset is a checked-in batch of pending changes.
type Changeset struct {
	Number    int
	Comment   string
	Count     int
	CreatedAt int64
}

// Open opens or creates the database at the given path and applies the schema.
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Wait up to 5s on lock instead of failing immediately
	conn.Exec("PRAGMA busy_timeout=5000")
	conn.Exec("PRAGMA foreign_keys=ON")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{Queries: &Queries{db: conn}, conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Update runs fn inside a transaction, committing if it returns nil.
func (db *DB) Update(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&Queries{db: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// --- Meta ---

// Meta returns a metadata value and whether it was set.
func (q *Queries) Meta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := q.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying meta %s: %w", key, err)
	}
	return value, true, nil
}

// SetMeta writes a metadata value.
func (q *Queries) SetMeta(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("setting meta %s: %w", key, err)
	}
	return nil
}

// next increments a counter stored in meta and returns the previous value.
func (q *Queries) next(ctx context.Context, key string) (int64, error) {
	value, ok, err := q.Meta(ctx, key)
	if err != nil {
		return 0, err
	}
	n := int64(1)
	if ok {
		n, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing meta %s: %w", key, err)
		}
	}
	if err := q.SetMeta(ctx, key, strconv.FormatInt(n+1, 10)); err != nil {
		return 0, err
	}
	return n, nil
}

// NextItemID allocates a new item id.
func (q *Queries) NextItemID(ctx context.Context) (int64, error) {
	return q.next(ctx, metaNextItemID)
}

// NextChangeset allocates a new changeset number.
func (q *Queries) NextChangeset(ctx context.Context) (int, error) {
	n, err := q.next(ctx, metaNextChangeset)
	return int(n), err
}

// --- Baseline ---

const baselineColumns = `server_path, item_id, is_folder, hash, size, changeset`

func scanBaseline(row interface{ Scan(...any) error }) (BaselineItem, error) {
	var item BaselineItem
	err := row.Scan(&item.ServerPath, &item.ItemID, &item.IsFolder, &item.Hash, &item.Size, &item.Changeset)
	return item, err
}

// Baseline returns the committed item at serverPath, or nil if there is none.
func (q *Queries) Baseline(ctx context.Context, serverPath string) (*BaselineItem, error) {
	item, err := scanBaseline(q.db.QueryRowContext(ctx,
		`SELECT `+baselineColumns+` FROM baseline_items WHERE server_path = ?`, serverPath))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying baseline item: %w", err)
	}
	return &item, nil
}

// BaselineItems returns every committed item ordered by path.
func (q *Queries) BaselineItems(ctx context.Context) ([]BaselineItem, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+baselineColumns+` FROM baseline_items ORDER BY server_path`)
	if err != nil {
		return nil, fmt.Errorf("querying baseline: %w", err)
	}
	defer rows.Close()

	var items []BaselineItem
	for rows.Next() {
		item, err := scanBaseline(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// PutBaseline inserts or replaces a committed item. File content is stored
// compressed; folders carry no content.
func (q *Queries) PutBaseline(ctx context.Context, item BaselineItem, content []byte) error {
	var blob []byte
	if !item.IsFolder {
		var err error
		if blob, err = Compress(content); err != nil {
			return err
		}
		item.Hash = util.Blake3HashHex(content)
		item.Size = int64(len(content))
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO baseline_items (server_path, item_id, is_folder, hash, size, changeset, blob)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.ServerPath, item.ItemID, item.IsFolder, item.Hash, item.Size, item.Changeset, blob)
	if err != nil {
		return fmt.Errorf("storing baseline item: %w", err)
	}
	return nil
}

// MoveBaseline changes the server path of one committed item.
func (q *Queries) MoveBaseline(ctx context.Context, from, to string, changeset int) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE baseline_items SET server_path = ?, changeset = ? WHERE server_path = ?
	`, to, changeset, from)
	if err != nil {
		return fmt.Errorf("moving baseline item: %w", err)
	}
	return nil
}

// DeleteBaseline removes a committed item without archiving it.
func (q *Queries) DeleteBaseline(ctx context.Context, serverPath string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM baseline_items WHERE server_path = ?`, serverPath); err != nil {
		return fmt.Errorf("deleting baseline item: %w", err)
	}
	return nil
}

// BaselineContent returns the committed content of a file.
func (q *Queries) BaselineContent(ctx context.Context, serverPath string) ([]byte, error) {
	var blob []byte
	err := q.db.QueryRowContext(ctx, `SELECT blob FROM baseline_items WHERE server_path = ?`, serverPath).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no baseline content for %s", serverPath)
	}
	if err != nil {
		return nil, fmt.Errorf("querying baseline content: %w", err)
	}
	return Decompress(blob)
}

// --- Pending changes ---

const pendingColumns = `server_item, item_id, change_type, local_item, source_server_item, lock_level, deletion_id, is_folder`

func scanPending(row interface{ Scan(...any) error }) (vc.PendingChange, error) {
	var pc vc.PendingChange
	var changeType, lockLevel int
	err := row.Scan(&pc.ServerItem, &pc.ItemID, &changeType, &pc.LocalItem,
		&pc.SourceServerItem, &lockLevel, &pc.DeletionID, &pc.IsFolder)
	pc.ChangeType = vc.ChangeType(changeType)
	pc.LockLevel = vc.LockLevel(lockLevel)
	return pc, err
}

// PendingChanges returns every pending change ordered by server item.
func (q *Queries) PendingChanges(ctx context.Context) ([]vc.PendingChange, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_changes ORDER BY server_item`)
	if err != nil {
		return nil, fmt.Errorf("querying pending changes: %w", err)
	}
	defer rows.Close()

	var changes []vc.PendingChange
	for rows.Next() {
		pc, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		changes = append(changes, pc)
	}
	return changes, rows.Err()
}

// PendingChange returns the pending change on serverItem, or nil.
func (q *Queries) PendingChange(ctx context.Context, serverItem string) (*vc.PendingChange, error) {
	pc, err := scanPending(q.db.QueryRowContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_changes WHERE server_item = ?`, serverItem))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying pending change: %w", err)
	}
	return &pc, nil
}

// PutPendingChange inserts or replaces the pending change on pc.ServerItem.
func (q *Queries) PutPendingChange(ctx context.Context, pc vc.PendingChange) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pending_changes (`+pendingColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, pc.ServerItem, pc.ItemID, int(pc.ChangeType), pc.LocalItem, pc.SourceServerItem,
		int(pc.LockLevel), pc.DeletionID, pc.IsFolder, util.NowMs())
	if err != nil {
		return fmt.Errorf("storing pending change: %w", err)
	}
	return nil
}

// DeletePendingChange drops the pending change on serverItem.
func (q *Queries) DeletePendingChange(ctx context.Context, serverItem string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM pending_changes WHERE server_item = ?`, serverItem); err != nil {
		return fmt.Errorf("deleting pending change: %w", err)
	}
	return nil
}

// --- Deleted items ---

// ArchiveBaseline moves a committed item into deleted_items under deletionID.
func (q *Queries) ArchiveBaseline(ctx context.Context, serverPath string, deletionID int) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO deleted_items (deletion_id, server_path, item_id, is_folder, hash, size, blob)
		SELECT ?, server_path, item_id, is_folder, hash, size, blob FROM baseline_items WHERE server_path = ?
	`, deletionID, serverPath)
	if err != nil {
		return fmt.Errorf("archiving baseline item: %w", err)
	}
	return q.DeleteBaseline(ctx, serverPath)
}

// RestoreDeleted moves an archived item back into the baseline.
func (q *Queries) RestoreDeleted(ctx context.Context, deletionID int, serverPath string, changeset int) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO baseline_items (server_path, item_id, is_folder, hash, size, changeset, blob)
		SELECT server_path, item_id, is_folder, hash, size, ?, blob FROM deleted_items
		WHERE deletion_id = ? AND server_path = ?
	`, changeset, deletionID, serverPath)
	if err != nil {
		return fmt.Errorf("restoring deleted item: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`DELETE FROM deleted_items WHERE deletion_id = ? AND server_path = ?`, deletionID, serverPath)
	if err != nil {
		return fmt.Errorf("removing deleted item: %w", err)
	}
	return nil
}

// LatestDeletion returns the most recent deletion id for serverPath, or 0.
func (q *Queries) LatestDeletion(ctx context.Context, serverPath string) (int, error) {
	var id sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT MAX(deletion_id) FROM deleted_items WHERE server_path = ?`, serverPath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("querying deletions: %w", err)
	}
	return int(id.Int64), nil
}

// DeletedTree returns the archived item at serverPath together with every
// descendant removed by the same deletion.
func (q *Queries) DeletedTree(ctx context.Context, serverPath string, deletionID int) ([]DeletedItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT deletion_id, server_path, item_id, is_folder, hash, size FROM deleted_items
		WHERE deletion_id = ? AND (server_path = ? OR server_path LIKE ? ESCAPE '\')
		ORDER BY server_path
	`, deletionID, serverPath, likePrefix(serverPath))
	if err != nil {
		return nil, fmt.Errorf("querying deleted items: %w", err)
	}
	defer rows.Close()

	var items []DeletedItem
	for rows.Next() {
		var d DeletedItem
		if err := rows.Scan(&d.DeletionID, &d.ServerPath, &d.ItemID, &d.IsFolder, &d.Hash, &d.Size); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// DeletedContent returns the archived content of a deleted file.
func (q *Queries) DeletedContent(ctx context.Context, deletionID int, serverPath string) ([]byte, error) {
	var blob []byte
	err := q.db.QueryRowContext(ctx,
		`SELECT blob FROM deleted_items WHERE deletion_id = ? AND server_path = ?`,
		deletionID, serverPath).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no deleted item %s;X%d", serverPath, deletionID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying deleted content: %w", err)
	}
	return Decompress(blob)
}

// likePrefix builds a LIKE pattern matching strict descendants of a path.
func likePrefix(serverPath string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.TrimSuffix(serverPath, "/")) + "/%"
}

// --- Changesets ---

// RecordChangeset stores a checked-in changeset.
func (q *Queries) RecordChangeset(ctx context.Context, cs Changeset) error {
	if cs.CreatedAt == 0 {
		cs.CreatedAt = util.NowMs()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO changesets (number, comment, change_count, created_at) VALUES (?, ?, ?, ?)
	`, cs.Number, cs.Comment, cs.Count, cs.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording changeset: %w", err)
	}
	return nil
}

// Changesets returns the local history, newest first.
func (q *Queries) Changesets(ctx context.Context) ([]Changeset, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT number, comment, change_count, created_at FROM changesets ORDER BY number DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying changesets: %w", err)
	}
	defer rows.Close()

	var out []Changeset
	for rows.Next() {
		var cs Changeset
		if err := rows.Scan(&cs.Number, &cs.Comment, &cs.Count, &cs.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}
