package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/vellum/internal/apperr"
)

// NodeRow represents a row in the nodes table.
type NodeRow struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Keywords  []string  `json:"keywords"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Upsert inserts or replaces a node, its FTS entry, and asset references
// within a transaction.
func (db *DB) Upsert(n NodeRow, body string, refs []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.Keywords == nil {
		n.Keywords = []string{}
	}
	kwJSON, _ := json.Marshal(n.Keywords)

	// Upsert nodes table (includes body for fallback search).
	_, err = tx.Exec(`
		INSERT INTO nodes (id, type, title, checksum, keywords, body, x, y, width, height, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type       = excluded.type,
			title      = excluded.title,
			checksum   = excluded.checksum,
			keywords   = excluded.keywords,
			body       = excluded.body,
			x          = excluded.x,
			y          = excluded.y,
			width      = excluded.width,
			height     = excluded.height,
			updated_at = excluded.updated_at
	`, n.ID, n.Type, n.Title, n.Checksum, string(kwJSON), body, n.X, n.Y, n.Width, n.Height, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert node: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.ID, n.Title, body, n.Keywords); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM refs WHERE node_id = ?`, n.ID)
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (node_id, asset) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("catalog: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, asset := range refs {
			if _, err := stmt.Exec(n.ID, asset); err != nil {
				return fmt.Errorf("catalog: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes a node, its FTS entry, and its asset references.
func (db *DB) Delete(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM refs WHERE node_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM nodes WHERE id = ?`, id)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a node, or empty string if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM nodes WHERE id = ?`, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

const rowColumns = `id, type, title, checksum, keywords, x, y, width, height, updated_at`

func scanRow(sc interface{ Scan(...any) error }) (NodeRow, error) {
	var (
		r  NodeRow
		kw string
	)
	if err := sc.Scan(&r.ID, &r.Type, &r.Title, &r.Checksum, &kw, &r.X, &r.Y, &r.Width, &r.Height, &r.UpdatedAt); err != nil {
		return NodeRow{}, err
	}
	_ = json.Unmarshal([]byte(kw), &r.Keywords)
	return r, nil
}

// Get returns one catalog row.
func (db *DB) Get(id string) (*NodeRow, error) {
	r, err := scanRow(db.conn.QueryRow(`SELECT `+rowColumns+` FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: node %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get: %w", err)
	}
	return &r, nil
}

// List returns a page of nodes, optionally filtered by type, and the total
// count. sort is "updated" (newest first, the default) or "title".
func (db *DB) List(limit, offset int, nodeType, sort string) ([]NodeRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	order := "updated_at DESC, id"
	if sort == "title" {
		order = "title COLLATE NOCASE, id"
	}
	where, args := "", []any{}
	if nodeType != "" {
		where = "WHERE type = ?"
		args = append(args, nodeType)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM nodes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count: %w", err)
	}
	rows, err := db.conn.Query(`SELECT `+rowColumns+` FROM nodes `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	out := []NodeRow{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns id → checksum for every catalogued node.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// References returns the ids of nodes that use the given asset.
func (db *DB) References(asset string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT node_id FROM refs WHERE asset = ? ORDER BY node_id`, asset)
	if err != nil {
		return nil, fmt.Errorf("catalog: references: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
