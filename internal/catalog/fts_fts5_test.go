//go:build sqlite_fts5

package catalog

import (
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM nodes_fts`).Scan(&count); err != nil {
		t.Fatalf("nodes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := NodeRow{
		ID:        "fts",
		Type:      "component",
		Title:     "Feature grid",
		Checksum:  "f1",
		Keywords:  []string{"features"},
		UpdatedAt: time.Now(),
	}
	if err := db.Upsert(row, "Vellum renders powerful responsive layouts.", nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "fts" {
		t.Errorf("id = %q", results[0].ID)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(NodeRow{ID: "gone", Type: "note", Checksum: "g", UpdatedAt: time.Now()}, "vanishing content", nil)
	_ = db.Delete("gone")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.ID == "gone" {
			t.Error("deleted node still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.Upsert(NodeRow{ID: "evo", Type: "note", Title: "Old", Checksum: "1", UpdatedAt: now}, "original text", nil)
	_ = db.Upsert(NodeRow{ID: "evo", Type: "note", Title: "New", Checksum: "2", UpdatedAt: now}, "replacement text", nil)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
