package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/vellum/internal/models"
)

// Indexer keeps the catalog in step with board changes. Changes are
// coalesced per node and written in batches, so a streaming generation
// that updates a node many times per second is indexed once per flush.
type Indexer struct {
	db  *DB
	log *slog.Logger

	mu sync.Mutex
	// pending maps node id to its latest state; nil marks a deletion.
	pending map[string]*models.Node
}

// NewIndexer creates an indexer writing to db.
func NewIndexer(db *DB, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, log: logger, pending: make(map[string]*models.Node)}
}

func (x *Indexer) queue(id string, n *models.Node) {
	x.mu.Lock()
	x.pending[id] = n
	x.mu.Unlock()
}

func (x *Indexer) OnAddNode(n models.Node)    { x.queue(n.ID, &n) }
func (x *Indexer) OnUpdateNode(n models.Node) { x.queue(n.ID, &n) }
func (x *Indexer) OnDeleteNode(n models.Node) { x.queue(n.ID, nil) }

func (x *Indexer) OnSelectNode(string)                     {}
func (x *Indexer) OnSelectElement(*models.SelectedElement) {}

// Pending returns the number of queued changes.
func (x *Indexer) Pending() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.pending)
}

// Flush writes all queued changes.
func (x *Indexer) Flush() {
	x.mu.Lock()
	batch := x.pending
	x.pending = make(map[string]*models.Node)
	x.mu.Unlock()

	for id, n := range batch {
		if n == nil {
			if err := x.db.Delete(id); err != nil {
				x.log.Warn("indexer: delete failed", slog.String("node", id), slog.String("error", err.Error()))
			}
			continue
		}
		if err := IndexNode(x.db, *n); err != nil {
			x.log.Warn("indexer: index failed", slog.String("node", id), slog.String("error", err.Error()))
		}
	}
	if len(batch) > 0 {
		x.log.Debug("indexer: flushed", slog.Int("nodes", len(batch)))
	}
}

// Run flushes every interval until ctx is cancelled, then flushes once more.
func (x *Indexer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			x.Flush()
			return nil
		case <-ticker.C:
			x.Flush()
		}
	}
}
