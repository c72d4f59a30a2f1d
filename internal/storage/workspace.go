package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/checksum"
	"github.com/starford/vellum/internal/geom"
	"github.com/starford/vellum/internal/models"
)

const (
	BoardFile     = "board.json"
	PrevBoardFile = "board.prev.json"
	AssetsDir     = "assets"
	boardVersion  = 1
)

var imageExts = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// SavedBoard is the persisted form of a canvas.
type SavedBoard struct {
	Version   int                 `json:"version"`
	Nodes     []models.Node       `json:"nodes"`
	Tabs      []models.PreviewTab `json:"tabs"`
	ActiveTab string              `json:"activeTab,omitempty"`
	Transform geom.Transform      `json:"transform"`
	SavedAt   time.Time           `json:"savedAt"`
}

// Workspace stores the board and image assets through a Provider.
type Workspace struct {
	p Provider
}

// NewWorkspace wraps a provider.
func NewWorkspace(p Provider) *Workspace {
	return &Workspace{p: p}
}

// LoadBoard reads the saved board. A workspace without one yields
// apperr.ErrNotFound.
func (w *Workspace) LoadBoard() (SavedBoard, error) {
	data, err := w.p.Read(BoardFile)
	if errors.Is(err, fs.ErrNotExist) {
		return SavedBoard{}, fmt.Errorf("storage: load board: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return SavedBoard{}, err
	}
	var b SavedBoard
	if err := json.Unmarshal(data, &b); err != nil {
		return SavedBoard{}, fmt.Errorf("storage: decode board: %w", err)
	}
	if b.Version > boardVersion {
		return SavedBoard{}, fmt.Errorf("storage: board version %d is newer than supported %d", b.Version, boardVersion)
	}
	return b, nil
}

// SaveBoard writes the board, keeping the previous file as board.prev.json.
func (w *Workspace) SaveBoard(b SavedBoard) error {
	b.Version = boardVersion
	if b.Nodes == nil {
		b.Nodes = []models.Node{}
	}
	if b.Tabs == nil {
		b.Tabs = []models.PreviewTab{}
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode board: %w", err)
	}
	if err := w.p.Move(BoardFile, PrevBoardFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return w.p.Write(BoardFile, data)
}

// PutAsset stores an uploaded image under assets/ with a content-addressed
// name and returns its workspace-relative path. Only raster image formats
// are accepted.
func (w *Workspace) PutAsset(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("storage: empty asset: %w", apperr.ErrInvalidInput)
	}
	ext, ok := imageExts[http.DetectContentType(data)]
	if !ok {
		return "", fmt.Errorf("storage: unsupported asset type: %w", apperr.ErrInvalidInput)
	}
	rel := path.Join(AssetsDir, checksum.Sum(data)[:16]+ext)
	if _, err := w.p.Read(rel); err == nil {
		return rel, nil
	}
	if err := w.p.Write(rel, data); err != nil {
		return "", err
	}
	return rel, nil
}

// ReadAsset returns an asset's bytes and content type.
func (w *Workspace) ReadAsset(rel string) ([]byte, string, error) {
	if !IsAsset(rel) {
		return nil, "", fmt.Errorf("storage: not an asset path %q: %w", rel, apperr.ErrInvalidInput)
	}
	data, err := w.p.Read(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("storage: asset %s: %w", rel, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, "", err
	}
	return data, http.DetectContentType(data), nil
}

// DeleteAsset removes an asset.
func (w *Workspace) DeleteAsset(rel string) error {
	if !IsAsset(rel) {
		return fmt.Errorf("storage: not an asset path %q: %w", rel, apperr.ErrInvalidInput)
	}
	return w.p.Delete(rel)
}

// Assets lists stored assets.
func (w *Workspace) Assets() ([]FileInfo, error) {
	items, err := w.p.List(AssetsDir, ".png", ".jpg", ".gif", ".webp")
	if errors.Is(err, fs.ErrNotExist) {
		return []FileInfo{}, nil
	}
	return items, err
}

// IsAsset reports whether rel names a file directly inside assets/.
func IsAsset(rel string) bool {
	dir, file := path.Split(path.Clean(rel))
	return dir == AssetsDir+"/" && file != "" && !strings.HasPrefix(file, ".")
}

// AssetURL is the URL an asset is served under.
func AssetURL(rel string) string {
	return "/" + path.Clean(rel)
}

// AssetFromURL maps an asset URL ("/assets/x.png") back to its
// workspace-relative path.
func AssetFromURL(url string) (string, bool) {
	rel := strings.TrimPrefix(url, "/")
	if rel == url || !IsAsset(rel) {
		return "", false
	}
	return rel, true
}
