package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/models"
)

// LocalBackend stores artifacts on the filesystem, one directory per
// document identity:
//
//	<cacheDir>/<documentID>/document.<ext>
//	<cacheDir>/<documentID>/chunks.json
//	<cacheDir>/<documentID>/embeddings.npy
//	<cacheDir>/<documentID>/metadata.json
type LocalBackend struct {
	cacheDir string
	log      *zap.Logger
}

func NewLocalBackend(cacheDir string, log *zap.Logger) (*LocalBackend, error) {
	if cacheDir == "" {
		return nil, fmt.Errorf("cache dir is empty")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %q: %w", cacheDir, err)
	}
	return &LocalBackend{cacheDir: cacheDir, log: log}, nil
}

func (b *LocalBackend) docPath(documentID string) string {
	return filepath.Join(b.cacheDir, documentID)
}

func (b *LocalBackend) Exists(_ context.Context, documentID string) (bool, error) {
	dir := b.docPath(documentID)
	for _, name := range []string{chunksFile, embeddingsFile, metadataFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, fmt.Errorf("stat %s: %w", name, err)
		}
	}
	return true, nil
}

func (b *LocalBackend) SaveDocument(_ context.Context, documentID, extension string, data []byte) error {
	return b.write(documentID, "document."+extension, data)
}

func (b *LocalBackend) SaveChunks(_ context.Context, documentID string, chunks []models.Chunk) error {
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chunks: %w", err)
	}
	return b.write(documentID, chunksFile, data)
}

func (b *LocalBackend) SaveEmbeddings(_ context.Context, documentID string, embeddings [][]float32) error {
	data, err := encodeNpy(embeddings)
	if err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	return b.write(documentID, embeddingsFile, data)
}

func (b *LocalBackend) SaveMetadata(_ context.Context, documentID string, meta *models.DocumentMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return b.write(documentID, metadataFile, data)
}

func (b *LocalBackend) LoadChunks(_ context.Context, documentID string) ([]models.Chunk, error) {
	data, err := b.read(documentID, chunksFile)
	if err != nil {
		return nil, err
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("unmarshal chunks: %w", err)
	}
	return chunks, nil
}

func (b *LocalBackend) LoadEmbeddings(_ context.Context, documentID string) ([][]float32, error) {
	data, err := b.read(documentID, embeddingsFile)
	if err != nil {
		return nil, err
	}
	matrix, err := decodeNpy(data)
	if err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	return matrix, nil
}

func (b *LocalBackend) LoadMetadata(_ context.Context, documentID string) (*models.DocumentMeta, error) {
	data, err := b.read(documentID, metadataFile)
	if err != nil {
		return nil, err
	}
	var meta models.DocumentMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// Delete removes the whole document directory. Deleting an absent document
// is logged, not failed.
func (b *LocalBackend) Delete(_ context.Context, documentID string) error {
	dir := b.docPath(documentID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		b.log.Warn("delete of non-existent document", zap.String("document_id", documentID))
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

func (b *LocalBackend) ListDocuments(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func (b *LocalBackend) GetStats(_ context.Context) (*Stats, error) {
	stats := &Stats{Backend: "local", Location: b.cacheDir}

	entries, err := os.ReadDir(b.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		stats.TotalDocuments++
		files, err := os.ReadDir(filepath.Join(b.cacheDir, e.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			info, err := f.Info()
			if err != nil {
				continue
			}
			stats.TotalFiles++
			stats.TotalSizeBytes += info.Size()
		}
	}
	return stats, nil
}

func (b *LocalBackend) write(documentID, name string, data []byte) error {
	dir := b.docPath(documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (b *LocalBackend) read(documentID, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(b.docPath(documentID), name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s for document %s: %w", name, documentID, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

var _ Backend = (*LocalBackend)(nil)
