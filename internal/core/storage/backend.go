package storage

import (
	"context"
	"errors"

	"github.com/danielokafor-dev/askbase/internal/models"
)

// ErrNotFound reports that a specific artifact is absent. Load methods
// return it independently of the overall Exists answer.
var ErrNotFound = errors.New("artifact not found")

// Artifact names within a document's slot. The original file keeps its
// own extension; the other three are fixed.
const (
	chunksFile     = "chunks.json"
	embeddingsFile = "embeddings.npy"
	metadataFile   = "metadata.json"
)

// Stats summarizes what a backend currently holds.
type Stats struct {
	Backend        string `json:"backend"`
	Location       string `json:"location"`
	TotalDocuments int    `json:"total_documents"`
	TotalFiles     int    `json:"total_files"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
}

// Backend persists the four artifacts of an ingested document (original
// bytes, chunk list, embedding matrix, metadata) keyed by document
// identity. Saves are idempotent overwrites. Exists answers true only when
// chunks, embeddings and metadata all resolve; the original bytes are
// optional for backward compatibility with older cache layouts. Delete
// removes the whole artifact set as a unit and tolerates absent documents.
type Backend interface {
	Exists(ctx context.Context, documentID string) (bool, error)

	SaveDocument(ctx context.Context, documentID, extension string, data []byte) error
	SaveChunks(ctx context.Context, documentID string, chunks []models.Chunk) error
	SaveEmbeddings(ctx context.Context, documentID string, embeddings [][]float32) error
	SaveMetadata(ctx context.Context, documentID string, meta *models.DocumentMeta) error

	LoadChunks(ctx context.Context, documentID string) ([]models.Chunk, error)
	LoadEmbeddings(ctx context.Context, documentID string) ([][]float32, error)
	LoadMetadata(ctx context.Context, documentID string) (*models.DocumentMeta, error)

	Delete(ctx context.Context, documentID string) error
	ListDocuments(ctx context.Context) ([]string, error)
	GetStats(ctx context.Context) (*Stats, error)
}
