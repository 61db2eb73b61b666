package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/config"
	"github.com/danielokafor-dev/askbase/internal/models"
)

// s3Client is the slice of the S3 API the backend touches. *s3.Client
// satisfies it; tests substitute an in-memory fake.
type s3Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Backend stores artifacts in an S3 bucket under the same slot layout as
// the local backend, with the document identity as key prefix.
type S3Backend struct {
	client s3Client
	bucket string
	region string
	log    *zap.Logger
}

func NewS3Backend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*S3Backend, error) {
	if cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.AwsRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	log.Info("connected to S3", zap.String("bucket", cfg.BucketName), zap.String("region", cfg.AwsRegion))
	return &S3Backend{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.BucketName,
		region: cfg.AwsRegion,
		log:    log,
	}, nil
}

func (b *S3Backend) key(documentID, name string) string {
	return documentID + "/" + name
}

func (b *S3Backend) Exists(ctx context.Context, documentID string) (bool, error) {
	for _, name := range []string{chunksFile, embeddingsFile, metadataFile} {
		_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key(documentID, name)),
		})
		if err != nil {
			var nf *types.NotFound
			if errors.As(err, &nf) {
				return false, nil
			}
			return false, fmt.Errorf("s3 head %s: %w", name, err)
		}
	}
	return true, nil
}

func (b *S3Backend) SaveDocument(ctx context.Context, documentID, extension string, data []byte) error {
	return b.put(ctx, b.key(documentID, "document."+extension), data, "application/octet-stream")
}

func (b *S3Backend) SaveChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("marshal chunks: %w", err)
	}
	return b.put(ctx, b.key(documentID, chunksFile), data, "application/json")
}

func (b *S3Backend) SaveEmbeddings(ctx context.Context, documentID string, embeddings [][]float32) error {
	data, err := encodeNpy(embeddings)
	if err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	return b.put(ctx, b.key(documentID, embeddingsFile), data, "application/octet-stream")
}

func (b *S3Backend) SaveMetadata(ctx context.Context, documentID string, meta *models.DocumentMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return b.put(ctx, b.key(documentID, metadataFile), data, "application/json")
}

func (b *S3Backend) LoadChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	data, err := b.get(ctx, b.key(documentID, chunksFile))
	if err != nil {
		return nil, err
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("unmarshal chunks: %w", err)
	}
	return chunks, nil
}

func (b *S3Backend) LoadEmbeddings(ctx context.Context, documentID string) ([][]float32, error) {
	data, err := b.get(ctx, b.key(documentID, embeddingsFile))
	if err != nil {
		return nil, err
	}
	matrix, err := decodeNpy(data)
	if err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	return matrix, nil
}

func (b *S3Backend) LoadMetadata(ctx context.Context, documentID string) (*models.DocumentMeta, error) {
	data, err := b.get(ctx, b.key(documentID, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta models.DocumentMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// Delete removes every object under the document prefix. Absent documents
// are logged and ignored.
func (b *S3Backend) Delete(ctx context.Context, documentID string) error {
	keys, err := b.listKeys(ctx, documentID+"/")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		b.log.Warn("delete of non-existent document", zap.String("document_id", documentID))
		return nil
	}
	for _, key := range keys {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("s3 delete %s: %w", key, err)
		}
	}
	return nil
}

func (b *S3Backend) ListDocuments(ctx context.Context) ([]string, error) {
	ids := []string{}
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", err)
		}
		for _, prefix := range page.CommonPrefixes {
			ids = append(ids, strings.TrimSuffix(aws.ToString(prefix.Prefix), "/"))
		}
	}
	return ids, nil
}

func (b *S3Backend) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Backend: "s3", Location: b.bucket}
	seen := map[string]bool{}

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			stats.TotalFiles++
			stats.TotalSizeBytes += aws.ToInt64(obj.Size)
			key := aws.ToString(obj.Key)
			if i := strings.Index(key, "/"); i > 0 {
				seen[key[:i]] = true
			}
		}
	}
	stats.TotalDocuments = len(seen)
	return stats, nil
}

func (b *S3Backend) put(ctx context.Context, key string, data []byte, contentType string) error {
	uploader := manager.NewUploader(b.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return nil
}

func (b *S3Backend) get(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (b *S3Backend) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

var _ Backend = (*S3Backend)(nil)
