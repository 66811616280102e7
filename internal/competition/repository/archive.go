package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"alchemy/internal/common/storage"
	"alchemy/internal/competition/model"

	"github.com/klauspost/compress/zstd"
)

const (
	archiveContentType   = "application/zstd"
	defaultArchivePrefix = "competitions/final"
	maxArchiveBytes      = 1 << 20
)

var (
	ErrArchiveNotFound  = errors.New("competition archive not found")
	ErrInvalidArchiveID = errors.New("invalid archive id")
)

// ArchiveStore keeps zstd-compressed JSON snapshots of finished competitions.
type ArchiveStore struct {
	storage storage.ObjectStorage
	bucket  string
	prefix  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewArchiveStore creates an archive store writing under prefix in bucket.
func NewArchiveStore(objStorage storage.ObjectStorage, bucket, prefix string) (*ArchiveStore, error) {
	if objStorage == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	if prefix == "" {
		prefix = defaultArchivePrefix
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder failed: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxArchiveBytes*4))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder failed: %w", err)
	}
	return &ArchiveStore{
		storage: objStorage,
		bucket:  bucket,
		prefix:  prefix,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// PutFinal writes rec, overwriting any earlier archive of the same competition.
func (a *ArchiveStore) PutFinal(ctx context.Context, rec model.ArchiveRecord) error {
	key, err := a.objectKey(rec.Descriptor.ID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal archive failed: %w", err)
	}
	compressed := a.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	return a.storage.PutObject(ctx, a.bucket, key, bytes.NewReader(compressed), int64(len(compressed)), archiveContentType)
}

// GetFinal reads the archive of id.
func (a *ArchiveStore) GetFinal(ctx context.Context, id string) (*model.ArchiveRecord, error) {
	key, err := a.objectKey(id)
	if err != nil {
		return nil, err
	}
	reader, err := a.storage.GetObject(ctx, a.bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrArchiveNotFound
		}
		return nil, err
	}
	defer reader.Close()

	compressed, err := io.ReadAll(io.LimitReader(reader, maxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read archive failed: %w", err)
	}
	if len(compressed) > maxArchiveBytes {
		return nil, fmt.Errorf("archive exceeds %d bytes", maxArchiveBytes)
	}
	raw, err := a.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress archive failed: %w", err)
	}
	var rec model.ArchiveRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode archive failed: %w", err)
	}
	return &rec, nil
}

// DeleteFinal removes the archive of id. A missing archive is not an error.
func (a *ArchiveStore) DeleteFinal(ctx context.Context, id string) error {
	key, err := a.objectKey(id)
	if err != nil {
		return err
	}
	return a.storage.RemoveObject(ctx, a.bucket, key)
}

// objectKey keeps every key directly under the prefix.
func (a *ArchiveStore) objectKey(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, "/\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidArchiveID, id)
	}
	return path.Join(a.prefix, id+".json.zst"), nil
}
