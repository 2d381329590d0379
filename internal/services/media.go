package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/store"
)

const BucketRequests = "requests"

type Media struct {
	store    store.Store
	basePath string
	maxBytes int64
	create   func(name string) (io.WriteCloser, error)
}

func NewMedia(st store.Store, basePath string, maxBytes int64) *Media {
	return &Media{
		store:    st,
		basePath: basePath,
		maxBytes: maxBytes,
		create:   func(name string) (io.WriteCloser, error) { return os.Create(name) },
	}
}

func (m *Media) MaxBytes() int64 {
	return m.maxBytes
}

func EnsureStoragePath(base, bucket string) (string, error) {
	path := filepath.Join(base, bucket)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func BuildAssetURL(assetID string) string {
	return "/api/media/assets/" + assetID + "/content"
}

// Save streams body to disk while hashing it and records the asset.
// Empty and oversized uploads are rejected and leave nothing behind.
func (m *Media) Save(ctx context.Context, ownerID, filename, contentType string, body io.Reader) (*models.MediaAsset, error) {
	bucketPath, err := EnsureStoragePath(m.basePath, BucketRequests)
	if err != nil {
		return nil, WrapError(err, "prepare storage")
	}
	assetID := uuid.NewString()
	storageKey := filepath.ToSlash(filepath.Join(BucketRequests, assetID))
	target := filepath.Join(bucketPath, assetID)

	file, err := m.create(target)
	if err != nil {
		return nil, WrapError(err, "create asset file")
	}
	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hasher), io.LimitReader(body, m.maxBytes+1))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	switch {
	case err != nil:
		_ = os.Remove(target)
		return nil, WrapError(err, "write asset file")
	case size == 0:
		_ = os.Remove(target)
		return nil, ErrBadRequest("The uploaded file is empty")
	case size > m.maxBytes:
		_ = os.Remove(target)
		return nil, ErrBadRequest("The uploaded file is too large")
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	asset := &models.MediaAsset{
		ID:          assetID,
		OwnerID:     ownerID,
		Filename:    filepath.Base(strings.TrimSpace(filename)),
		ContentType: contentType,
		SizeBytes:   size,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		StorageKey:  storageKey,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.InsertMediaAsset(ctx, asset); err != nil {
		_ = os.Remove(target)
		return nil, WrapError(err, "insert media asset")
	}
	return asset, nil
}

// Open returns the asset and its content. Only the owner and moderators
// may read an upload.
func (m *Media) Open(ctx context.Context, assetID string, viewer Principal) (*models.MediaAsset, *os.File, error) {
	asset, err := m.store.GetMediaAsset(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrNotFound("Asset not found")
	}
	if err != nil {
		return nil, nil, WrapError(err, "load media asset")
	}
	if asset.OwnerID != viewer.UserID && !viewer.HasAnyRole(models.RoleAdmin, models.RoleModerator) {
		return nil, nil, ErrForbidden("You cannot access this file")
	}
	file, err := os.Open(filepath.Join(m.basePath, filepath.FromSlash(asset.StorageKey)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrNotFound("Asset content missing")
	}
	if err != nil {
		return nil, nil, WrapError(err, "open asset file")
	}
	return asset, file, nil
}
