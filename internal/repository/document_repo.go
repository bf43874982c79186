package repository

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opstrail/opstrail-core/internal/models"
)

// ErrNotFound indicates no document exists under the requested key.
var ErrNotFound = errors.New("document not found")

// DocumentRepository is the storage boundary for serialized ledgers: one
// opaque JSON payload per storage key, mirroring a key/value storage API.
// Payload interpretation is the caller's concern.
type DocumentRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

type gormDocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository constructs the GORM-backed implementation.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &gormDocumentRepository{db: db}
}

func (r *gormDocumentRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var doc models.ProgressDocument
	err := r.db.WithContext(ctx).First(&doc, "storage_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.Payload), nil
}

func (r *gormDocumentRepository) Put(ctx context.Context, key string, payload []byte) error {
	doc := models.ProgressDocument{
		StorageKey: key,
		Payload:    datatypes.JSON(payload),
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	})

	return tx.Create(&doc).Error
}

func (r *gormDocumentRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("storage_key = ?", key).Delete(&models.ProgressDocument{}).Error
}
