package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/domain"
	"github.com/totegamma/memorial/internal/infra/database/models"
)

// RecordRepository stores one collection of records of type T in rows of
// type M.
type RecordRepository[T interface{ GetID() string }, M any] struct {
	db         *gorm.DB
	collection string
	toModel    func(T) M
	fromModel  func(M) T
}

func NewMemoryRepository(db *gorm.DB) *RecordRepository[memorial.Memory, models.Memory] {
	return &RecordRepository[memorial.Memory, models.Memory]{
		db:         db,
		collection: memorial.CollectionMemories,
		toModel: func(m memorial.Memory) models.Memory {
			return models.Memory{
				ID:        m.ID,
				UserID:    m.UserID,
				Name:      m.Name,
				Message:   m.Message,
				MediaType: string(m.MediaType),
				MediaURL:  m.MediaURL,
				CDate:     m.CreatedAt,
			}
		},
		fromModel: func(row models.Memory) memorial.Memory {
			return memorial.Memory{
				ID:        row.ID,
				UserID:    row.UserID,
				Name:      row.Name,
				Message:   row.Message,
				MediaType: memorial.MediaType(row.MediaType),
				MediaURL:  row.MediaURL,
				CreatedAt: row.CDate.UTC(),
			}
		},
	}
}

func NewCondolenceRepository(db *gorm.DB) *RecordRepository[memorial.Condolence, models.Condolence] {
	return &RecordRepository[memorial.Condolence, models.Condolence]{
		db:         db,
		collection: memorial.CollectionCondolences,
		toModel: func(c memorial.Condolence) models.Condolence {
			return models.Condolence{
				ID:       c.ID,
				UserID:   c.UserID,
				UserName: c.UserName,
				Text:     c.Text,
				Relation: c.Relation,
				CDate:    c.CreatedAt,
			}
		},
		fromModel: func(row models.Condolence) memorial.Condolence {
			return memorial.Condolence{
				ID:        row.ID,
				UserID:    row.UserID,
				UserName:  row.UserName,
				Text:      row.Text,
				Relation:  row.Relation,
				CreatedAt: row.CDate.UTC(),
			}
		},
	}
}

func (r *RecordRepository[T, M]) List(ctx context.Context) ([]T, error) {
	var rows []M
	err := r.db.WithContext(ctx).
		Order("c_date desc").
		Order("id desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(rows))
	for _, row := range rows {
		result = append(result, r.fromModel(row))
	}
	return result, nil
}

func (r *RecordRepository[T, M]) Get(ctx context.Context, id string) (T, error) {
	row, err := r.take(r.db.WithContext(ctx), id)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.fromModel(row), nil
}

func (r *RecordRepository[T, M]) take(db *gorm.DB, id string) (M, error) {
	var row M
	err := db.Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, domain.NotFoundError{Resource: r.collection}
	}
	return row, err
}

func (r *RecordRepository[T, M]) Create(ctx context.Context, record T, token *domain.IdempotencyToken) (T, bool, error) {
	row := r.toModel(record)
	stored := row
	replayed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if token != nil {
			existingID, err := claimIdempotencyKey(tx, token, record.GetID())
			if err != nil {
				return err
			}
			if existingID != "" {
				replayed = true
				stored, err = r.take(tx, existingID)
				return err
			}
		}

		return tx.Create(&row).Error
	})
	if err != nil {
		var zero T
		return zero, false, err
	}

	if !replayed {
		stored = row
	}
	return r.fromModel(stored), replayed, nil
}

// claimIdempotencyKey binds token to recordID. If a live binding already
// exists, the id of the record it points to is returned.
func claimIdempotencyKey(tx *gorm.DB, token *domain.IdempotencyToken, recordID string) (string, error) {
	now := time.Now()
	key := models.IdempotencyKey{
		UserID:     token.UserID,
		Collection: token.Collection,
		Key:        token.Key,
		RecordID:   recordID,
		ExpiresAt:  now.Add(token.TTL),
	}

	res := tx.Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&key)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 1 {
		return "", nil
	}

	var existing models.IdempotencyKey
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND collection = ? AND key = ?", token.UserID, token.Collection, token.Key).
		Take(&existing).Error
	if err != nil {
		return "", err
	}

	if existing.ExpiresAt.After(now) {
		return existing.RecordID, nil
	}

	// expired, the key starts a new submission
	err = tx.Model(&models.IdempotencyKey{}).
		Where("user_id = ? AND collection = ? AND key = ?", token.UserID, token.Collection, token.Key).
		Updates(map[string]any{
			"record_id":  recordID,
			"expires_at": now.Add(token.TTL),
		}).Error
	return "", err
}

func (r *RecordRepository[T, M]) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(M))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError{Resource: r.collection}
	}
	return nil
}

// PurgeExpiredIdempotencyKeys drops bindings past their expiry.
func PurgeExpiredIdempotencyKeys(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
