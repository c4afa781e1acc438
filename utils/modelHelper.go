package utils

import (
	"context"
	"errors"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// FetchModel loads one row by id, preloading associations.
// (owner scope applies, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	db := config.GetDB()
	if db == nil {
		return nil, ErrorServiceNotReady
	}
	return FetchModelTx[T](db.WithContext(ctx), id, associations...)
}

// FetchModelTx is FetchModel on an open transaction.
func FetchModelTx[T any](tx *gorm.DB, id int, associations ...string) (*T, error) {
	q := tx
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	if err := q.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
