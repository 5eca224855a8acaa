/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// FetchPaged runs query one page at a time and hands each non-empty page to
// fn. The query must carry its own ORDER BY; pages are cut with OFFSET, so
// rows must not be inserted ahead of the cursor while paging. It stops early
// when fn returns an error or ctx is done.
func FetchPaged[T any](ctx context.Context, query *gorm.DB, pageSize int, fn func(page []T) error) error {
	if pageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		var page []T
		if err := query.Session(&gorm.Session{}).WithContext(ctx).
			Offset(offset).Limit(pageSize).Find(&page).Error; err != nil {
			return fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < pageSize {
			return nil
		}
	}
}

// UpdateInBatches applies updates to the rows of model whose primary key is in
// ids, batch keys at a time. It returns the total rows affected.
func UpdateInBatches(ctx context.Context, tx *gorm.DB, model any, ids []string, batch int, updates map[string]any) (int64, error) {
	if batch <= 0 {
		return 0, fmt.Errorf("batch size must be positive, got %d", batch)
	}

	var total int64
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))
		res := tx.WithContext(ctx).Model(model).Where("id IN ?", ids[start:end]).Updates(updates)
		if res.Error != nil {
			return total, fmt.Errorf("update batch %d-%d: %w", start, end, res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}
