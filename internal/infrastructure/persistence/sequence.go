package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// nextDocumentNumber issues the next {prefix}-{year}-{seq} number for a
// tenant by scanning the highest existing number in this year's series.
// The sequence restarts every calendar year.
func nextDocumentNumber(ctx context.Context, db *gorm.DB, model interface{}, column string, tenantID interface{}, prefix string) (string, error) {
	year := time.Now().Format("2006")
	series := fmt.Sprintf("%s-%s-", prefix, year)

	var maxNumber string
	if err := db.WithContext(ctx).
		Model(model).
		Select(column).
		Where(fmt.Sprintf("tenant_id = ? AND %s LIKE ?", column), tenantID, series+"%").
		Order(column + " DESC").
		Limit(1).
		Pluck(column, &maxNumber).Error; err != nil {
		return "", err
	}

	nextNum := 1
	if maxNumber != "" {
		parts := strings.Split(maxNumber, "-")
		if len(parts) == 3 {
			var n int
			if _, err := fmt.Sscanf(parts[2], "%d", &n); err == nil {
				nextNum = n + 1
			}
		}
	}

	return fmt.Sprintf("%s%03d", series, nextNum), nil
}
