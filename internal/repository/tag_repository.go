package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"tasktrack/internal/model"
)

type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// GetOrCreate returns the tag with the given name, creating it if missing.
// Names are normalized to lower case.
func (r *TagRepository) GetOrCreate(ctx context.Context, name string) (*model.Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var tag model.Tag
	result := r.db.WithContext(ctx).First(&tag, "name = ?", name)
	if result.Error == nil {
		return &tag, nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}
	tag = model.Tag{Name: name}
	if err := r.db.WithContext(ctx).Create(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}
