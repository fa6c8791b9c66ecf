package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/homework-grader/internal/models"
)

// ClassRepository exposes the class catalogue.
type ClassRepository interface {
	List(ctx context.Context) ([]models.Class, error)
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository constructs a class repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) List(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	if err := r.db.WithContext(ctx).Order("major ASC, class_id ASC").Find(&classes).Error; err != nil {
		return nil, err
	}

	return classes, nil
}
