package repository

import (
	"fcr_assist_backend/internal/model"

	"gorm.io/gorm"
)

// AssessmentRepository reads the published assessment catalog. The
// catalog is maintained elsewhere; nothing here mutates it.
type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

func (r *AssessmentRepository) FindByID(id string) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.Where("id = ? AND is_published = ?", id, true).First(&a).Error
	return &a, err
}

// List returns published assessments, optionally filtered by category
// and a title/description search term.
func (r *AssessmentRepository) List(category, search string, page, limit int) ([]model.Assessment, int64, error) {
	var as []model.Assessment
	var total int64

	query := r.DB.Model(&model.Assessment{}).Where("is_published = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&as).Error
	return as, total, err
}

// CountPublished is the denominator for dashboard completion rate.
func (r *AssessmentRepository) CountPublished() (int64, error) {
	var total int64
	err := r.DB.Model(&model.Assessment{}).Where("is_published = ?", true).Count(&total).Error
	return total, err
}
