package service

import (
	"context"
	"encoding/json"

	"fcr_assist_backend/internal/config"
	"fcr_assist_backend/internal/model"
	"fcr_assist_backend/internal/repository"
	"fcr_assist_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const assessmentCacheKeyPrefix = "assessment:detail:"

// AssessmentService serves the read-only catalog. Details are cached in
// Redis since the catalog changes rarely and every submission entry
// reads the full section structure.
type AssessmentService struct {
	Repo  *repository.AssessmentRepository
	Redis *redis.Client
	Cfg   *config.Config
}

func NewAssessmentService(repo *repository.AssessmentRepository, rdb *redis.Client, cfg *config.Config) *AssessmentService {
	return &AssessmentService{Repo: repo, Redis: rdb, Cfg: cfg}
}

func (s *AssessmentService) List(category, search string, page, limit int) ([]model.Assessment, int64, error) {
	return s.Repo.List(category, search, page, limit)
}

func (s *AssessmentService) Get(id string) (*model.Assessment, error) {
	ctx := context.Background()
	key := assessmentCacheKeyPrefix + id

	if s.Redis != nil {
		val, err := s.Redis.Get(ctx, key).Result()
		if err == nil {
			var a model.Assessment
			if err := json.Unmarshal([]byte(val), &a); err == nil {
				return &a, nil
			}
			// Corrupt cache entry; fall through to the database.
			s.Redis.Del(ctx, key)
		} else if err != redis.Nil {
			logger.Log.Warn("assessment cache read failed", zap.Error(err))
		}
	}

	a, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if payload, err := json.Marshal(a); err == nil {
			ttl := s.Cfg.Autosave.CatalogCacheTTL()
			if err := s.Redis.Set(ctx, key, payload, ttl).Err(); err != nil {
				logger.Log.Warn("assessment cache write failed", zap.Error(err))
			}
		}
	}

	return a, nil
}

// Categories lists the known competency areas for the filter dropdown.
func (s *AssessmentService) Categories() []string {
	return []string{
		model.CategoryClassroomManagement,
		model.CategoryCurriculumPlanning,
		model.CategoryChildDevelopment,
		model.CategoryFamilyEngagement,
		model.CategoryProfessionalDevelopment,
		model.CategoryHealthSafety,
		model.CategoryInclusivePractices,
		model.CategoryAssessmentEvaluation,
	}
}
