package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/cache"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
)

// PreferenceService 用户偏好，读取经过 Redis 缓存
type PreferenceService struct {
	repos  *repository.Repositories
	cache  *cache.Cache
	logger *zap.Logger
}

func NewPreferenceService(repos *repository.Repositories, c *cache.Cache, logger *zap.Logger) *PreferenceService {
	return &PreferenceService{repos: repos, cache: c, logger: logger}
}

// Get 用户没有保存过偏好时返回默认值
func (s *PreferenceService) Get(ctx context.Context, userID string) (*entity.UserPreference, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("userId is required")
	}

	key := cache.PreferenceKey(userID)
	var cached entity.UserPreference
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("Preference cache read failed", zap.String("user_id", userID), zap.Error(err))
	}
	if hit {
		return &cached, nil
	}

	pref, err := s.repos.Preferences.FindByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		def := entity.DefaultUserPreference(userID)
		pref = &def
	} else if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(ctx, key, pref); err != nil {
		s.logger.Warn("Preference cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return pref, nil
}

// SavePreferenceRequest 保存偏好，未提供的字段使用默认值
type SavePreferenceRequest struct {
	UserID      string `json:"userId"`
	System      string `json:"system"`
	Group       string `json:"group"`
	Site        string `json:"site"`
	IsFirstTime string `json:"isFirstTime"`
	Role        string `json:"role"`
}

// Save 按 userId 插入或更新，并使缓存失效
func (s *PreferenceService) Save(ctx context.Context, req SavePreferenceRequest) (*entity.UserPreference, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, invalid("userId is required")
	}

	pref := entity.DefaultUserPreference(req.UserID)
	if req.System != "" {
		pref.System = req.System
	}
	if req.Group != "" {
		pref.Group = req.Group
	}
	if req.Site != "" {
		pref.Site = req.Site
	}
	if req.IsFirstTime != "" {
		pref.IsFirstTime = req.IsFirstTime
	}
	if req.Role != "" {
		pref.Role = req.Role
	}

	if err := s.repos.Preferences.Upsert(ctx, &pref); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, cache.PreferenceKey(req.UserID)); err != nil {
		s.logger.Warn("Preference cache invalidation failed", zap.String("user_id", req.UserID), zap.Error(err))
	}
	return &pref, nil
}
