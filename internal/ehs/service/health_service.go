package service

import (
	"context"
	"time"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/cache"
)

// Pinger *sql.DB 满足该接口
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthService 就绪探针：数据库必须可用，缓存不可用只降级
type HealthService struct {
	db    Pinger
	cache *cache.Cache
}

func NewHealthService(db Pinger, c *cache.Cache) *HealthService {
	return &HealthService{db: db, cache: c}
}

// ReadyStatus 各依赖的检查结果
type ReadyStatus struct {
	Ready    bool              `json:"ready"`
	Checks   map[string]string `json:"checks"`
	Duration string            `json:"duration"`
}

func (s *HealthService) Ready(ctx context.Context) ReadyStatus {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st := ReadyStatus{Ready: true, Checks: map[string]string{}}
	if s.db == nil {
		st.Checks["database"] = "memory"
	} else if err := s.db.PingContext(ctx); err != nil {
		st.Ready = false
		st.Checks["database"] = err.Error()
	} else {
		st.Checks["database"] = "ok"
	}

	if s.cache == nil {
		st.Checks["cache"] = "disabled"
	} else if err := s.cache.Ping(ctx); err != nil {
		st.Checks["cache"] = "degraded: " + err.Error()
	} else {
		st.Checks["cache"] = "ok"
	}

	st.Duration = time.Since(start).String()
	return st
}
