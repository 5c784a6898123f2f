package repository

import (
	"context"
	"fmt"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate 自动迁移表结构并转换旧版危害数据
func Migrate(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(entity.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_plan_created ON audit_logs (safety_plan_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_gas_permit_measured ON permit_gas_measurements (permit_id, measured_at DESC)",
	}
	for _, sql := range indexes {
		if err := db.WithContext(ctx).Exec(sql).Error; err != nil {
			logger.Warn("Index migration warning", zap.String("sql", sql), zap.Error(err))
		}
	}

	converted, err := MigrateLegacyHazards(ctx, db)
	if err != nil {
		return fmt.Errorf("legacy hazards: %w", err)
	}
	if converted > 0 {
		logger.Info("Converted legacy hazard records", zap.Int("count", converted))
	}
	return nil
}

type legacyPlanRow struct {
	ID          uint
	Hazards     string
	Assessments *string
}

// MigrateLegacyHazards 把 hazards 为对象数组的旧记录改写为名称数组 + assessments
func MigrateLegacyHazards(ctx context.Context, db *gorm.DB) (int, error) {
	var rows []legacyPlanRow
	err := db.WithContext(ctx).Raw(
		`SELECT id, hazards::text AS hazards, assessments::text AS assessments
		   FROM safety_plans
		  WHERE jsonb_typeof(hazards) = 'array'
		    AND EXISTS (SELECT 1 FROM jsonb_array_elements(hazards) e WHERE jsonb_typeof(e) = 'object')`,
	).Scan(&rows).Error
	if err != nil {
		return 0, err
	}

	catalog := risk.DefaultCatalog()
	for _, row := range rows {
		names, legacy, err := entity.DecodeHazards([]byte(row.Hazards), catalog)
		if err != nil {
			return 0, fmt.Errorf("plan %d: %w", row.ID, err)
		}
		assessments := entity.AssessmentMap{}
		if row.Assessments != nil {
			if err := assessments.Scan(*row.Assessments); err != nil {
				return 0, fmt.Errorf("plan %d assessments: %w", row.ID, err)
			}
		}
		for name, a := range legacy {
			if _, ok := assessments[name]; !ok {
				assessments[name] = a
			}
		}
		err = db.WithContext(ctx).Model(&entity.SafetyPlan{}).
			Where("id = ?", row.ID).
			Updates(map[string]interface{}{
				"hazards":     entity.HazardList(names),
				"assessments": assessments,
			}).Error
		if err != nil {
			return 0, fmt.Errorf("plan %d update: %w", row.ID, err)
		}
	}
	return len(rows), nil
}
