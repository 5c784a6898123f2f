package repository

import (
	"context"
	"errors"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewRepositories 创建基于 PostgreSQL 的仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	r := &Repositories{
		SafetyPlans:         newGormTable[entity.SafetyPlan](db, "created_at DESC, id DESC"),
		AuditLogs:           &AuditLogRepo{db: db},
		Reports:             &ReportRepo{gormTable: newGormTable[entity.ReportList](db, "created_at DESC, id DESC")},
		Preferences:         &UserPreferenceRepo{db: db},
		Permits:             newGormTable[entity.Permit](db, "created_at DESC, id DESC"),
		PermitApprovals:     &PermitApprovalRepo{db: db},
		PermitSignOffs:      &PermitSignOffRepo{db: db},
		GasMeasurements:     &GasMeasurementRepo{db: db},
		SRBRecords:          &SRBRecordRepo{gormTable: newGormTable[entity.SRBRecord](db, "created_at DESC, id DESC")},
		CraneInspections:    newGormTable[entity.CraneInspection](db, "created_at DESC, id DESC"),
		DraegerCalibrations: newGormTable[entity.DraegerCalibration](db, "created_at DESC, id DESC"),
		Incidents:           newGormTable[entity.Incident](db, "created_at DESC, id DESC"),
		Documents:           newGormTable[entity.Document](db, "created_at DESC, id DESC"),
	}
	r.tx = func(ctx context.Context, fn func(r *Repositories) error) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(NewRepositories(tx))
		})
	}
	return r
}

type gormTable[T any] struct {
	db    *gorm.DB
	order string
}

func newGormTable[T any](db *gorm.DB, order string) *gormTable[T] {
	return &gormTable[T]{db: db, order: order}
}

func (t *gormTable[T]) Create(ctx context.Context, v *T) error {
	return t.db.WithContext(ctx).Create(v).Error
}

func (t *gormTable[T]) FindByID(ctx context.Context, id uint) (*T, error) {
	return t.first(t.db.WithContext(ctx), id)
}

func (t *gormTable[T]) FindByIDForUpdate(ctx context.Context, id uint) (*T, error) {
	return t.first(t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (t *gormTable[T]) first(q *gorm.DB, id uint) (*T, error) {
	var v T
	if err := q.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (t *gormTable[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	err := t.db.WithContext(ctx).Order(t.order).Find(&items).Error
	return items, err
}

func (t *gormTable[T]) Update(ctx context.Context, v *T) error {
	return t.db.WithContext(ctx).Save(v).Error
}

func (t *gormTable[T]) Delete(ctx context.Context, id uint) error {
	result := t.db.WithContext(ctx).Delete(new(T), id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AuditLogRepo 审计日志仓库
type AuditLogRepo struct {
	db *gorm.DB
}

func (r *AuditLogRepo) Create(ctx context.Context, log *entity.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *AuditLogRepo) List(ctx context.Context, safetyPlanID uint) ([]entity.AuditLog, error) {
	var items []entity.AuditLog
	query := r.db.WithContext(ctx).Model(&entity.AuditLog{})
	if safetyPlanID != 0 {
		query = query.Where("safety_plan_id = ?", safetyPlanID)
	}
	err := query.Order("created_at DESC, id DESC").Find(&items).Error
	return items, err
}

// ReportRepo 快照报告仓库
type ReportRepo struct {
	*gormTable[entity.ReportList]
}

func (r *ReportRepo) FindBySafetyPlan(ctx context.Context, safetyPlanID uint) (*entity.ReportList, error) {
	var report entity.ReportList
	err := r.db.WithContext(ctx).
		Where("safety_plan_id = ?", safetyPlanID).
		Order("created_at DESC, id DESC").
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}

// UserPreferenceRepo 用户偏好仓库
type UserPreferenceRepo struct {
	db *gorm.DB
}

func (r *UserPreferenceRepo) FindByUserID(ctx context.Context, userID string) (*entity.UserPreference, error) {
	var pref entity.UserPreference
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pref, nil
}

func (r *UserPreferenceRepo) Upsert(ctx context.Context, pref *entity.UserPreference) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"system", "group", "site", "is_first_time", "role", "updated_at"}),
	}).Create(pref).Error
}

// PermitApprovalRepo 作业许可审批仓库
type PermitApprovalRepo struct {
	db *gorm.DB
}

func (r *PermitApprovalRepo) Create(ctx context.Context, a *entity.PermitApproval) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *PermitApprovalRepo) FindByID(ctx context.Context, id uint) (*entity.PermitApproval, error) {
	var a entity.PermitApproval
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PermitApprovalRepo) ListByPermit(ctx context.Context, permitID uint) ([]entity.PermitApproval, error) {
	var items []entity.PermitApproval
	err := r.db.WithContext(ctx).
		Where("permit_id = ?", permitID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *PermitApprovalRepo) Update(ctx context.Context, a *entity.PermitApproval) error {
	return r.db.WithContext(ctx).Save(a).Error
}

// PermitSignOffRepo 签字仓库
type PermitSignOffRepo struct {
	db *gorm.DB
}

func (r *PermitSignOffRepo) Create(ctx context.Context, s *entity.PermitSignOff) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *PermitSignOffRepo) ListByPermit(ctx context.Context, permitID uint) ([]entity.PermitSignOff, error) {
	var items []entity.PermitSignOff
	err := r.db.WithContext(ctx).
		Where("permit_id = ?", permitID).
		Order("signed_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// GasMeasurementRepo 气体检测仓库
type GasMeasurementRepo struct {
	db *gorm.DB
}

func (r *GasMeasurementRepo) Create(ctx context.Context, m *entity.GasMeasurement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *GasMeasurementRepo) ListByPermit(ctx context.Context, permitID uint) ([]entity.GasMeasurement, error) {
	var items []entity.GasMeasurement
	err := r.db.WithContext(ctx).
		Where("permit_id = ?", permitID).
		Order("measured_at DESC, id DESC").
		Find(&items).Error
	return items, err
}

// SRBRecordRepo SRB 记录仓库
type SRBRecordRepo struct {
	*gormTable[entity.SRBRecord]
}

func (r *SRBRecordRepo) FindBySafetyPlan(ctx context.Context, safetyPlanID uint) (*entity.SRBRecord, error) {
	var rec entity.SRBRecord
	err := r.db.WithContext(ctx).
		Where("safety_plan_id = ?", safetyPlanID).
		Order("created_at DESC, id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}
