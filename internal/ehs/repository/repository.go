package repository

import (
	"context"
	"errors"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Table 通用增删改查，id 由存储生成
type Table[T any] interface {
	Create(ctx context.Context, v *T) error
	FindByID(ctx context.Context, id uint) (*T, error)
	// FindByIDForUpdate 事务内读取并锁定该行
	FindByIDForUpdate(ctx context.Context, id uint) (*T, error)
	List(ctx context.Context) ([]T, error)
	Update(ctx context.Context, v *T) error
	Delete(ctx context.Context, id uint) error
}

// AuditLogRepository 只追加，不提供修改和删除
type AuditLogRepository interface {
	Create(ctx context.Context, log *entity.AuditLog) error
	// List safetyPlanID 为 0 时返回全部，按时间倒序
	List(ctx context.Context, safetyPlanID uint) ([]entity.AuditLog, error)
}

type ReportRepository interface {
	Table[entity.ReportList]
	FindBySafetyPlan(ctx context.Context, safetyPlanID uint) (*entity.ReportList, error)
}

type UserPreferenceRepository interface {
	FindByUserID(ctx context.Context, userID string) (*entity.UserPreference, error)
	Upsert(ctx context.Context, pref *entity.UserPreference) error
}

type PermitApprovalRepository interface {
	Create(ctx context.Context, a *entity.PermitApproval) error
	FindByID(ctx context.Context, id uint) (*entity.PermitApproval, error)
	ListByPermit(ctx context.Context, permitID uint) ([]entity.PermitApproval, error)
	Update(ctx context.Context, a *entity.PermitApproval) error
}

type PermitSignOffRepository interface {
	Create(ctx context.Context, s *entity.PermitSignOff) error
	ListByPermit(ctx context.Context, permitID uint) ([]entity.PermitSignOff, error)
}

type GasMeasurementRepository interface {
	Create(ctx context.Context, m *entity.GasMeasurement) error
	ListByPermit(ctx context.Context, permitID uint) ([]entity.GasMeasurement, error)
}

type SRBRecordRepository interface {
	Table[entity.SRBRecord]
	// FindBySafetyPlan 返回该计划最新的一条 SRB 记录
	FindBySafetyPlan(ctx context.Context, safetyPlanID uint) (*entity.SRBRecord, error)
}

// Repositories EHS仓库集合
type Repositories struct {
	SafetyPlans         Table[entity.SafetyPlan]
	AuditLogs           AuditLogRepository
	Reports             ReportRepository
	Preferences         UserPreferenceRepository
	Permits             Table[entity.Permit]
	PermitApprovals     PermitApprovalRepository
	PermitSignOffs      PermitSignOffRepository
	GasMeasurements     GasMeasurementRepository
	SRBRecords          SRBRecordRepository
	CraneInspections    Table[entity.CraneInspection]
	DraegerCalibrations Table[entity.DraegerCalibration]
	Incidents           Table[entity.Incident]
	Documents           Table[entity.Document]

	tx func(ctx context.Context, fn func(r *Repositories) error) error
}

// Transaction 在同一事务内执行多步操作；fn 必须使用传入的仓库集合
func (r *Repositories) Transaction(ctx context.Context, fn func(r *Repositories) error) error {
	return r.tx(ctx, fn)
}
