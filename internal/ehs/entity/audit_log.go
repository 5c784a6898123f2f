package entity

import "time"

// 审计动作
const (
	AuditActionCreated  = "created"
	AuditActionEdited   = "edited"
	AuditActionApproved = "approved"
	AuditActionRejected = "rejected"
	AuditActionReused   = "reused"
)

// AuditLog 安全计划审计日志，只追加
type AuditLog struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	SafetyPlanID   uint      `json:"safetyPlanId" gorm:"not null;index"`
	Action         string    `json:"action" gorm:"size:20;not null"`
	PerformedBy    string    `json:"performedBy" gorm:"size:100;not null"`
	PreviousStatus *string   `json:"previousStatus" gorm:"size:20"`
	NewStatus      *string   `json:"newStatus" gorm:"size:20"`
	Comments       *string   `json:"comments" gorm:"type:text"`
	Changes        JSONB     `json:"changes" gorm:"type:jsonb"` // 编辑: {field: {old, new}}; 复用: {reusedAsId}
	CreatedAt      time.Time `json:"createdAt" gorm:"index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// FieldChange 编辑前后的值
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}
