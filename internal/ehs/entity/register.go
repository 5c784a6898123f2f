package entity

import "time"

// CraneInspection 行车检查
type CraneInspection struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Inspector      string    `json:"inspector" gorm:"size:100;not null"`
	BuddyInspector string    `json:"buddyInspector" gorm:"size:100;not null"`
	Bay            string    `json:"bay" gorm:"size:50;not null"`
	Machine        string    `json:"machine" gorm:"size:100;not null"`
	Date           string    `json:"date" gorm:"size:20;not null"`
	Q1             string    `json:"q1" gorm:"size:10;not null;default:'no'"`
	Q2             string    `json:"q2" gorm:"size:10;not null;default:'no'"`
	Q3             string    `json:"q3" gorm:"size:10;not null;default:'no'"`
	Status         string    `json:"status" gorm:"size:20;not null;default:'draft'"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (CraneInspection) TableName() string {
	return "crane_inspections"
}

// DraegerCalibration 气体检测仪校准记录
type DraegerCalibration struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	NC12            string    `json:"nc12" gorm:"column:nc_12;size:50;not null"`
	SerialNumber    string    `json:"serialNumber" gorm:"size:100;not null"`
	CalibrationDate string    `json:"calibrationDate" gorm:"size:20;not null"`
	CalibratedBy    string    `json:"calibratedBy" gorm:"size:100;not null"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (DraegerCalibration) TableName() string {
	return "draeger_calibrations"
}

// Incident 事故事件
type Incident struct {
	ID                   uint      `json:"id" gorm:"primaryKey"`
	Date                 string    `json:"date" gorm:"size:20;not null"`
	Type                 string    `json:"type" gorm:"size:50;not null"`
	Location             string    `json:"location" gorm:"size:200;not null"`
	Description          string    `json:"description" gorm:"type:text;not null"`
	Severity             int       `json:"severity" gorm:"not null;default:1"`
	AssignedInvestigator string    `json:"assignedInvestigator" gorm:"size:100;not null"`
	Status               string    `json:"status" gorm:"size:20;not null;default:'open'"`
	CreatedAt            time.Time `json:"createdAt"`
}

func (Incident) TableName() string {
	return "incidents"
}

// Document 文档库条目，文件可上传到对象存储
type Document struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Title         string    `json:"title" gorm:"size:200;not null"`
	Category      string    `json:"category" gorm:"size:50;not null"`
	Description   string    `json:"description" gorm:"type:text;not null"`
	SharepointURL string    `json:"sharepointUrl" gorm:"column:sharepoint_url;type:text;not null"`
	ObjectKey     *string   `json:"objectKey" gorm:"size:500"`
	FileName      *string   `json:"fileName" gorm:"size:255"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (Document) TableName() string {
	return "documents"
}

// AllModels 自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&SafetyPlan{},
		&AuditLog{},
		&ReportList{},
		&UserPreference{},
		&Permit{},
		&PermitApproval{},
		&PermitSignOff{},
		&GasMeasurement{},
		&SRBRecord{},
		&CraneInspection{},
		&DraegerCalibration{},
		&Incident{},
		&Document{},
	}
}
