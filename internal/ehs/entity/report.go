package entity

import (
	"database/sql/driver"
	"time"
)

// ReportList 计划提交时的快照报告，仅用于导出
type ReportList struct {
	ID                   uint             `json:"id" gorm:"primaryKey"`
	SafetyPlanID         uint             `json:"safetyPlanId" gorm:"not null;index"`
	VersionID            string           `json:"versionId" gorm:"size:50;not null"`
	JobDetails           JobDetailsReport `json:"jobDetails" gorm:"type:jsonb;not null"`
	SafetyRiskAssessment SafetyRiskReport `json:"safetyRiskAssessment" gorm:"type:jsonb;not null"`
	SRBInfo              SRBInfo          `json:"srbInfo" gorm:"column:srb_info;type:jsonb;not null"`
	ApprovalInfo         ApprovalInfo     `json:"approvalInfo" gorm:"type:jsonb;not null"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

func (ReportList) TableName() string {
	return "report_list"
}

type JobDetailsReport struct {
	SafetyPlanID  uint     `json:"safetyPlanId"`
	VersionID     string   `json:"versionId"`
	Group         string   `json:"group"`
	TaskName      string   `json:"taskName"`
	Date          string   `json:"date"`
	Location      string   `json:"location"`
	Shift         string   `json:"shift"`
	MachineNumber string   `json:"machineNumber"`
	Region        string   `json:"region"`
	System        string   `json:"system"`
	LeadName      string   `json:"leadName"`
	ApproverName  *string  `json:"approverName"`
	Engineers     []string `json:"engineers"`
	Comments      *string  `json:"comments"`
}

func (r JobDetailsReport) Value() (driver.Value, error) { return jsonValue(r) }
func (r *JobDetailsReport) Scan(value interface{}) error {
	return scanJSON(value, r, "JobDetailsReport")
}

type SafetyQuestions struct {
	Q1SpecializedTraining string `json:"q1_specializedTraining"`
	Q2Chemicals           string `json:"q2_chemicals"`
	Q3ImpactOthers        string `json:"q3_impactOthers"`
	Q4Falls               string `json:"q4_falls"`
	Q5Barricades          string `json:"q5_barricades"`
	Q6Loto                string `json:"q6_loto"`
	Q7Lifting             string `json:"q7_lifting"`
	Q8Ergonomics          string `json:"q8_ergonomics"`
	Q9OtherConcerns       string `json:"q9_otherConcerns"`
	Q10HeadInjury         string `json:"q10_headInjury"`
	Q11OtherPPE           string `json:"q11_otherPPE"`
	CanSocialDistance     string `json:"canSocialDistance"`
}

type SafetyRiskReport struct {
	SafetyQuestions SafetyQuestions `json:"safetyQuestions"`
	Hazards         []string        `json:"hazards"`
	Assessments     AssessmentMap   `json:"assessments"`
}

func (r SafetyRiskReport) Value() (driver.Value, error) { return jsonValue(r) }
func (r *SafetyRiskReport) Scan(value interface{}) error {
	return scanJSON(value, r, "SafetyRiskReport")
}

type SRBInfo struct {
	Required            bool     `json:"required"`
	HazardsRequiringSRB []string `json:"hazardsRequiringSRB"`
	ChecklistsRequired  []string `json:"checklistsRequired"`
	Notes               *string  `json:"notes"`
}

func (r SRBInfo) Value() (driver.Value, error) { return jsonValue(r) }
func (r *SRBInfo) Scan(value interface{}) error {
	return scanJSON(value, r, "SRBInfo")
}

type ApprovalVersion struct {
	VersionID   string  `json:"versionId"`
	Status      string  `json:"status"`
	SubmittedBy string  `json:"submittedBy"`
	SubmittedAt string  `json:"submittedAt"`
	ApprovedBy  *string `json:"approvedBy"`
	ApprovedAt  *string `json:"approvedAt"`
	Comments    *string `json:"comments"`
}

type ApprovalInfo struct {
	CurrentStatus string            `json:"currentStatus"`
	Versions      []ApprovalVersion `json:"versions"`
}

func (r ApprovalInfo) Value() (driver.Value, error) { return jsonValue(r) }
func (r *ApprovalInfo) Scan(value interface{}) error {
	return scanJSON(value, r, "ApprovalInfo")
}
