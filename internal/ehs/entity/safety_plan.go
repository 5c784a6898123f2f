package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
)

// 安全计划状态
const (
	PlanStatusDraft    = "draft"
	PlanStatusPending  = "pending"
	PlanStatusApproved = "approved"
	PlanStatusRejected = "rejected"
)

const (
	DefaultRegion = "Europe - Ireland"
	DefaultSystem = "Others"
)

// PlanEditableFields 编辑(PUT)时参与比对和写入的字段，按 JSON 名称
var PlanEditableFields = []string{
	"group", "taskName", "date", "location", "shift", "machineNumber", "region", "system",
	"canSocialDistance", "q1_specializedTraining", "q2_chemicals", "q3_impactOthers", "q4_falls",
	"q5_barricades", "q6_loto", "q7_lifting", "q8_ergonomics", "q9_otherConcerns", "q10_headInjury",
	"q11_otherPPE", "hazards", "assessments", "leadName", "approverName", "engineers", "comments",
}

// SafetyPlan 综合安全计划(ISP)
type SafetyPlan struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	Group         string `json:"group" gorm:"size:100;not null"`
	TaskName      string `json:"taskName" gorm:"type:text;not null"`
	Date          string `json:"date" gorm:"size:20;not null"`
	Location      string `json:"location" gorm:"size:200;not null"`
	Shift         string `json:"shift" gorm:"size:50;not null"`
	MachineNumber string `json:"machineNumber" gorm:"size:100;not null"`
	Region        string `json:"region" gorm:"size:100;not null;default:'Europe - Ireland'"`
	System        string `json:"system" gorm:"size:50;not null;default:'Others'"` // EUV/DUV/CSCM/Trumph/Others

	// 作业前问题 yes/no
	CanSocialDistance     string `json:"canSocialDistance" gorm:"size:10;not null"`
	Q1SpecializedTraining string `json:"q1_specializedTraining" gorm:"size:10;not null"`
	Q2Chemicals           string `json:"q2_chemicals" gorm:"size:10;not null"`
	Q3ImpactOthers        string `json:"q3_impactOthers" gorm:"size:10;not null"`
	Q4Falls               string `json:"q4_falls" gorm:"size:10;not null"`
	Q5Barricades          string `json:"q5_barricades" gorm:"size:10;not null"`
	Q6Loto                string `json:"q6_loto" gorm:"size:10;not null"`
	Q7Lifting             string `json:"q7_lifting" gorm:"size:10;not null"`
	Q8Ergonomics          string `json:"q8_ergonomics" gorm:"size:10;not null"`
	Q9OtherConcerns       string `json:"q9_otherConcerns" gorm:"size:10;not null"`
	Q10HeadInjury         string `json:"q10_headInjury" gorm:"size:10;not null"`
	Q11OtherPPE           string `json:"q11_otherPPE" gorm:"column:q11_other_ppe;size:10;not null"`

	Hazards     HazardList    `json:"hazards" gorm:"type:jsonb"`
	Assessments AssessmentMap `json:"assessments" gorm:"type:jsonb"`

	LeadName     string     `json:"leadName" gorm:"size:100;not null"`
	ApproverName *string    `json:"approverName" gorm:"size:100"`
	Engineers    StringList `json:"engineers" gorm:"type:jsonb"`
	Comments     *string    `json:"comments" gorm:"type:text"`
	Status       string     `json:"status" gorm:"size:20;not null;default:'pending';index"`
	ShareToken   *string    `json:"shareToken" gorm:"size:64"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (SafetyPlan) TableName() string {
	return "safety_plans"
}

// UnmarshalJSON 在 API 边界把旧版危害对象数组转换为 hazards + assessments
func (p *SafetyPlan) UnmarshalJSON(data []byte) error {
	type Alias SafetyPlan
	aux := struct {
		*Alias
		Hazards json.RawMessage `json:"hazards"`
	}{Alias: (*Alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Hazards == nil {
		return nil
	}

	names, legacy, err := DecodeHazards(aux.Hazards, risk.DefaultCatalog())
	if err != nil {
		return fmt.Errorf("hazards: %w", err)
	}
	p.Hazards = names
	for name, a := range legacy {
		if p.Assessments == nil {
			p.Assessments = AssessmentMap{}
		}
		if _, exists := p.Assessments[name]; !exists {
			p.Assessments[name] = a
		}
	}
	return nil
}

// ActiveAssessments 只返回仍在 hazards 中的评估，残留条目忽略
func (p *SafetyPlan) ActiveAssessments() AssessmentMap {
	out := make(AssessmentMap, len(p.Hazards))
	for _, name := range p.Hazards {
		if a, ok := p.Assessments[name]; ok {
			out[name] = a
		}
	}
	return out
}

// EscalatedHazards 按 hazards 顺序返回需要 SRB 升级的危害
func (p *SafetyPlan) EscalatedHazards() []string {
	var out []string
	for _, name := range p.Hazards {
		a, ok := p.Assessments[name]
		if ok && risk.RequiresEscalation(a.Score()) {
			out = append(out, name)
		}
	}
	return out
}

// HighestBand 计划中最高的风险等级，没有评估时为 Low
func (p *SafetyPlan) HighestBand() risk.Band {
	maxScore := 0
	for _, a := range p.ActiveAssessments() {
		if s := a.Score(); s > maxScore {
			maxScore = s
		}
	}
	return risk.ClassifyRisk(maxScore)
}

// ISPNumber 计划编号 ISP-0042
func ISPNumber(id uint) string {
	return fmt.Sprintf("ISP-%04d", id)
}

// UserPreference 用户偏好
type UserPreference struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"userId" gorm:"size:100;not null;uniqueIndex"`
	System      string    `json:"system" gorm:"size:50;not null;default:'Others'"`
	Group       string    `json:"group" gorm:"size:100;not null;default:'Europe'"`
	Site        string    `json:"site" gorm:"size:100;not null;default:'F34 Intel Ireland'"`
	IsFirstTime string    `json:"isFirstTime" gorm:"size:10;not null;default:'true'"`
	Role        string    `json:"role" gorm:"size:50;not null;default:'user'"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (UserPreference) TableName() string {
	return "user_preferences"
}

// DefaultUserPreference 用户没有保存偏好时返回的默认值
func DefaultUserPreference(userID string) UserPreference {
	return UserPreference{
		UserID:      userID,
		System:      DefaultSystem,
		Group:       "Europe",
		Site:        "F34 Intel Ireland",
		IsFirstTime: "true",
		Role:        "user",
	}
}
