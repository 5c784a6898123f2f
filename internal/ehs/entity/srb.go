package entity

import (
	"database/sql/driver"
	"time"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
)

// SRB 状态
const (
	SRBStatusDraft      = "draft"
	SRBStatusInProgress = "in-progress"
	SRBStatusCompleted  = "completed"
	SRBStatusRejected   = "rejected"
)

// SRB 三个固定签字角色
const (
	SignatoryEHSSpecialist = "EHS Specialist"
	SignatoryFabTeamLead   = "Fab Team Lead"
	SignatoryCSManagement  = "CS Management"
)

var SignatoryRoles = []string{SignatoryEHSSpecialist, SignatoryFabTeamLead, SignatoryCSManagement}

// SRBRecord 安全评审委员会升级记录
type SRBRecord struct {
	ID                  uint              `json:"id" gorm:"primaryKey"`
	SafetyPlanID        uint              `json:"safetyPlanId" gorm:"not null;index"`
	Status              string            `json:"status" gorm:"size:20;not null;default:'draft'"`
	ServiceOrderNumber  string            `json:"serviceOrderNumber" gorm:"size:50;not null;default:''"`
	PreQuestions        SRBPreQuestions   `json:"preQuestions" gorm:"type:jsonb;not null"`
	EscalatedHazards    StringList        `json:"escalatedHazards" gorm:"type:jsonb;not null"`
	OriginalAssessments AssessmentMap     `json:"originalAssessments" gorm:"type:jsonb;not null"`
	Reassessments       Reassessments     `json:"reassessments" gorm:"type:jsonb;not null"`
	TeamMembers         StringList        `json:"teamMembers" gorm:"type:jsonb;not null"`
	Acknowledgements    *Acknowledgements `json:"acknowledgements" gorm:"type:jsonb"`
	Signatories         Signatories       `json:"signatories" gorm:"type:jsonb;not null"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
	CompletedAt         *time.Time        `json:"completedAt"`
}

func (SRBRecord) TableName() string {
	return "srb_records"
}

type SRBPreQuestions struct {
	ReasonForEscalation     string `json:"reasonForEscalation"`
	ProcedureOrCondition    string `json:"procedureOrCondition"`
	ServiceOrderNumber      string `json:"serviceOrderNumber"`
	CoachUpdateNeeded       string `json:"coachUpdateNeeded"`       // yes/no
	CustomerSafetyCompleted string `json:"customerSafetyCompleted"` // yes/no
}

func (v SRBPreQuestions) Value() (driver.Value, error) { return jsonValue(v) }
func (v *SRBPreQuestions) Scan(value interface{}) error {
	return scanJSON(value, v, "SRBPreQuestions")
}

// Reassessment 单个升级危害的复评
type Reassessment struct {
	HazardName               string `json:"hazardName"`
	OriginalSeverity         int    `json:"originalSeverity"`
	OriginalLikelihood       int    `json:"originalLikelihood"`
	OriginalRiskScore        int    `json:"originalRiskScore"`
	OriginalMitigation       string `json:"originalMitigation"`
	AdditionalSafetyMeasures string `json:"additionalSafetyMeasures"`
	MitigationPlan           string `json:"mitigationPlan"`
	NewSeverity              int    `json:"newSeverity"`
	NewLikelihood            int    `json:"newLikelihood"`
}

func (r Reassessment) NewScore() int {
	return risk.Score(r.NewSeverity, r.NewLikelihood)
}

type Reassessments []Reassessment

func (v Reassessments) Value() (driver.Value, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return jsonValue([]Reassessment(v))
}

func (v *Reassessments) Scan(value interface{}) error {
	return scanJSON(value, (*[]Reassessment)(v), "Reassessments")
}

// Acknowledgements 六项必选确认
type Acknowledgements struct {
	HazardReEvaluated      bool `json:"ack1_hazardReEvaluated"`
	ParticipantsReviewed   bool `json:"ack2_participantsReviewed"`
	ControlsValidated      bool `json:"ack3_controlsValidated"`
	ResidualRiskAgreed     bool `json:"ack4_residualRiskAgreed"`
	SafeActionAcknowledged bool `json:"ack5_safeActionAcknowledged"`
	NewRiskAcceptable      bool `json:"ack6_newRiskAcceptable"`
}

func (a Acknowledgements) All() bool {
	return a.HazardReEvaluated && a.ParticipantsReviewed && a.ControlsValidated &&
		a.ResidualRiskAgreed && a.SafeActionAcknowledged && a.NewRiskAcceptable
}

func (v Acknowledgements) Value() (driver.Value, error) { return jsonValue(v) }
func (v *Acknowledgements) Scan(value interface{}) error {
	return scanJSON(value, v, "Acknowledgements")
}

// Signatory 签字人；SignedAt 在采集签名时记录
type Signatory struct {
	Role          string  `json:"role"`
	Name          string  `json:"name"`
	SignatureData *string `json:"signatureData"`
	SignedAt      *string `json:"signedAt"`
}

// Signed 姓名与签名图片均不为空
func (s Signatory) Signed() bool {
	return s.Name != "" && s.SignatureData != nil && *s.SignatureData != ""
}

type Signatories []Signatory

func (v Signatories) Value() (driver.Value, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return jsonValue([]Signatory(v))
}

func (v *Signatories) Scan(value interface{}) error {
	return scanJSON(value, (*[]Signatory)(v), "Signatories")
}

// DefaultSignatories 三个固定角色的空签字位
func DefaultSignatories() Signatories {
	out := make(Signatories, 0, len(SignatoryRoles))
	for _, role := range SignatoryRoles {
		out = append(out, Signatory{Role: role})
	}
	return out
}
