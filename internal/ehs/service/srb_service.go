package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/notify"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/sse"
)

// SRB 向导步骤
const (
	SRBStepPreQuestions     = "pre-questions"
	SRBStepReassessment     = "reassessment"
	SRBStepAcknowledgements = "acknowledgements"
	SRBStepSignatures       = "signatures"
)

const (
	msgNotAllLow      = "All escalated hazards must reach LOW risk before completion"
	msgMissingSigners = "All three mandatory signatures are required"
)

// SRBService 安全评审委员会升级流程
type SRBService struct {
	repos    *repository.Repositories
	hub      *sse.Hub
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewSRBService(repos *repository.Repositories, hub *sse.Hub, notifier notify.Notifier, logger *zap.Logger) *SRBService {
	return &SRBService{repos: repos, hub: hub, notifier: notifier, logger: logger, now: time.Now}
}

func (s *SRBService) List(ctx context.Context) ([]entity.SRBRecord, error) {
	return s.repos.SRBRecords.List(ctx)
}

func (s *SRBService) Get(ctx context.Context, id uint) (*entity.SRBRecord, error) {
	rec, err := s.repos.SRBRecords.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("SRB record", err)
	}
	return rec, nil
}

// GetByPlan 计划最新的 SRB 记录
func (s *SRBService) GetByPlan(ctx context.Context, safetyPlanID uint) (*entity.SRBRecord, error) {
	rec, err := s.repos.SRBRecords.FindBySafetyPlan(ctx, safetyPlanID)
	if err != nil {
		return nil, notFound("SRB record", err)
	}
	return rec, nil
}

func (s *SRBService) Delete(ctx context.Context, id uint) error {
	if err := s.repos.SRBRecords.Delete(ctx, id); err != nil {
		return notFound("SRB record", err)
	}
	s.hub.Publish(sse.EventSRBUpdate, sse.ChangeEvent{ID: id, Action: "deleted"})
	return nil
}

// EscalateRequest 发起升级
type EscalateRequest struct {
	SafetyPlanID       uint                    `json:"safetyPlanId" binding:"required"`
	ServiceOrderNumber string                  `json:"serviceOrderNumber"`
	PreQuestions       *entity.SRBPreQuestions `json:"preQuestions"`
	TeamMembers        []string                `json:"teamMembers"`
	Status             string                  `json:"status"`
}

// Escalate 以计划中评分 >= 8 的危害创建 SRB 记录，冻结原始评估并预置复评和签字位
func (s *SRBService) Escalate(ctx context.Context, req EscalateRequest) (*entity.SRBRecord, error) {
	plan, err := s.repos.SafetyPlans.FindByID(ctx, req.SafetyPlanID)
	if err != nil {
		return nil, notFound("Safety plan", err)
	}

	hazards := plan.EscalatedHazards()
	if len(hazards) == 0 {
		return nil, rule("No hazards require SRB escalation")
	}

	status := req.Status
	switch status {
	case "":
		status = entity.SRBStatusDraft
	case entity.SRBStatusDraft, entity.SRBStatusInProgress:
	default:
		return nil, invalid("Invalid SRB record data", "status must be draft or in-progress")
	}

	original := make(entity.AssessmentMap, len(hazards))
	reassessments := make(entity.Reassessments, 0, len(hazards))
	for _, name := range hazards {
		a := plan.Assessments[name]
		original[name] = a
		reassessments = append(reassessments, entity.Reassessment{
			HazardName:         name,
			OriginalSeverity:   a.Severity,
			OriginalLikelihood: a.Likelihood,
			OriginalRiskScore:  a.Score(),
			OriginalMitigation: a.Mitigation,
			NewSeverity:        a.Severity,
			NewLikelihood:      a.Likelihood,
		})
	}

	rec := &entity.SRBRecord{
		SafetyPlanID:        plan.ID,
		Status:              status,
		ServiceOrderNumber:  req.ServiceOrderNumber,
		EscalatedHazards:    entity.StringList(hazards),
		OriginalAssessments: original,
		Reassessments:       reassessments,
		TeamMembers:         append(entity.StringList{}, req.TeamMembers...),
		Signatories:         entity.DefaultSignatories(),
	}
	if req.PreQuestions != nil {
		rec.PreQuestions = *req.PreQuestions
		if rec.ServiceOrderNumber == "" {
			rec.ServiceOrderNumber = req.PreQuestions.ServiceOrderNumber
		}
	}

	if err := s.repos.SRBRecords.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create srb record: %w", err)
	}

	s.logger.Info("SRB escalation created",
		zap.Uint("id", rec.ID), zap.Uint("safety_plan_id", plan.ID), zap.Strings("hazards", hazards))
	s.hub.Publish(sse.EventSRBUpdate, sse.ChangeEvent{ID: rec.ID, Action: "created", Status: rec.Status,
		Extra: map[string]interface{}{"safetyPlanId": plan.ID}})
	return rec, nil
}

// PatchSRBRequest 向导逐步保存的字段，nil 表示不修改
type PatchSRBRequest struct {
	Status             *string                  `json:"status"`
	ServiceOrderNumber *string                  `json:"serviceOrderNumber"`
	PreQuestions       *entity.SRBPreQuestions  `json:"preQuestions"`
	Reassessments      *entity.Reassessments    `json:"reassessments"`
	TeamMembers        *entity.StringList       `json:"teamMembers"`
	Acknowledgements   *entity.Acknowledgements `json:"acknowledgements"`
	Signatories        *entity.Signatories      `json:"signatories"`
}

// Patch 部分更新；已完成的记录不可修改，完成只能通过 Complete
func (s *SRBService) Patch(ctx context.Context, id uint, req PatchSRBRequest) (*entity.SRBRecord, error) {
	var rec *entity.SRBRecord
	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		var err error
		rec, err = r.SRBRecords.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound("SRB record", err)
		}
		if rec.Status == entity.SRBStatusCompleted {
			return rule("Completed SRB records cannot be modified")
		}

		if req.Status != nil {
			switch *req.Status {
			case entity.SRBStatusDraft, entity.SRBStatusInProgress, entity.SRBStatusRejected:
				rec.Status = *req.Status
			case entity.SRBStatusCompleted:
				return invalid("Invalid SRB record data", "use the complete action to complete an SRB record")
			default:
				return invalid("Invalid SRB record data", "unknown status "+*req.Status)
			}
		}
		if req.ServiceOrderNumber != nil {
			rec.ServiceOrderNumber = *req.ServiceOrderNumber
		}
		if req.PreQuestions != nil {
			rec.PreQuestions = *req.PreQuestions
		}
		if req.Reassessments != nil {
			next, err := mergeReassessments(rec, *req.Reassessments)
			if err != nil {
				return err
			}
			rec.Reassessments = next
		}
		if req.TeamMembers != nil {
			rec.TeamMembers = *req.TeamMembers
		}
		if req.Acknowledgements != nil {
			rec.Acknowledgements = req.Acknowledgements
		}
		if req.Signatories != nil {
			rec.Signatories = *req.Signatories
		}
		return r.SRBRecords.Update(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	s.hub.Publish(sse.EventSRBUpdate, sse.ChangeEvent{ID: rec.ID, Action: "updated", Status: rec.Status})
	return rec, nil
}

// mergeReassessments 原始评分只读，始终取自冻结的原始评估
func mergeReassessments(rec *entity.SRBRecord, incoming entity.Reassessments) (entity.Reassessments, error) {
	escalated := make(map[string]bool, len(rec.EscalatedHazards))
	for _, name := range rec.EscalatedHazards {
		escalated[name] = true
	}
	out := make(entity.Reassessments, 0, len(incoming))
	for _, ra := range incoming {
		if !escalated[ra.HazardName] {
			return nil, invalid("Invalid SRB record data", fmt.Sprintf("%q is not an escalated hazard", ra.HazardName))
		}
		if !risk.ValidRating(ra.NewSeverity) || !risk.ValidRating(ra.NewLikelihood) {
			return nil, invalid("Invalid SRB record data",
				fmt.Sprintf("%s: severity and likelihood must be between %d and %d", ra.HazardName, risk.MinRating, risk.MaxRating))
		}
		orig := rec.OriginalAssessments[ra.HazardName]
		ra.OriginalSeverity = orig.Severity
		ra.OriginalLikelihood = orig.Likelihood
		ra.OriginalRiskScore = orig.Score()
		ra.OriginalMitigation = orig.Mitigation
		out = append(out, ra)
	}
	return out, nil
}

// Complete 复核全部危害降为低风险且三方签字齐全后完成记录
// 校验与写入在同一事务中，PostgreSQL 下对记录加行锁
func (s *SRBService) Complete(ctx context.Context, id uint) (*entity.SRBRecord, error) {
	var rec *entity.SRBRecord
	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		var err error
		rec, err = r.SRBRecords.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound("SRB record", err)
		}
		if rec.Status == entity.SRBStatusCompleted {
			return rule("SRB record is already completed")
		}
		if rec.Status == entity.SRBStatusRejected {
			return rule("Rejected SRB records cannot be completed")
		}
		if problems := reassessmentProblems(rec, false); len(problems) > 0 {
			return rule(msgNotAllLow)
		}
		if problems := signatureProblems(rec); len(problems) > 0 {
			return rule(msgMissingSigners)
		}

		now := s.now()
		rec.Status = entity.SRBStatusCompleted
		rec.CompletedAt = &now
		return r.SRBRecords.Update(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	signers := make([]string, 0, len(rec.Signatories))
	for _, sig := range rec.Signatories {
		signers = append(signers, sig.Name)
	}
	s.logger.Info("SRB record completed",
		zap.Uint("id", rec.ID), zap.Uint("safety_plan_id", rec.SafetyPlanID), zap.Strings("signers", signers))
	s.hub.Publish(sse.EventSRBUpdate, sse.ChangeEvent{ID: rec.ID, Action: "completed", Status: rec.Status})
	notifyAsync(s.notifier, s.logger, notify.NewSRBCompletedCard(rec.ID, rec.SafetyPlanID, rec.EscalatedHazards, signers))
	return rec, nil
}

// StepResult 向导步骤校验结果
type StepResult struct {
	Step     string   `json:"step"`
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

// ValidateStep 校验向导某一步是否可以继续，不修改记录
func (s *SRBService) ValidateStep(ctx context.Context, id uint, step string) (*StepResult, error) {
	rec, err := s.repos.SRBRecords.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("SRB record", err)
	}

	var problems []string
	switch step {
	case SRBStepPreQuestions:
		problems = preQuestionProblems(rec.PreQuestions)
	case SRBStepReassessment:
		problems = reassessmentProblems(rec, true)
	case SRBStepAcknowledgements:
		if rec.Acknowledgements == nil || !rec.Acknowledgements.All() {
			problems = append(problems, "All six acknowledgements must be confirmed")
		}
	case SRBStepSignatures:
		problems = signatureProblems(rec)
	default:
		return nil, invalid("Unknown SRB step",
			"step must be one of pre-questions, reassessment, acknowledgements, signatures")
	}

	if problems == nil {
		problems = []string{}
	}
	return &StepResult{Step: step, Valid: len(problems) == 0, Problems: problems}, nil
}

func preQuestionProblems(q entity.SRBPreQuestions) []string {
	var out []string
	text := []struct{ name, value string }{
		{"reasonForEscalation", q.ReasonForEscalation},
		{"procedureOrCondition", q.ProcedureOrCondition},
		{"serviceOrderNumber", q.ServiceOrderNumber},
	}
	for _, f := range text {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.name+" is required")
		}
	}
	yesNo := []struct{ name, value string }{
		{"coachUpdateNeeded", q.CoachUpdateNeeded},
		{"customerSafetyCompleted", q.CustomerSafetyCompleted},
	}
	for _, f := range yesNo {
		if f.value != "yes" && f.value != "no" {
			out = append(out, f.name+" must be yes or no")
		}
	}
	return out
}

// reassessmentProblems 每个升级危害都需要复评且新评分为低风险；full 时还要求填写措施与计划
func reassessmentProblems(rec *entity.SRBRecord, full bool) []string {
	byName := make(map[string]entity.Reassessment, len(rec.Reassessments))
	for _, ra := range rec.Reassessments {
		byName[ra.HazardName] = ra
	}

	var out []string
	for _, ra := range rec.Reassessments {
		if score := ra.NewScore(); !risk.IsLow(score) {
			out = append(out, fmt.Sprintf("%s: new score %d is %s risk", ra.HazardName, score, risk.ClassifyRisk(score)))
		}
		if full && strings.TrimSpace(ra.AdditionalSafetyMeasures) == "" {
			out = append(out, ra.HazardName+": additionalSafetyMeasures is required")
		}
		if full && strings.TrimSpace(ra.MitigationPlan) == "" {
			out = append(out, ra.HazardName+": mitigationPlan is required")
		}
	}
	for _, name := range rec.EscalatedHazards {
		if _, ok := byName[name]; !ok {
			out = append(out, name+": reassessment is missing")
		}
	}
	return out
}

// signatureProblems 至少三位签字人，全部有姓名和签名，且三个固定角色齐全
func signatureProblems(rec *entity.SRBRecord) []string {
	var out []string
	if len(rec.Signatories) < len(entity.SignatoryRoles) {
		out = append(out, fmt.Sprintf("%d signatories required, got %d", len(entity.SignatoryRoles), len(rec.Signatories)))
	}
	present := map[string]bool{}
	for i, sig := range rec.Signatories {
		present[sig.Role] = true
		if !sig.Signed() {
			label := sig.Role
			if label == "" {
				label = fmt.Sprintf("signatory %d", i+1)
			}
			out = append(out, label+": name and signature are required")
		}
	}
	for _, role := range entity.SignatoryRoles {
		if !present[role] {
			out = append(out, role+" signatory is missing")
		}
	}
	return out
}
