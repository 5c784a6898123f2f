package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/sse"
)

const invalidPlanMessage = "Invalid safety plan data"

// SafetyPlanService 安全计划生命周期：创建、编辑、审批、驳回、复用
type SafetyPlanService struct {
	repos   *repository.Repositories
	catalog *risk.Catalog
	hub     *sse.Hub
	logger  *zap.Logger
	now     func() time.Time
}

func NewSafetyPlanService(repos *repository.Repositories, catalog *risk.Catalog, hub *sse.Hub, logger *zap.Logger) *SafetyPlanService {
	return &SafetyPlanService{
		repos:   repos,
		catalog: catalog,
		hub:     hub,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *SafetyPlanService) List(ctx context.Context) ([]entity.SafetyPlan, error) {
	return s.repos.SafetyPlans.List(ctx)
}

func (s *SafetyPlanService) Get(ctx context.Context, id uint) (*entity.SafetyPlan, error) {
	plan, err := s.repos.SafetyPlans.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("Safety plan", err)
	}
	return plan, nil
}

// Create 新建计划，同一事务内写入快照报告和 created 审计记录
func (s *SafetyPlanService) Create(ctx context.Context, plan *entity.SafetyPlan) (*entity.SafetyPlan, error) {
	plan.ID = 0
	plan.CreatedAt = time.Time{}
	applyPlanDefaults(plan)
	s.snapshotNewHazards(plan, nil)
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		return s.insertPlan(ctx, r, plan)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Safety plan created",
		zap.Uint("id", plan.ID), zap.String("status", plan.Status), zap.Int("hazards", len(plan.Hazards)))
	s.hub.Publish(sse.EventSafetyPlanUpdate, sse.ChangeEvent{ID: plan.ID, Action: entity.AuditActionCreated, Status: plan.Status})
	return plan, nil
}

func (s *SafetyPlanService) insertPlan(ctx context.Context, r *repository.Repositories, plan *entity.SafetyPlan) error {
	if err := r.SafetyPlans.Create(ctx, plan); err != nil {
		return fmt.Errorf("create safety plan: %w", err)
	}
	report := BuildReport(plan, s.catalog, NewVersionID(), s.now())
	if err := r.Reports.Create(ctx, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return r.AuditLogs.Create(ctx, &entity.AuditLog{
		SafetyPlanID: plan.ID,
		Action:       entity.AuditActionCreated,
		PerformedBy:  plan.LeadName,
		NewStatus:    strPtr(plan.Status),
	})
}

// Patch 原始部分更新，不写审计（用于分享链接等界面开关）
func (s *SafetyPlanService) Patch(ctx context.Context, id uint, body []byte) (*entity.SafetyPlan, error) {
	var plan *entity.SafetyPlan
	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		var err error
		plan, err = r.SafetyPlans.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound("Safety plan", err)
		}
		keepID, keepCreated, prevStatus := plan.ID, plan.CreatedAt, plan.Status
		if err := mergeJSON(plan, body); err != nil {
			return invalid(invalidPlanMessage, err.Error())
		}
		plan.ID, plan.CreatedAt = keepID, keepCreated
		if !validPlanStatus(plan.Status) {
			return invalid(invalidPlanMessage, "status must be one of draft, pending, approved, rejected")
		}
		if !patchableStatusChange(prevStatus, plan.Status) {
			return rule("Plan status can only change through approve, reject or edit")
		}
		return r.SafetyPlans.Update(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	s.hub.Publish(sse.EventSafetyPlanUpdate, sse.ChangeEvent{ID: plan.ID, Action: "updated", Status: plan.Status})
	return plan, nil
}

// Delete 删除计划，审计记录保留
func (s *SafetyPlanService) Delete(ctx context.Context, id uint) error {
	if err := s.repos.SafetyPlans.Delete(ctx, id); err != nil {
		return notFound("Safety plan", err)
	}
	s.logger.Info("Safety plan deleted", zap.Uint("id", id))
	s.hub.Publish(sse.EventSafetyPlanUpdate, sse.ChangeEvent{ID: id, Action: "deleted"})
	return nil
}

// ApproveRequest 审批请求
type ApproveRequest struct {
	ApproverName string  `json:"approverName"`
	Comments     *string `json:"comments"`
}

// Approve 审批通过；已通过的计划不可重复审批
func (s *SafetyPlanService) Approve(ctx context.Context, id uint, req ApproveRequest) (*entity.SafetyPlan, error) {
	approver := strings.TrimSpace(req.ApproverName)
	if approver == "" {
		return nil, invalid("Approver name is required")
	}
	comments := nonEmpty(req.Comments)

	var plan *entity.SafetyPlan
	var previous string
	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		var err error
		plan, err = r.SafetyPlans.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound("Safety plan", err)
		}
		if plan.Status == entity.PlanStatusApproved {
			return rule("Plan is already approved")
		}

		previous = plan.Status
		plan.Status = entity.PlanStatusApproved
		plan.ApproverName = strPtr(approver)
		if comments != nil {
			plan.Comments = comments
		}
		if err := r.SafetyPlans.Update(ctx, plan); err != nil {
			return err
		}
		if err := recordDecision(ctx, r, plan, approver, s.now()); err != nil {
			return err
		}
		return r.AuditLogs.Create(ctx, &entity.AuditLog{
			SafetyPlanID:   plan.ID,
			Action:         entity.AuditActionApproved,
			PerformedBy:    approver,
			PreviousStatus: strPtr(previous),
			NewStatus:      strPtr(entity.PlanStatusApproved),
			Comments:       comments,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Safety plan approved",
		zap.Uint("id", id), zap.String("previous_status", previous), zap.String("approver", approver))
	s.hub.Publish(sse.EventSafetyPlanUpdate, sse.ChangeEvent{ID: id, Action: entity.AuditActionApproved, Status: plan.Status})
	return plan, nil
}

// RejectRequest 驳回请求，原因必填
type RejectRequest struct {
	RejectedBy string `json:"rejectedBy"`
	Comments   string `json:"comments"`
}

func (s *SafetyPlanService) Reject(ctx context.Context, id uint, req RejectRequest) (*entity.SafetyPlan, error) {
	rejectedBy := strings.TrimSpace(req.RejectedBy)
	if rejectedBy == "" {
		return nil, invalid("Rejector name is required")
	}
	if strings.TrimSpace(req.Comments) == "" {
		return nil, invalid("Rejection reason is required")
	}

	var plan *entity.SafetyPlan
	var previous string
	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		var err error
		plan, err = r.SafetyPlans.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound("Safety plan", err)
		}

		previous = plan.Status
		plan.Status = entity.PlanStatusRejected
		plan.Comments = strPtr(req.Comments)
		if err := r.SafetyPlans.Update(ctx, plan); err != nil {
			return err
		}
		if err := recordDecision(ctx, r, plan, rejectedBy, s.now()); err != nil {
			return err
		}
		return r.AuditLogs.Create(ctx, &entity.AuditLog{
			SafetyPlanID:   plan.ID,
			Action:         entity.AuditActionRejected,
			PerformedBy:    rejectedBy,
			PreviousStatus: strPtr(previous),
			NewStatus:      strPtr(entity.PlanStatusRejected),
			Comments:       strPtr(req.Comments),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Safety plan rejected",
		zap.Uint("id", id), zap.String("previous_status", previous), zap.String("rejected_by", rejectedBy))
	s.hub.Publish(sse.EventSafetyPlanUpdate, sse.ChangeEvent{ID: id, Action: entity.AuditActionRejected, Status: plan.Status})
	return plan, nil
}

// Edit 全量编辑：逐字段比对并记录差异；已审批或已驳回的计划回到 pending
// fields 为请求体原始 JSON，只有出现的可编辑字段参与比对和写入
func (s *SafetyPlanService) Edit(ctx context.Context, id uint, fields map[string]json.RawMessage, editedBy string) (*entity.SafetyPlan, error) {
	var updated entity.SafetyPlan
	var previous string
	var changed []string
	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		plan, err := r.SafetyPlans.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound("Safety plan", err)
		}
		previous = plan.Status

		current, err := planFields(plan)
		if err != nil {
			return err
		}

		changes := entity.JSONB{}
		merged := current
		for _, name := range entity.PlanEditableFields {
			raw, present := fields[name]
			if !present {
				continue
			}
			if !sameJSON(current[name], raw) {
				changed = append(changed, name)
				changes[name] = entity.FieldChange{Old: decodeAny(current[name]), New: decodeAny(raw)}
			}
			merged[name] = raw
		}

		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &updated); err != nil {
			return invalid(invalidPlanMessage, err.Error())
		}
		updated.ID, updated.CreatedAt, updated.Status = plan.ID, plan.CreatedAt, plan.Status
		if updated.Status == entity.PlanStatusApproved || updated.Status == entity.PlanStatusRejected {
			updated.Status = entity.PlanStatusPending
		}
		applyPlanDefaults(&updated)
		s.snapshotNewHazards(&updated, plan.Hazards)
		if err := validatePlan(&updated); err != nil {
			return err
		}
		if err := r.SafetyPlans.Update(ctx, &updated); err != nil {
			return err
		}

		if editedBy = strings.TrimSpace(editedBy); editedBy == "" {
			editedBy = plan.LeadName
		}
		entry := &entity.AuditLog{
			SafetyPlanID:   plan.ID,
			Action:         entity.AuditActionEdited,
			PerformedBy:    editedBy,
			PreviousStatus: strPtr(previous),
			NewStatus:      strPtr(updated.Status),
			Comments:       strPtr("No changes detected"),
		}
		if len(changed) > 0 {
			entry.Comments = strPtr("Edited fields: " + strings.Join(changed, ", "))
			entry.Changes = changes
		}
		return r.AuditLogs.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Safety plan edited",
		zap.Uint("id", id), zap.Strings("fields", changed),
		zap.String("previous_status", previous), zap.String("status", updated.Status))
	s.hub.Publish(sse.EventSafetyPlanUpdate, sse.ChangeEvent{ID: id, Action: entity.AuditActionEdited, Status: updated.Status})
	return &updated, nil
}

// ReuseLogRequest 旧版两步复用流程中的第二步
type ReuseLogRequest struct {
	ReusedBy  string `json:"reusedBy"`
	NewPlanID uint   `json:"newPlanId"`
}

// LogReuse 在原计划上追加 reused 审计记录，不改变原计划
func (s *SafetyPlanService) LogReuse(ctx context.Context, originalID uint, req ReuseLogRequest) error {
	if req.NewPlanID == 0 {
		return invalid("newPlanId is required")
	}
	plan, err := s.repos.SafetyPlans.FindByID(ctx, originalID)
	if err != nil {
		return notFound("Safety plan", err)
	}
	return s.repos.AuditLogs.Create(ctx, reuseEntry(plan, req.ReusedBy, req.NewPlanID))
}

// ReuseRequest 以原计划为模板新建计划；班次、地点、日期、负责人由请求提供
type ReuseRequest struct {
	ReusedBy  string   `json:"reusedBy"`
	Date      string   `json:"date"`
	Location  string   `json:"location"`
	Shift     string   `json:"shift"`
	LeadName  string   `json:"leadName"`
	Engineers []string `json:"engineers"`
}

// Reuse 复制计划并在原计划上记录复用，两者在同一事务内完成
func (s *SafetyPlanService) Reuse(ctx context.Context, originalID uint, req ReuseRequest) (*entity.SafetyPlan, error) {
	var copyPlan *entity.SafetyPlan
	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		original, err := r.SafetyPlans.FindByIDForUpdate(ctx, originalID)
		if err != nil {
			return notFound("Safety plan", err)
		}

		copyPlan = reusePlan(original, req)
		if err := validatePlan(copyPlan); err != nil {
			return err
		}
		if err := s.insertPlan(ctx, r, copyPlan); err != nil {
			return err
		}
		return r.AuditLogs.Create(ctx, reuseEntry(original, req.ReusedBy, copyPlan.ID))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Safety plan reused", zap.Uint("original_id", originalID), zap.Uint("id", copyPlan.ID))
	s.hub.Publish(sse.EventSafetyPlanUpdate, sse.ChangeEvent{ID: copyPlan.ID, Action: entity.AuditActionCreated, Status: copyPlan.Status})
	s.hub.Publish(sse.EventSafetyPlanUpdate, sse.ChangeEvent{ID: originalID, Action: entity.AuditActionReused,
		Extra: map[string]interface{}{"reusedAsId": copyPlan.ID}})
	return copyPlan, nil
}

func reuseEntry(original *entity.SafetyPlan, reusedBy string, newPlanID uint) *entity.AuditLog {
	if reusedBy = strings.TrimSpace(reusedBy); reusedBy == "" {
		reusedBy = "Unknown"
	}
	return &entity.AuditLog{
		SafetyPlanID:   original.ID,
		Action:         entity.AuditActionReused,
		PerformedBy:    reusedBy,
		PreviousStatus: strPtr(original.Status),
		NewStatus:      strPtr(original.Status),
		Comments: strPtr(fmt.Sprintf("This plan was reused as a template for a new entry (%s).",
			entity.ISPNumber(newPlanID))),
		Changes: entity.JSONB{"reusedAsId": newPlanID},
	}
}

// reusePlan 复制作业内容、问题和危害评估；人员、审批与状态重置
func reusePlan(original *entity.SafetyPlan, req ReuseRequest) *entity.SafetyPlan {
	p := *original
	p.ID = 0
	p.CreatedAt = time.Time{}
	p.Hazards = append(entity.HazardList{}, original.Hazards...)
	p.Assessments = original.ActiveAssessments()
	p.Date = req.Date
	p.Location = req.Location
	p.Shift = req.Shift
	p.LeadName = req.LeadName
	p.Engineers = append(entity.StringList{}, req.Engineers...)
	p.ApproverName = nil
	p.Comments = nil
	p.ShareToken = nil
	p.Status = entity.PlanStatusPending
	return &p
}

// snapshotNewHazards 新加入的危害若未携带 checklist / permit 标记，从目录补齐；已有危害保持原样
func (s *SafetyPlanService) snapshotNewHazards(plan *entity.SafetyPlan, previous []string) {
	existing := make(map[string]bool, len(previous))
	for _, name := range previous {
		existing[name] = true
	}
	for _, name := range plan.Hazards {
		if existing[name] {
			continue
		}
		a, ok := plan.Assessments[name]
		if !ok || a.RequiresChecklist || a.RequiresPtW || a.ChecklistType != "" || a.PermitType != "" {
			continue
		}
		plan.Assessments[name] = s.catalog.Snapshot(name, a.Severity, a.Likelihood, a.Mitigation)
	}
}

func applyPlanDefaults(p *entity.SafetyPlan) {
	if p.Status == "" {
		p.Status = entity.PlanStatusPending
	}
	if p.Region == "" {
		p.Region = entity.DefaultRegion
	}
	if p.System == "" {
		p.System = entity.DefaultSystem
	}
	if p.Hazards == nil {
		p.Hazards = entity.HazardList{}
	}
	if p.Assessments == nil {
		p.Assessments = entity.AssessmentMap{}
	}
	if p.Engineers == nil {
		p.Engineers = entity.StringList{}
	}
}

func validPlanStatus(status string) bool {
	switch status {
	case entity.PlanStatusDraft, entity.PlanStatusPending, entity.PlanStatusApproved, entity.PlanStatusRejected:
		return true
	}
	return false
}

// patchableStatusChange 原始 PATCH 只允许 draft 与 pending 互换
func patchableStatusChange(from, to string) bool {
	if from == to {
		return true
	}
	isOpen := func(s string) bool { return s == entity.PlanStatusDraft || s == entity.PlanStatusPending }
	return isOpen(from) && isOpen(to)
}

func validatePlan(p *entity.SafetyPlan) error {
	required := []struct {
		name  string
		value string
	}{
		{"group", p.Group},
		{"taskName", p.TaskName},
		{"date", p.Date},
		{"location", p.Location},
		{"shift", p.Shift},
		{"machineNumber", p.MachineNumber},
		{"canSocialDistance", p.CanSocialDistance},
		{"q1_specializedTraining", p.Q1SpecializedTraining},
		{"q2_chemicals", p.Q2Chemicals},
		{"q3_impactOthers", p.Q3ImpactOthers},
		{"q4_falls", p.Q4Falls},
		{"q5_barricades", p.Q5Barricades},
		{"q6_loto", p.Q6Loto},
		{"q7_lifting", p.Q7Lifting},
		{"q8_ergonomics", p.Q8Ergonomics},
		{"q9_otherConcerns", p.Q9OtherConcerns},
		{"q10_headInjury", p.Q10HeadInjury},
		{"q11_otherPPE", p.Q11OtherPPE},
		{"leadName", p.LeadName},
	}
	var details []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			details = append(details, f.name+" is required")
		}
	}
	if !validPlanStatus(p.Status) {
		details = append(details, "status must be one of draft, pending, approved, rejected")
	}
	if len(details) > 0 {
		return invalid(invalidPlanMessage, details...)
	}
	return nil
}

// planFields 计划的 JSON 字段表
func planFields(p *entity.SafetyPlan) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// sameJSON 按值比较，忽略对象键顺序和空白
func sameJSON(a, b json.RawMessage) bool {
	return reflect.DeepEqual(decodeAny(a), decodeAny(b))
}

func decodeAny(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// AuditLogService 审计日志查询
type AuditLogService struct {
	repos *repository.Repositories
}

func NewAuditLogService(repos *repository.Repositories) *AuditLogService {
	return &AuditLogService{repos: repos}
}

// List safetyPlanID 为 0 时返回全部，按时间倒序
func (s *AuditLogService) List(ctx context.Context, safetyPlanID uint) ([]entity.AuditLog, error) {
	return s.repos.AuditLogs.List(ctx, safetyPlanID)
}
