package service

import (
	"context"
	"encoding/json"
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

const invalidPermitMessage = "Invalid permit data"

// PermitService 作业许可：双人审批、签字、气体检测
type PermitService struct {
	repos    *repository.Repositories
	hub      *sse.Hub
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewPermitService(repos *repository.Repositories, hub *sse.Hub, notifier notify.Notifier, logger *zap.Logger) *PermitService {
	return &PermitService{repos: repos, hub: hub, notifier: notifier, logger: logger, now: time.Now}
}

func (s *PermitService) List(ctx context.Context) ([]entity.Permit, error) {
	return s.repos.Permits.List(ctx)
}

func (s *PermitService) Get(ctx context.Context, id uint) (*entity.Permit, error) {
	p, err := s.repos.Permits.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("Permit", err)
	}
	return p, nil
}

// Create 新建作业许可；状态为 pending 时同一事务内生成两条待审批记录
func (s *PermitService) Create(ctx context.Context, body []byte) (*entity.Permit, error) {
	if err := validatePermitPayload(body); err != nil {
		return nil, err
	}
	var p entity.Permit
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, invalid(invalidPermitMessage, err.Error())
	}
	p.ID = 0
	p.CreatedAt = time.Time{}
	applyPermitDefaults(&p)
	if err := validatePermit(&p); err != nil {
		return nil, err
	}

	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		if err := r.Permits.Create(ctx, &p); err != nil {
			return fmt.Errorf("create permit: %w", err)
		}
		if p.Status == entity.PermitStatusPending {
			return spawnApprovals(ctx, r, &p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Permit created",
		zap.Uint("id", p.ID), zap.String("permit_type", p.PermitType), zap.String("status", p.Status))
	s.hub.Publish(sse.EventPermitUpdate, sse.ChangeEvent{ID: p.ID, Action: "created", Status: p.Status})
	return &p, nil
}

// Patch 部分更新；草稿提交为 pending 且尚无审批记录时补齐两条审批
func (s *PermitService) Patch(ctx context.Context, id uint, body []byte) (*entity.Permit, error) {
	if err := validatePermitPayload(body); err != nil {
		return nil, err
	}

	var p *entity.Permit
	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		var err error
		p, err = r.Permits.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound("Permit", err)
		}
		previous := p.Status
		keepID, keepCreated := p.ID, p.CreatedAt
		if err := mergeJSON(p, body); err != nil {
			return invalid(invalidPermitMessage, err.Error())
		}
		p.ID, p.CreatedAt = keepID, keepCreated
		applyPermitDefaults(p)
		if err := validatePermit(p); err != nil {
			return err
		}
		if err := r.Permits.Update(ctx, p); err != nil {
			return err
		}

		if previous != entity.PermitStatusPending && p.Status == entity.PermitStatusPending {
			existing, err := r.PermitApprovals.ListByPermit(ctx, p.ID)
			if err != nil {
				return err
			}
			if len(existing) == 0 {
				return spawnApprovals(ctx, r, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.hub.Publish(sse.EventPermitUpdate, sse.ChangeEvent{ID: p.ID, Action: "updated", Status: p.Status})
	return p, nil
}

func (s *PermitService) Delete(ctx context.Context, id uint) error {
	if err := s.repos.Permits.Delete(ctx, id); err != nil {
		return notFound("Permit", err)
	}
	s.logger.Info("Permit deleted", zap.Uint("id", id))
	s.hub.Publish(sse.EventPermitUpdate, sse.ChangeEvent{ID: id, Action: "deleted"})
	return nil
}

// spawnApprovals Local EHS 由授权人审批，Responsible Manager 由经理审批
func spawnApprovals(ctx context.Context, r *repository.Repositories, p *entity.Permit) error {
	approvals := []entity.PermitApproval{
		{PermitID: p.ID, ApproverRole: entity.ApproverRoleLocalEHS, ApproverName: p.AuthorityName, Status: entity.ApprovalStatusPending},
		{PermitID: p.ID, ApproverRole: entity.ApproverRoleResponsibleManager, ApproverName: p.Manager, Status: entity.ApprovalStatusPending},
	}
	for i := range approvals {
		if err := r.PermitApprovals.Create(ctx, &approvals[i]); err != nil {
			return fmt.Errorf("create %s approval: %w", approvals[i].ApproverRole, err)
		}
	}
	return nil
}

func applyPermitDefaults(p *entity.Permit) {
	if p.Status == "" {
		p.Status = entity.PermitStatusDraft
	}
	if p.PermitType == "" {
		p.PermitType = entity.PermitTypeGeneral
	}
	for _, q := range []*string{&p.Spq1, &p.Spq2, &p.Spq3, &p.Spq4, &p.Spq5} {
		if *q == "" {
			*q = "no"
		}
	}
}

func validatePermit(p *entity.Permit) error {
	var details []string
	for _, f := range []struct{ name, value string }{
		{"date", p.Date},
		{"submitter", p.Submitter},
		{"manager", p.Manager},
	} {
		if strings.TrimSpace(f.value) == "" {
			details = append(details, "/"+f.name+": is required")
		}
	}
	if len(details) > 0 {
		return invalid(invalidPermitMessage, details...)
	}
	return nil
}

// DerivePermitStatus 由全部审批结果推导许可状态：全部通过为 approved，
// 任一驳回退回 draft，其余情况保持不变
func DerivePermitStatus(current string, approvals []entity.PermitApproval) string {
	if len(approvals) == 0 {
		return current
	}
	allApproved := true
	for _, a := range approvals {
		switch a.Status {
		case entity.ApprovalStatusRejected:
			return entity.PermitStatusDraft
		case entity.ApprovalStatusApproved:
		default:
			allApproved = false
		}
	}
	if allApproved {
		return entity.PermitStatusApproved
	}
	return current
}

func (s *PermitService) ListApprovals(ctx context.Context, permitID uint) ([]entity.PermitApproval, error) {
	if _, err := s.repos.Permits.FindByID(ctx, permitID); err != nil {
		return nil, notFound("Permit", err)
	}
	return s.repos.PermitApprovals.ListByPermit(ctx, permitID)
}

// AddApprovalRequest 追加审批人
type AddApprovalRequest struct {
	ApproverRole string  `json:"approverRole" binding:"required"`
	ApproverName string  `json:"approverName"`
	Comments     *string `json:"comments"`
}

func (s *PermitService) AddApproval(ctx context.Context, permitID uint, req AddApprovalRequest) (*entity.PermitApproval, error) {
	if strings.TrimSpace(req.ApproverRole) == "" {
		return nil, invalid("Invalid approval data", "approverRole is required")
	}
	if _, err := s.repos.Permits.FindByID(ctx, permitID); err != nil {
		return nil, notFound("Permit", err)
	}
	a := &entity.PermitApproval{
		PermitID:     permitID,
		ApproverRole: req.ApproverRole,
		ApproverName: req.ApproverName,
		Status:       entity.ApprovalStatusPending,
		Comments:     req.Comments,
	}
	if err := s.repos.PermitApprovals.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateApprovalRequest 审批人给出结论
type UpdateApprovalRequest struct {
	Status       string  `json:"status"`
	ApproverName *string `json:"approverName"`
	Comments     *string `json:"comments"`
}

// ApprovalResult 审批记录及重新推导后的许可
type ApprovalResult struct {
	Approval *entity.PermitApproval `json:"approval"`
	Permit   *entity.Permit         `json:"permit"`
}

// UpdateApproval 更新单条审批并重新推导许可状态；先锁定许可行，避免两位审批人并发时丢失更新
func (s *PermitService) UpdateApproval(ctx context.Context, permitID, approvalID uint, req UpdateApprovalRequest) (*ApprovalResult, error) {
	switch req.Status {
	case entity.ApprovalStatusPending, entity.ApprovalStatusApproved, entity.ApprovalStatusRejected:
	default:
		return nil, invalid("Invalid approval data", "status must be one of pending, approved, rejected")
	}

	var result ApprovalResult
	var previous string
	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		permit, err := r.Permits.FindByIDForUpdate(ctx, permitID)
		if err != nil {
			return notFound("Permit", err)
		}
		approval, err := r.PermitApprovals.FindByID(ctx, approvalID)
		if err != nil {
			return notFound("Approval", err)
		}
		if approval.PermitID != permitID {
			return &NotFoundError{Message: "Approval not found"}
		}

		approval.Status = req.Status
		if req.ApproverName != nil {
			approval.ApproverName = *req.ApproverName
		}
		if req.Comments != nil {
			approval.Comments = req.Comments
		}
		if req.Status == entity.ApprovalStatusApproved {
			now := s.now()
			approval.ApprovedAt = &now
		} else {
			approval.ApprovedAt = nil
		}
		if err := r.PermitApprovals.Update(ctx, approval); err != nil {
			return err
		}

		all, err := r.PermitApprovals.ListByPermit(ctx, permitID)
		if err != nil {
			return err
		}
		previous = permit.Status
		if next := DerivePermitStatus(permit.Status, all); next != permit.Status {
			permit.Status = next
			if err := r.Permits.Update(ctx, permit); err != nil {
				return err
			}
		}
		result = ApprovalResult{Approval: approval, Permit: permit}
		return nil
	})
	if err != nil {
		return nil, err
	}

	permit := result.Permit
	s.logger.Info("Permit approval updated",
		zap.Uint("permit_id", permitID), zap.Uint("approval_id", approvalID),
		zap.String("approval_status", req.Status), zap.String("permit_status", permit.Status))
	if permit.Status != previous {
		s.hub.Publish(sse.EventPermitUpdate, sse.ChangeEvent{ID: permit.ID, Action: "status_changed", Status: permit.Status})
		notifyAsync(s.notifier, s.logger, notify.NewPermitDecisionCard(permit.ID, permit.Status, permit.WorkDescription))
	}
	return &result, nil
}

func (s *PermitService) ListSignOffs(ctx context.Context, permitID uint) ([]entity.PermitSignOff, error) {
	if _, err := s.repos.Permits.FindByID(ctx, permitID); err != nil {
		return nil, notFound("Permit", err)
	}
	return s.repos.PermitSignOffs.ListByPermit(ctx, permitID)
}

// AddSignOffRequest 签字，签字时间由服务端记录
type AddSignOffRequest struct {
	Role          string  `json:"role"`
	SignedBy      string  `json:"signedBy"`
	SignatureData *string `json:"signatureData"`
}

func (s *PermitService) AddSignOff(ctx context.Context, permitID uint, req AddSignOffRequest) (*entity.PermitSignOff, error) {
	var details []string
	if strings.TrimSpace(req.Role) == "" {
		details = append(details, "role is required")
	}
	if strings.TrimSpace(req.SignedBy) == "" {
		details = append(details, "signedBy is required")
	}
	if len(details) > 0 {
		return nil, invalid("Invalid sign-off data", details...)
	}
	if _, err := s.repos.Permits.FindByID(ctx, permitID); err != nil {
		return nil, notFound("Permit", err)
	}

	so := &entity.PermitSignOff{
		PermitID:      permitID,
		Role:          req.Role,
		SignedBy:      req.SignedBy,
		SignatureData: req.SignatureData,
		SignedAt:      s.now(),
	}
	if err := s.repos.PermitSignOffs.Create(ctx, so); err != nil {
		return nil, err
	}
	return so, nil
}

func (s *PermitService) ListGasMeasurements(ctx context.Context, permitID uint) ([]entity.GasMeasurement, error) {
	if _, err := s.repos.Permits.FindByID(ctx, permitID); err != nil {
		return nil, notFound("Permit", err)
	}
	return s.repos.GasMeasurements.ListByPermit(ctx, permitID)
}

// GasMeasurementRequest 读数为十进制字符串；alertTriggered 由服务端计算，请求中的值忽略
type GasMeasurementRequest struct {
	O2Level    string  `json:"o2Level"`
	CO2Level   string  `json:"co2Level"`
	COLevel    string  `json:"coLevel"`
	H2SLevel   string  `json:"h2sLevel"`
	LELLevel   string  `json:"lelLevel"`
	MeasuredBy string  `json:"measuredBy"`
	Notes      *string `json:"notes"`
}

// AddGasMeasurement 记录一次气体检测，超限时推送告警
func (s *PermitService) AddGasMeasurement(ctx context.Context, permitID uint, req GasMeasurementRequest) (*entity.GasMeasurement, error) {
	reading, err := risk.ParseGasReading(req.O2Level, req.CO2Level, req.COLevel, req.H2SLevel, req.LELLevel)
	if err != nil {
		return nil, invalid("Invalid gas measurement", err.Error())
	}
	if strings.TrimSpace(req.MeasuredBy) == "" {
		return nil, invalid("Invalid gas measurement", "measuredBy is required")
	}
	permit, err := s.repos.Permits.FindByID(ctx, permitID)
	if err != nil {
		return nil, notFound("Permit", err)
	}

	m := &entity.GasMeasurement{
		PermitID:       permitID,
		O2Level:        strings.TrimSpace(req.O2Level),
		CO2Level:       strings.TrimSpace(req.CO2Level),
		COLevel:        strings.TrimSpace(req.COLevel),
		H2SLevel:       orZero(req.H2SLevel),
		LELLevel:       orZero(req.LELLevel),
		MeasuredBy:     req.MeasuredBy,
		AlertTriggered: "no",
		Notes:          req.Notes,
		MeasuredAt:     s.now(),
	}
	exceedances := reading.Exceedances()
	if reading.Alert() {
		m.AlertTriggered = "yes"
	}
	if err := s.repos.GasMeasurements.Create(ctx, m); err != nil {
		return nil, err
	}

	if m.AlertTriggered == "yes" {
		s.logger.Warn("Gas alert triggered",
			zap.Uint("permit_id", permitID), zap.Uint("measurement_id", m.ID), zap.Strings("exceedances", exceedances))
		s.hub.Publish(sse.EventGasAlert, sse.ChangeEvent{ID: m.ID, Action: "alert",
			Extra: map[string]interface{}{"permitId": permitID, "exceedances": exceedances}})
		notifyAsync(s.notifier, s.logger, notify.NewGasAlertCard(permitID, permit.Location, m.MeasuredBy, exceedances))
	}
	return m, nil
}

func orZero(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "0"
	}
	return v
}
