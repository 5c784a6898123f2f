package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
)

// NewVersionID 报告版本号 v1.0-xxxxxxxx
func NewVersionID() string {
	return "v1.0-" + uuid.New().String()[:8]
}

// BuildReport 计划提交时生成快照报告
func BuildReport(plan *entity.SafetyPlan, catalog *risk.Catalog, versionID string, now time.Time) *entity.ReportList {
	escalated := plan.EscalatedHazards()
	if escalated == nil {
		escalated = []string{}
	}

	checklists := []string{}
	seen := map[string]bool{}
	for _, name := range plan.Hazards {
		e, ok := catalog.Lookup(name)
		if !ok || !e.ChecklistRequired || e.ChecklistType == "" || seen[e.ChecklistType] {
			continue
		}
		seen[e.ChecklistType] = true
		checklists = append(checklists, e.ChecklistType)
	}

	engineers := []string(plan.Engineers)
	if engineers == nil {
		engineers = []string{}
	}
	hazards := []string(plan.Hazards)
	if hazards == nil {
		hazards = []string{}
	}

	submittedAt := now.UTC().Format(time.RFC3339)
	version := entity.ApprovalVersion{
		VersionID:   versionID,
		Status:      plan.Status,
		SubmittedBy: plan.LeadName,
		SubmittedAt: submittedAt,
		Comments:    plan.Comments,
	}
	// 只有已审批的计划才记录审批人
	if plan.Status == entity.PlanStatusApproved {
		version.ApprovedBy = plan.ApproverName
		version.ApprovedAt = &submittedAt
	}

	return &entity.ReportList{
		SafetyPlanID: plan.ID,
		VersionID:    versionID,
		JobDetails: entity.JobDetailsReport{
			SafetyPlanID:  plan.ID,
			VersionID:     versionID,
			Group:         plan.Group,
			TaskName:      plan.TaskName,
			Date:          plan.Date,
			Location:      plan.Location,
			Shift:         plan.Shift,
			MachineNumber: plan.MachineNumber,
			Region:        plan.Region,
			System:        plan.System,
			LeadName:      plan.LeadName,
			ApproverName:  plan.ApproverName,
			Engineers:     engineers,
			Comments:      plan.Comments,
		},
		SafetyRiskAssessment: entity.SafetyRiskReport{
			SafetyQuestions: entity.SafetyQuestions{
				Q1SpecializedTraining: plan.Q1SpecializedTraining,
				Q2Chemicals:           plan.Q2Chemicals,
				Q3ImpactOthers:        plan.Q3ImpactOthers,
				Q4Falls:               plan.Q4Falls,
				Q5Barricades:          plan.Q5Barricades,
				Q6Loto:                plan.Q6Loto,
				Q7Lifting:             plan.Q7Lifting,
				Q8Ergonomics:          plan.Q8Ergonomics,
				Q9OtherConcerns:       plan.Q9OtherConcerns,
				Q10HeadInjury:         plan.Q10HeadInjury,
				Q11OtherPPE:           plan.Q11OtherPPE,
				CanSocialDistance:     plan.CanSocialDistance,
			},
			Hazards:     hazards,
			Assessments: plan.ActiveAssessments(),
		},
		SRBInfo: entity.SRBInfo{
			Required:            len(escalated) > 0,
			HazardsRequiringSRB: escalated,
			ChecklistsRequired:  checklists,
		},
		ApprovalInfo: entity.ApprovalInfo{
			CurrentStatus: plan.Status,
			Versions:      []entity.ApprovalVersion{version},
		},
	}
}

// recordDecision 审批或驳回后更新报告的审批信息；没有报告的旧计划跳过
func recordDecision(ctx context.Context, repos *repository.Repositories, plan *entity.SafetyPlan, by string, now time.Time) error {
	report, err := repos.Reports.FindBySafetyPlan(ctx, plan.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	info := &report.ApprovalInfo
	info.CurrentStatus = plan.Status
	if n := len(info.Versions); n > 0 {
		v := &info.Versions[n-1]
		v.Status = plan.Status
		v.Comments = plan.Comments
		at := now.UTC().Format(time.RFC3339)
		if plan.Status == entity.PlanStatusApproved {
			v.ApprovedBy = strPtr(by)
			v.ApprovedAt = &at
		} else {
			v.ApprovedBy = nil
			v.ApprovedAt = nil
		}
	}
	return repos.Reports.Update(ctx, report)
}

// ReportService 报告快照的读取与维护
type ReportService struct {
	repos *repository.Repositories
}

func NewReportService(repos *repository.Repositories) *ReportService {
	return &ReportService{repos: repos}
}

func (s *ReportService) List(ctx context.Context) ([]entity.ReportList, error) {
	return s.repos.Reports.List(ctx)
}

func (s *ReportService) Get(ctx context.Context, id uint) (*entity.ReportList, error) {
	r, err := s.repos.Reports.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("Report", err)
	}
	return r, nil
}

func (s *ReportService) GetByPlan(ctx context.Context, safetyPlanID uint) (*entity.ReportList, error) {
	r, err := s.repos.Reports.FindBySafetyPlan(ctx, safetyPlanID)
	if err != nil {
		return nil, notFound("Report", err)
	}
	return r, nil
}

func (s *ReportService) Create(ctx context.Context, body []byte) (*entity.ReportList, error) {
	var r entity.ReportList
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, invalid("Invalid report data", err.Error())
	}
	if r.SafetyPlanID == 0 {
		return nil, invalid("Invalid report data", "safetyPlanId is required")
	}
	if r.VersionID == "" {
		r.VersionID = NewVersionID()
	}
	r.ID = 0
	if err := s.repos.Reports.Create(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ReportService) Patch(ctx context.Context, id uint, body []byte) (*entity.ReportList, error) {
	r, err := s.repos.Reports.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("Report", err)
	}
	keepID, keepPlan, keepCreated := r.ID, r.SafetyPlanID, r.CreatedAt
	if err := mergeJSON(r, body); err != nil {
		return nil, invalid("Invalid report data", err.Error())
	}
	r.ID, r.SafetyPlanID, r.CreatedAt = keepID, keepPlan, keepCreated
	if err := s.repos.Reports.Update(ctx, r); err != nil {
		return nil, notFound("Report", err)
	}
	return r, nil
}
