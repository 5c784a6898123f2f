package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
)

func TestSafetyPlanService_CreateWritesReportAndAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plan := createPlan(t, f, samplePlan())
	assert.Equal(t, uint(1), plan.ID)
	assert.Equal(t, entity.PlanStatusPending, plan.Status)
	assert.Equal(t, entity.DefaultRegion, plan.Region)
	assert.Equal(t, entity.DefaultSystem, plan.System)

	// 目录标记在提交时写入
	wah := plan.Assessments["Working at Height"]
	assert.True(t, wah.RequiresChecklist)
	assert.Equal(t, "Harness & MSLC Checklist", wah.ChecklistType)
	assert.Equal(t, 3, wah.Severity)

	logs, err := f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, entity.AuditActionCreated, logs[0].Action)
	assert.Equal(t, "Aoife Byrne", logs[0].PerformedBy)
	assert.Nil(t, logs[0].PreviousStatus)
	require.NotNil(t, logs[0].NewStatus)
	assert.Equal(t, entity.PlanStatusPending, *logs[0].NewStatus)

	report, err := f.svc.Reports.GetByPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Regexp(t, `^v1\.0-[0-9a-f]{8}$`, report.VersionID)
	assert.True(t, report.SRBInfo.Required)
	assert.Equal(t, []string{"Working at Height"}, report.SRBInfo.HazardsRequiringSRB)
	assert.Equal(t, []string{"Harness & MSLC Checklist"}, report.SRBInfo.ChecklistsRequired)
	assert.Equal(t, entity.PlanStatusPending, report.ApprovalInfo.CurrentStatus)
	assert.Equal(t, []string{"Sean", "Mary"}, report.JobDetails.Engineers)
}

func TestSafetyPlanService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	p := samplePlan()
	p.TaskName = ""
	p.Q6Loto = ""

	_, err := f.svc.SafetyPlans.Create(context.Background(), p)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Invalid safety plan data", PublicMessage(err, ""))
	assert.ElementsMatch(t, []string{"taskName is required", "q6_loto is required"}, ErrorDetails(err))

	plans, err := f.svc.SafetyPlans.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestSafetyPlanService_Approve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := createPlan(t, f, samplePlan())

	_, err := f.svc.SafetyPlans.Approve(ctx, plan.ID, ApproveRequest{})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Approver name is required", PublicMessage(err, ""))

	_, err = f.svc.SafetyPlans.Approve(ctx, 999, ApproveRequest{ApproverName: "Declan"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Safety plan not found", PublicMessage(err, ""))

	comments := "Looks good"
	approved, err := f.svc.SafetyPlans.Approve(ctx, plan.ID, ApproveRequest{ApproverName: "Declan", Comments: &comments})
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusApproved, approved.Status)
	require.NotNil(t, approved.ApproverName)
	assert.Equal(t, "Declan", *approved.ApproverName)
	assert.Equal(t, "Looks good", *approved.Comments)

	_, err = f.svc.SafetyPlans.Approve(ctx, plan.ID, ApproveRequest{ApproverName: "Declan"})
	require.ErrorIs(t, err, ErrBusinessRule)
	assert.Equal(t, "Plan is already approved", PublicMessage(err, ""))

	logs, err := f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, entity.AuditActionApproved, logs[0].Action)
	assert.Equal(t, "Declan", logs[0].PerformedBy)
	assert.Equal(t, entity.PlanStatusPending, *logs[0].PreviousStatus)
	assert.Equal(t, entity.PlanStatusApproved, *logs[0].NewStatus)

	report, err := f.svc.Reports.GetByPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusApproved, report.ApprovalInfo.CurrentStatus)
	require.NotNil(t, report.ApprovalInfo.Versions[0].ApprovedBy)
	assert.Equal(t, "Declan", *report.ApprovalInfo.Versions[0].ApprovedBy)
}

func TestSafetyPlanService_ApproveConcurrentOnlyOnce(t *testing.T) {
	f := newFixture(t)
	plan := createPlan(t, f, samplePlan())

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.SafetyPlans.Approve(context.Background(), plan.ID, ApproveRequest{ApproverName: "Declan"}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestSafetyPlanService_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := createPlan(t, f, samplePlan())

	_, err := f.svc.SafetyPlans.Reject(ctx, plan.ID, RejectRequest{Comments: "no"})
	assert.Equal(t, "Rejector name is required", PublicMessage(err, ""))
	_, err = f.svc.SafetyPlans.Reject(ctx, plan.ID, RejectRequest{RejectedBy: "Declan"})
	assert.Equal(t, "Rejection reason is required", PublicMessage(err, ""))
	_, err = f.svc.SafetyPlans.Reject(ctx, plan.ID, RejectRequest{RejectedBy: "Declan", Comments: "   "})
	assert.Equal(t, "Rejection reason is required", PublicMessage(err, ""))

	// 校验失败不改变状态，也不写审计
	stored, err := f.svc.SafetyPlans.Get(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusPending, stored.Status)
	logs, err := f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	rejected, err := f.svc.SafetyPlans.Reject(ctx, plan.ID, RejectRequest{RejectedBy: "Declan", Comments: "Missing LOTO"})
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusRejected, rejected.Status)
	assert.Equal(t, "Missing LOTO", *rejected.Comments)

	logs, err = f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AuditActionRejected, logs[0].Action)
	assert.Equal(t, "Missing LOTO", *logs[0].Comments)
}

func TestSafetyPlanService_EditRejectedReturnsToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := createPlan(t, f, samplePlan())
	_, err := f.svc.SafetyPlans.Reject(ctx, plan.ID, RejectRequest{RejectedBy: "Declan", Comments: "Missing LOTO"})
	require.NoError(t, err)

	updated, err := f.svc.SafetyPlans.Edit(ctx, plan.ID, rawFields(t, map[string]interface{}{
		"location": "F34 Bay 4",
	}), "Niamh")
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusPending, updated.Status)
	assert.Equal(t, "F34 Bay 4", updated.Location)

	logs, err := f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	edit := logs[0]
	assert.Equal(t, entity.AuditActionEdited, edit.Action)
	assert.Equal(t, entity.PlanStatusRejected, *edit.PreviousStatus)
	assert.Equal(t, entity.PlanStatusPending, *edit.NewStatus)
	assert.Equal(t, "Edited fields: location", *edit.Comments)
}

func TestSafetyPlanService_EditRecordsDiff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := createPlan(t, f, samplePlan())

	updated, err := f.svc.SafetyPlans.Edit(ctx, plan.ID, rawFields(t, map[string]interface{}{
		"taskName": "Replace drive laser",
		"shift":    "Day",
		"status":   "approved",
		"unknown":  "ignored",
	}), "")
	require.NoError(t, err)
	assert.Equal(t, "Replace drive laser", updated.TaskName)
	assert.Equal(t, entity.PlanStatusPending, updated.Status)
	assert.Equal(t, plan.CreatedAt.Unix(), updated.CreatedAt.Unix())

	logs, err := f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	edit := logs[0]
	assert.Equal(t, entity.AuditActionEdited, edit.Action)
	assert.Equal(t, "Aoife Byrne", edit.PerformedBy)
	assert.Equal(t, "Edited fields: taskName", *edit.Comments)
	require.Contains(t, edit.Changes, "taskName")
	assert.NotContains(t, edit.Changes, "shift")
	change, ok := edit.Changes["taskName"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Replace source vessel", change["old"])
	assert.Equal(t, "Replace drive laser", change["new"])
}

func TestSafetyPlanService_EditNoChangesResetsApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := createPlan(t, f, samplePlan())
	_, err := f.svc.SafetyPlans.Approve(ctx, plan.ID, ApproveRequest{ApproverName: "Declan"})
	require.NoError(t, err)

	updated, err := f.svc.SafetyPlans.Edit(ctx, plan.ID, rawFields(t, map[string]interface{}{
		"location": "F34 Bay 3",
	}), "Niamh")
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusPending, updated.Status)

	logs, err := f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	edit := logs[0]
	assert.Equal(t, "Niamh", edit.PerformedBy)
	assert.Equal(t, "No changes detected", *edit.Comments)
	assert.Nil(t, edit.Changes)
	assert.Equal(t, entity.PlanStatusApproved, *edit.PreviousStatus)
	assert.Equal(t, entity.PlanStatusPending, *edit.NewStatus)
}

func TestSafetyPlanService_EditKeepsStoredFlagsAndSnapshotsNewHazards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := createPlan(t, f, samplePlan())

	assessments := plan.Assessments
	assessments["Confined Space"] = risk.Assessment{Severity: 1, Likelihood: 1, Mitigation: "Attendant"}
	updated, err := f.svc.SafetyPlans.Edit(ctx, plan.ID, rawFields(t, map[string]interface{}{
		"hazards":     []string{"Working at Height", "Noise", "Confined Space"},
		"assessments": assessments,
	}), "")
	require.NoError(t, err)

	cs := updated.Assessments["Confined Space"]
	assert.True(t, cs.RequiresPtW)
	assert.Equal(t, "Permit to Work", cs.PermitType)
	assert.Equal(t, plan.Assessments["Working at Height"], updated.Assessments["Working at Height"])

	logs, err := f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edited fields: hazards, assessments", *logs[0].Comments)
}

func TestSafetyPlanService_LogReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := createPlan(t, f, samplePlan())

	require.NoError(t, f.svc.SafetyPlans.LogReuse(ctx, plan.ID, ReuseLogRequest{NewPlanID: 42}))

	logs, err := f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	entry := logs[0]
	assert.Equal(t, entity.AuditActionReused, entry.Action)
	assert.Equal(t, "Unknown", entry.PerformedBy)
	assert.Equal(t, "This plan was reused as a template for a new entry (ISP-0042).", *entry.Comments)
	assert.EqualValues(t, 42, entry.Changes["reusedAsId"])
	assert.Equal(t, *entry.PreviousStatus, *entry.NewStatus)

	err = f.svc.SafetyPlans.LogReuse(ctx, 999, ReuseLogRequest{NewPlanID: 1})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSafetyPlanService_ReuseIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := createPlan(t, f, samplePlan())
	_, err := f.svc.SafetyPlans.Approve(ctx, original.ID, ApproveRequest{ApproverName: "Declan"})
	require.NoError(t, err)

	copyPlan, err := f.svc.SafetyPlans.Reuse(ctx, original.ID, ReuseRequest{
		ReusedBy: "Niamh",
		Date:     "2026-10-20",
		Location: "F34 Bay 7",
		Shift:    "Night",
		LeadName: "Niamh",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(2), copyPlan.ID)
	assert.Equal(t, entity.PlanStatusPending, copyPlan.Status)
	assert.Nil(t, copyPlan.ApproverName)
	assert.Nil(t, copyPlan.Comments)
	assert.Equal(t, original.Hazards, copyPlan.Hazards)
	assert.Equal(t, original.TaskName, copyPlan.TaskName)
	assert.Equal(t, "Night", copyPlan.Shift)
	assert.Empty(t, copyPlan.Engineers)

	logs, err := f.svc.AuditLogs.List(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AuditActionReused, logs[0].Action)
	assert.Equal(t, "Niamh", logs[0].PerformedBy)
	assert.EqualValues(t, copyPlan.ID, logs[0].Changes["reusedAsId"])

	copyLogs, err := f.svc.AuditLogs.List(ctx, copyPlan.ID)
	require.NoError(t, err)
	require.Len(t, copyLogs, 1)
	assert.Equal(t, entity.AuditActionCreated, copyLogs[0].Action)

	// 缺少必填项时既不创建新计划也不写复用记录
	_, err = f.svc.SafetyPlans.Reuse(ctx, original.ID, ReuseRequest{ReusedBy: "Niamh"})
	require.ErrorIs(t, err, ErrValidation)
	plans, err := f.svc.SafetyPlans.List(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 2)
	logs, err = f.svc.AuditLogs.List(ctx, original.ID)
	require.NoError(t, err)
	reused := 0
	for _, l := range logs {
		if l.Action == entity.AuditActionReused {
			reused++
		}
	}
	assert.Equal(t, 1, reused)
}

func TestSafetyPlanService_PatchAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := createPlan(t, f, samplePlan())

	patched, err := f.svc.SafetyPlans.Patch(ctx, plan.ID, []byte(`{"shareToken":"abc123","id":77}`))
	require.NoError(t, err)
	require.NotNil(t, patched.ShareToken)
	assert.Equal(t, "abc123", *patched.ShareToken)
	assert.Equal(t, plan.ID, patched.ID)
	assert.Equal(t, plan.TaskName, patched.TaskName)

	_, err = f.svc.SafetyPlans.Patch(ctx, plan.ID, []byte(`{"status":"archived"}`))
	require.ErrorIs(t, err, ErrValidation)

	logs, err := f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	require.NoError(t, f.svc.SafetyPlans.Delete(ctx, plan.ID))
	require.ErrorIs(t, f.svc.SafetyPlans.Delete(ctx, plan.ID), ErrNotFound)

	logs, err = f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestSafetyPlanService_PatchStatusGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := createPlan(t, f, samplePlan())

	for _, status := range []string{entity.PlanStatusApproved, entity.PlanStatusRejected} {
		_, err := f.svc.SafetyPlans.Patch(ctx, plan.ID, []byte(`{"status":"`+status+`"}`))
		require.ErrorIs(t, err, ErrBusinessRule, status)
	}

	stored, err := f.svc.SafetyPlans.Get(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusPending, stored.Status)
	assert.Nil(t, stored.ApproverName)

	// draft 与 pending 之间可以切换
	patched, err := f.svc.SafetyPlans.Patch(ctx, plan.ID, []byte(`{"status":"draft"}`))
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusDraft, patched.Status)
	patched, err = f.svc.SafetyPlans.Patch(ctx, plan.ID, []byte(`{"status":"pending"}`))
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusPending, patched.Status)

	approved, err := f.svc.SafetyPlans.Approve(ctx, plan.ID, ApproveRequest{ApproverName: "Declan"})
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusApproved, approved.Status)

	_, err = f.svc.SafetyPlans.Patch(ctx, plan.ID, []byte(`{"status":"pending"}`))
	require.ErrorIs(t, err, ErrBusinessRule)

	logs, err := f.svc.AuditLogs.List(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, entity.AuditActionApproved, logs[0].Action)
}
