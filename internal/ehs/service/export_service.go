package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
)

const sharePointListName = "PTPSafetyPlans"

// SharePointItem SharePoint 列表的一行，字段名即列名
type SharePointItem struct {
	Title                 string  `json:"Title"`
	TaskName              string  `json:"TaskName"`
	Group                 string  `json:"Group"`
	Date                  string  `json:"Date"`
	Location              string  `json:"Location"`
	Shift                 string  `json:"Shift"`
	MachineNumber         string  `json:"MachineNumber"`
	Region                string  `json:"Region"`
	System                string  `json:"System"`
	Q1SpecializedTraining string  `json:"Q1_SpecializedTraining"`
	Q2Chemicals           string  `json:"Q2_Chemicals"`
	Q3ImpactOthers        string  `json:"Q3_ImpactOthers"`
	Q4Falls               string  `json:"Q4_Falls"`
	Q5Barricades          string  `json:"Q5_Barricades"`
	Q6Loto                string  `json:"Q6_Loto"`
	Q7Lifting             string  `json:"Q7_Lifting"`
	Q8Ergonomics          string  `json:"Q8_Ergonomics"`
	Q9OtherConcerns       string  `json:"Q9_OtherConcerns"`
	Q10HeadInjury         string  `json:"Q10_HeadInjury"`
	Q11OtherPPE           string  `json:"Q11_OtherPPE"`
	Hazards               string  `json:"Hazards"`
	LeadName              string  `json:"LeadName"`
	ApproverName          *string `json:"ApproverName"`
	Engineers             string  `json:"Engineers"`
	Comments              *string `json:"Comments"`
	Status                string  `json:"Status"`
}

// SharePointExport SharePoint 导入载荷
type SharePointExport struct {
	ListName  string           `json:"listName"`
	ItemCount int              `json:"itemCount"`
	Items     []SharePointItem `json:"items"`
}

// ExportService 安全计划导出
type ExportService struct {
	repos *repository.Repositories
}

func NewExportService(repos *repository.Repositories) *ExportService {
	return &ExportService{repos: repos}
}

func (s *ExportService) SharePoint(ctx context.Context) (*SharePointExport, error) {
	plans, err := s.repos.SafetyPlans.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]SharePointItem, 0, len(plans))
	for i := range plans {
		items = append(items, toSharePointItem(&plans[i]))
	}
	return &SharePointExport{ListName: sharePointListName, ItemCount: len(items), Items: items}, nil
}

func toSharePointItem(p *entity.SafetyPlan) SharePointItem {
	return SharePointItem{
		Title:                 p.TaskName,
		TaskName:              p.TaskName,
		Group:                 p.Group,
		Date:                  p.Date,
		Location:              p.Location,
		Shift:                 p.Shift,
		MachineNumber:         p.MachineNumber,
		Region:                p.Region,
		System:                p.System,
		Q1SpecializedTraining: yesNoOrNo(p.Q1SpecializedTraining),
		Q2Chemicals:           yesNoOrNo(p.Q2Chemicals),
		Q3ImpactOthers:        yesNoOrNo(p.Q3ImpactOthers),
		Q4Falls:               yesNoOrNo(p.Q4Falls),
		Q5Barricades:          yesNoOrNo(p.Q5Barricades),
		Q6Loto:                yesNoOrNo(p.Q6Loto),
		Q7Lifting:             yesNoOrNo(p.Q7Lifting),
		Q8Ergonomics:          yesNoOrNo(p.Q8Ergonomics),
		Q9OtherConcerns:       yesNoOrNo(p.Q9OtherConcerns),
		Q10HeadInjury:         yesNoOrNo(p.Q10HeadInjury),
		Q11OtherPPE:           yesNoOrNo(p.Q11OtherPPE),
		Hazards:               jsonText([]string(p.Hazards)),
		LeadName:              p.LeadName,
		ApproverName:          p.ApproverName,
		Engineers:             jsonText([]string(p.Engineers)),
		Comments:              p.Comments,
		Status:                p.Status,
	}
}

func yesNoOrNo(v string) string {
	if v == "" {
		return "no"
	}
	return v
}

// jsonText nil 输出 []
func jsonText(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

var planExportHeaders = []string{
	"ISP", "Title", "Group", "Date", "Location", "Shift", "MachineNumber", "Region", "System",
	"Q1_SpecializedTraining", "Q2_Chemicals", "Q3_ImpactOthers", "Q4_Falls", "Q5_Barricades",
	"Q6_Loto", "Q7_Lifting", "Q8_Ergonomics", "Q9_OtherConcerns", "Q10_HeadInjury", "Q11_OtherPPE",
	"Hazards", "HighestRisk", "LeadName", "ApproverName", "Engineers", "Comments", "Status",
}

var auditExportHeaders = []string{"ISP", "Action", "PerformedBy", "PreviousStatus", "NewStatus", "Comments", "CreatedAt"}

// Workbook 导出 xlsx：安全计划表和审计表
func (s *ExportService) Workbook(ctx context.Context) (*excelize.File, string, error) {
	plans, err := s.repos.SafetyPlans.List(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list safety plans: %w", err)
	}
	logs, err := s.repos.AuditLogs.List(ctx, 0)
	if err != nil {
		return nil, "", fmt.Errorf("list audit logs: %w", err)
	}

	f := excelize.NewFile()
	planSheet := "Safety Plans"
	f.SetSheetName("Sheet1", planSheet)
	auditSheet := "Audit Log"
	if _, err := f.NewSheet(auditSheet); err != nil {
		f.Close()
		return nil, "", err
	}

	// 表头样式
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	writeHeader(f, planSheet, planExportHeaders, boldStyle)
	writeHeader(f, auditSheet, auditExportHeaders, boldStyle)

	for i := range plans {
		p := &plans[i]
		item := toSharePointItem(p)
		values := []interface{}{
			entity.ISPNumber(p.ID), item.Title, item.Group, item.Date, item.Location, item.Shift,
			item.MachineNumber, item.Region, item.System,
			item.Q1SpecializedTraining, item.Q2Chemicals, item.Q3ImpactOthers, item.Q4Falls,
			item.Q5Barricades, item.Q6Loto, item.Q7Lifting, item.Q8Ergonomics, item.Q9OtherConcerns,
			item.Q10HeadInjury, item.Q11OtherPPE,
			item.Hazards, string(p.HighestBand()), item.LeadName, deref(item.ApproverName),
			item.Engineers, deref(item.Comments), item.Status,
		}
		writeRow(f, planSheet, i+2, values)
	}

	for i, l := range logs {
		values := []interface{}{
			entity.ISPNumber(l.SafetyPlanID), l.Action, l.PerformedBy, deref(l.PreviousStatus),
			deref(l.NewStatus), deref(l.Comments), l.CreatedAt.UTC().Format(time.RFC3339),
		}
		writeRow(f, auditSheet, i+2, values)
	}

	planWidths := []float64{10, 30, 14, 12, 20, 10, 16, 18, 10}
	for i, w := range planWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(planSheet, col, col, w)
	}
	f.SetColWidth(auditSheet, "A", "E", 16)
	f.SetColWidth(auditSheet, "F", "F", 60)
	f.SetColWidth(auditSheet, "G", "G", 22)

	filename := fmt.Sprintf("safety_plans_%s.xlsx", time.Now().Format("20060102"))
	return f, filename, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
