package notify

import (
	"fmt"
	"strings"
	"time"
)

// 卡片级别
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelDanger  = "danger"
)

// Field 卡片中的键值行
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Card 通知卡片，以 JSON 投递到 webhook
type Card struct {
	Event     string    `json:"event"`
	Title     string    `json:"title"`
	Level     string    `json:"level"`
	Text      string    `json:"text"`
	Fields    []Field   `json:"fields,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewGasAlertCard 气体超限告警
func NewGasAlertCard(permitID uint, location, measuredBy string, exceedances []string) Card {
	return Card{
		Event: "gas_alert",
		Title: fmt.Sprintf("Gas alert on permit PTW-%04d", permitID),
		Level: LevelDanger,
		Text:  strings.Join(exceedances, "; "),
		Fields: []Field{
			{Label: "Location", Value: location},
			{Label: "Measured by", Value: measuredBy},
		},
		Timestamp: time.Now(),
	}
}

// NewSRBCompletedCard SRB 完成通知
func NewSRBCompletedCard(srbID, safetyPlanID uint, hazards []string, signers []string) Card {
	return Card{
		Event: "srb_completed",
		Title: fmt.Sprintf("SRB #%d completed for ISP-%04d", srbID, safetyPlanID),
		Level: LevelInfo,
		Text:  "All escalated hazards reduced to Low risk.",
		Fields: []Field{
			{Label: "Hazards", Value: strings.Join(hazards, ", ")},
			{Label: "Signed by", Value: strings.Join(signers, ", ")},
		},
		Timestamp: time.Now(),
	}
}

// NewPermitDecisionCard 作业许可审批结果
func NewPermitDecisionCard(permitID uint, status, workDescription string) Card {
	level := LevelInfo
	if status != "approved" {
		level = LevelWarning
	}
	return Card{
		Event:     "permit_" + status,
		Title:     fmt.Sprintf("Permit PTW-%04d is %s", permitID, status),
		Level:     level,
		Text:      workDescription,
		Timestamp: time.Now(),
	}
}
