// Package risk 风险评分、危害目录与气体告警阈值
package risk

// Band 风险等级
type Band string

const (
	BandLow     Band = "Low"
	BandMedium  Band = "Medium"
	BandHigh    Band = "High"
	BandExtreme Band = "Extreme"
)

const (
	MinRating = 1
	MaxRating = 4

	// EscalationScore 达到该分值的危害需要升级到 SRB
	EscalationScore = 8
	// LowRiskMax SRB 复评后允许的最高分值
	LowRiskMax = 3
)

// Assessment 单个危害的评估，选择危害时从目录快照 checklist / permit 标记
type Assessment struct {
	Severity          int    `json:"severity"`
	Likelihood        int    `json:"likelihood"`
	Mitigation        string `json:"mitigation"`
	RequiresChecklist bool   `json:"requiresChecklist"`
	ChecklistType     string `json:"checklistType,omitempty"`
	RequiresPtW       bool   `json:"requiresPtW"`
	PermitType        string `json:"permitType,omitempty"`
}

func (a Assessment) Score() int {
	return Score(a.Severity, a.Likelihood)
}

func (a Assessment) Band() Band {
	return ClassifyRisk(a.Score())
}

// Score 风险分 = 严重度 × 可能性
func Score(severity, likelihood int) int {
	return severity * likelihood
}

// ClassifyRisk 按 12/8/4 分界从高到低判定等级
func ClassifyRisk(score int) Band {
	switch {
	case score >= 12:
		return BandExtreme
	case score >= 8:
		return BandHigh
	case score >= 4:
		return BandMedium
	default:
		return BandLow
	}
}

func IsLow(score int) bool {
	return score <= LowRiskMax
}

func RequiresEscalation(score int) bool {
	return score >= EscalationScore
}

// ValidRating 严重度与可能性取值 1..4
func ValidRating(v int) bool {
	return v >= MinRating && v <= MaxRating
}
