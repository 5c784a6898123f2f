package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
)

// AssessmentMap 危害名 -> 评估
type AssessmentMap map[string]risk.Assessment

func (m AssessmentMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]risk.Assessment(m))
}

func (m *AssessmentMap) Scan(value interface{}) error {
	if err := scanJSON(value, (*map[string]risk.Assessment)(m), "AssessmentMap"); err != nil {
		return err
	}
	if *m == nil {
		*m = AssessmentMap{}
	}
	return nil
}

// legacyHazard 旧版记录的危害结构
type legacyHazard struct {
	Name       string `json:"name"`
	Severity   int    `json:"severity"`
	Likelihood int    `json:"likelihood"`
	Mitigation string `json:"mitigation"`
}

// DecodeHazards 兼容两种危害格式：
//   - 新版 ["Noise", "Working at Height"]
//   - 旧版 [{"name":"Noise","severity":2,"likelihood":3,"mitigation":"..."}]
//
// 旧版条目转换为名称加评估，checklist / permit 标记取自危害目录。
func DecodeHazards(raw []byte, catalog *risk.Catalog) ([]string, AssessmentMap, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("hazards must be an array: %w", err)
	}

	names := make([]string, 0, len(items))
	var legacy AssessmentMap
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}
		switch item[0] {
		case '"':
			var name string
			if err := json.Unmarshal(item, &name); err != nil {
				return nil, nil, fmt.Errorf("hazards[%d]: %w", i, err)
			}
			names = append(names, name)
		case '{':
			var h legacyHazard
			if err := json.Unmarshal(item, &h); err != nil {
				return nil, nil, fmt.Errorf("hazards[%d]: %w", i, err)
			}
			if h.Name == "" {
				return nil, nil, fmt.Errorf("hazards[%d]: missing name", i)
			}
			names = append(names, h.Name)
			if legacy == nil {
				legacy = AssessmentMap{}
			}
			legacy[h.Name] = catalog.Snapshot(h.Name, h.Severity, h.Likelihood, h.Mitigation)
		default:
			return nil, nil, fmt.Errorf("hazards[%d]: unsupported element %s", i, string(item))
		}
	}
	return names, legacy, nil
}

// HazardList 有序危害名称列表，读库时兼容旧版对象数组
type HazardList []string

func (h HazardList) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(h))
}

func (h *HazardList) Scan(value interface{}) error {
	var raw json.RawMessage
	if err := scanJSON(value, &raw, "HazardList"); err != nil {
		return err
	}
	names, _, err := DecodeHazards(raw, risk.DefaultCatalog())
	if err != nil {
		return err
	}
	*h = names
	return nil
}

func (h HazardList) Contains(name string) bool {
	for _, n := range h {
		if n == name {
			return true
		}
	}
	return false
}
