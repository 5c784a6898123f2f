package risk

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// HazardEntry 危害目录条目
type HazardEntry struct {
	Name              string `json:"name" yaml:"name"`
	ChecklistRequired bool   `json:"checklistRequired" yaml:"checklist_required"`
	ChecklistType     string `json:"checklistType,omitempty" yaml:"checklist_type"`
	PermitRequired    bool   `json:"permitRequired" yaml:"permit_required"`
	PermitType        string `json:"permitType,omitempty" yaml:"permit_type"`
	Training          string `json:"training,omitempty" yaml:"training"`
	Example           string `json:"example,omitempty" yaml:"example"`
}

// Snapshot 以目录当前的要求生成评估；之后目录变更不影响已保存的计划
func (e HazardEntry) Snapshot(severity, likelihood int, mitigation string) Assessment {
	return Assessment{
		Severity:          severity,
		Likelihood:        likelihood,
		Mitigation:        mitigation,
		RequiresChecklist: e.ChecklistRequired,
		ChecklistType:     e.ChecklistType,
		RequiresPtW:       e.PermitRequired,
		PermitType:        e.PermitType,
	}
}

// Catalog 只读危害目录
type Catalog struct {
	entries []HazardEntry
	byName  map[string]HazardEntry
}

// ParseCatalog 解析 YAML 格式的危害目录
func ParseCatalog(data []byte) (*Catalog, error) {
	var entries []HazardEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("解析危害目录失败: %w", err)
	}
	c := &Catalog{
		entries: entries,
		byName:  make(map[string]HazardEntry, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("危害目录存在空名称条目")
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("危害目录重复条目: %s", e.Name)
		}
		c.byName[e.Name] = e
	}
	return c, nil
}

func (c *Catalog) Lookup(name string) (HazardEntry, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// All 按目录顺序返回副本
func (c *Catalog) All() []HazardEntry {
	out := make([]HazardEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Snapshot 未收录的危害不要求 checklist / permit
func (c *Catalog) Snapshot(name string, severity, likelihood int, mitigation string) Assessment {
	e, ok := c.Lookup(name)
	if !ok {
		return Assessment{Severity: severity, Likelihood: likelihood, Mitigation: mitigation}
	}
	return e.Snapshot(severity, likelihood, mitigation)
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog 内置目录，解析失败直接 panic（编译期嵌入的数据）
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := ParseCatalog(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}
