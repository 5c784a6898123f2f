package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
)

// NewMemoryRepositories 创建内存仓库集合，用于测试和无数据库运行
// 事务通过互斥锁串行执行，不支持回滚
func NewMemoryRepositories() *Repositories {
	plans := newMemTable(memMeta[entity.SafetyPlan]{
		id:      func(v *entity.SafetyPlan) *uint { return &v.ID },
		created: func(v *entity.SafetyPlan) *time.Time { return &v.CreatedAt },
	})
	reports := newMemTable(memMeta[entity.ReportList]{
		id:      func(v *entity.ReportList) *uint { return &v.ID },
		created: func(v *entity.ReportList) *time.Time { return &v.CreatedAt },
		updated: func(v *entity.ReportList) *time.Time { return &v.UpdatedAt },
	})
	permits := newMemTable(memMeta[entity.Permit]{
		id:      func(v *entity.Permit) *uint { return &v.ID },
		created: func(v *entity.Permit) *time.Time { return &v.CreatedAt },
	})
	approvals := newMemTable(memMeta[entity.PermitApproval]{
		id:      func(v *entity.PermitApproval) *uint { return &v.ID },
		created: func(v *entity.PermitApproval) *time.Time { return &v.CreatedAt },
	})
	signOffs := newMemTable(memMeta[entity.PermitSignOff]{
		id:      func(v *entity.PermitSignOff) *uint { return &v.ID },
		created: func(v *entity.PermitSignOff) *time.Time { return &v.SignedAt },
	})
	gas := newMemTable(memMeta[entity.GasMeasurement]{
		id:      func(v *entity.GasMeasurement) *uint { return &v.ID },
		created: func(v *entity.GasMeasurement) *time.Time { return &v.MeasuredAt },
	})
	srb := newMemTable(memMeta[entity.SRBRecord]{
		id:      func(v *entity.SRBRecord) *uint { return &v.ID },
		created: func(v *entity.SRBRecord) *time.Time { return &v.CreatedAt },
		updated: func(v *entity.SRBRecord) *time.Time { return &v.UpdatedAt },
	})
	audits := newMemTable(memMeta[entity.AuditLog]{
		id:      func(v *entity.AuditLog) *uint { return &v.ID },
		created: func(v *entity.AuditLog) *time.Time { return &v.CreatedAt },
	})
	prefs := newMemTable(memMeta[entity.UserPreference]{
		id:      func(v *entity.UserPreference) *uint { return &v.ID },
		created: func(v *entity.UserPreference) *time.Time { return &v.CreatedAt },
		updated: func(v *entity.UserPreference) *time.Time { return &v.UpdatedAt },
	})

	r := &Repositories{
		SafetyPlans:     plans,
		AuditLogs:       &memAuditLogs{t: audits},
		Reports:         &memReports{memTable: reports},
		Preferences:     &memPreferences{t: prefs},
		Permits:         permits,
		PermitApprovals: &memApprovals{t: approvals},
		PermitSignOffs:  &memSignOffs{t: signOffs},
		GasMeasurements: &memGas{t: gas},
		SRBRecords:      &memSRB{memTable: srb},
		CraneInspections: newMemTable(memMeta[entity.CraneInspection]{
			id:      func(v *entity.CraneInspection) *uint { return &v.ID },
			created: func(v *entity.CraneInspection) *time.Time { return &v.CreatedAt },
		}),
		DraegerCalibrations: newMemTable(memMeta[entity.DraegerCalibration]{
			id:      func(v *entity.DraegerCalibration) *uint { return &v.ID },
			created: func(v *entity.DraegerCalibration) *time.Time { return &v.CreatedAt },
			updated: func(v *entity.DraegerCalibration) *time.Time { return &v.UpdatedAt },
		}),
		Incidents: newMemTable(memMeta[entity.Incident]{
			id:      func(v *entity.Incident) *uint { return &v.ID },
			created: func(v *entity.Incident) *time.Time { return &v.CreatedAt },
		}),
		Documents: newMemTable(memMeta[entity.Document]{
			id:      func(v *entity.Document) *uint { return &v.ID },
			created: func(v *entity.Document) *time.Time { return &v.CreatedAt },
		}),
	}

	var txMu sync.Mutex
	r.tx = func(ctx context.Context, fn func(r *Repositories) error) error {
		txMu.Lock()
		defer txMu.Unlock()
		return fn(r)
	}
	return r
}

type memMeta[T any] struct {
	id      func(*T) *uint
	created func(*T) *time.Time
	updated func(*T) *time.Time
}

// memTable 按 id 存放记录副本，返回值与内部数据互不影响
type memTable[T any] struct {
	mu     sync.RWMutex
	rows   map[uint]T
	nextID uint
	meta   memMeta[T]
}

func newMemTable[T any](meta memMeta[T]) *memTable[T] {
	return &memTable[T]{rows: make(map[uint]T), meta: meta}
}

func (t *memTable[T]) Create(ctx context.Context, v *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	*t.meta.id(v) = t.nextID
	now := time.Now()
	if c := t.meta.created(v); c.IsZero() {
		*c = now
	}
	if t.meta.updated != nil {
		*t.meta.updated(v) = now
	}
	stored, err := clone(*v)
	if err != nil {
		return err
	}
	t.rows[t.nextID] = stored
	return nil
}

func (t *memTable[T]) FindByID(ctx context.Context, id uint) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	out, err := clone(v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *memTable[T]) FindByIDForUpdate(ctx context.Context, id uint) (*T, error) {
	return t.FindByID(ctx, id)
}

func (t *memTable[T]) List(ctx context.Context) ([]T, error) {
	return t.filter(func(*T) bool { return true })
}

// filter 按创建时间倒序返回匹配的记录
func (t *memTable[T]) filter(match func(*T) bool) ([]T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	items := make([]T, 0, len(t.rows))
	for _, v := range t.rows {
		if !match(&v) {
			continue
		}
		c, err := clone(v)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool {
		ci, cj := *t.meta.created(&items[i]), *t.meta.created(&items[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return *t.meta.id(&items[i]) > *t.meta.id(&items[j])
	})
	return items, nil
}

func (t *memTable[T]) Update(ctx context.Context, v *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := *t.meta.id(v)
	if _, ok := t.rows[id]; !ok {
		return ErrNotFound
	}
	if t.meta.updated != nil {
		*t.meta.updated(v) = time.Now()
	}
	stored, err := clone(*v)
	if err != nil {
		return err
	}
	t.rows[id] = stored
	return nil
}

func (t *memTable[T]) Delete(ctx context.Context, id uint) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[id]; !ok {
		return ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

// clone 通过 JSON 深拷贝，切断 map / slice 共享
func clone[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

func reverse[T any](items []T) []T {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

type memAuditLogs struct {
	t *memTable[entity.AuditLog]
}

func (r *memAuditLogs) Create(ctx context.Context, log *entity.AuditLog) error {
	return r.t.Create(ctx, log)
}

func (r *memAuditLogs) List(ctx context.Context, safetyPlanID uint) ([]entity.AuditLog, error) {
	return r.t.filter(func(l *entity.AuditLog) bool {
		return safetyPlanID == 0 || l.SafetyPlanID == safetyPlanID
	})
}

type memReports struct {
	*memTable[entity.ReportList]
}

func (r *memReports) FindBySafetyPlan(ctx context.Context, safetyPlanID uint) (*entity.ReportList, error) {
	items, err := r.filter(func(v *entity.ReportList) bool { return v.SafetyPlanID == safetyPlanID })
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

type memPreferences struct {
	mu sync.Mutex
	t  *memTable[entity.UserPreference]
}

func (r *memPreferences) FindByUserID(ctx context.Context, userID string) (*entity.UserPreference, error) {
	items, err := r.t.filter(func(p *entity.UserPreference) bool { return p.UserID == userID })
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

func (r *memPreferences) Upsert(ctx context.Context, pref *entity.UserPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.FindByUserID(ctx, pref.UserID)
	if errors.Is(err, ErrNotFound) {
		return r.t.Create(ctx, pref)
	}
	if err != nil {
		return err
	}
	pref.ID = existing.ID
	pref.CreatedAt = existing.CreatedAt
	return r.t.Update(ctx, pref)
}

type memApprovals struct {
	t *memTable[entity.PermitApproval]
}

func (r *memApprovals) Create(ctx context.Context, a *entity.PermitApproval) error {
	return r.t.Create(ctx, a)
}

func (r *memApprovals) FindByID(ctx context.Context, id uint) (*entity.PermitApproval, error) {
	return r.t.FindByID(ctx, id)
}

func (r *memApprovals) ListByPermit(ctx context.Context, permitID uint) ([]entity.PermitApproval, error) {
	items, err := r.t.filter(func(a *entity.PermitApproval) bool { return a.PermitID == permitID })
	if err != nil {
		return nil, err
	}
	return reverse(items), nil
}

func (r *memApprovals) Update(ctx context.Context, a *entity.PermitApproval) error {
	return r.t.Update(ctx, a)
}

type memSignOffs struct {
	t *memTable[entity.PermitSignOff]
}

func (r *memSignOffs) Create(ctx context.Context, s *entity.PermitSignOff) error {
	return r.t.Create(ctx, s)
}

func (r *memSignOffs) ListByPermit(ctx context.Context, permitID uint) ([]entity.PermitSignOff, error) {
	items, err := r.t.filter(func(s *entity.PermitSignOff) bool { return s.PermitID == permitID })
	if err != nil {
		return nil, err
	}
	return reverse(items), nil
}

type memGas struct {
	t *memTable[entity.GasMeasurement]
}

func (r *memGas) Create(ctx context.Context, m *entity.GasMeasurement) error {
	return r.t.Create(ctx, m)
}

func (r *memGas) ListByPermit(ctx context.Context, permitID uint) ([]entity.GasMeasurement, error) {
	return r.t.filter(func(m *entity.GasMeasurement) bool { return m.PermitID == permitID })
}

type memSRB struct {
	*memTable[entity.SRBRecord]
}

func (r *memSRB) FindBySafetyPlan(ctx context.Context, safetyPlanID uint) (*entity.SRBRecord, error) {
	items, err := r.filter(func(v *entity.SRBRecord) bool { return v.SafetyPlanID == safetyPlanID })
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}
