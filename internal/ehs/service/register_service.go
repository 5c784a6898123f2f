package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
)

// RegisterService 登记簿通用增删改查；PATCH 将请求中的字段合并到已有记录
type RegisterService[T any] struct {
	table    repository.Table[T]
	resource string
	meta     registerMeta[T]
}

type registerMeta[T any] struct {
	id       func(*T) *uint
	created  func(*T) *time.Time
	defaults func(*T)
	required func(*T) []string
}

func newRegisterService[T any](table repository.Table[T], resource string, meta registerMeta[T]) *RegisterService[T] {
	return &RegisterService[T]{table: table, resource: resource, meta: meta}
}

func (s *RegisterService[T]) List(ctx context.Context) ([]T, error) {
	return s.table.List(ctx)
}

func (s *RegisterService[T]) Get(ctx context.Context, id uint) (*T, error) {
	v, err := s.table.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(s.resource, err)
	}
	return v, nil
}

func (s *RegisterService[T]) Create(ctx context.Context, body []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(body, v); err != nil {
		return nil, invalid("Invalid "+strings.ToLower(s.resource)+" data", err.Error())
	}
	*s.meta.id(v) = 0
	*s.meta.created(v) = time.Time{}
	if err := s.check(v); err != nil {
		return nil, err
	}
	if err := s.table.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *RegisterService[T]) Patch(ctx context.Context, id uint, body []byte) (*T, error) {
	v, err := s.table.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(s.resource, err)
	}
	keepCreated := *s.meta.created(v)
	if err := mergeJSON(v, body); err != nil {
		return nil, invalid("Invalid "+strings.ToLower(s.resource)+" data", err.Error())
	}
	*s.meta.id(v) = id
	*s.meta.created(v) = keepCreated
	if err := s.check(v); err != nil {
		return nil, err
	}
	if err := s.table.Update(ctx, v); err != nil {
		return nil, notFound(s.resource, err)
	}
	return v, nil
}

func (s *RegisterService[T]) Delete(ctx context.Context, id uint) error {
	if err := s.table.Delete(ctx, id); err != nil {
		return notFound(s.resource, err)
	}
	return nil
}

func (s *RegisterService[T]) check(v *T) error {
	if s.meta.defaults != nil {
		s.meta.defaults(v)
	}
	if s.meta.required == nil {
		return nil
	}
	var details []string
	for _, name := range s.meta.required(v) {
		details = append(details, name+" is required")
	}
	if len(details) > 0 {
		return invalid("Invalid "+strings.ToLower(s.resource)+" data", details...)
	}
	return nil
}

// missing 返回值为空的字段名，参数按 名称, 值 成对传入
func missing(pairs ...string) []string {
	var out []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			out = append(out, pairs[i])
		}
	}
	return out
}

func NewCraneInspectionService(repos *repository.Repositories) *RegisterService[entity.CraneInspection] {
	return newRegisterService(repos.CraneInspections, "Crane inspection", registerMeta[entity.CraneInspection]{
		id:      func(v *entity.CraneInspection) *uint { return &v.ID },
		created: func(v *entity.CraneInspection) *time.Time { return &v.CreatedAt },
		defaults: func(v *entity.CraneInspection) {
			for _, q := range []*string{&v.Q1, &v.Q2, &v.Q3} {
				if *q == "" {
					*q = "no"
				}
			}
			if v.Status == "" {
				v.Status = "draft"
			}
		},
		required: func(v *entity.CraneInspection) []string {
			return missing("inspector", v.Inspector, "buddyInspector", v.BuddyInspector,
				"bay", v.Bay, "machine", v.Machine, "date", v.Date)
		},
	})
}

func NewDraegerCalibrationService(repos *repository.Repositories) *RegisterService[entity.DraegerCalibration] {
	return newRegisterService(repos.DraegerCalibrations, "Draeger calibration", registerMeta[entity.DraegerCalibration]{
		id:      func(v *entity.DraegerCalibration) *uint { return &v.ID },
		created: func(v *entity.DraegerCalibration) *time.Time { return &v.CreatedAt },
		required: func(v *entity.DraegerCalibration) []string {
			return missing("nc12", v.NC12, "serialNumber", v.SerialNumber,
				"calibrationDate", v.CalibrationDate, "calibratedBy", v.CalibratedBy)
		},
	})
}

func NewIncidentService(repos *repository.Repositories) *RegisterService[entity.Incident] {
	return newRegisterService(repos.Incidents, "Incident", registerMeta[entity.Incident]{
		id:      func(v *entity.Incident) *uint { return &v.ID },
		created: func(v *entity.Incident) *time.Time { return &v.CreatedAt },
		defaults: func(v *entity.Incident) {
			if v.Severity == 0 {
				v.Severity = 1
			}
			if v.Status == "" {
				v.Status = "open"
			}
		},
		required: func(v *entity.Incident) []string {
			return missing("date", v.Date, "type", v.Type, "location", v.Location,
				"description", v.Description, "assignedInvestigator", v.AssignedInvestigator)
		},
	})
}
