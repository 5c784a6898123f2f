// Package service EHS 业务逻辑：安全计划生命周期、SRB 升级、作业许可审批、气体告警与登记簿
package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/cache"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/notify"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/sse"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/storage"
)

// Deps 服务依赖，除 Repos 外均可为空
type Deps struct {
	Repos    *repository.Repositories
	Catalog  *risk.Catalog
	Hub      *sse.Hub
	Notifier notify.Notifier
	Cache    *cache.Cache
	Store    storage.ObjectStore
	DB       Pinger
	Logger   *zap.Logger
}

// Services 全部业务服务
type Services struct {
	SafetyPlans         *SafetyPlanService
	AuditLogs           *AuditLogService
	Reports             *ReportService
	Preferences         *PreferenceService
	SRB                 *SRBService
	Permits             *PermitService
	CraneInspections    *RegisterService[entity.CraneInspection]
	DraegerCalibrations *RegisterService[entity.DraegerCalibration]
	Incidents           *RegisterService[entity.Incident]
	Documents           *DocumentService
	Export              *ExportService
	Health              *HealthService
	Catalog             *risk.Catalog
}

func New(d Deps) *Services {
	if d.Catalog == nil {
		d.Catalog = risk.DefaultCatalog()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	return &Services{
		SafetyPlans:         NewSafetyPlanService(d.Repos, d.Catalog, d.Hub, d.Logger),
		AuditLogs:           NewAuditLogService(d.Repos),
		Reports:             NewReportService(d.Repos),
		Preferences:         NewPreferenceService(d.Repos, d.Cache, d.Logger),
		SRB:                 NewSRBService(d.Repos, d.Hub, d.Notifier, d.Logger),
		Permits:             NewPermitService(d.Repos, d.Hub, d.Notifier, d.Logger),
		CraneInspections:    NewCraneInspectionService(d.Repos),
		DraegerCalibrations: NewDraegerCalibrationService(d.Repos),
		Incidents:           NewIncidentService(d.Repos),
		Documents:           NewDocumentService(d.Repos, d.Store),
		Export:              NewExportService(d.Repos),
		Health:              NewHealthService(d.DB, d.Cache),
		Catalog:             d.Catalog,
	}
}

// notifyAsync 在请求之外投递 webhook，失败只记日志
func notifyAsync(n notify.Notifier, logger *zap.Logger, card notify.Card) {
	go func() {
		if err := n.Send(context.Background(), card); err != nil {
			logger.Warn("Webhook delivery failed", zap.String("event", card.Event), zap.Error(err))
		}
	}()
}

// mergeJSON 将请求体中出现的字段覆盖到 dst 上，未出现的字段保持原值
func mergeJSON(dst interface{}, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

func strPtr(s string) *string { return &s }
