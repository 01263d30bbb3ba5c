package modules

import (
	"context"

	"github.com/itamops/assetman/modules/assets"
	assetservices "github.com/itamops/assetman/modules/assets/services"
	"github.com/itamops/assetman/modules/audit"
	auditservices "github.com/itamops/assetman/modules/audit/services"
	"github.com/itamops/assetman/pkg/application"
)

// BuiltInModules in registration order: audit first, the assets coordinator
// resolves its append-only log from the registry.
var BuiltInModules = []application.Module{
	audit.NewModule(),
	assets.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}

// WarmLoad primes the in-memory engine and the audit sequence from durable
// storage. The context must carry the database pool. Call once after Load,
// before serving traffic or seeding.
func WarmLoad(ctx context.Context, app application.Application) error {
	auditSvc := app.Service(auditservices.AuditService{}).(*auditservices.AuditService)
	if err := auditSvc.Load(ctx); err != nil {
		return err
	}
	assignments := app.Service(assetservices.AssignmentService{}).(*assetservices.AssignmentService)
	if err := assignments.Load(ctx); err != nil {
		return err
	}
	relations := app.Service(assetservices.RelationService{}).(*assetservices.RelationService)
	if err := relations.Load(ctx); err != nil {
		return err
	}
	orgUnits := app.Service(assetservices.OrgUnitService{}).(*assetservices.OrgUnitService)
	return orgUnits.Load(ctx)
}
