package audit

import (
	"github.com/itamops/assetman/modules/audit/infrastructure/persistence"
	"github.com/itamops/assetman/modules/audit/presentation/controllers"
	"github.com/itamops/assetman/modules/audit/services"
	"github.com/itamops/assetman/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.RegisterServices(
		services.NewAuditService(persistence.NewAuditRepository()),
	)
	app.RegisterControllers(
		controllers.NewAuditAPIController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "audit"
}
