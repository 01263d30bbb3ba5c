package assets

import (
	"github.com/itamops/assetman/modules/assets/infrastructure/persistence"
	"github.com/itamops/assetman/modules/assets/presentation/controllers"
	"github.com/itamops/assetman/modules/assets/services"
	auditservices "github.com/itamops/assetman/modules/audit/services"
	"github.com/itamops/assetman/pkg/application"
	"github.com/itamops/assetman/pkg/configuration"
	"github.com/itamops/assetman/pkg/hierarchy"
	"github.com/itamops/assetman/pkg/interval"
)

func NewModule() application.Module {
	return &Module{}
}

// Module wires the exclusivity engine: one ledger for assignment intervals,
// one graph for asset relations, one tree for org units. Registration depends
// on the audit module being registered first.
type Module struct{}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	auditSvc := app.Service(auditservices.AuditService{}).(*auditservices.AuditService)

	ledger := interval.NewLedger(conf.Engine.LedgerLockTimeout)
	graph := hierarchy.NewGraph(conf.Engine.GraphLockTimeout)
	tree := hierarchy.NewTree(conf.Engine.GraphLockTimeout)

	app.RegisterServices(
		services.NewAssignmentService(
			persistence.NewAssignmentRepository(),
			ledger,
			auditSvc,
			app.EventPublisher(),
			conf.Engine.MaxClockSkew,
		),
		services.NewRelationService(
			persistence.NewRelationRepository(),
			graph,
			auditSvc,
			app.EventPublisher(),
		),
		services.NewOrgUnitService(
			persistence.NewOrgUnitRepository(),
			tree,
			auditSvc,
			app.EventPublisher(),
		),
	)

	app.RegisterControllers(
		controllers.NewAssetsAPIController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "assets"
}
