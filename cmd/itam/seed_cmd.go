package main

import (
	"context"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/itamops/assetman/modules"
	"github.com/itamops/assetman/modules/assets/domain/relation"
	assetservices "github.com/itamops/assetman/modules/assets/services"
	"github.com/itamops/assetman/pkg/application"
	"github.com/itamops/assetman/pkg/composables"
	"github.com/itamops/assetman/pkg/configuration"
	"github.com/itamops/assetman/pkg/eventbus"
)

//go:embed seed.yaml
var seedFixtures []byte

type seedFile struct {
	AssetAssignments []struct {
		AssetID    uuid.UUID  `yaml:"asset_id"`
		PersonID   *uuid.UUID `yaml:"person_id"`
		LocationID *uuid.UUID `yaml:"location_id"`
		From       time.Time  `yaml:"from"`
		Purpose    string     `yaml:"purpose"`
		Notes      string     `yaml:"notes"`
	} `yaml:"asset_assignments"`
	LicenseAssignments []struct {
		LicenseID uuid.UUID  `yaml:"license_id"`
		PersonID  *uuid.UUID `yaml:"person_id"`
		AssetID   *uuid.UUID `yaml:"asset_id"`
		From      time.Time  `yaml:"from"`
	} `yaml:"license_assignments"`
	Relations []struct {
		ParentID uuid.UUID `yaml:"parent_id"`
		ChildID  uuid.UUID `yaml:"child_id"`
		Type     string    `yaml:"type"`
	} `yaml:"relations"`
	OrgUnits []struct {
		NodeID   uuid.UUID  `yaml:"node_id"`
		ParentID *uuid.UUID `yaml:"parent_id"`
	} `yaml:"org_units"`
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with fixture assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			defer conf.Unload()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, err := pgxpool.New(ctx, conf.Database.Opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			app := application.New(&application.ApplicationOptions{
				Pool:     pool,
				EventBus: eventbus.NewEventPublisher(conf.Logger()),
				Logger:   conf.Logger(),
			})
			if err := modules.Load(app, modules.BuiltInModules...); err != nil {
				return err
			}

			poolCtx := composables.WithPool(ctx, pool)
			if err := modules.WarmLoad(poolCtx, app); err != nil {
				return err
			}

			seeder := application.NewSeeder()
			seeder.Register(seedEngineFixtures)
			return seeder.Seed(poolCtx, app)
		},
	}
}

// seedEngineFixtures replays the fixture file through the coordinator
// services, so seeding exercises the same validation and audit path as the
// API.
func seedEngineFixtures(ctx context.Context, app application.Application) error {
	var fixtures seedFile
	if err := yaml.Unmarshal(seedFixtures, &fixtures); err != nil {
		return err
	}

	assignments := app.Service(assetservices.AssignmentService{}).(*assetservices.AssignmentService)
	relations := app.Service(assetservices.RelationService{}).(*assetservices.RelationService)
	orgUnits := app.Service(assetservices.OrgUnitService{}).(*assetservices.OrgUnitService)

	for _, row := range fixtures.AssetAssignments {
		if _, err := assignments.AssignAsset(ctx, assetservices.AssignAssetInput{
			AssetID:    row.AssetID,
			PersonID:   row.PersonID,
			LocationID: row.LocationID,
			From:       row.From,
			Purpose:    row.Purpose,
			Notes:      row.Notes,
		}); err != nil {
			return err
		}
	}
	for _, row := range fixtures.LicenseAssignments {
		if _, err := assignments.AssignLicense(ctx, assetservices.AssignLicenseInput{
			LicenseID: row.LicenseID,
			PersonID:  row.PersonID,
			AssetID:   row.AssetID,
			From:      row.From,
		}); err != nil {
			return err
		}
	}
	for _, row := range fixtures.Relations {
		if err := relations.AddRelation(ctx, relation.Relation{
			ParentID: row.ParentID,
			ChildID:  row.ChildID,
			Type:     relation.Type(row.Type),
		}); err != nil {
			return err
		}
	}
	for _, row := range fixtures.OrgUnits {
		if err := orgUnits.SetOrgParent(ctx, row.NodeID, row.ParentID); err != nil {
			return err
		}
	}
	return nil
}
