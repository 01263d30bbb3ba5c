package assignment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/itamops/assetman/pkg/interval"
)

// TargetKind is the category of an assignment's recipient.
type TargetKind string

const (
	TargetPerson   TargetKind = "person"
	TargetLocation TargetKind = "location"
	TargetAsset    TargetKind = "asset"
)

// AssetAssignment hands an asset to a person and/or a location for a half-open
// time range. At least one of PersonID and LocationID is set; both may be.
// Exclusivity is scoped to the asset: one open assignment per asset regardless
// of target composition.
type AssetAssignment struct {
	ID         uuid.UUID
	AssetID    uuid.UUID
	PersonID   *uuid.UUID
	LocationID *uuid.UUID
	Purpose    string
	Notes      string
	From       time.Time
	To         *time.Time
}

// LicenseAssignment grants a license seat to exactly one target, a person or
// an asset. The person-target and asset-target seats of a license are
// independent exclusion groups.
type LicenseAssignment struct {
	ID         uuid.UUID
	LicenseID  uuid.UUID
	TargetKind TargetKind
	TargetID   uuid.UUID
	From       time.Time
	To         *time.Time
}

// AssetKey builds the ledger subject key scoping asset exclusivity.
func AssetKey(assetID uuid.UUID) interval.Key {
	return interval.Key(fmt.Sprintf("asset:%s", assetID))
}

// LicenseKey builds the ledger subject key for a license seat. The target id
// is part of the key: two different people may hold the same license at once,
// but one person never holds two overlapping seats of it.
func LicenseKey(licenseID uuid.UUID, kind TargetKind, targetID uuid.UUID) interval.Key {
	return interval.Key(fmt.Sprintf("license:%s:%s:%s", licenseID, kind, targetID))
}
