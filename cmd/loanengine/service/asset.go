package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/cmd/loanengine/repository"
	"github.com/loandesk/loanengine/common/logger"
)

// RegistryStore is the provisioning surface of the asset registry
type RegistryStore interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetByID(ctx context.Context, assetID uuid.UUID) (*models.Asset, error)
	List(ctx context.Context, status models.AssetStatus, includeArchived bool) ([]*models.Asset, error)
	UpdateProvisioning(ctx context.Context, asset *models.Asset) error
	Archive(ctx context.Context, assetID uuid.UUID) error
}

// LoanLister checks for open loans before an asset is retired
type LoanLister interface {
	List(ctx context.Context, assetID *uuid.UUID, openOnly bool) ([]*models.Loan, error)
}

// AssetService handles asset provisioning. Lifecycle status fields
// are out of its reach; only the state machine mutates those.
type AssetService struct {
	registry RegistryStore
	loans    LoanLister
	log      *logger.Logger
}

// NewAssetService creates a new asset service
func NewAssetService(registry RegistryStore, loans LoanLister, log *logger.Logger) *AssetService {
	return &AssetService{registry: registry, loans: loans, log: log}
}

// CreateAssetRequest represents a provisioning request
type CreateAssetRequest struct {
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
	Notes        string `json:"notes"`
}

// CreateAsset provisions a new loanable asset
func (s *AssetService) CreateAsset(ctx context.Context, req *CreateAssetRequest) (*models.Asset, error) {
	if req.Name == "" {
		return nil, required("name")
	}
	if req.SerialNumber == "" {
		return nil, required("serial_number")
	}

	asset := &models.Asset{
		ID:           uuid.New(),
		Name:         req.Name,
		SerialNumber: req.SerialNumber,
		Status:       models.StatusAvailable,
		Notes:        req.Notes,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := s.registry.Create(ctx, asset); err != nil {
		return nil, coerceStorage(err)
	}

	s.log.WithAssetID(asset.ID.String()).Info("asset provisioned", "serial", asset.SerialNumber)
	return asset, nil
}

// GetAsset retrieves an asset by id
func (s *AssetService) GetAsset(ctx context.Context, assetID uuid.UUID) (*models.Asset, error) {
	asset, err := s.registry.GetByID(ctx, assetID)
	if err != nil {
		return nil, coerceStorage(notFound("asset", assetID, err))
	}
	return asset, nil
}

// ListAssets retrieves assets with optional filters
func (s *AssetService) ListAssets(ctx context.Context, status models.AssetStatus, includeArchived bool) ([]*models.Asset, error) {
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", status)}
	}

	assets, err := s.registry.List(ctx, status, includeArchived)
	if err != nil {
		return nil, coerceStorage(err)
	}
	return assets, nil
}

// patchableAsset is the subset of asset fields a JSON patch may touch.
type patchableAsset struct {
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
	Notes        string `json:"notes"`
}

var patchablePaths = map[string]bool{
	"/name":          true,
	"/serial_number": true,
	"/notes":         true,
}

// PatchAsset applies an RFC 6902 patch to the asset's provisioning
// fields. Paths touching lifecycle state (/status, /current_holder,
// /active_loan_id) are rejected: that state belongs to the state
// machine.
func (s *AssetService) PatchAsset(ctx context.Context, assetID uuid.UUID, patchDoc []byte) (*models.Asset, error) {
	asset, err := s.registry.GetByID(ctx, assetID)
	if err != nil {
		return nil, coerceStorage(notFound("asset", assetID, err))
	}

	patch, err := jsonpatch.DecodePatch(patchDoc)
	if err != nil {
		return nil, &ValidationError{Field: "patch", Msg: fmt.Sprintf("invalid JSON patch: %v", err)}
	}

	for i, op := range patch {
		if kind := op.Kind(); kind != "replace" && kind != "add" {
			return nil, &ValidationError{Field: "patch", Msg: fmt.Sprintf("operation %d: unsupported op %q", i, kind)}
		}
		path, err := op.Path()
		if err != nil {
			return nil, &ValidationError{Field: "patch", Msg: fmt.Sprintf("operation %d: missing path", i)}
		}
		if !patchablePaths[path] {
			return nil, &ValidationError{Field: "patch", Msg: fmt.Sprintf("operation %d: path %q is not patchable", i, path)}
		}
	}

	original, err := json.Marshal(patchableAsset{
		Name:         asset.Name,
		SerialNumber: asset.SerialNumber,
		Notes:        asset.Notes,
	})
	if err != nil {
		return nil, coerceStorage(err)
	}

	patched, err := patch.Apply(original)
	if err != nil {
		return nil, &ValidationError{Field: "patch", Msg: fmt.Sprintf("patch failed to apply: %v", err)}
	}

	var result patchableAsset
	if err := json.Unmarshal(patched, &result); err != nil {
		return nil, &ValidationError{Field: "patch", Msg: fmt.Sprintf("patched document invalid: %v", err)}
	}
	if result.Name == "" {
		return nil, required("name")
	}
	if result.SerialNumber == "" {
		return nil, required("serial_number")
	}

	asset.Name = result.Name
	asset.SerialNumber = result.SerialNumber
	asset.Notes = result.Notes

	if err := s.registry.UpdateProvisioning(ctx, asset); err != nil {
		return nil, coerceStorage(notFound("asset", assetID, err))
	}

	s.log.WithAssetID(assetID.String()).Info("asset patched")
	return asset, nil
}

// ArchiveAsset soft-deletes an asset. History keeps referencing it;
// the row never disappears. Refused while a loan is open.
func (s *AssetService) ArchiveAsset(ctx context.Context, assetID uuid.UUID) error {
	open, err := s.loans.List(ctx, &assetID, true)
	if err != nil {
		return coerceStorage(err)
	}
	if len(open) > 0 {
		return &StateError{Msg: fmt.Sprintf("asset %s has an open loan", assetID)}
	}

	if err := s.registry.Archive(ctx, assetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Resource: "asset", ID: assetID.String()}
		}
		return coerceStorage(err)
	}

	s.log.WithAssetID(assetID.String()).Info("asset archived")
	return nil
}
