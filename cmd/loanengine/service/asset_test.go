package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
	"github.com/loandesk/loanengine/cmd/loanengine/repository"
	"github.com/loandesk/loanengine/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	assets  map[uuid.UUID]*models.Asset
	updated int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{assets: make(map[uuid.UUID]*models.Asset)}
}

func (f *fakeRegistry) Create(ctx context.Context, asset *models.Asset) error {
	f.assets[asset.ID] = asset
	return nil
}

func (f *fakeRegistry) GetByID(ctx context.Context, assetID uuid.UUID) (*models.Asset, error) {
	asset, ok := f.assets[assetID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return asset, nil
}

func (f *fakeRegistry) List(ctx context.Context, status models.AssetStatus, includeArchived bool) ([]*models.Asset, error) {
	var out []*models.Asset
	for _, asset := range f.assets {
		if status != "" && asset.Status != status {
			continue
		}
		if !includeArchived && asset.Archived() {
			continue
		}
		out = append(out, asset)
	}
	return out, nil
}

func (f *fakeRegistry) UpdateProvisioning(ctx context.Context, asset *models.Asset) error {
	if _, ok := f.assets[asset.ID]; !ok {
		return repository.ErrNotFound
	}
	f.assets[asset.ID] = asset
	f.updated++
	return nil
}

func (f *fakeRegistry) Archive(ctx context.Context, assetID uuid.UUID) error {
	asset, ok := f.assets[assetID]
	if !ok || asset.Archived() {
		return repository.ErrNotFound
	}
	now := time.Now()
	asset.ArchivedAt = &now
	return nil
}

type fakeLoanLister struct {
	open []*models.Loan
}

func (f *fakeLoanLister) List(ctx context.Context, assetID *uuid.UUID, openOnly bool) ([]*models.Loan, error) {
	return f.open, nil
}

func newTestAssetService(registry *fakeRegistry, lister *fakeLoanLister) *AssetService {
	return NewAssetService(registry, lister, logger.New("error", "json"))
}

func TestCreateAssetValidation(t *testing.T) {
	svc := newTestAssetService(newFakeRegistry(), &fakeLoanLister{})

	_, err := svc.CreateAsset(context.Background(), &CreateAssetRequest{SerialNumber: "SN-1"})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)

	asset, err := svc.CreateAsset(context.Background(), &CreateAssetRequest{Name: "pc-alpha", SerialNumber: "SN-1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, asset.Status)
}

func TestPatchAsset(t *testing.T) {
	registry := newFakeRegistry()
	svc := newTestAssetService(registry, &fakeLoanLister{})

	asset, err := svc.CreateAsset(context.Background(), &CreateAssetRequest{Name: "pc-alpha", SerialNumber: "SN-1"})
	require.NoError(t, err)

	patched, err := svc.PatchAsset(context.Background(), asset.ID, []byte(`[
		{"op": "replace", "path": "/name", "value": "pc-omega"},
		{"op": "replace", "path": "/notes", "value": "reimaged"}
	]`))
	require.NoError(t, err)
	assert.Equal(t, "pc-omega", patched.Name)
	assert.Equal(t, "reimaged", patched.Notes)
	assert.Equal(t, "SN-1", patched.SerialNumber)
}

func TestPatchAssetRejectsLifecyclePaths(t *testing.T) {
	registry := newFakeRegistry()
	svc := newTestAssetService(registry, &fakeLoanLister{})

	asset, err := svc.CreateAsset(context.Background(), &CreateAssetRequest{Name: "pc-alpha", SerialNumber: "SN-1"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		patch string
	}{
		{"status path", `[{"op": "replace", "path": "/status", "value": "available"}]`},
		{"holder path", `[{"op": "replace", "path": "/current_holder", "value": "mallory"}]`},
		{"active loan path", `[{"op": "replace", "path": "/active_loan_id", "value": null}]`},
		{"remove op", `[{"op": "remove", "path": "/notes"}]`},
		{"missing op", `[{"path": "/notes", "value": "x"}]`},
		{"malformed document", `{"op": "replace"}`},
		{"empty name result", `[{"op": "replace", "path": "/name", "value": ""}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PatchAsset(context.Background(), asset.ID, []byte(tt.patch))
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
		})
	}

	// None of the rejected patches reached storage
	assert.Equal(t, 0, registry.updated)
}

func TestArchiveAsset(t *testing.T) {
	registry := newFakeRegistry()
	lister := &fakeLoanLister{}
	svc := newTestAssetService(registry, lister)

	asset, err := svc.CreateAsset(context.Background(), &CreateAssetRequest{Name: "pc-alpha", SerialNumber: "SN-1"})
	require.NoError(t, err)

	// An open loan blocks retirement
	lister.open = []*models.Loan{{ID: uuid.New(), AssetID: asset.ID}}
	err = svc.ArchiveAsset(context.Background(), asset.ID)
	var state *StateError
	require.ErrorAs(t, err, &state)

	lister.open = nil
	require.NoError(t, svc.ArchiveAsset(context.Background(), asset.ID))
	assert.True(t, registry.assets[asset.ID].Archived())

	// Archived assets drop out of default listings
	listed, err := svc.ListAssets(context.Background(), "", false)
	require.NoError(t, err)
	assert.Empty(t, listed)

	listed, err = svc.ListAssets(context.Background(), "", true)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
