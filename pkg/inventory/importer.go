package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/opsforge/opsforge/pkg/stores"
)

// AssetDocument is the on-disk form of one inventory asset. Either an ID
// or a hostname must be present; a missing ID defaults to the lowercased
// hostname so re-imports update instead of duplicating.
type AssetDocument struct {
	ID          string            `yaml:"id,omitempty" json:"id,omitempty" validate:"required_without=Hostname"`
	Hostname    string            `yaml:"hostname,omitempty" json:"hostname,omitempty" validate:"required_without=ID"`
	IPAddress   string            `yaml:"ip_address,omitempty" json:"ip_address,omitempty" validate:"omitempty,ip"`
	OS          string            `yaml:"os,omitempty" json:"os,omitempty"`
	OSVersion   string            `yaml:"os_version,omitempty" json:"os_version,omitempty"`
	Environment string            `yaml:"environment,omitempty" json:"environment,omitempty"`
	Status      string            `yaml:"status,omitempty" json:"status,omitempty"`
	Tags        map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// ImportStore is the subset of the store the importer writes to.
type ImportStore interface {
	ImportAssets(ctx context.Context, assets []*stores.Asset) (int, error)
}

// Importer loads asset documents into the store, normalizing the OS
// family so the query layer can filter by it.
type Importer struct {
	store    ImportStore
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewImporter creates an importer over the given store.
func NewImporter(store ImportStore, logger zerolog.Logger) *Importer {
	return &Importer{
		store:    store,
		validate: validator.New(),
		logger:   logger.With().Str("component", "inventory").Logger(),
	}
}

// ImportFile loads asset documents from a YAML or JSON file into the
// store and returns the number of records written.
func (im *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read asset file: %w", err)
	}

	var docs []AssetDocument
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &docs); err != nil {
			return 0, fmt.Errorf("failed to parse JSON asset file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &docs); err != nil {
			return 0, fmt.Errorf("failed to parse YAML asset file: %w", err)
		}
	}
	return im.Import(ctx, docs)
}

// Import validates and writes a batch of asset documents. The batch goes
// into one transaction; an invalid document aborts the import before
// anything is written.
func (im *Importer) Import(ctx context.Context, docs []AssetDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	assets := make([]*stores.Asset, 0, len(docs))
	for i, doc := range docs {
		if err := im.validate.Struct(doc); err != nil {
			return 0, fmt.Errorf("invalid asset document %d: %w", i, err)
		}
		assets = append(assets, doc.asset(now))
	}

	count, err := im.store.ImportAssets(ctx, assets)
	if err != nil {
		return 0, fmt.Errorf("failed to import assets: %w", err)
	}

	im.logger.Info().Int("count", count).Msg("Assets imported")
	return count, nil
}

// asset converts a document to its stored form.
func (doc AssetDocument) asset(now time.Time) *stores.Asset {
	id := doc.ID
	if id == "" {
		id = strings.ToLower(doc.Hostname)
	}
	status := doc.Status
	if status == "" {
		status = "active"
	}
	tags := "{}"
	if len(doc.Tags) > 0 {
		if data, err := json.Marshal(doc.Tags); err == nil {
			tags = string(data)
		}
	}
	return &stores.Asset{
		ID:          id,
		Hostname:    doc.Hostname,
		IPAddress:   doc.IPAddress,
		OS:          doc.OS,
		OSFamily:    NormalizeOSFamily(doc.OS),
		OSVersion:   doc.OSVersion,
		Environment: doc.Environment,
		Status:      status,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
