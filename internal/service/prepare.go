package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"lightspeed/internal/catalog"
	"lightspeed/internal/codec"
	"lightspeed/internal/domain"
	"lightspeed/internal/repository"
	"lightspeed/internal/synth"
)

// ErrMissingColumns is returned when a projection needs columns the source lacks
var ErrMissingColumns = errors.New("missing required columns")

// TrainingSet describes one projection of the unified table
type TrainingSet struct {
	Name    string
	File    string
	Columns []string
}

// Label returns the target column, which is always last
func (t TrainingSet) Label() string {
	return t.Columns[len(t.Columns)-1]
}

// Training set projections
var (
	InventoryTrainingSet = TrainingSet{
		Name: "inventory",
		File: "inventory_training_set.csv",
		Columns: []string{
			domain.ColRegion, domain.ColStatus, domain.ColVendor, domain.ColModel,
			domain.ColMissingInInventory,
		},
	}
	IPAMTrainingSet = TrainingSet{
		Name: "ipam",
		File: "ipam_training_set.csv",
		Columns: []string{
			domain.ColRegion, domain.ColStatus, domain.ColFQDN, domain.ColIPAddress,
			domain.ColMissingInIPAM,
		},
	}
)

// EnrichedFile is the enriched labeled dataset written next to the training sets
const EnrichedFile = "labeled_asset_dataset_enriched.csv"

// Enrichment columns decoded from the hostname
const (
	ColSiteCode     = "site_code"
	ColStateCode    = "state_code"
	ColRoleCode     = "role_code"
	ColParsedRole   = "parsed_role"
	ColParsedRegion = "parsed_region"
)

// PrepareOptions controls where prepared files go
type PrepareOptions struct {
	ProcessedDir string
	// LabeledCSV, when set, is enriched into ProcessedDir/labeled_asset_dataset_enriched.csv
	LabeledCSV string
}

// PrepareResult lists the files written by Prepare
type PrepareResult struct {
	Files map[string]string `json:"files"`
	Rows  int               `json:"rows"`
}

// PrepareService derives training sets from the unified table
type PrepareService struct {
	repo    repository.Repository
	catalog *catalog.Catalog
	log     logrus.FieldLogger
}

// NewPrepareService creates a new prepare service
func NewPrepareService(repo repository.Repository, c *catalog.Catalog, log logrus.FieldLogger) *PrepareService {
	return &PrepareService{repo: repo, catalog: c, log: log}
}

// Prepare writes the inventory and ipam training sets
func (s *PrepareService) Prepare(ctx context.Context, opts PrepareOptions) (*PrepareResult, error) {
	frame, err := s.repo.LoadTable(ctx, domain.TableLightspeedAsset)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", domain.TableLightspeedAsset, err)
	}

	result := &PrepareResult{Files: make(map[string]string), Rows: frame.Len()}
	csv := codec.NewCSVCodec()

	for _, set := range []TrainingSet{InventoryTrainingSet, IPAMTrainingSet} {
		projected, err := ProjectTrainingSet(frame, set)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(opts.ProcessedDir, set.File)
		if err := codec.WriteFile(path, projected, csv); err != nil {
			return nil, err
		}
		result.Files[set.Name] = path
		s.log.WithField("rows", projected.Len()).Infof("Saved %s training set: %s", set.Name, path)
	}

	if opts.LabeledCSV != "" {
		labeled, err := codec.ReadFile(opts.LabeledCSV, csv)
		if err != nil {
			return nil, err
		}
		enriched, err := s.Enrich(labeled)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(opts.ProcessedDir, EnrichedFile)
		if err := codec.WriteFile(path, enriched, csv); err != nil {
			return nil, err
		}
		result.Files["enriched"] = path
		s.log.Infof("Enriched dataset written to: %s", path)
	}

	return result, nil
}

// ProjectTrainingSet selects the training set columns, failing with
// ErrMissingColumns naming every absent column.
func ProjectTrainingSet(frame *domain.Frame, set TrainingSet) (*domain.Frame, error) {
	if missing := frame.MissingColumns(set.Columns...); len(missing) > 0 {
		return nil, fmt.Errorf("%s training set: %w: %v", set.Name, ErrMissingColumns, missing)
	}
	return frame.Select(set.Columns...)
}

// Enrich appends hostname-derived columns to a frame with a hostname column.
// Unknown codes leave parsed_role and parsed_region empty.
func (s *PrepareService) Enrich(frame *domain.Frame) (*domain.Frame, error) {
	hostIdx := frame.Index(domain.ColHostname)
	if hostIdx < 0 {
		return nil, fmt.Errorf("enrich: %w: [%s]", ErrMissingColumns, domain.ColHostname)
	}

	out := domain.NewFrame(append(append([]string{}, frame.Columns...),
		ColSiteCode, ColStateCode, ColRoleCode, ColParsedRole, ColParsedRegion)...)
	out.Rows = make([][]string, len(frame.Rows))

	for i, row := range frame.Rows {
		parts, err := synth.ParseHostname(s.catalog, row[hostIdx])
		if err != nil {
			s.log.WithError(err).Debug("Hostname not in generated form")
			parts = hostnameCodes(s.catalog, row[hostIdx])
		}
		out.Rows[i] = append(append(make([]string, 0, len(out.Columns)), row...),
			parts.SiteCode, parts.StateCode, parts.RoleCode, parts.Role, parts.Region)
	}
	return out, nil
}

// hostnameCodes slices whatever codes a malformed hostname still has
func hostnameCodes(c *catalog.Catalog, hostname string) synth.HostnameParts {
	slice := func(from, to int) string {
		if from >= len(hostname) {
			return ""
		}
		if to > len(hostname) {
			to = len(hostname)
		}
		return hostname[from:to]
	}

	state := catalog.SiteCodeLen
	role := state + catalog.StateCodeLen
	parts := synth.HostnameParts{
		SiteCode:  slice(0, state),
		StateCode: slice(state, role),
		RoleCode:  slice(role, role+catalog.RoleCodeLen),
	}
	parts.Role, _ = c.RoleForCode(parts.RoleCode)
	parts.Region, _ = c.SiteRegion(parts.SiteCode)
	return parts
}
