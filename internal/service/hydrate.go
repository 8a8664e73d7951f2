package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"lightspeed/internal/domain"
	"lightspeed/internal/repository"
)

// HydrateService projects labeled assets into the three system-of-record tables
type HydrateService struct {
	repo repository.Repository
	log  logrus.FieldLogger
}

// NewHydrateService creates a new hydrate service
func NewHydrateService(repo repository.Repository, log logrus.FieldLogger) *HydrateService {
	return &HydrateService{repo: repo, log: log}
}

// Hydrate replaces the system tables with projections of the labeled assets
// and verifies the stored row counts.
func (s *HydrateService) Hydrate(ctx context.Context, labeled []domain.LabeledAsset) (domain.TableCounts, error) {
	tables := BuildSystemTables(labeled)
	expected := tables.Counts()

	if present := countPresent(labeled); expected.Inventory != present.Inventory || expected.IPAM != present.IPAM {
		s.log.WithFields(logrus.Fields{
			"inventory_rows": expected.Inventory, "inventory_present": present.Inventory,
			"ipam_rows": expected.IPAM, "ipam_present": present.IPAM,
		}).Warn("Duplicate assets collapsed during hydration")
	}

	if err := s.repo.ReplaceSystemTables(ctx, tables); err != nil {
		return domain.TableCounts{}, fmt.Errorf("hydrate tables: %w", err)
	}

	stored, err := s.repo.Counts(ctx)
	if err != nil {
		return domain.TableCounts{}, fmt.Errorf("verify tables: %w", err)
	}
	if stored != expected {
		return stored, fmt.Errorf("verify tables: stored %+v, expected %+v", stored, expected)
	}

	s.log.WithFields(logrus.Fields{
		"observability": stored.Observability,
		"inventory":     stored.Inventory,
		"ipam":          stored.IPAM,
	}).Info("Hydrated system tables")
	return stored, nil
}

// BuildSystemTables projects labeled assets into the system tables.
// Each table drops exact duplicate rows, keeping the first, and numbers rows from 1.
func BuildSystemTables(labeled []domain.LabeledAsset) *domain.SystemTables {
	tables := &domain.SystemTables{}

	type obsKey struct{ ip, hostname, fqdn, status string }
	type invKey struct{ ip, hostname, vendor, model string }
	type ipamKey struct{ ip, fqdn, region string }
	seenObs := make(map[obsKey]struct{})
	seenInv := make(map[invKey]struct{})
	seenIPAM := make(map[ipamKey]struct{})

	for _, a := range labeled {
		ok := obsKey{a.IPAddress, a.Hostname, a.FQDN, a.Status}
		if _, dup := seenObs[ok]; !dup {
			seenObs[ok] = struct{}{}
			tables.Observability = append(tables.Observability, domain.ObservabilityRow{
				ID:        int64(len(tables.Observability) + 1),
				IPAddress: a.IPAddress,
				Hostname:  a.Hostname,
				FQDN:      a.FQDN,
				Status:    a.Status,
			})
		}

		if !a.MissingInInventory {
			k := invKey{a.IPAddress, a.Hostname, a.Vendor, a.Model}
			if _, dup := seenInv[k]; !dup {
				seenInv[k] = struct{}{}
				tables.Inventory = append(tables.Inventory, domain.InventoryRow{
					ID:        int64(len(tables.Inventory) + 1),
					IPAddress: a.IPAddress,
					Hostname:  a.Hostname,
					Vendor:    a.Vendor,
					Model:     a.Model,
				})
			}
		}

		if !a.MissingInIPAM {
			k := ipamKey{a.IPAddress, a.FQDN, a.Region}
			if _, dup := seenIPAM[k]; !dup {
				seenIPAM[k] = struct{}{}
				tables.IPAM = append(tables.IPAM, domain.IPAMRow{
					ID:        int64(len(tables.IPAM) + 1),
					IPAddress: a.IPAddress,
					FQDN:      a.FQDN,
					Region:    a.Region,
				})
			}
		}
	}
	return tables
}

func countPresent(labeled []domain.LabeledAsset) domain.TableCounts {
	counts := domain.TableCounts{Observability: len(labeled)}
	for _, a := range labeled {
		if !a.MissingInInventory {
			counts.Inventory++
		}
		if !a.MissingInIPAM {
			counts.IPAM++
		}
	}
	return counts
}
