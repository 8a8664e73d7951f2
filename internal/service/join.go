package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"lightspeed/internal/repository"
)

// JoinSummary reports the unified table produced by a join
type JoinSummary struct {
	Rows               int `json:"rows"`
	MissingInInventory int `json:"missing_in_inventory"`
	MissingInIPAM      int `json:"missing_in_ipam"`
}

// JoinService rebuilds the unified lightspeed_asset table
type JoinService struct {
	repo repository.Repository
	log  logrus.FieldLogger
}

// NewJoinService creates a new join service
func NewJoinService(repo repository.Repository, log logrus.FieldLogger) *JoinService {
	return &JoinService{repo: repo, log: log}
}

// Join left-joins observability with inventory on (ip, hostname) and with ipam on
// (ip, fqdn), re-derives the presence flags and replaces lightspeed_asset.
func (s *JoinService) Join(ctx context.Context) (JoinSummary, error) {
	s.log.Info("Joining tables to form lightspeed_asset")

	rows, err := s.repo.JoinSystems(ctx)
	if err != nil {
		return JoinSummary{}, err
	}

	summary := JoinSummary{Rows: len(rows)}
	for i := range rows {
		rows[i].ID = int64(i + 1)
		flags := rows[i].Flags()
		if flags.MissingInInventory {
			summary.MissingInInventory++
		}
		if flags.MissingInIPAM {
			summary.MissingInIPAM++
		}
	}

	if err := s.repo.ReplaceUnified(ctx, rows); err != nil {
		return JoinSummary{}, fmt.Errorf("write lightspeed_asset: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"rows":                 summary.Rows,
		"missing_in_inventory": summary.MissingInInventory,
		"missing_in_ipam":      summary.MissingInIPAM,
	}).Info("lightspeed_asset table written")
	return summary, nil
}
