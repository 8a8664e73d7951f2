package codec

import (
	"fmt"

	"lightspeed/internal/domain"
)

// AssetFrame converts assets to a frame in domain.AssetColumns order
func AssetFrame(assets []domain.Asset) *domain.Frame {
	frame := domain.NewFrame(domain.AssetColumns...)
	frame.Rows = make([][]string, len(assets))
	for i, a := range assets {
		frame.Rows[i] = a.Values()
	}
	return frame
}

// LabeledFrame converts labeled assets to a frame in domain.LabeledColumns order
func LabeledFrame(assets []domain.LabeledAsset) *domain.Frame {
	frame := domain.NewFrame(domain.LabeledColumns...)
	frame.Rows = make([][]string, len(assets))
	for i, a := range assets {
		frame.Rows[i] = a.Values()
	}
	return frame
}

// AssetsFromFrame decodes assets from any frame holding the asset columns
func AssetsFromFrame(frame *domain.Frame) ([]domain.Asset, error) {
	if missing := frame.MissingColumns(domain.AssetColumns...); len(missing) > 0 {
		return nil, fmt.Errorf("asset columns missing: %v", missing)
	}
	idx := columnIndex(frame, domain.AssetColumns)

	assets := make([]domain.Asset, len(frame.Rows))
	for i, row := range frame.Rows {
		assets[i] = domain.Asset{
			IPAddress: row[idx[domain.ColIPAddress]],
			Hostname:  row[idx[domain.ColHostname]],
			FQDN:      row[idx[domain.ColFQDN]],
			Region:    row[idx[domain.ColRegion]],
			Status:    row[idx[domain.ColStatus]],
			Vendor:    row[idx[domain.ColVendor]],
			Model:     row[idx[domain.ColModel]],
			Role:      row[idx[domain.ColRole]],
		}
	}
	return assets, nil
}

// LabeledFromFrame decodes labeled assets, rejecting flags other than 0/1
func LabeledFromFrame(frame *domain.Frame) ([]domain.LabeledAsset, error) {
	assets, err := AssetsFromFrame(frame)
	if err != nil {
		return nil, err
	}
	if missing := frame.MissingColumns(domain.ColMissingInInventory, domain.ColMissingInIPAM); len(missing) > 0 {
		return nil, fmt.Errorf("flag columns missing: %v", missing)
	}
	inv := frame.Index(domain.ColMissingInInventory)
	ipam := frame.Index(domain.ColMissingInIPAM)

	labeled := make([]domain.LabeledAsset, len(assets))
	for i, row := range frame.Rows {
		missInv, err := domain.ParseFlag(row[inv])
		if err != nil {
			return nil, fmt.Errorf("row %d %s: %w", i+1, domain.ColMissingInInventory, err)
		}
		missIPAM, err := domain.ParseFlag(row[ipam])
		if err != nil {
			return nil, fmt.Errorf("row %d %s: %w", i+1, domain.ColMissingInIPAM, err)
		}
		labeled[i] = domain.LabeledAsset{
			Asset:         assets[i],
			PresenceFlags: domain.PresenceFlags{MissingInInventory: missInv, MissingInIPAM: missIPAM},
		}
	}
	return labeled, nil
}

func columnIndex(frame *domain.Frame, columns []string) map[string]int {
	idx := make(map[string]int, len(columns))
	for _, c := range columns {
		idx[c] = frame.Index(c)
	}
	return idx
}
