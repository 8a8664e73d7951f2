package catalog

// DefaultSpec returns the built-in lookup tables
func DefaultSpec() Spec {
	return Spec{
		Domain: "lightspeed.net",
		Regions: []RegionSpec{
			{Name: "central", Weight: 0.10, Sites: []string{"DAL", "AUS", "OKC"}, Subnet: "10.10.0.0/16"},
			{Name: "east", Weight: 0.10, Sites: []string{"ATL", "CLT", "PIT"}, Subnet: "10.20.0.0/16"},
			{Name: "west", Weight: 0.20, Sites: []string{"SEA", "LAX", "SFO"}, Subnet: "10.30.0.0/16"},
			{Name: "southeast", Weight: 0.05, Sites: []string{"MIA", "JAX", "BNA"}, Subnet: "10.40.0.0/16"},
			{Name: "southwest", Weight: 0.05, Sites: []string{"PHX", "ABQ", "ELP"}, Subnet: "10.50.0.0/16"},
			{Name: "northeast", Weight: 0.25, Sites: []string{"NYC", "BOS", "PHL"}, Subnet: "10.60.0.0/16"},
			{Name: "northwest", Weight: 0.25, Sites: []string{"POR", "GEG", "BOI"}, Subnet: "10.70.0.0/16"},
		},
		Roles: []RoleSpec{
			{Name: "edge", Code: "ED", Weight: 0.30, Models: []VendorModel{
				{"Cisco", "ISR4431"}, {"Juniper", "SRX345"}, {"RAD", "ETX-2"},
			}},
			{Name: "dist", Code: "DS", Weight: 0.25, Models: []VendorModel{
				{"ADVA", "FSP150"}, {"Juniper", "QFX5120"},
			}},
			{Name: "sw", Code: "SW", Weight: 0.20, Models: []VendorModel{
				{"Cisco", "Catalyst9300"},
			}},
			{Name: "rtr", Code: "RT", Weight: 0.10, Models: []VendorModel{
				{"Arista", "7050X3"},
			}},
			{Name: "agg", Code: "AG", Weight: 0.10, Models: []VendorModel{
				{"Arista", "7280R"}, {"ADVA", "FSP3000"},
			}},
			{Name: "core", Code: "CO", Weight: 0.05, Models: []VendorModel{
				{"Juniper", "MX204"}, {"Cisco", "NCS540"}, {"Nokia", "7750 SR-1"},
			}},
		},
		Statuses: []Weighted{
			{"active", 0.70},
			{"degraded", 0.20},
			{"down", 0.07},
			{"retired", 0.03},
		},
		SiteStates: map[string]string{
			"DAL": "TX", "AUS": "TX", "OKC": "OK",
			"ATL": "GA", "CLT": "NC", "PIT": "PA",
			"SEA": "WA", "LAX": "CA", "SFO": "CA",
			"MIA": "FL", "JAX": "FL", "BNA": "TN",
			"PHX": "AZ", "ABQ": "NM", "ELP": "TX",
			"NYC": "NY", "BOS": "MA", "PHL": "PA",
			"POR": "OR", "GEG": "WA", "BOI": "ID",
		},
	}
}
