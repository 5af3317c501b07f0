package inventory

import (
	"strings"

	"leadmatch/internal/config"
)

// Role is the semantic meaning of a sheet column
type Role string

const (
	RolePrice    Role = "price"
	RoleSize     Role = "size"
	RoleRooms    Role = "rooms"
	RoleLocation Role = "location"
	RoleStatus   Role = "status"
	RoleUnit     Role = "unit"
)

// Columns maps each role to the header that plays it ("" when absent)
type Columns struct {
	Price    string `json:"price,omitempty"`
	Size     string `json:"size,omitempty"`
	Rooms    string `json:"rooms,omitempty"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

// ColumnInferencer finds role columns in sheets with no fixed schema
type ColumnInferencer struct {
	keywords map[Role][]string
}

// NewColumnInferencer builds an inferencer from keyword configuration
func NewColumnInferencer(kw config.ColumnKeywords) *ColumnInferencer {
	return &ColumnInferencer{
		keywords: map[Role][]string{
			RolePrice:    lowerAll(kw.Price),
			RoleSize:     lowerAll(kw.Size),
			RoleRooms:    lowerAll(kw.Rooms),
			RoleLocation: lowerAll(kw.Location),
			RoleStatus:   lowerAll(kw.Status),
			RoleUnit:     lowerAll(kw.Unit),
		},
	}
}

// Find returns the first header that contains, or is contained by, one of the
// role's keywords. Keywords are tried in priority order; within a keyword,
// headers are tried in source order.
func (ci *ColumnInferencer) Find(columns []string, role Role) (string, bool) {
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = strings.ToLower(strings.TrimSpace(c))
	}

	for _, kw := range ci.keywords[role] {
		for i, h := range headers {
			if h == "" {
				continue
			}
			if strings.Contains(h, kw) || strings.Contains(kw, h) {
				return columns[i], true
			}
		}
	}
	return "", false
}

// Infer resolves every role for a table. A header claimed by an earlier role
// is not reused for a later one.
func (ci *ColumnInferencer) Infer(columns []string) Columns {
	var out Columns
	taken := make(map[string]bool)

	pick := func(role Role) string {
		free := make([]string, 0, len(columns))
		for _, c := range columns {
			if !taken[c] {
				free = append(free, c)
			}
		}
		col, ok := ci.Find(free, role)
		if !ok {
			return ""
		}
		taken[col] = true
		return col
	}

	out.Price = pick(RolePrice)
	out.Size = pick(RoleSize)
	out.Rooms = pick(RoleRooms)
	out.Location = pick(RoleLocation)
	out.Status = pick(RoleStatus)
	out.Unit = pick(RoleUnit)
	return out
}
