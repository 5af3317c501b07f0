package service

import (
	"fmt"
	"sort"
	"strings"

	"leadmatch/internal/config"
	"leadmatch/internal/inventory"
	"leadmatch/internal/model"
)

// Match reason constants
const (
	ReasonPriceInRange   = "Price within budget"
	ReasonPriceUnderMax  = "Price under budget"
	ReasonPriceNearMax   = "Price slightly over budget"
	ReasonSizeMatch      = "Size match"
	ReasonSizeNear       = "Size close"
	ReasonRoomsMatch     = "Rooms match"
	ReasonRoomsAdjacent  = "Rooms off by one"
	ReasonLocationMatch  = "Location match"
	ReasonReadinessMatch = "Readiness match"
)

// Ranker scores inventory rows against client requirements
type Ranker struct {
	weights    config.RankingConfig
	normalizer *inventory.Normalizer
	inferencer *inventory.ColumnInferencer
}

// NewRanker creates a new ranker with specified weights
func NewRanker(weights config.RankingConfig, normalizer *inventory.Normalizer, inferencer *inventory.ColumnInferencer) *Ranker {
	return &Ranker{
		weights:    weights,
		normalizer: normalizer,
		inferencer: inferencer,
	}
}

// criteria is a requirement set parsed once per query
type criteria struct {
	budget    inventory.Range
	hasBudget bool
	size      inventory.Range
	hasSize   bool
	rooms     int
	hasRooms  bool
	location  string
	readiness string
}

func (r *Ranker) parse(req model.RequirementSet) criteria {
	var c criteria
	c.budget, c.hasBudget = r.normalizer.BudgetRange(req.Budget)
	c.size, c.hasSize = r.normalizer.SizeRange(req.Size)
	c.rooms, c.hasRooms = r.normalizer.RoomCount(req.Rooms)
	c.location = strings.ToLower(strings.TrimSpace(req.Location))
	c.readiness = strings.ToLower(strings.TrimSpace(req.Readiness))
	return c
}

// Rank returns matches [offset, offset+maxResults) of the diversity-capped,
// score-ordered candidate list. Rows that match nothing are dropped.
func (r *Ranker) Rank(snap *inventory.Snapshot, req model.RequirementSet, maxResults, offset int) []model.Match {
	if snap == nil || maxResults <= 0 {
		return nil
	}
	if offset < 0 {
		offset = 0
	}

	c := r.parse(req)
	candidates := make([]model.Match, 0)

	for _, supplier := range snap.Suppliers {
		table := snap.Tables[supplier]
		if table.Len() == 0 {
			continue
		}
		cols := r.inferencer.Infer(table.Columns)

		for i, row := range table.Rows {
			score, reasons := r.scoreRow(table, i, cols, c)
			if score == 0 {
				continue
			}
			candidates = append(candidates, model.Match{
				Supplier: supplier,
				Score:    score,
				Fields:   rowFields(table.Columns, row),
				Criteria: reasons,
				RowIndex: i,
				UnitID:   unitID(table, i, cols),
			})
		}
	}

	// Sort by score descending; encounter order breaks ties
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	limit := offset + maxResults
	diverse := make([]model.Match, 0, limit)
	perSupplier := make(map[string]int)
	for _, m := range candidates {
		if r.weights.DiversityCap > 0 && perSupplier[m.Supplier] >= r.weights.DiversityCap {
			continue
		}
		perSupplier[m.Supplier]++
		diverse = append(diverse, m)
		if len(diverse) >= limit {
			break
		}
	}

	if offset >= len(diverse) {
		return []model.Match{}
	}
	return diverse[offset:]
}

// scoreRow adds the weight of every criterion the row satisfies
func (r *Ranker) scoreRow(t *inventory.Table, i int, cols inventory.Columns, c criteria) (int, []string) {
	w := r.weights
	score := 0
	reasons := []string{}

	if c.hasBudget && cols.Price != "" {
		if price, ok := inventory.NormalizeAmount(t.Cell(i, cols.Price)); ok {
			switch {
			case c.budget.Contains(price):
				score += w.PriceInRange
				reasons = append(reasons, ReasonPriceInRange)
			case price <= c.budget.Max:
				score += w.PriceUnderMax
				reasons = append(reasons, ReasonPriceUnderMax)
			case price <= c.budget.Max*1.1:
				score += w.PriceNearMax
				reasons = append(reasons, ReasonPriceNearMax)
			}
		}
	}

	if c.hasSize && cols.Size != "" {
		if size, ok := inventory.NormalizeSize(t.Cell(i, cols.Size)); ok {
			switch {
			case c.size.Contains(size):
				score += w.SizeInRange
				reasons = append(reasons, ReasonSizeMatch)
			case c.size.Widen(0.1).Contains(size):
				score += w.SizeNearRange
				reasons = append(reasons, ReasonSizeNear)
			}
		}
	}

	if c.hasRooms && cols.Rooms != "" {
		if rooms, ok := r.normalizer.RoomCount(t.Cell(i, cols.Rooms)); ok {
			switch rooms - c.rooms {
			case 0:
				score += w.RoomsExact
				reasons = append(reasons, ReasonRoomsMatch)
			case 1, -1:
				score += w.RoomsAdjacent
				reasons = append(reasons, ReasonRoomsAdjacent)
			}
		}
	}

	if c.location != "" && cols.Location != "" {
		if locationMatches(c.location, strings.ToLower(t.Cell(i, cols.Location))) {
			score += w.LocationMatch
			reasons = append(reasons, ReasonLocationMatch)
		}
	}

	if c.readiness != "" && cols.Status != "" {
		if strings.Contains(strings.ToLower(t.Cell(i, cols.Status)), c.readiness) {
			score += w.ReadinessMatch
			reasons = append(reasons, ReasonReadinessMatch)
		}
	}

	return score, reasons
}

// locationMatches accepts the whole query or any of its words as a substring
func locationMatches(query, value string) bool {
	if value == "" {
		return false
	}
	if strings.Contains(value, query) {
		return true
	}
	for _, word := range strings.Fields(query) {
		if strings.Contains(value, word) {
			return true
		}
	}
	return false
}

func rowFields(columns, row []string) []model.Field {
	fields := make([]model.Field, 0, len(columns))
	for i, col := range columns {
		if col == "" || i >= len(row) {
			continue
		}
		fields = append(fields, model.Field{Column: col, Value: row[i]})
	}
	return fields
}

// unitID uses the inferred unit column, falling back to the sheet row number
func unitID(t *inventory.Table, i int, cols inventory.Columns) string {
	if id := strings.TrimSpace(t.Cell(i, cols.Unit)); id != "" {
		return id
	}
	return fmt.Sprintf("row %d", i+2)
}

// MatchSummaryText renders a match for the client
func MatchSummaryText(m model.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏢 %s\n", m.Supplier)
	for _, f := range m.Fields {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", f.Column, f.Value)
	}
	fmt.Fprintf(&b, "  📊 Совпадение: %d%%", m.Score)
	return b.String()
}
