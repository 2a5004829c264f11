package model

import (
	"fmt"
	"sort"
	"strings"
)

// Mode selects how a collection plan is derived from a requested range.
type Mode string

const (
	// ModeMissing collects only units absent from the store.
	ModeMissing Mode = "missing"
	// ModeFull collects every unit in the range regardless of stored data.
	ModeFull Mode = "full"
	// ModeRefresh collects missing units plus the most recent stored unit,
	// to pick up late corrections published after the original fetch.
	ModeRefresh Mode = "refresh"
)

// Valid reports whether the mode is known.
func (m Mode) Valid() bool {
	return m == ModeMissing || m == ModeFull || m == ModeRefresh
}

// ParseMode parses a CLI mode string.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q (want missing, full, or refresh)", s)
	}
	return m, nil
}

// PlanItem is one contiguous slice of work with its estimated cost
// (one fetch per day in the range).
type PlanItem struct {
	Range DateRange
	Cost  int
}

// CollectionPlan is the ordered work list for one run. It is ephemeral:
// rebuilt at the start of every run, never persisted.
type CollectionPlan struct {
	Mode   Mode
	League string
	Items  []PlanItem
}

// NewCollectionPlan builds a plan from contiguous ranges, assigning each
// item its day-count cost and sorting ascending by cost (then start date)
// so cheap units surface first and failures show up quickly.
func NewCollectionPlan(mode Mode, league string, ranges []DateRange) *CollectionPlan {
	items := make([]PlanItem, 0, len(ranges))
	for _, r := range ranges {
		items = append(items, PlanItem{Range: r, Cost: r.Days()})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Cost != items[j].Cost {
			return items[i].Cost < items[j].Cost
		}
		return items[i].Range.Start.Before(items[j].Range.Start)
	})
	return &CollectionPlan{Mode: mode, League: league, Items: items}
}

// Units flattens the plan into individual units, ascending by date.
// Workers process dates oldest-first regardless of item ordering.
func (p *CollectionPlan) Units() []DateUnit {
	var units []DateUnit
	for _, item := range p.Items {
		units = append(units, item.Range.Units()...)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Before(units[j]) })
	return units
}

// TotalCost returns the summed cost of all items.
func (p *CollectionPlan) TotalCost() int {
	total := 0
	for _, item := range p.Items {
		total += item.Cost
	}
	return total
}

// Empty reports whether the plan has no work.
func (p *CollectionPlan) Empty() bool { return len(p.Items) == 0 }
