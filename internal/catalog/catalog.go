// Package catalog describes the tiered service menu that the grid's service
// cell is filled from. A selection is stored in the cell as JSON; older rows
// hold free text and are shown as-is.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	FullSet = "Full Set"
	Refill  = "Refill"
	Other   = "Other"
)

// displaySeparator joins tiers in display text, e.g. "Refill → Natural → 1-7".
const displaySeparator = " → "

var (
	ErrMissingTier = errors.New("catalog: tier missing")
	ErrUnknownTier = errors.New("catalog: unknown option")
)

// Menu is the full option tree, served to the UI as-is.
type Menu struct {
	Tier1 []string            `json:"tier1"`
	Tier2 map[string][]string `json:"tier2"`
	// Tier3 applies only to Refill selections
	Tier3 []string `json:"tier3"`
}

var menu = Menu{
	Tier1: []string{FullSet, Refill, Other},
	Tier2: map[string][]string{
		FullSet: {"Natural", "Elegant", "Mega"},
		Refill:  {"Natural", "Elegant", "Mega"},
		Other:   {"Removal", "Bottom Set", "Demi Set"},
	},
	Tier3: []string{"1-7", "7-14", "15-28"},
}

// Default returns a copy of the service menu.
func Default() Menu {
	m := Menu{
		Tier1: append([]string(nil), menu.Tier1...),
		Tier2: make(map[string][]string, len(menu.Tier2)),
		Tier3: append([]string(nil), menu.Tier3...),
	}
	for k, v := range menu.Tier2 {
		m.Tier2[k] = append([]string(nil), v...)
	}
	return m
}

// Selection is one pick through the menu.
type Selection struct {
	Tier1 string `json:"tier1,omitempty"`
	Tier2 string `json:"tier2,omitempty"`
	Tier3 string `json:"tier3,omitempty"`
}

// Parse decodes a stored service cell. ok is false for empty or legacy
// free-text cells.
func Parse(raw string) (Selection, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] != '{' {
		return Selection{}, false
	}
	var s Selection
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Selection{}, false
	}
	return s, true
}

// Validate checks the selection against the menu. A Refill needs all three
// tiers; everything else stops at tier 2.
func (s Selection) Validate() error {
	if s.Tier1 == "" {
		return fmt.Errorf("%w: tier1", ErrMissingTier)
	}
	if !contains(menu.Tier1, s.Tier1) {
		return fmt.Errorf("%w: tier1 %q", ErrUnknownTier, s.Tier1)
	}
	if s.Tier2 == "" {
		return fmt.Errorf("%w: tier2", ErrMissingTier)
	}
	if !contains(menu.Tier2[s.Tier1], s.Tier2) {
		return fmt.Errorf("%w: tier2 %q for %s", ErrUnknownTier, s.Tier2, s.Tier1)
	}
	switch {
	case s.Tier1 == Refill && s.Tier3 == "":
		return fmt.Errorf("%w: tier3", ErrMissingTier)
	case s.Tier1 == Refill && !contains(menu.Tier3, s.Tier3):
		return fmt.Errorf("%w: tier3 %q", ErrUnknownTier, s.Tier3)
	case s.Tier1 != Refill && s.Tier3 != "":
		return fmt.Errorf("%w: tier3 only applies to %s", ErrUnknownTier, Refill)
	}
	return nil
}

// Encode renders the selection as it is stored in the service cell.
func (s Selection) Encode() string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Display joins the chosen tiers for humans.
func (s Selection) Display() string {
	if s.Tier1 == "" {
		return ""
	}
	parts := []string{s.Tier1}
	if s.Tier2 != "" {
		parts = append(parts, s.Tier2)
	}
	if s.Tier3 != "" {
		parts = append(parts, s.Tier3)
	}
	return strings.Join(parts, displaySeparator)
}

// DisplayService renders any stored service cell, legacy text included.
func DisplayService(raw string) string {
	if s, ok := Parse(raw); ok {
		return s.Display()
	}
	return raw
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
