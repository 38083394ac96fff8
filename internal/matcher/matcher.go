// Package matcher assigns a spending category to a transaction. It is
// pure: callers pass the user's category set and get back a category
// and a confidence score, or no match.
//
// Precedence encodes a trust hierarchy: provider-supplied category
// metadata outranks description keywords, which outrank the blind
// Income/Shopping fallbacks. The fallbacks keep budget aggregation
// total-complete at the cost of precision.
package matcher

import (
	"strings"

	"fintrack/internal/core"
)

// Confidence tiers. Provider metadata is more trustworthy than text
// heuristics, so its matches score higher.
const (
	ConfidenceSubcategory      = 0.95
	ConfidenceProviderCategory = 0.90
	ConfidenceKeyword          = 0.80
)

// Result is a successful match.
type Result struct {
	Category   core.Category
	Confidence float64
}

// Match finds the best-fit category for tx among categories. The second
// return value is false when nothing matched at any tier; an
// uncategorized transaction is not an error.
func Match(tx core.Transaction, categories []core.Category) (Result, bool) {
	if len(categories) == 0 {
		return Result{}, false
	}

	// Tier 1: provider-supplied category metadata. A subcategory hit is
	// finer-grained than a category hit and scores higher.
	if tx.Category != "" {
		if tx.Subcategory != "" {
			if cat, ok := findContaining(categories, tx.Subcategory); ok {
				return Result{Category: cat, Confidence: ConfidenceSubcategory}, true
			}
		}
		if cat, ok := findContaining(categories, tx.Category); ok {
			return Result{Category: cat, Confidence: ConfidenceProviderCategory}, true
		}
	}

	// Tier 2: keyword buckets over the description. Within a matched
	// bucket an exact category-name match beats a substring match; a
	// bucket whose name resolves to no category falls through to the
	// next bucket.
	description := strings.ToLower(tx.Description)
	for _, b := range buckets {
		if !anyKeyword(description, b.keywords) {
			continue
		}
		if cat, ok := findExact(categories, b.name); ok {
			return Result{Category: cat, Confidence: ConfidenceKeyword}, true
		}
		if cat, ok := findSubstring(categories, b.name); ok {
			return Result{Category: cat, Confidence: ConfidenceKeyword}, true
		}
	}

	// Tier 3: positive amounts default to the Income category.
	if tx.Amount.Cents > 0 {
		if cat, ok := findExact(categories, "Income"); ok {
			return Result{Category: cat, Confidence: ConfidenceKeyword}, true
		}
	}

	// Tier 4: final expense fallback.
	if cat, ok := findExact(categories, "Shopping"); ok {
		return Result{Category: cat, Confidence: ConfidenceKeyword}, true
	}

	return Result{}, false
}

func anyKeyword(description string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(description, k) {
			return true
		}
	}
	return false
}

// findExact matches the category name case-insensitively.
func findExact(categories []core.Category, name string) (core.Category, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return core.Category{}, false
}

// findSubstring matches categories whose name contains needle.
func findSubstring(categories []core.Category, needle string) (core.Category, bool) {
	needle = strings.ToLower(needle)
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			return c, true
		}
	}
	return core.Category{}, false
}

// findContaining matches provider metadata against category names:
// a category named "Restaurants" matches provider string "Restaurants"
// and a category named "Gas Stations" matches provider "Gas".
func findContaining(categories []core.Category, providerString string) (core.Category, bool) {
	if exact, ok := findExact(categories, providerString); ok {
		return exact, true
	}
	needle := strings.ToLower(providerString)
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			return c, true
		}
	}
	return core.Category{}, false
}
