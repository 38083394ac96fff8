package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
)

type defaultCategory struct {
	name          string
	color         string
	subcategories []string
}

// The stock taxonomy a new user starts with. Subcategories inherit
// the parent's color.
var defaultCategories = []defaultCategory{
	{"Food & Dining", "#FF6B6B", []string{"Restaurants", "Groceries", "Coffee & Tea", "Fast Food"}},
	{"Transportation", "#4ECDC4", []string{"Gas", "Public Transit", "Ride Share", "Parking"}},
	{"Shopping", "#45B7D1", []string{"Clothing", "Electronics", "Home & Garden", "General"}},
	{"Entertainment", "#FFA07A", []string{"Movies", "Music", "Games", "Sports"}},
	{"Bills & Utilities", "#98D8C8", []string{"Electricity", "Water", "Internet", "Phone"}},
	{"Health & Fitness", "#F7DC6F", []string{"Medical", "Pharmacy", "Gym", "Wellness"}},
	{"Travel", "#BB8FCE", []string{"Hotels", "Flights", "Car Rental", "Activities"}},
	{"Education", "#85C1E9", []string{"Books", "Courses", "Supplies", "Tuition"}},
	{"Income", "#82E0AA", []string{"Salary", "Freelance", "Investment", "Other"}},
	// "Investment" also appears here, but category names are unique per
	// user, so only the Income child is seeded.
	{"Savings", "#F8C471", []string{"Emergency Fund", "Vacation", "Retirement", "Investment"}},
}

// InitDefaultCategories seeds the stock category tree for a user.
// Names that already exist are left alone, so calling it again is
// safe.
func InitDefaultCategories(ctx context.Context, store Store, userID int64) error {
	existing, err := store.ListCategoriesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	byName := make(map[string]core.Category, len(existing))
	for _, c := range existing {
		byName[strings.ToLower(c.Name)] = c
	}

	created := 0
	for _, dc := range defaultCategories {
		parent, ok := byName[strings.ToLower(dc.name)]
		if !ok {
			parent, err = store.CreateCategory(ctx, core.Category{
				UserID: userID,
				Name:   dc.name,
				Color:  dc.color,
			})
			if err != nil {
				return fmt.Errorf("create category %q: %w", dc.name, err)
			}
			byName[strings.ToLower(parent.Name)] = parent
			created++
		}
		for _, sub := range dc.subcategories {
			if _, ok := byName[strings.ToLower(sub)]; ok {
				continue
			}
			c, err := store.CreateCategory(ctx, core.Category{
				UserID:   userID,
				Name:     sub,
				Color:    dc.color,
				ParentID: parent.ID,
			})
			if err != nil {
				return fmt.Errorf("create category %q: %w", sub, err)
			}
			byName[strings.ToLower(c.Name)] = c
			created++
		}
	}

	if created > 0 {
		slog.InfoContext(ctx, "Default categories created",
			"user_id", userID,
			"count", created)
	}
	return nil
}
