package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCategory is returned for values outside the fixed category set.
var ErrInvalidCategory = errors.New("invalid category")

// Category is the closed set of receipt categories.
type Category string

const (
	CategoryGrocery     Category = "Grocery"
	CategoryClothing    Category = "Clothing"
	CategoryElectronics Category = "Electronics"
	CategoryHome        Category = "Home"
	CategoryRestaurant  Category = "Restaurant"
	CategoryHealth      Category = "Health"
	CategoryOther       Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryGrocery,
	CategoryClothing,
	CategoryElectronics,
	CategoryHome,
	CategoryRestaurant,
	CategoryHealth,
	CategoryOther,
}

// ParseCategory matches s against the category set ignoring case and
// surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
