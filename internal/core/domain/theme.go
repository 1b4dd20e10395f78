package domain

import "strings"

// Theme is one of the fixed subject categories assigned by the normalizer.
type Theme string

// Theme values.
const (
	ThemePolitics      Theme = "politics"
	ThemeEconomy       Theme = "economy"
	ThemeTechnology    Theme = "technology"
	ThemeScience       Theme = "science"
	ThemeHealth        Theme = "health"
	ThemeSociety       Theme = "society"
	ThemeCulture       Theme = "culture"
	ThemeSports        Theme = "sports"
	ThemeEnvironment   Theme = "environment"
	ThemeIncidents     Theme = "incidents"
	defaultThemeOnMiss       = ThemeSociety
)

// Themes lists every valid theme in display order.
var Themes = []Theme{
	ThemePolitics,
	ThemeEconomy,
	ThemeTechnology,
	ThemeScience,
	ThemeHealth,
	ThemeSociety,
	ThemeCulture,
	ThemeSports,
	ThemeEnvironment,
	ThemeIncidents,
}

// Valid reports whether t belongs to the closed theme set.
func (t Theme) Valid() bool {
	for _, known := range Themes {
		if t == known {
			return true
		}
	}

	return false
}

// ParseTheme maps free-form normalizer output onto the theme set.
// Unknown values fall back to ThemeSociety.
func ParseTheme(s string) Theme {
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}

	return defaultThemeOnMiss
}

// Importance bounds for normalizer scores.
const (
	MinImportance = 0
	MaxImportance = 100
)

// ClampImportance keeps a normalizer score inside [MinImportance, MaxImportance].
func ClampImportance(score int) int {
	switch {
	case score < MinImportance:
		return MinImportance
	case score > MaxImportance:
		return MaxImportance
	default:
		return score
	}
}
