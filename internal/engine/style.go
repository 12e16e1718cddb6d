package engine

import "github.com/scholarseek/engine/internal/models"

// Presentation lookup tables keyed by tagged variants. The UI resolves
// colors and icons through these instead of per-view switch logic.

// Style is a renderable hint for a category or urgency value.
type Style struct {
	Color string `json:"color"` // hex
	Icon  string `json:"icon"`
}

var categoryStyles = map[models.Category]Style{
	models.CategorySTEM:       {Color: "#2563EB", Icon: "flask"},
	models.CategoryArts:       {Color: "#DB2777", Icon: "palette"},
	models.CategoryHumanities: {Color: "#9333EA", Icon: "book"},
	models.CategoryBusiness:   {Color: "#059669", Icon: "briefcase"},
	models.CategoryGeneral:    {Color: "#64748B", Icon: "star"},
}

var urgencyStyles = map[models.Urgency]Style{
	models.UrgencyHigh:   {Color: "#DC2626", Icon: "alarm"},
	models.UrgencyMedium: {Color: "#D97706", Icon: "clock"},
	models.UrgencyLow:    {Color: "#16A34A", Icon: "leaf"},
}

// CategoryStyle returns the style for a category, defaulting to the
// general style for unknown values.
func CategoryStyle(cat models.Category) Style {
	if s, ok := categoryStyles[cat]; ok {
		return s
	}
	return categoryStyles[models.CategoryGeneral]
}

// UrgencyStyle returns the style for an urgency level, defaulting to low.
func UrgencyStyle(u models.Urgency) Style {
	if s, ok := urgencyStyles[u]; ok {
		return s
	}
	return urgencyStyles[models.UrgencyLow]
}
