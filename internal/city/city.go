// Package city holds the static catalog of cities shown on the clock map.
package city

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/worldclock/internal/locale"
)

// Position is a display hint in percent of the map's width (X) and height (Y).
type Position struct {
	X float64 `json:"x" validate:"gte=0,lte=100"`
	Y float64 `json:"y" validate:"gte=0,lte=100"`
}

// City is an immutable catalog entry.
type City struct {
	ID       string                     `json:"id" validate:"required,max=64"`
	TimeZone string                     `json:"timezone" validate:"required,timezone"`
	Labels   map[locale.Language]string `json:"labels" validate:"required"`
	Position Position                   `json:"position"`
}

// Label returns the display name in lang, falling back to English and then the ID.
func (c City) Label(lang locale.Language) string {
	if label := c.Labels[lang]; label != "" {
		return label
	}
	if label := c.Labels[locale.English]; label != "" {
		return label
	}
	return c.ID
}

func (c City) clone() City {
	labels := make(map[locale.Language]string, len(c.Labels))
	for k, v := range c.Labels {
		labels[k] = v
	}
	c.Labels = labels
	return c
}

// FieldError describes one invalid attribute of a catalog entry.
type FieldError struct {
	City    string `json:"city"`
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError collects every problem found while building a Catalog.
type ValidationError struct {
	Errors []FieldError
}

func (ve ValidationError) Error() string {
	parts := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		parts = append(parts, fmt.Sprintf("%s.%s: %s", fe.City, fe.Field, fe.Message))
	}
	return fmt.Sprintf("invalid city catalog (%d error(s)): %s", len(ve.Errors), strings.Join(parts, "; "))
}

// Catalog is an ordered, read-only set of cities.
type Catalog struct {
	order []string
	byID  map[string]City
}

// NewCatalog validates cities and freezes them into a Catalog.
func NewCatalog(cities []City) (*Catalog, error) {
	if len(cities) == 0 {
		return nil, errors.New("city catalog is empty")
	}
	v := validator.New()
	var problems []FieldError
	cat := &Catalog{byID: make(map[string]City, len(cities))}
	for i, c := range cities {
		name := c.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		problems = append(problems, validateCity(v, name, c)...)
		if _, dup := cat.byID[c.ID]; dup && c.ID != "" {
			problems = append(problems, FieldError{City: name, Field: "ID", Tag: "unique", Message: "duplicate city id"})
			continue
		}
		cat.order = append(cat.order, c.ID)
		cat.byID[c.ID] = c.clone()
	}
	if len(problems) > 0 {
		return nil, ValidationError{Errors: problems}
	}
	return cat, nil
}

func validateCity(v *validator.Validate, name string, c City) []FieldError {
	var out []FieldError
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []FieldError{{City: name, Field: "", Tag: "invalid", Message: err.Error()}}
		}
		for _, fe := range fieldErrs {
			out = append(out, FieldError{
				City:    name,
				Field:   fe.Field(),
				Tag:     fe.Tag(),
				Message: msgForTag(fe.Tag(), fe.Param()),
			})
		}
	}
	if strings.EqualFold(c.TimeZone, "local") {
		out = append(out, FieldError{City: name, Field: "TimeZone", Tag: "timezone", Message: "host-local zone is not allowed"})
	}
	for _, lang := range locale.Supported() {
		if strings.TrimSpace(c.Labels[lang]) == "" {
			out = append(out, FieldError{
				City:    name,
				Field:   "Labels",
				Tag:     "required",
				Message: fmt.Sprintf("missing %q label", lang),
			})
		}
	}
	return out
}

func msgForTag(tag, param string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "timezone":
		return "must be a valid IANA timezone"
	case "gte":
		return fmt.Sprintf("must be at least %s", param)
	case "lte":
		return fmt.Sprintf("must not exceed %s", param)
	case "max":
		return fmt.Sprintf("must not exceed %s characters", param)
	default:
		return fmt.Sprintf("failed validation on rule: %s", tag)
	}
}

// Get returns the city with the given id.
func (c *Catalog) Get(id string) (City, bool) {
	city, ok := c.byID[id]
	if !ok {
		return City{}, false
	}
	return city.clone(), true
}

// All returns the cities in catalog order.
func (c *Catalog) All() []City {
	out := make([]City, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].clone())
	}
	return out
}

// Len reports the number of cities.
func (c *Catalog) Len() int {
	return len(c.order)
}
