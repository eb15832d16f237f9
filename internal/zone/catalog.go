// Package zone holds the static zone catalog and GPS-to-zone detection.
package zone

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/driveradar/driveradar/internal/model"
)

// Def describes one named geographic catchment area with its
// behavioral defaults. Immutable reference data.
type Def struct {
	ID           string             `yaml:"id" json:"id"`
	Name         string             `yaml:"name" json:"name"`
	Category     model.ZoneCategory `yaml:"category" json:"category"`
	Lat          float64            `yaml:"lat" json:"lat"`
	Lng          float64            `yaml:"lng" json:"lng"`
	RadiusKm     float64            `yaml:"radius_km" json:"radiusKm"`
	Bias         string             `yaml:"bias" json:"bias"`
	StayUntilMin float64            `yaml:"stay_until_min" json:"stayUntilMin"`
	LeaveIfMin   float64            `yaml:"leave_if_min" json:"leaveIfMin"`
	// SuggestedNext lists the two zones worth repositioning to.
	SuggestedNext []string `yaml:"suggested_next" json:"suggestedNext"`
}

// Catalog is an ordered, immutable set of zone definitions. Catalog
// order is significant: detection ties break toward the lower index.
type Catalog struct {
	zones []Def
	byID  map[string]int
}

//go:embed zones.yaml
var defaultCatalogYAML []byte

// DefaultCatalog returns the shipped Krakow catalog.
func DefaultCatalog() *Catalog {
	c, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		// The embedded catalog is validated by tests; reaching this
		// means a broken build.
		panic(fmt.Sprintf("zone: embedded catalog invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a zone catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zone: read catalog %s", path)
	}
	return parseCatalog(raw)
}

func parseCatalog(raw []byte) (*Catalog, error) {
	var doc struct {
		Zones []Def `yaml:"zones"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "zone: parse catalog")
	}
	c := &Catalog{zones: doc.Zones, byID: make(map[string]int, len(doc.Zones))}
	for i, z := range doc.Zones {
		if err := validateDef(z); err != nil {
			return nil, err
		}
		if _, dup := c.byID[z.ID]; dup {
			return nil, eris.Errorf("zone: duplicate id %q", z.ID)
		}
		c.byID[z.ID] = i
	}
	// Suggested zones must resolve within the same catalog.
	for _, z := range c.zones {
		for _, next := range z.SuggestedNext {
			if _, ok := c.byID[next]; !ok {
				return nil, eris.Errorf("zone: %q suggests unknown zone %q", z.ID, next)
			}
		}
	}
	return c, nil
}

func validateDef(z Def) error {
	var errs []string
	if z.ID == "" {
		errs = append(errs, "id is required")
	}
	if z.Name == "" {
		errs = append(errs, "name is required")
	}
	if !z.Category.Valid() {
		errs = append(errs, fmt.Sprintf("category %q is not one of airport/center/residential", z.Category))
	}
	if z.RadiusKm <= 0 {
		errs = append(errs, "radius_km must be > 0")
	}
	if z.LeaveIfMin < z.StayUntilMin {
		errs = append(errs, "leave_if_min must be >= stay_until_min")
	}
	if len(errs) > 0 {
		return eris.Errorf("zone: invalid definition %q: %s", z.ID, strings.Join(errs, "; "))
	}
	return nil
}

// ByID returns the zone with the given id, or nil if unknown.
func (c *Catalog) ByID(id string) *Def {
	i, ok := c.byID[id]
	if !ok {
		return nil
	}
	return &c.zones[i]
}

// Name returns the display name for a zone id, falling back to the id.
func (c *Catalog) Name(id string) string {
	if z := c.ByID(id); z != nil {
		return z.Name
	}
	return id
}

// Category returns the zone's category, or "" if the id is unknown.
func (c *Catalog) Category(id string) model.ZoneCategory {
	if z := c.ByID(id); z != nil {
		return z.Category
	}
	return ""
}

// Zones returns the definitions in catalog order.
func (c *Catalog) Zones() []Def {
	return c.zones
}

// Len returns the number of zones.
func (c *Catalog) Len() int {
	return len(c.zones)
}
