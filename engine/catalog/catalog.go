// Package catalog defines the read-only domain entities the engine answers
// questions about: drinkware products and coffee outlets. Catalogues are
// loaded once at startup and never mutated by the engine.
package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Material is the closed vocabulary for product materials.
type Material string

const (
	MaterialStainlessSteel Material = "stainless-steel"
	MaterialCeramic        Material = "ceramic"
	MaterialAcrylic        Material = "acrylic"
	MaterialGlass          Material = "glass"
	MaterialOther          Material = "other"
)

var materialAliases = map[string]Material{
	"stainless-steel": MaterialStainlessSteel,
	"stainless steel": MaterialStainlessSteel,
	"stainless":       MaterialStainlessSteel,
	"steel":           MaterialStainlessSteel,
	"metal":           MaterialStainlessSteel,
	"ceramic":         MaterialCeramic,
	"porcelain":       MaterialCeramic,
	"acrylic":         MaterialAcrylic,
	"plastic":         MaterialAcrylic,
	"glass":           MaterialGlass,
	"other":           MaterialOther,
}

// ParseMaterial maps a free-text token to the closed material vocabulary.
func ParseMaterial(s string) (Material, bool) {
	m, ok := materialAliases[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

// Feature is the closed vocabulary for product features.
type Feature string

const (
	FeatureLeakProof     Feature = "leak-proof"
	FeatureDishwasher    Feature = "dishwasher-safe"
	FeatureMicrowave     Feature = "microwave-safe"
	FeatureDoubleWall    Feature = "double-wall-insulation"
	FeatureScrewOnLid    Feature = "screw-on-lid"
	FeatureCarCupHolder  Feature = "car-cup-holder"
	FeatureBPAFree       Feature = "bpa-free"
	FeatureKeepsCold     Feature = "keeps-cold"
	FeatureKeepsHot      Feature = "keeps-hot"
	FeatureSpillProof    Feature = "spill-proof"
	FeatureErgonomicGrip Feature = "ergonomic-grip"
)

var featureAliases = map[string]Feature{
	"leak-proof":             FeatureLeakProof,
	"leak proof":             FeatureLeakProof,
	"leakproof":              FeatureLeakProof,
	"dishwasher-safe":        FeatureDishwasher,
	"dishwasher safe":        FeatureDishwasher,
	"dishwasher":             FeatureDishwasher,
	"microwave-safe":         FeatureMicrowave,
	"microwave safe":         FeatureMicrowave,
	"microwavable":           FeatureMicrowave,
	"double-wall-insulation": FeatureDoubleWall,
	"double wall":            FeatureDoubleWall,
	"double-wall":            FeatureDoubleWall,
	"insulated":              FeatureDoubleWall,
	"insulation":             FeatureDoubleWall,
	"screw-on-lid":           FeatureScrewOnLid,
	"screw-on lid":           FeatureScrewOnLid,
	"screw lid":              FeatureScrewOnLid,
	"car-cup-holder":         FeatureCarCupHolder,
	"car cup holder":         FeatureCarCupHolder,
	"cup holder":             FeatureCarCupHolder,
	"car holder":             FeatureCarCupHolder,
	"bpa-free":               FeatureBPAFree,
	"bpa free":               FeatureBPAFree,
	"keeps-cold":             FeatureKeepsCold,
	"keeps cold":             FeatureKeepsCold,
	"cold retention":         FeatureKeepsCold,
	"keeps-hot":              FeatureKeepsHot,
	"keeps hot":              FeatureKeepsHot,
	"heat retention":         FeatureKeepsHot,
	"spill-proof":            FeatureSpillProof,
	"spill proof":            FeatureSpillProof,
	"ergonomic-grip":         FeatureErgonomicGrip,
	"ergonomic grip":         FeatureErgonomicGrip,
	"ergonomic":              FeatureErgonomicGrip,
}

// ParseFeature maps a free-text token to the closed feature vocabulary.
func ParseFeature(s string) (Feature, bool) {
	f, ok := featureAliases[strings.ToLower(strings.TrimSpace(s))]
	return f, ok
}

// Service is the closed vocabulary for outlet services.
type Service string

const (
	ServiceDineIn    Service = "dine-in"
	ServiceTakeaway  Service = "takeaway"
	ServiceDelivery  Service = "delivery"
	ServiceDriveThru Service = "drive-thru"
	ServiceWifi      Service = "wifi"
	Service24Hour    Service = "24-hour"
)

var serviceAliases = map[string]Service{
	"dine-in":    ServiceDineIn,
	"dine in":    ServiceDineIn,
	"dinein":     ServiceDineIn,
	"eat in":     ServiceDineIn,
	"seating":    ServiceDineIn,
	"takeaway":   ServiceTakeaway,
	"take away":  ServiceTakeaway,
	"take-away":  ServiceTakeaway,
	"takeout":    ServiceTakeaway,
	"take out":   ServiceTakeaway,
	"delivery":   ServiceDelivery,
	"deliver":    ServiceDelivery,
	"drive-thru": ServiceDriveThru,
	"drive thru": ServiceDriveThru,
	"drivethru":  ServiceDriveThru,
	"drive-through": ServiceDriveThru,
	"drive through": ServiceDriveThru,
	"wifi":          ServiceWifi,
	"wi-fi":         ServiceWifi,
	"internet":      ServiceWifi,
	"24-hour":       Service24Hour,
	"24 hour":       Service24Hour,
	"24 hours":      Service24Hour,
	"24hr":          Service24Hour,
	"24/7":          Service24Hour,
}

// ParseService maps a free-text token to the closed service vocabulary.
func ParseService(s string) (Service, bool) {
	v, ok := serviceAliases[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// Product is a single catalogue entry. Name is the unique key.
type Product struct {
	Name         string    `json:"name"`
	PriceDisplay string    `json:"price"`
	Price        float64   `json:"numeric_price"`
	RegularPrice float64   `json:"regular_price,omitempty"` // zero means no pre-discount price
	Category     string    `json:"category,omitempty"`
	Capacity     string    `json:"capacity,omitempty"`
	Material     Material  `json:"material,omitempty"`
	Colors       []string  `json:"colors,omitempty"`
	Features     []Feature `json:"features,omitempty"`
	Collection   string    `json:"collection,omitempty"`
	Promotion    string    `json:"promotion,omitempty"`
	OnSale       bool      `json:"on_sale,omitempty"`
}

// Validate checks the catalogue invariants for one product.
func (p *Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("product has no name")
	}
	if p.Price < 0 {
		return fmt.Errorf("product %q: negative price %.2f", p.Name, p.Price)
	}
	if p.RegularPrice != 0 && p.Price > p.RegularPrice {
		return fmt.Errorf("product %q: price %.2f exceeds regular price %.2f", p.Name, p.Price, p.RegularPrice)
	}
	if p.Material != "" {
		if _, ok := materialAliases[string(p.Material)]; !ok {
			return fmt.Errorf("product %q: unknown material %q", p.Name, p.Material)
		}
	}
	for _, f := range p.Features {
		if _, ok := featureAliases[string(f)]; !ok {
			return fmt.Errorf("product %q: unknown feature %q", p.Name, f)
		}
	}
	return nil
}

// Outlet is a single registry entry. Hours maps a lowercase English day name
// ("monday".."sunday") to a raw "HH:MM - HH:MM" range.
type Outlet struct {
	Name     string            `json:"name"`
	Address  string            `json:"address"`
	Hours    map[string]string `json:"hours,omitempty"`
	Services []Service         `json:"services,omitempty"`
}

// Validate checks the registry invariants for one outlet.
func (o *Outlet) Validate() error {
	if o.Name == "" || o.Address == "" {
		return fmt.Errorf("outlet %q: name and address are required", o.Name)
	}
	for _, s := range o.Services {
		if _, ok := serviceAliases[string(s)]; !ok {
			return fmt.Errorf("outlet %q: unknown service %q", o.Name, s)
		}
	}
	return nil
}

// HasService reports whether the outlet offers the given service.
func (o *Outlet) HasService(s Service) bool {
	for _, have := range o.Services {
		if have == s {
			return true
		}
	}
	return false
}

// HoursRange holds opening hours as minutes since midnight.
type HoursRange struct {
	Open  int
	Close int
}

// HoursOn resolves the outlet's hours for a weekday. The raw string is
// returned alongside so callers can fall back to it verbatim when parsing
// fails (ok == false).
func (o *Outlet) HoursOn(day time.Weekday) (HoursRange, string, bool) {
	raw, exists := o.Hours[strings.ToLower(day.String())]
	if !exists {
		return HoursRange{}, "", false
	}
	hr, ok := ParseHoursRange(raw)
	return hr, raw, ok
}

// ParseHoursRange parses "HH:MM - HH:MM" (spacing around the dash optional).
func ParseHoursRange(raw string) (HoursRange, bool) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return HoursRange{}, false
	}
	open, ok := parseHHMM(strings.TrimSpace(parts[0]))
	if !ok {
		return HoursRange{}, false
	}
	cls, ok := parseHHMM(strings.TrimSpace(parts[1]))
	if !ok {
		return HoursRange{}, false
	}
	return HoursRange{Open: open, Close: cls}, true
}

func parseHHMM(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 24 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// FormatClock renders minutes-since-midnight as "H:MM AM/PM".
func FormatClock(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	h, m := minutes/60, minutes%60
	suffix := "AM"
	switch {
	case h == 0:
		h = 12
	case h == 12:
		suffix = "PM"
	case h > 12:
		h -= 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", h, m, suffix)
}
