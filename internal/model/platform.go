package model

// Platform identifies a dispatch platform a driver can run.
type Platform string

const (
	PlatformUber    Platform = "uber"
	PlatformBolt    Platform = "bolt"
	PlatformFreeNow Platform = "freenow"
)

// AllPlatforms returns the closed set of supported platforms in
// catalog order.
func AllPlatforms() []Platform {
	return []Platform{PlatformBolt, PlatformUber, PlatformFreeNow}
}

var platformDisplayNames = map[Platform]string{
	PlatformBolt:    "Bolt",
	PlatformUber:    "Uber",
	PlatformFreeNow: "FreeNow",
}

// DisplayName returns the human-facing platform name.
func (p Platform) DisplayName() string {
	if n, ok := platformDisplayNames[p]; ok {
		return n
	}
	return string(p)
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	_, ok := platformDisplayNames[p]
	return ok
}

// ZoneCategory classifies a zone's traffic character.
type ZoneCategory string

const (
	CategoryAirport     ZoneCategory = "airport"
	CategoryCenter      ZoneCategory = "center"
	CategoryResidential ZoneCategory = "residential"
)

// AllCategories returns the closed set of zone categories.
func AllCategories() []ZoneCategory {
	return []ZoneCategory{CategoryAirport, CategoryCenter, CategoryResidential}
}

// Valid reports whether c is one of the supported categories.
func (c ZoneCategory) Valid() bool {
	switch c {
	case CategoryAirport, CategoryCenter, CategoryResidential:
		return true
	}
	return false
}
