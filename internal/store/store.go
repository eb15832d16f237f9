package store

import (
	"context"

	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/receipt"
	"github.com/driveradar/driveradar/internal/zone"
)

// OfferFilter specifies criteria for listing offers.
type OfferFilter struct {
	Platform model.Platform `json:"platform,omitempty"`
	DestZone string         `json:"dest_zone,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// EMAStat is the exponentially weighted revenue-per-hour estimate for
// one (platform, zone, day type, time regime) bucket.
type EMAStat struct {
	Platform      model.Platform `json:"platform"`
	Zone          string         `json:"zone"`
	DayType       string         `json:"dayType"`
	TimeRegime    string         `json:"timeRegime"`
	EMARevPerHour float64        `json:"emaRevPerHour"`
	SampleCount   int            `json:"sampleCount"`
	UpdatedAtMs   int64          `json:"updatedAtMs"`
}

// Store defines the local persistence interface.
type Store interface {
	// Sessions
	StartSession(ctx context.Context, nowMs int64) (*model.Session, error)
	StopSession(ctx context.Context, nowMs int64) (*model.Session, error)
	ActiveSession(ctx context.Context) (*model.Session, error)

	// Zone dwells
	OpenDwell(ctx context.Context, sessionID int64, zoneID string, startMs int64, timeRegime, dayType string) (*model.ZoneDwell, error)
	CloseDwell(ctx context.Context, dwellID int64, endMs int64, distanceEstKm float64) error
	OpenDwellFor(ctx context.Context, sessionID int64) (*model.ZoneDwell, error)
	DwellsForSession(ctx context.Context, sessionID int64) ([]model.ZoneDwell, error)

	// Offers
	SaveOffer(ctx context.Context, offer *model.Offer) error
	RecordFeedback(ctx context.Context, offerID int64, fb model.Feedback, actualFare, actualDurationMin *float64) error
	GetOffer(ctx context.Context, id int64) (*model.Offer, error)
	RecentOffers(ctx context.Context, limit int) ([]model.Offer, error)
	ListOffers(ctx context.Context, filter OfferFilter) ([]model.Offer, error)
	StatsForBucket(ctx context.Context, platform model.Platform, destZone, timeRegime, dayType string) (*model.BucketStats, error)
	MoneyProof(ctx context.Context, nowMs int64) (*model.MoneyProof, error)

	// Earnings
	AddEarnings(ctx context.Context, log model.EarningsLog) error
	ListEarnings(ctx context.Context) ([]model.EarningsLog, error)
	DeleteEarnings(ctx context.Context, id string) error

	// Preferences
	Preferences(ctx context.Context) (model.Preferences, error)
	SavePreferences(ctx context.Context, prefs model.Preferences) error

	// Zone detector
	DetectorState(ctx context.Context) (zone.State, error)
	SaveDetectorState(ctx context.Context, state zone.State) error

	// Receipt queue
	PushReceipt(ctx context.Context, parsed receipt.Parsed) error
	ListReceipts(ctx context.Context, limit int) ([]receipt.Parsed, error)

	// EMA cache
	UpsertEMA(ctx context.Context, platform model.Platform, zone, dayType, timeRegime string, sampleRevPerHour float64, nowMs int64) error
	GetEMA(ctx context.Context, platform model.Platform, zone, dayType, timeRegime string) (*EMAStat, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	DeleteAllData(ctx context.Context) error
	Close() error
}
