package model

// Feedback is the driver's post-hoc report on a scored offer.
type Feedback string

const (
	FeedbackFollowed Feedback = "FOLLOWED"
	FeedbackIgnored  Feedback = "IGNORED"
)

// Offer is a persisted dispatch offer together with the recommendation
// issued for it. Append-only except for the feedback fields, which stay
// null until the driver explicitly reports.
type Offer struct {
	ID          int64    `json:"id"`
	SessionID   *int64   `json:"sessionId,omitempty"`
	Platform    Platform `json:"platform"`
	PickupZone  string   `json:"pickupZone"`
	DestZone    string   `json:"destZone"`
	Fare        float64  `json:"fare"`
	ETAMinutes  float64  `json:"etaMinutes"`
	DistanceKm  *float64 `json:"distanceKm,omitempty"`
	Surge       bool     `json:"surge"`
	Note        string   `json:"note,omitempty"`
	CreatedAtMs int64    `json:"createdAtMs"`
	TimeRegime  string   `json:"timeRegime"`
	DayType     string   `json:"dayType"`

	RecommendationAction     string `json:"recommendationAction,omitempty"`
	RecommendationConfidence string `json:"recommendationConfidence,omitempty"`
	ModelVersion             string `json:"modelVersion"`
	// ScoreComponents is the serialized component breakdown kept for audit.
	ScoreComponents string `json:"scoreComponents,omitempty"`

	Feedback       *Feedback `json:"feedback,omitempty"`
	ActualFare     *float64  `json:"actualFare,omitempty"`
	ActualDuration *float64  `json:"actualDurationMin,omitempty"`
}

// BucketStats aggregates persisted offers sharing a
// (destination zone, time regime, day type, platform) bucket.
// Derived on demand, never stored.
type BucketStats struct {
	Platform          Platform `json:"platform"`
	DestZone          string   `json:"destZone"`
	TimeRegime        string   `json:"timeRegime"`
	DayType           string   `json:"dayType"`
	SampleCount       int      `json:"sampleCount"`
	RecentSampleCount int      `json:"recentSampleCount"`
	AvgRevPerHour     float64  `json:"avgRevPerHour"`
	AcceptanceRatio   float64  `json:"acceptanceRatio"`
}

// MoneyProof compares recent earnings when the driver followed
// recommendations against the overall baseline.
type MoneyProof struct {
	BaselineHourly float64 `json:"baselineHourly"`
	FollowedHourly float64 `json:"followedHourly"`
	BaselineCount  int     `json:"baselineCount"`
	FollowedCount  int     `json:"followedCount"`
}
