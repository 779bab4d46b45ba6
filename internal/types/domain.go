package types

import (
	"time"
)

// DateLayout is the canonical day-bucket format used for every daily counter
// and for batch expiry dates. All date-keyed state shares this layout so that
// fixtures and persisted values compare bit-exactly.
const DateLayout = "2006-01-02"

// Batch is a single expiry-dated stock lot inside a grocery item. A batch
// with Quantity <= 0 is logically removed and ignored by every rule.
// ExpiryDate is stored as a "2006-01-02" string; an unparseable or empty
// value is skipped by the consumer, never treated as fatal.
type Batch struct {
	ExpiryDate string `json:"expiryDate"`
	Quantity   int    `json:"quantity"`
}

// GroceryItem is the per-user grocery document. The JSON shape mirrors the
// stored document exactly, including the uppercase rate field names.
//
// Invariants: TotalDays >= 1 always; ACR = TotalConsumed/TotalDays when
// TotalConsumed > 0, else 0.
type GroceryItem struct {
	ID            string     `json:"-"`
	Name          string     `json:"name"`
	Category      string     `json:"category,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Batches       []Batch    `json:"batches"`
	TotalConsumed int        `json:"totalConsumed"`
	TotalDays     int        `json:"totalDays"`
	LastUsed      *time.Time `json:"lastUsed,omitempty"`
	LastUpdated   *time.Time `json:"lastUpdated,omitempty"`
	ACR           float64    `json:"ACR"`
	ECR           float64    `json:"ECR"`
	BaseRate      float64    `json:"baseRate"`
	Barcode       string     `json:"barcode,omitempty"`
}

// TotalQuantity sums the positive batch quantities.
func (g *GroceryItem) TotalQuantity() int {
	total := 0
	for _, b := range g.Batches {
		if b.Quantity > 0 {
			total += b.Quantity
		}
	}
	return total
}

// SeenState records the last day the user acknowledged a notification.
// Namespace: seen_notifications.
type SeenState struct {
	LastSeenDate string
}

// SnoozeState is the layered retry/snooze episode state.
// Namespace: active_snooze.
//
// RetryCount semantics: -1 means "not yet delivered under this snooze
// episode"; it is clamped to [-1, MaxSnoozeRetries] and never auto-increments
// past the max (exhausted). A SnoozeDate different from today means the
// snooze auto-expired at the day rollover.
type SnoozeState struct {
	IsSnoozed  bool
	SnoozeDate string
	NextAt     time.Time
	RetryCount int
}

// NotifyState stamps the most recent successful auto/watchdog delivery.
// Namespace: notify_state.
type NotifyState struct {
	LastNotifyDate string
	LastNotifyTime time.Time
}

// AttentionLists is the cached scanner output persisted for UI display,
// invalidated on date rollover. Namespace: attention_items.
type AttentionLists struct {
	Expired   []string
	Low       []string
	Forgotten []string
	Date      string
}

// Empty reports whether no category has any item.
func (a AttentionLists) Empty() bool {
	return len(a.Expired) == 0 && len(a.Low) == 0 && len(a.Forgotten) == 0
}

// UserPrefs holds the user-tunable notification settings.
// Namespace: UserPrefs.
type UserPrefs struct {
	MaxNotificationsPerDay int
}

// DefaultMaxNotificationsPerDay is used when the preference was never set.
const DefaultMaxNotificationsPerDay = 3

// MaxSnoozeRetries caps the automatic redeliveries inside one snooze episode.
// A RetryCount at this value means the episode is exhausted.
const MaxSnoozeRetries = 2

// SnoozePreset is a named snooze choice offered to the user. Value is either
// a duration in milliseconds ("900000") or an absolute wall-clock time
// ("20:30", distinguished by the colon), matching the stored representation.
type SnoozePreset struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DefaultSnoozePresets are always seeded when missing.
func DefaultSnoozePresets() []SnoozePreset {
	return []SnoozePreset{
		{Label: "15 min", Value: "900000"},
		{Label: "30 min", Value: "1800000"},
		{Label: "1 hr", Value: "3600000"},
	}
}
