package models

import "time"

type DeliveryType string

const (
	DeliveryDirect  DeliveryType = "direct"
	DeliveryDigest  DeliveryType = "digest"
	DeliverySummary DeliveryType = "summary"
	DeliveryFlash   DeliveryType = "flash"
)

func IsValidDeliveryType(t DeliveryType) bool {
	switch t {
	case DeliveryDirect, DeliveryDigest, DeliverySummary, DeliveryFlash:
		return true
	}
	return false
}

type FrequencyUnit string

const (
	UnitDay   FrequencyUnit = "day"
	UnitWeek  FrequencyUnit = "week"
	UnitMonth FrequencyUnit = "month"
)

// Frequency is the digest/summary delivery cadence.
type Frequency struct {
	N    int           `json:"n" db:"frequency_n"`
	Unit FrequencyUnit `json:"unit" db:"frequency_unit"`
}

// Interval converts the cadence to a duration. Months are a fixed 30 days;
// this matches the scheduling behavior shipped in production and is not
// calendar-accurate.
func (f Frequency) Interval() time.Duration {
	day := 24 * time.Hour
	switch f.Unit {
	case UnitDay:
		return time.Duration(f.N) * day
	case UnitWeek:
		return time.Duration(7*f.N) * day
	case UnitMonth:
		return time.Duration(30*f.N) * day
	}
	return 0
}

func IsValidFrequency(f Frequency) bool {
	if f.N <= 0 {
		return false
	}
	switch f.Unit {
	case UnitDay, UnitWeek, UnitMonth:
		return true
	}
	return false
}

// Mailbox is a subscription record plus its pending delivery queue. At most
// one mailbox exists per (user, project, app config, artifact index id,
// topic, is_flash) tuple; the store enforces this with a unique index.
//
// ArtifactIndexID nil means the subscription covers the whole tool; Topic
// nil means any topic. Flash mailboxes are ephemeral single-user inboxes and
// never participate in fan-out matching.
type Mailbox struct {
	ID          string  `json:"id" db:"id"`
	UserID      string  `json:"user_id" db:"user_id"`
	ProjectID   *string `json:"project_id,omitempty" db:"project_id"`
	AppConfigID *string `json:"app_config_id,omitempty" db:"app_config_id"`

	// Subscription filters
	ArtifactTitle   string  `json:"artifact_title,omitempty" db:"artifact_title"`
	ArtifactURL     string  `json:"artifact_url,omitempty" db:"artifact_url"`
	ArtifactIndexID *string `json:"artifact_index_id,omitempty" db:"artifact_index_id"`
	Topic           *string `json:"topic,omitempty" db:"topic"`

	// Delivery policy
	IsFlash       bool         `json:"is_flash" db:"is_flash"`
	Type          DeliveryType `json:"type" db:"type"`
	Frequency     Frequency    `json:"frequency"`
	NextScheduled time.Time    `json:"next_scheduled" db:"next_scheduled"`

	// Pending notification IDs, in append order.
	LastModified time.Time `json:"last_modified" db:"last_modified"`
	Queue        []string  `json:"queue" db:"queue"`
}
