package envelope

import "time"

// Kind identifies the telemetry type of an Item.
type Kind string

// Supported telemetry kinds.
const (
	KindEvent      Kind = "event"
	KindTrace      Kind = "trace"
	KindMetric     Kind = "metric"
	KindPageView   Kind = "pageview"
	KindException  Kind = "exception"
	KindRequest    Kind = "request"
	KindDependency Kind = "dependency"
)

// Well-known tag keys.
const (
	TagOperationID   = "ai.operation.id"
	TagOperationName = "ai.operation.name"
	TagCloudRole     = "ai.cloud.role"
)

// Item is one telemetry record before serialization. Only the fields that
// apply to Kind are read.
type Item struct {
	Kind Kind      `json:"kind"`
	Name string    `json:"name,omitempty"`
	Time time.Time `json:"time,omitempty"`

	// trace
	Message       string `json:"message,omitempty"`
	SeverityLevel int    `json:"severityLevel,omitempty"`

	// metric
	Value *float64 `json:"value,omitempty"`

	// request, dependency, pageview
	Duration     time.Duration `json:"-"`
	DurationMs   int64         `json:"durationMs,omitempty"`
	Success      *bool         `json:"success,omitempty"`
	ResponseCode string        `json:"responseCode,omitempty"`
	URL          string        `json:"url,omitempty"`
	Target       string        `json:"target,omitempty"`

	// exception
	ExceptionType string `json:"exceptionType,omitempty"`

	Properties   map[string]string  `json:"properties,omitempty"`
	Measurements map[string]float64 `json:"measurements,omitempty"`
	Tags         map[string]string  `json:"tags,omitempty"`

	// SampleRate is set by the sender when sampling is active.
	SampleRate float64 `json:"-"`
}

// OperationID returns the item's ai.operation.id tag.
func (it Item) OperationID() string {
	return it.Tags[TagOperationID]
}

// Elapsed returns Duration, falling back to DurationMs for decoded items.
func (it Item) Elapsed() time.Duration {
	if it.Duration > 0 {
		return it.Duration
	}
	return time.Duration(it.DurationMs) * time.Millisecond
}
