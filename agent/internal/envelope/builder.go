package envelope

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Builder validates and serializes Items for one instrumentation key.
type Builder struct {
	ikey   string
	now    func() time.Time // injectable for deterministic tests
	logger *slog.Logger
}

// NewBuilder returns a Builder stamping envelopes with instrumentationKey.
func NewBuilder(instrumentationKey string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{ikey: instrumentationKey, now: time.Now, logger: logger}
}

// Validate reports whether it carries the fields its kind requires.
func (b *Builder) Validate(it Item) bool {
	return validate(it) == nil
}

// Build serializes it. The boolean is false when the item cannot be encoded.
func (b *Builder) Build(it Item) (string, bool) {
	env, err := b.envelope(it)
	if err != nil {
		b.logger.Warn("envelope: build failed", "kind", it.Kind, "err", err)
		return "", false
	}
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Warn("envelope: encode failed", "kind", it.Kind, "err", err)
		return "", false
	}
	return string(data), true
}

func validate(it Item) error {
	switch it.Kind {
	case KindEvent, KindPageView:
		if it.Name == "" {
			return fmt.Errorf("%s: name is required", it.Kind)
		}
	case KindTrace:
		if it.Message == "" {
			return fmt.Errorf("trace: message is required")
		}
	case KindMetric:
		if it.Name == "" {
			return fmt.Errorf("metric: name is required")
		}
		if it.Value == nil {
			return fmt.Errorf("metric: value is required")
		}
	case KindException:
		if it.ExceptionType == "" {
			return fmt.Errorf("exception: exceptionType is required")
		}
	case KindRequest:
		if it.Name == "" || it.ResponseCode == "" {
			return fmt.Errorf("request: name and responseCode are required")
		}
	case KindDependency:
		if it.Name == "" || it.Target == "" {
			return fmt.Errorf("dependency: name and target are required")
		}
	default:
		return fmt.Errorf("unknown kind %q", it.Kind)
	}
	return nil
}

// wireEnvelope is the serialized shape.
type wireEnvelope struct {
	Name       string            `json:"name"`
	Time       string            `json:"time"`
	IKey       string            `json:"iKey"`
	SampleRate float64           `json:"sampleRate,omitempty"`
	Tags       map[string]string `json:"tags"`
	Data       wireData          `json:"data"`
}

type wireData struct {
	BaseType string         `json:"baseType"`
	BaseData map[string]any `json:"baseData"`
}

// baseTypes maps a kind to its envelope name suffix and data base type.
var baseTypes = map[Kind][2]string{
	KindEvent:      {"Event", "EventData"},
	KindTrace:      {"Message", "MessageData"},
	KindMetric:     {"Metric", "MetricData"},
	KindPageView:   {"Pageview", "PageviewData"},
	KindException:  {"Exception", "ExceptionData"},
	KindRequest:    {"Request", "RequestData"},
	KindDependency: {"RemoteDependency", "RemoteDependencyData"},
}

func (b *Builder) envelope(it Item) (*wireEnvelope, error) {
	if err := validate(it); err != nil {
		return nil, err
	}
	names := baseTypes[it.Kind]

	ts := it.Time
	if ts.IsZero() {
		ts = b.now()
	}

	tags := make(map[string]string, len(it.Tags)+1)
	for k, v := range it.Tags {
		tags[k] = v
	}
	if tags[TagOperationID] == "" {
		tags[TagOperationID] = NewOperationID()
	}

	base := map[string]any{"ver": 2}
	if len(it.Properties) > 0 {
		base["properties"] = it.Properties
	}
	switch it.Kind {
	case KindEvent, KindPageView:
		base["name"] = it.Name
		if it.URL != "" {
			base["url"] = it.URL
		}
		if d := it.Elapsed(); d > 0 {
			base["duration"] = formatDuration(d)
		}
		if len(it.Measurements) > 0 {
			base["measurements"] = it.Measurements
		}
	case KindTrace:
		base["message"] = it.Message
		base["severityLevel"] = it.SeverityLevel
	case KindMetric:
		base["metrics"] = []map[string]any{{"name": it.Name, "value": *it.Value, "count": 1}}
	case KindException:
		base["exceptions"] = []map[string]any{{"typeName": it.ExceptionType, "message": it.Message, "hasFullStack": false}}
		base["severityLevel"] = it.SeverityLevel
	case KindRequest:
		base["id"] = tags[TagOperationID]
		base["name"] = it.Name
		base["responseCode"] = it.ResponseCode
		base["duration"] = formatDuration(it.Elapsed())
		base["success"] = successOf(it)
		if it.URL != "" {
			base["url"] = it.URL
		}
	case KindDependency:
		base["id"] = NewOperationID()
		base["name"] = it.Name
		base["target"] = it.Target
		base["duration"] = formatDuration(it.Elapsed())
		base["success"] = successOf(it)
		if it.ResponseCode != "" {
			base["resultCode"] = it.ResponseCode
		}
	}

	return &wireEnvelope{
		Name:       "Microsoft.ApplicationInsights." + strings.ReplaceAll(b.ikey, "-", "") + "." + names[0],
		Time:       ts.UTC().Format(time.RFC3339Nano),
		IKey:       b.ikey,
		SampleRate: it.SampleRate,
		Tags:       tags,
		Data:       wireData{BaseType: names[1], BaseData: base},
	}, nil
}

func successOf(it Item) bool {
	if it.Success == nil {
		return true
	}
	return *it.Success
}

// NewOperationID returns a 32-character lowercase hex id.
func NewOperationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// formatDuration renders d as d.hh:mm:ss.fff, the backend's timespan format.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	days := ms / (24 * 3600 * 1000)
	ms -= days * 24 * 3600 * 1000
	hours := ms / (3600 * 1000)
	ms -= hours * 3600 * 1000
	minutes := ms / (60 * 1000)
	ms -= minutes * 60 * 1000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%d.%02d:%02d:%02d.%03d", days, hours, minutes, seconds, ms)
}
