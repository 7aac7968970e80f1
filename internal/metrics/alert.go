package metrics

import "time"

// Alert is one threshold crossing for a (kind, entity) pair. The alert
// engine owns the lifecycle; everything else only reads these.
type Alert struct {
	ID             string     `json:"id"`
	Kind           Kind       `json:"kind"`
	Entity         string     `json:"entity,omitempty"` // mount path for disk, empty for host-wide kinds
	Severity       Severity   `json:"severity"`
	Value          float64    `json:"value_at_trigger"`
	Threshold      float64    `json:"threshold"`
	Message        string     `json:"message"`
	TriggeredAt    time.Time  `json:"triggered_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Open reports whether the alert has not yet resolved.
func (a *Alert) Open() bool {
	return a.ResolvedAt == nil
}
