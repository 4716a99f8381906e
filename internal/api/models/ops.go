package models

// Health is returned by /v1/ops/health and /v1/ops/ready.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus is returned by /v1/ops/status.
type SystemStatus struct {
	Status HealthStatus `json:"status"`
	Time   Timestamp    `json:"time"`

	// Model describes the loaded forecast bundle.
	Model ModelStatus `json:"model"`

	Subsystems             []SubsystemStatus `json:"subsystems"`
	Providers              []ProviderStatus  `json:"providers"`
	ActiveDegradationFlags []string          `json:"activeDegradationFlags,omitempty"`
}

// ModelStatus reports which forecast horizons can be served.
type ModelStatus struct {
	Loaded   bool   `json:"loaded"`
	Version  string `json:"version,omitempty"`
	Horizons []int  `json:"horizons"`
	Features int    `json:"features"`
}

// SubsystemStatus is the result of one dependency check.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus describes an upstream history provider.
type ProviderStatus struct {
	Provider string       `json:"provider"`
	Status   HealthStatus `json:"status"`

	// CircuitState is "closed", "half-open" or "open".
	CircuitState        string `json:"circuitState"`
	ConsecutiveFailures uint32 `json:"consecutiveFailures"`
	Successes           uint64 `json:"successes"`
	Failures            uint64 `json:"failures"`

	LastSuccessAt *Timestamp `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp `json:"lastFailureAt,omitempty"`
	Message       *string    `json:"message,omitempty"`
}
