package api

// Ping is the health summary returned by GET /ping.
type Ping struct {
	Healthy  bool              `json:"healthy"`
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Uptime   int64             `json:"uptime"`
	Version  string            `json:"version"`
}
