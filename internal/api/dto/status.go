package dto

type PositionResponse struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type SocketResponse struct {
	Connected bool  `json:"connected"`
	Sent      int64 `json:"sent"`
	Dropped   int64 `json:"dropped"`
}

type StatusResponse struct {
	DriverID       int              `json:"driver_id"`
	Ready          bool             `json:"ready"`
	State          string           `json:"state"`
	Position       PositionResponse `json:"position"`
	Cursor         int              `json:"cursor"`
	RoutePoints    int              `json:"route_points"`
	AcceptingJobs  bool             `json:"accepting_jobs"`
	LastSeq        uint64           `json:"last_seq"`
	Published      int64            `json:"published"`
	StaleResponses int64            `json:"stale_responses"`
	Socket         *SocketResponse  `json:"socket,omitempty"`
}

type LayerResponse struct {
	ID     string         `json:"id"`
	Source string         `json:"source"`
	Type   string         `json:"type"`
	Paint  map[string]any `json:"paint,omitempty"`
}
