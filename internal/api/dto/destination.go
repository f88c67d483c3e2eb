package dto

type DestinationRequest struct {
	Lon     *float64 `json:"lon"`
	Lat     *float64 `json:"lat"`
	Reroute bool     `json:"reroute"`
}

type DestinationResponse struct {
	Seq uint64 `json:"seq"`
}
