package api

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status      string `json:"status"`
	Subscribers int    `json:"subscribers"`
}

type errorResponse struct {
	Error string `json:"error"`
}
