package types

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	SessionID string        `json:"sessionId"`
	Reply     string        `json:"reply"`
	History   []ChatMessage `json:"history,omitempty"`
}

// SoilRequest is the JSON form of a crop prediction request. Field names
// match the form keys of the web page.
type SoilRequest struct {
	N           *float64 `json:"N"`
	P           *float64 `json:"P"`
	K           *float64 `json:"K"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	PH          *float64 `json:"ph"`
	Rainfall    *float64 `json:"rainfall"`
}

type PredictResponse struct {
	Success        bool     `json:"success"`
	Prediction     string   `json:"prediction,omitempty"`
	Alternatives   []string `json:"alternatives,omitempty"`
	Season         string   `json:"season,omitempty"`
	SeasonalAdvice string   `json:"seasonal_advice,omitempty"`
	Source         string   `json:"source,omitempty"`
	Error          string   `json:"error,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions string `json:"sessions"`
	Database string `json:"database,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
