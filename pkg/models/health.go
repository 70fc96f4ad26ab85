package models

// ServiceHealth describes one dependency checked by the backend.
type ServiceHealth struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// HealthResponse is returned by GET /health. Status is "ok" or "degraded".
type HealthResponse struct {
	Status string        `json:"status"`
	OCR    ServiceHealth `json:"ocr"`
	Ollama ServiceHealth `json:"ollama"`
}
