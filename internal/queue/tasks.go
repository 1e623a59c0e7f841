package queue

const (
	TypeTranscriptionProcess = "transcription:process"
	TypeWebhookDeliver       = "webhook:deliver"
)

type TranscriptionProcessPayload struct {
	JobID string `json:"job_id"`
}

type WebhookDeliverPayload struct {
	DeliveryID string `json:"delivery_id"`
	JobID      string `json:"job_id"`
	URL        string `json:"url"`
	Event      string `json:"event"`
	Payload    string `json:"payload"` // JSON string
}
