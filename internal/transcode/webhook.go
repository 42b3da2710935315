package transcode

import "strings"

// Webhook statuses. The service also sends interim progress updates with
// other status values; those must be acknowledged without touching job
// state.
const (
	WebhookCompleted = "completed"
	WebhookError     = "error"
)

// WebhookOutput is one produced rendition.
type WebhookOutput struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// WebhookPayload is the callback body the transcoding service POSTs to us.
type WebhookPayload struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Progress float64         `json:"progress"`
	Errors   []string        `json:"errors"`
	Outputs  []WebhookOutput `json:"outputs"`
	Input    struct {
		Metadata struct {
			VideoJobID string `json:"videoJobId"`
		} `json:"metadata"`
	} `json:"input"`
}

// JobID returns the correlating video job id carried in the metadata.
func (p *WebhookPayload) JobID() string {
	return p.Input.Metadata.VideoJobID
}

// Succeeded reports a completed transcode with at least one output.
func (p *WebhookPayload) Succeeded() bool {
	return p.Status == WebhookCompleted && len(p.Outputs) > 0
}

// Failed reports a terminal transcode failure.
func (p *WebhookPayload) Failed() bool {
	return p.Status == WebhookError
}

// ErrorText joins the reported errors into one message.
func (p *WebhookPayload) ErrorText() string {
	if len(p.Errors) == 0 {
		return "transcoding failed without details"
	}
	return strings.Join(p.Errors, "; ")
}
