package forecast

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Sink receives the per-instance delivery messages produced by the service:
// either a normalized payload or, when a fetch exhausts its retries, an
// error message. Implementations must tolerate being called from multiple
// goroutines.
type Sink interface {
	Deliver(cfg InstanceConfig, p Payload)
	DeliverError(cfg InstanceConfig, errMsg string)
}

// deliveryMessage is the wire form of a successful delivery.
type deliveryMessage struct {
	InstanceID string  `json:"instanceId"`
	Payload    Payload `json:"payload"`
}

// errorMessage is the wire form of a failed delivery.
type errorMessage struct {
	InstanceID string `json:"instanceId"`
	Error      string `json:"error"`
}

// WebhookSink posts delivery messages to each instance's callback URL.
// Instances without a callback URL are served pull-style through the data
// cache instead; their deliveries are logged and otherwise dropped here.
type WebhookSink struct {
	client *http.Client
}

func NewWebhookSink(client *http.Client) *WebhookSink {
	return &WebhookSink{client: client}
}

func (ws *WebhookSink) Deliver(cfg InstanceConfig, p Payload) {
	slog.Debug("payload delivery", slog.String("instance", cfg.InstanceID), slog.Int("hours", len(p.Hourly)))
	ws.post(cfg, deliveryMessage{InstanceID: cfg.InstanceID, Payload: p})
}

func (ws *WebhookSink) DeliverError(cfg InstanceConfig, errMsg string) {
	slog.Warn("error delivery", slog.String("instance", cfg.InstanceID), slog.String("error", errMsg))
	ws.post(cfg, errorMessage{InstanceID: cfg.InstanceID, Error: errMsg})
}

func (ws *WebhookSink) post(cfg InstanceConfig, msg any) {
	if cfg.CallbackURL == "" {
		return
	}
	body, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal delivery message", slog.String("instance", cfg.InstanceID), slog.String("error", err.Error()))
		return
	}
	resp, err := ws.client.Post(cfg.CallbackURL, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Warn("callback post failed", slog.String("instance", cfg.InstanceID), slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("callback rejected delivery",
			slog.String("instance", cfg.InstanceID),
			slog.Int("status", resp.StatusCode))
	}
}
