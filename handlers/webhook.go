package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
)

const (
	webhookStatusDone    = "done"
	webhookStatusPending = "pending"
)

type webhookRequest struct {
	Kind      Kind              `json:"kind"`
	SubjectID string            `json:"subject_id"`
	Attempts  int               `json:"attempts"`
	Payload   contracts.Payload `json:"payload"`
}

type webhookResponse struct {
	Status  string            `json:"status"`
	Payload contracts.Payload `json:"payload,omitempty"`
}

type webhookFailure struct {
	Kind      Kind   `json:"kind"`
	SubjectID string `json:"subject_id"`
	Attempts  int    `json:"attempts"`
	Reason    string `json:"reason"`
}

// Webhook delegates the work of a job kind to an HTTP endpoint of the host
// application. It implements both Worker and Excluder.
type Webhook struct {
	client          *resty.Client
	endpoint        string
	failureEndpoint string
}

func NewWebhook(endpoint, failureEndpoint string, timeout time.Duration) *Webhook {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Webhook{client: client, endpoint: endpoint, failureEndpoint: failureEndpoint}
}

func (w *Webhook) Work(ctx context.Context, kind Kind, item contracts.QueueItem) (contracts.Result, error) {
	var out webhookResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookRequest{
			Kind:      kind,
			SubjectID: item.SubjectID,
			Attempts:  item.Attempts,
			Payload:   item.Payload,
		}).
		SetResult(&out).
		Post(w.endpoint)
	if err != nil {
		return contracts.Result{}, fmt.Errorf("call %s worker: %w", kind, err)
	}
	if resp.IsError() {
		return contracts.Result{}, fmt.Errorf("call %s worker: unexpected status %d", kind, resp.StatusCode())
	}

	switch out.Status {
	case webhookStatusDone:
		return contracts.Completed(), nil
	case webhookStatusPending:
		return contracts.Retry(out.Payload), nil
	}
	return contracts.Result{}, fmt.Errorf("call %s worker: unknown status %q", kind, out.Status)
}

func (w *Webhook) Exclude(ctx context.Context, kind Kind, item contracts.QueueItem) error {
	if w.failureEndpoint == "" {
		return nil
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookFailure{
			Kind:      kind,
			SubjectID: item.SubjectID,
			Attempts:  item.Attempts,
			Reason:    "max_attempts_exceeded",
		}).
		Post(w.failureEndpoint)
	if err != nil {
		return fmt.Errorf("report %s failure: %w", kind, err)
	}
	if resp.IsError() {
		return fmt.Errorf("report %s failure: unexpected status %d", kind, resp.StatusCode())
	}
	return nil
}
