package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"

	log "github.com/sirupsen/logrus"
)

const DefaultTimeout = time.Second

type Option func(*HTTPDispatcher)

// WithTimeout bounds how long a dispatch waits for the endpoint before
// treating the request as delivered.
func WithTimeout(timeout time.Duration) Option {
	return func(d *HTTPDispatcher) {
		d.timeout = timeout
	}
}

// WithScheduler makes every dispatch ensure the queue has a health check.
func WithScheduler(scheduler contracts.Scheduler) Option {
	return func(d *HTTPDispatcher) {
		d.scheduler = scheduler
	}
}

func WithClient(client *resty.Client) Option {
	return func(d *HTTPDispatcher) {
		d.client = client
	}
}

// HTTPDispatcher starts runner invocations by posting a signed request to the
// dispatch endpoint without waiting for the run to finish.
type HTTPDispatcher struct {
	client    *resty.Client
	url       string
	signer    *TokenSigner
	scheduler contracts.Scheduler
	timeout   time.Duration
}

func NewHTTPDispatcher(baseURL, path string, signer *TokenSigner, options ...Option) *HTTPDispatcher {
	d := &HTTPDispatcher{
		url:     strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		signer:  signer,
		timeout: DefaultTimeout,
	}
	for _, option := range options {
		option(d)
	}
	if d.client == nil {
		d.client = resty.New()
	}
	d.client.SetTimeout(d.timeout)
	return d
}

func (d *HTTPDispatcher) URL() string {
	return d.url
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, queue, lockToken string) error {
	if d.scheduler != nil {
		if err := d.scheduler.Schedule(queue); err != nil {
			log.WithError(err).WithField("queue", queue).Error("can not schedule health check")
		}
	}

	nonce, err := d.signer.Sign(queue, lockToken)
	if err != nil {
		return err
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"action": ActionRunQueue,
			"nonce":  nonce,
		}).
		Post(d.url)
	if err != nil {
		if isTimeout(err) {
			// The endpoint accepted the connection; the run continues there.
			return nil
		}
		return fmt.Errorf("dispatch %s: %w", queue, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("dispatch %s: unexpected status %d", queue, resp.StatusCode())
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
