package docstate

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/stagehand-dev/stagehand/pkg/logger"
)

// HTTPChecker asks a document-state service over HTTP. Transient transport
// errors are retried a few times; a connection that cannot be established at
// all maps to ErrUnavailable so the pipeline fails open.
type HTTPChecker struct {
	endpoint string
	client   *http.Client
	attempts uint
}

type checkRequest struct {
	DocType     string `json:"doc_type"`
	FeaturePath string `json:"feature_path"`
}

// NewHTTPChecker creates an HTTP-based checker.
func NewHTTPChecker(endpoint string, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPChecker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		attempts: 3,
	}
}

// Check POSTs the document check and decodes the verdict.
func (c *HTTPChecker) Check(ctx context.Context, docType, featurePath string) (Result, error) {
	body, err := json.Marshal(checkRequest{DocType: docType, FeaturePath: featurePath})
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to marshal check request")
	}

	var resp *http.Response
	err = retry.Do(
		func() error {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
			if reqErr != nil {
				return retry.Unrecoverable(reqErr)
			}
			req.Header.Set("Content-Type", "application/json")

			var doErr error
			resp, doErr = c.client.Do(req) //nolint:bodyclose // closed below after retries settle
			return doErr
		},
		retry.Attempts(c.attempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithField("attempt", n+1).WithError(err).Debug("retrying document check")
		}),
	)
	if err != nil {
		return Result{}, c.classifyTransportError(err, docType)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, errors.Wrapf(ErrInvalidResponse, "checking %s document: status %d", docType, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, errors.Wrapf(ErrInvalidResponse, "checking %s document: %v", docType, err)
	}

	return result, nil
}

func (c *HTTPChecker) classifyTransportError(err error, docType string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrapf(ErrTimeout, "checking %s document", docType)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(ErrTimeout, "checking %s document", docType)
	}

	// The service cannot be reached: treat like an absent collaborator.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrUnavailable
	}

	return errors.Wrapf(err, "failed to check %s document", docType)
}
