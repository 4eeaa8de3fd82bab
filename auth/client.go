package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sidesign/ipasign/ipaerr"
)

const (
	requestTimeout  = 30 * time.Second
	anisetteTimeout = 15 * time.Second
)

// httpClient wraps net/http with the suspension/cancellation contract of
// spec.md §4.5: every call is blocking from the core's perspective, and
// abort() causes any in-flight or subsequent call to fail with Cancelled.
type httpClient struct {
	client *http.Client

	mu       sync.Mutex
	aborted  bool
	abortCh  chan struct{}
	onceInit sync.Once
}

func newHTTPClient() *httpClient {
	return &httpClient{
		client:  &http.Client{},
		abortCh: make(chan struct{}),
	}
}

// abort causes any in-flight or subsequent call on this client to fail with
// ipaerr.KindCancelled, per spec.md §4.5.
func (c *httpClient) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.aborted {
		c.aborted = true
		close(c.abortCh)
	}
}

func (c *httpClient) isAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// do executes req with the given timeout, failing fast with KindCancelled if
// abort has already been called.
func (c *httpClient) do(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, error) {
	const op = "auth.httpClient.do"

	if c.isAborted() {
		return nil, ipaerr.New(op, ipaerr.KindCancelled, context.Canceled, "session aborted")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	var resp *http.Response
	var err error

	go func() {
		resp, err = c.client.Do(req.WithContext(ctx))
		close(done)
	}()

	select {
	case <-done:
		if err != nil {
			return nil, classifyTransportError(op, err)
		}
		return resp, nil
	case <-c.abortCh:
		cancel()
		<-done
		return nil, ipaerr.New(op, ipaerr.KindCancelled, context.Canceled, "session aborted")
	}
}

func classifyTransportError(op string, err error) error {
	if err == context.DeadlineExceeded {
		return ipaerr.New(op, ipaerr.KindTimeout, err, "")
	}
	return ipaerr.Wrap(op, ipaerr.KindServiceUnavailable, err)
}

// retryable applies spec.md §7's policy ("ServiceUnavailable and transient
// network failures are retried up to 2 times with 500ms exponential
// backoff inside C5/C6") to a single idmsa call. operation should rebuild
// its request from scratch on every invocation, since a request body
// reader is drained by the first attempt. Mirrors provisioning.retry.
func retryable[T any](ctx context.Context, operation func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	return backoff.Retry(ctx, func() (T, error) {
		v, err := operation()
		if err != nil && ipaerr.Is(err, ipaerr.KindServiceUnavailable) {
			return v, err
		}
		if err != nil {
			return v, backoff.Permanent(err)
		}
		return v, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(3))
}
