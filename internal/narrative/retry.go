package narrative

import (
	"context"
	"errors"
	"log"
	"net"
	"net/url"
	"strings"
	"time"
)

const maxAttempts = 3

// transient reports whether an error is worth retrying. Auth, validation and
// malformed-response failures are permanent.
func transient(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == 429 || se.code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, tok := range []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"rate limit",
		"temporar",
	} {
		if strings.Contains(msg, tok) {
			return true
		}
	}
	return false
}

// reachable probes TCP connectivity to the API host. A dead link makes
// further attempts pointless; failing fast keeps the batch moving.
func reachable(baseURL string, timeout time.Duration) bool {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	conn, err := net.DialTimeout("tcp", host, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// callWithRetry runs fn up to maxAttempts times with linear backoff,
// retrying only transient failures while the endpoint stays reachable.
func callWithRetry(ctx context.Context, stage, baseURL string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			if attempt > 1 {
				log.Printf("[%s] succeeded on attempt %d/%d", stage, attempt, maxAttempts)
			}
			return nil
		}
		if attempt == maxAttempts || !transient(err) {
			break
		}
		if !reachable(baseURL, 3*time.Second) {
			log.Printf("[%s] endpoint unreachable, giving up after attempt %d", stage, attempt)
			break
		}
		log.Printf("[%s] attempt %d/%d failed: %v, retrying", stage, attempt, maxAttempts, err)
		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
