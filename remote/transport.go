package remote

import (
	"net/http"
	"time"

	"github.com/pitabwire/util"
)

// loggingTransport logs each request and its outcome.
type loggingTransport struct {
	next http.RoundTripper
}

func newLoggingTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()

	log := util.Log(ctx).WithFields(map[string]any{
		"method": req.Method,
		"url":    req.URL.String(),
	})
	log.Debug("HTTP request sent")

	resp, err := t.next.RoundTrip(req)

	log = log.WithField("duration", time.Since(start).String())
	if err != nil {
		log.WithError(err).Error("HTTP request failed")
		return resp, err
	}

	log.WithFields(map[string]any{
		"status":     resp.StatusCode,
		"statusText": http.StatusText(resp.StatusCode),
	}).Info("HTTP response received")
	return resp, nil
}
