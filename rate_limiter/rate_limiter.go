// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rate_limiter

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/llm-twin/ic-autoscaler/sdk/helper/metrics"
	"golang.org/x/time/rate"
)

// maxConnsPerHost bounds the connections opened to a single API endpoint.
const maxConnsPerHost = 50

// InstrumentedRoundTripper wraps http.RoundTripper to observe metrics and
// rate limit if necessary.
type InstrumentedRoundTripper struct {
	rateLimiter *rate.Limiter
	source      string
	rt          http.RoundTripper
}

// RoundTrip satisfies the http.RoundTripper interface. Waiting for the rate
// limiter honours the request context, so a cancelled or expired call does
// not stay queued.
func (irt *InstrumentedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if irt.rateLimiter != nil {
		if err := irt.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("transport: unable to ratelimit: %w", err)
		}
	}

	labels := []metrics.Label{
		{
			Name:  "method",
			Value: req.Method,
		},
		{
			Name:  "source",
			Value: irt.source,
		},
	}

	defer metrics.MeasureSinceWithLabels([]string{"http", "dur"}, time.Now(), labels)

	resp, err := irt.rt.RoundTrip(req)
	if err == nil && resp != nil {
		metrics.IncrCounterWithLabels([]string{"http", "req"}, 1,
			append(labels, metrics.Label{Name: "status", Value: fmt.Sprint(resp.StatusCode)}))
	} else {
		metrics.IncrCounterWithLabels([]string{"http", "error"}, 1, labels)
	}

	return resp, err
}

// NewInstrumentedWrapper returns the provided http client with a rate
// limiter, if no client is provided, a new one will be created using
// github.com/hashicorp/go-cleanhttp. To disable rate limiting, set the
// ratePerSec to -1. Setting it to 0 rejects all requests. Source is used as
// a label for metrics.
func NewInstrumentedWrapper(source string, ratePerSec int, client *http.Client) *http.Client {
	httpClient := cleanhttp.DefaultPooledClient()
	if client != nil {
		httpClient = client
	}

	rt := httpClient.Transport
	if rt == nil {
		rt = cleanhttp.DefaultPooledTransport()
	}
	if t, ok := rt.(*http.Transport); ok {
		t.MaxConnsPerHost = maxConnsPerHost
	}

	irt := &InstrumentedRoundTripper{
		rt:     rt,
		source: source,
	}

	if ratePerSec != -1 {
		irt.rateLimiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	}

	httpClient.Transport = irt

	return httpClient
}
