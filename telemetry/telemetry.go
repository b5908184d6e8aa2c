// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package telemetry

import (
	"context"
	"fmt"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/armon/go-metrics/circonus"
	"github.com/armon/go-metrics/datadog"
	"github.com/armon/go-metrics/prometheus"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/llm-twin/ic-autoscaler/config"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// serviceName is the name all metrics are emitted under.
const serviceName = "ic-autoscaler"

// Telemetry holds the metrics sinks of a command run. Since a command run is
// short-lived, sinks which buffer data are flushed by Shutdown.
type Telemetry struct {
	logger hclog.Logger

	inm       *metrics.InmemSink
	inmSignal *metrics.InmemSignal
	circonus  *circonus.CirconusSink
	registry  *promclient.Registry
	pusher    *push.Pusher
}

// Setup is used to setup the telemetry sub-systems and the global metrics
// sink.
func Setup(cfg *config.Telemetry, logger hclog.Logger) (*Telemetry, error) {

	t := &Telemetry{logger: logger.Named("telemetry")}

	// Setup telemetry using an aggregate of 10 second intervals for 1 minute.
	// Expose the metrics over stderr when there is a SIGUSR1 received.
	t.inm = metrics.NewInmemSink(10*time.Second, time.Minute)
	t.inmSignal = metrics.DefaultInmemSignal(t.inm)

	var telConfig *config.Telemetry
	if cfg == nil {
		telConfig = &config.Telemetry{}
	} else {
		telConfig = cfg
	}

	metricsConf := metrics.DefaultConfig(serviceName)
	metricsConf.EnableHostname = !telConfig.DisableHostname
	metricsConf.EnableHostnameLabel = telConfig.EnableHostnameLabel

	// Configure the statsite sink.
	var fanout metrics.FanoutSink
	if telConfig.StatsiteAddr != "" {
		sink, err := metrics.NewStatsiteSink(telConfig.StatsiteAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to setup statsite sink: %v", err)
		}
		fanout = append(fanout, sink)
	}

	// Configure the statsd sink.
	if telConfig.StatsdAddr != "" {
		sink, err := metrics.NewStatsdSink(telConfig.StatsdAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to setup statsd sink: %v", err)
		}
		fanout = append(fanout, sink)
	}

	// Configure the Prometheus sink. It registers with a dedicated registry
	// which is what gets pushed to the Pushgateway.
	if telConfig.PrometheusMetrics || telConfig.PrometheusRetentionTime != 0 {
		t.registry = promclient.NewRegistry()

		prometheusOpts := prometheus.PrometheusOpts{
			Expiration: telConfig.PrometheusRetentionTime,
			Registerer: t.registry,
		}

		sink, err := prometheus.NewPrometheusSinkFrom(prometheusOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to setup Prometheus sink: %v", err)
		}
		fanout = append(fanout, sink)

		if telConfig.PushgatewayAddr != "" {
			job := telConfig.PushgatewayJob
			if job == "" {
				job = serviceName
			}
			t.pusher = push.New(telConfig.PushgatewayAddr, job).Gatherer(t.registry)
		}
	}

	// Configure the Datadog sink.
	if telConfig.DogStatsDAddr != "" {
		var tags []string

		if telConfig.DogStatsDTags != nil {
			tags = telConfig.DogStatsDTags
		}

		sink, err := datadog.NewDogStatsdSink(telConfig.DogStatsDAddr, metricsConf.HostName)
		if err != nil {
			return nil, fmt.Errorf("failed to setup DogStatsD sink: %v", err)
		}
		sink.SetTags(tags)
		fanout = append(fanout, sink)
	}

	// Configure the Circonus sink.
	if telConfig.CirconusAPIToken != "" || telConfig.CirconusCheckSubmissionURL != "" {
		circonusCfg := &circonus.Config{}
		circonusCfg.Interval = telConfig.CirconusSubmissionInterval
		circonusCfg.CheckManager.API.TokenKey = telConfig.CirconusAPIToken
		circonusCfg.CheckManager.API.TokenApp = telConfig.CirconusAPIApp
		circonusCfg.CheckManager.API.URL = telConfig.CirconusAPIURL
		circonusCfg.CheckManager.Check.SubmissionURL = telConfig.CirconusCheckSubmissionURL
		circonusCfg.CheckManager.Check.ID = telConfig.CirconusCheckID
		circonusCfg.CheckManager.Broker.ID = telConfig.CirconusBrokerID

		if circonusCfg.CheckManager.Check.DisplayName == "" {
			circonusCfg.CheckManager.Check.DisplayName = "Inference Component Autoscaler"
		}
		if circonusCfg.CheckManager.API.TokenApp == "" {
			circonusCfg.CheckManager.API.TokenApp = serviceName
		}
		if circonusCfg.CheckManager.Check.SearchTag == "" {
			circonusCfg.CheckManager.Check.SearchTag = "service:" + serviceName
		}

		sink, err := circonus.NewCirconusSink(circonusCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to setup Circonus sink: %v", err)
		}
		sink.Start()
		t.circonus = sink
		fanout = append(fanout, sink)
	}

	// Add the in-memory sink to the fanout.
	fanout = append(fanout, t.inm)

	// Initialize the global sink.
	if _, err := metrics.NewGlobal(metricsConf, fanout); err != nil {
		return nil, fmt.Errorf("failed to setup global sink: %v", err)
	}
	return t, nil
}

// InmemSink returns the in-memory sink which receives every metric.
func (t *Telemetry) InmemSink() *metrics.InmemSink { return t.inm }

// Push sends the current Prometheus metrics to the Pushgateway. It is a
// no-op when no Pushgateway is configured.
func (t *Telemetry) Push(ctx context.Context) error {
	if t.pusher == nil {
		return nil
	}
	if err := t.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to Pushgateway: %w", err)
	}
	t.logger.Debug("pushed metrics to Pushgateway")
	return nil
}

// Shutdown flushes buffering sinks and pushes metrics, if configured. Errors
// are logged and returned but never affect the outcome of the command.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.inmSignal != nil {
		t.inmSignal.Stop()
	}
	if t.circonus != nil {
		t.circonus.Flush()
	}

	if err := t.Push(ctx); err != nil {
		t.logger.Warn("failed to publish metrics", "error", err)
		return err
	}
	return nil
}
