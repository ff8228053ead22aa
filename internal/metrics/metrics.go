// Package metrics wires OpenTelemetry instruments to a Prometheus scrape handler.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	prometheus2 "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type pkgMarker struct{}

// Metrics owns the meter provider and the handler that exposes it.
type Metrics struct {
	Meter    api.Meter
	Handler  http.Handler
	provider *metric.MeterProvider
}

// New creates a meter provider backed by a dedicated Prometheus registry.
// The provider is also installed as the global otel meter provider.
func New() (*Metrics, error) {
	registry := prometheus2.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	pkg := reflect.TypeOf(pkgMarker{}).PkgPath()

	return &Metrics{
		Meter: provider.Meter(pkg),
		Handler: promhttp.HandlerFor(
			registry,
			promhttp.HandlerOpts{EnableOpenMetrics: true}),
		provider: provider,
	}, nil
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if err := m.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider: %w", err)
	}
	return nil
}
