// Copyright 2025 Phillip Lindsay
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry provides the OpenTelemetry plumbing for token
// operations: OTLP providers, span helpers and token metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultExportInterval is how often metrics are pushed to the collector.
const DefaultExportInterval = 10 * time.Second

// Config selects where telemetry is exported.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	ExportInterval time.Duration
}

// TracerProvider wraps the SDK tracer provider.
type TracerProvider struct {
	*sdktrace.TracerProvider
}

// MeterProvider wraps the SDK meter provider.
type MeterProvider struct {
	*sdkmetric.MeterProvider
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	version := cfg.ServiceVersion
	if version == "" {
		version = "1.0.0"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// dial opens the exporter connection. Export RPCs are measured with otelgrpc
// client metrics but never traced, so exporting spans does not create spans.
func dial(endpoint string, opts ...otelgrpc.Option) (*grpc.ClientConn, error) {
	opts = append([]otelgrpc.Option{otelgrpc.WithTracerProvider(tracenoop.NewTracerProvider())}, opts...)
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler(opts...)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}
	return conn, nil
}

// NewTracerProvider creates a tracer provider exporting spans over OTLP gRPC
// to cfg.Endpoint and installs it, with W3C propagation, as the global
// provider.
//
// Example:
//
//	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
//		ServiceName: "tokenctl",
//		Endpoint:    "localhost:4317",
//	})
//	if err != nil {
//		return err
//	}
//	defer tp.Shutdown(context.Background())
func NewTracerProvider(ctx context.Context, cfg Config) (*TracerProvider, error) {
	conn, err := dial(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{TracerProvider: tp}, nil
}

// NewMeterProvider creates a meter provider pushing metrics over OTLP gRPC
// to cfg.Endpoint and installs it as the global provider. Histograms use
// base-2 exponential aggregation.
func NewMeterProvider(ctx context.Context, cfg Config) (*MeterProvider, error) {
	conn, err := dial(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = DefaultExportInterval
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
		sdkmetric.WithView(ExponentialHistogramView()),
	)

	otel.SetMeterProvider(mp)

	return &MeterProvider{MeterProvider: mp}, nil
}

// ExponentialHistogramView maps every histogram instrument to a base-2
// exponential aggregation.
func ExponentialHistogramView() sdkmetric.View {
	return sdkmetric.NewView(
		sdkmetric.Instrument{Kind: sdkmetric.InstrumentKindHistogram},
		sdkmetric.Stream{Aggregation: sdkmetric.AggregationBase2ExponentialHistogram{
			MaxSize:  160,
			MaxScale: 20,
		}},
	)
}

// Tracer returns a named tracer from the provider.
func (tp *TracerProvider) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	return tp.TracerProvider.Tracer(name, options...)
}

// Meter returns a named meter from the provider.
func (mp *MeterProvider) Meter(name string, options ...metric.MeterOption) metric.Meter {
	return mp.MeterProvider.Meter(name, options...)
}

// Providers bundles both providers so they can be shut down together.
type Providers struct {
	Tracer *TracerProvider
	Meter  *MeterProvider
}

// Setup creates and installs both providers for cfg.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	tp, err := NewTracerProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mp, err := NewMeterProvider(ctx, cfg)
	if err != nil {
		tp.Shutdown(ctx)
		return nil, err
	}
	return &Providers{Tracer: tp, Meter: mp}, nil
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
