// Package tracing собирает TracerProvider сервера на OpenTelemetry SDK.
//
// Спаны создаются через глобальный otel.Tracer в applier и handlers.
// Пока провайдер не установлен через otel.SetTracerProvider, они no-op.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/changesync/internal/server/config"
)

// ServiceName имя сервиса в ресурсе спанов
const ServiceName = "changesync-server"

// Provider провайдер трассировки с экспортером
type Provider struct {
	tp  *sdktrace.TracerProvider
	out io.Closer // nil при выводе в stderr
}

// New создает провайдер по настройкам. Спаны пишутся в cfg.Output,
// а если путь пуст, то в stderr.
func New(cfg config.TracingConfig, version string, stderr io.Writer) (*Provider, error) {
	if cfg.Exporter != config.TraceExporterStdout {
		return nil, fmt.Errorf("unsupported trace exporter %q", cfg.Exporter)
	}

	w := stderr
	var out io.Closer
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace output: %w", err)
		}
		w, out = f, f
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if out != nil {
			_ = out.Close()
		}
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)

	return &Provider{tp: tp, out: out}, nil
}

// TracerProvider возвращает провайдер для otel.SetTracerProvider
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Shutdown выгружает накопленные спаны и закрывает вывод
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.tp.Shutdown(ctx)
	if p.out != nil {
		err = errors.Join(err, p.out.Close())
	}
	return err
}
