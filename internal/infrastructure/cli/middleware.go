package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/mrops-br/products-service/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// commandFunc runs one subcommand and returns its exit code
type commandFunc func(ctx context.Context, args []string) int

type middleware func(next commandFunc) commandFunc

func chain(h commandFunc, mws ...middleware) commandFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// commandContext adds the command name to the context so all logs include it
func commandContext(name string) middleware {
	return func(next commandFunc) commandFunc {
		return func(ctx context.Context, args []string) int {
			return next(telemetry.WithCommand(ctx, name), args)
		}
	}
}

// tracing opens a span around the command
func tracing(tracer trace.Tracer, name string) middleware {
	return func(next commandFunc) commandFunc {
		return func(ctx context.Context, args []string) int {
			ctx, span := tracer.Start(ctx, "CLI "+name)
			defer span.End()

			span.SetAttributes(
				attribute.String("cli.command", name),
				attribute.Int("cli.args", len(args)),
			)

			code := next(ctx, args)

			span.SetAttributes(attribute.Int("cli.exit_code", code))
			if code == ExitFailure {
				span.SetStatus(codes.Error, "Command failed")
			}
			return code
		}
	}
}

// durationMilliseconds records command duration in milliseconds
func durationMilliseconds(meter metric.Meter, name string) middleware {
	durationHistogram, err := meter.Float64Histogram(
		"cli.command.duration.ms",
		metric.WithDescription("CLI command duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return func(next commandFunc) commandFunc { return next }
	}

	return func(next commandFunc) commandFunc {
		return func(ctx context.Context, args []string) int {
			start := time.Now()
			code := next(ctx, args)

			durationHistogram.Record(ctx, float64(time.Since(start).Milliseconds()),
				metric.WithAttributes(
					attribute.String("cli.command", name),
					attribute.Int("cli.exit_code", code),
				),
			)
			return code
		}
	}
}

// structuredLogger logs one line per command, at a level matching the exit code
func structuredLogger(logger *slog.Logger) middleware {
	return func(next commandFunc) commandFunc {
		return func(ctx context.Context, args []string) int {
			start := time.Now()
			code := next(ctx, args)
			duration := time.Since(start)

			level := slog.LevelDebug
			switch code {
			case ExitFailure:
				level = slog.LevelError
			case ExitUsage:
				level = slog.LevelWarn
			}

			logger.Log(ctx, level, "Command completed",
				slog.Int("exit_code", code),
				slog.String("duration", duration.String()),
				slog.Float64("duration_ms", float64(duration.Milliseconds())),
			)
			return code
		}
	}
}
