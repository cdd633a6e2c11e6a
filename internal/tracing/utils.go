package tracing

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/internal/logger"
)

const (
	SpanTagAgent       = "agent"
	SpanTagMessageType = "message-type"
	SpanTagMessageId   = "message-id"
	SpanTagEntityId    = "entity-id"
	SpanTagComponent   = "component"
)

const (
	SpanTagComponentPostgresRepository = "postgresRepository"
	SpanTagComponentMongoRepository    = "mongoRepository"
	SpanTagComponentRest               = "rest"
	SpanTagComponentCronJob            = "cronJob"
	SpanTagComponentService            = "service"
	SpanTagComponentPipeline           = "pipeline"
	SpanTagComponentListener           = "listener"
)

// TraceHeader is the AMQP header carrying the serialized span context.
const TraceHeader = "uber-trace-id"

func StartHttpServerTracerSpanWithHeader(ctx context.Context, operationName string, headers http.Header) (context.Context, opentracing.Span) {
	spanCtx, err := opentracing.GlobalTracer().Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(headers))
	if err != nil {
		serverSpan := opentracing.GlobalTracer().StartSpan(operationName)
		return opentracing.ContextWithSpan(ctx, serverSpan), serverSpan
	}

	serverSpan := opentracing.GlobalTracer().StartSpan(operationName, ext.RPCServerOption(spanCtx))
	return opentracing.ContextWithSpan(ctx, serverSpan), serverSpan
}

// StartRabbitMQMessageTracerSpanWithHeader continues the trace found in the
// message headers, or starts a new root span when none is present.
func StartRabbitMQMessageTracerSpanWithHeader(ctx context.Context, operationName string, uberTraceId string) (context.Context, opentracing.Span) {
	textMapCarrierFromMetaData := make(opentracing.TextMapCarrier)
	textMapCarrierFromMetaData.Set(TraceHeader, uberTraceId)

	span, err := opentracing.GlobalTracer().Extract(opentracing.TextMap, textMapCarrierFromMetaData)
	if err != nil {
		serverSpan := opentracing.GlobalTracer().StartSpan(operationName)
		ctx = opentracing.ContextWithSpan(ctx, serverSpan)
		return ctx, serverSpan
	}

	serverSpan := opentracing.GlobalTracer().StartSpan(operationName, ext.RPCServerOption(span))
	ctx = opentracing.ContextWithSpan(ctx, serverSpan)
	return ctx, serverSpan
}

func StartTracerSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, operationName)
}

func TraceErr(span opentracing.Span, err error, fields ...log.Field) {
	if span == nil || err == nil {
		return
	}
	ext.LogError(span, err, fields...)
}

func InjectTextMapCarrier(spanCtx opentracing.SpanContext) (opentracing.TextMapCarrier, error) {
	m := make(opentracing.TextMapCarrier)
	if err := opentracing.GlobalTracer().Inject(spanCtx, opentracing.TextMap, m); err != nil {
		return nil, err
	}
	return m, nil
}

func ExtractTextMapCarrier(spanCtx opentracing.SpanContext) opentracing.TextMapCarrier {
	textMapCarrier, err := InjectTextMapCarrier(spanCtx)
	if err != nil {
		return make(opentracing.TextMapCarrier)
	}
	return textMapCarrier
}

// TraceHeaderFromContext returns the serialized span context of the span held
// by ctx, or an empty string.
func TraceHeaderFromContext(ctx context.Context) string {
	span := opentracing.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	return ExtractTextMapCarrier(span.Context())[TraceHeader]
}

func TagAgent(span opentracing.Span, agent string) {
	if agent != "" {
		span.SetTag(SpanTagAgent, agent)
	}
}

func TagMessage(span opentracing.Span, messageType, messageId string) {
	span.SetTag(SpanTagMessageType, messageType)
	if messageId != "" {
		span.SetTag(SpanTagMessageId, messageId)
	}
}

func TagEntity(span opentracing.Span, entityId string) {
	if entityId != "" {
		span.SetTag(SpanTagEntityId, entityId)
	}
}

func TagComponentPostgresRepository(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentPostgresRepository)
}

func TagComponentMongoRepository(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentMongoRepository)
}

func TagComponentCronJob(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentCronJob)
}

func TagComponentRest(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentRest)
}

func TagComponentService(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentService)
}

func TagComponentPipeline(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentPipeline)
}

func TagComponentListener(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentListener)
}

func RecoverAndLogToJaeger(appLogger logger.Logger) {
	if r := recover(); r != nil {
		logPanic(appLogger, r)
	}
}

// RunRecovered runs fn and turns a panic into the returned error.
func RunRecovered(appLogger logger.Logger, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(appLogger, r)
			err = errors.Errorf("recovered from panic: %v", r)
		}
	}()
	return fn()
}

func logPanic(appLogger logger.Logger, r any) {
	tracer := opentracing.GlobalTracer()
	span := tracer.StartSpan("panic-recovery")
	defer span.Finish()

	stackTrace := string(debug.Stack())
	span.LogKV(
		"event", "error",
		"error.object", r,
		"stack", stackTrace,
	)
	span.SetTag("error", true)

	appLogger.Errorf("Recovered from panic: %v\nStack trace:\n%s", r, stackTrace)
}
