package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestOperationMeta_SpanNameWithCategory verifies span name includes category.
func TestOperationMeta_SpanNameWithCategory(t *testing.T) {
	meta := OperationMeta{
		Category: "storage",
		Key:      "storage:write",
	}

	expected := "reliability.exec.storage.storage:write"
	if got := meta.SpanName(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// TestOperationMeta_SpanNameWithoutCategory verifies span name without category.
func TestOperationMeta_SpanNameWithoutCategory(t *testing.T) {
	meta := OperationMeta{
		Key: "cache:read",
	}

	expected := "reliability.exec.cache:read"
	if got := meta.SpanName(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// TestTracer_SpanAttributes verifies all attributes are present on span.
func TestTracer_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := OperationMeta{
		Key:      "streaming:publish",
		Category: "streaming",
		Tags:     []string{"hot-path", "critical"},
	}

	ctx, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)
	_ = ctx

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]

	if s.Name() != "reliability.exec.streaming.streaming:publish" {
		t.Errorf("expected span name 'reliability.exec.streaming.streaming:publish', got %q", s.Name())
	}

	attrs := s.Attributes()
	attrMap := make(map[string]attribute.Value)
	for _, a := range attrs {
		attrMap[string(a.Key)] = a.Value
	}

	if v, ok := attrMap["operation.key"]; !ok || v.AsString() != "streaming:publish" {
		t.Errorf("expected operation.key='streaming:publish', got %v", v)
	}
	if v, ok := attrMap["operation.category"]; !ok || v.AsString() != "streaming" {
		t.Errorf("expected operation.category='streaming', got %v", v)
	}
	if v, ok := attrMap["operation.error"]; !ok || v.AsBool() != false {
		t.Errorf("expected operation.error=false, got %v", v)
	}
}

// TestTracer_SpanAttributesMinimal verifies only required attributes when minimal meta.
func TestTracer_SpanAttributesMinimal(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := OperationMeta{Key: "system:gc"}

	ctx, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)
	_ = ctx

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]
	attrs := s.Attributes()
	attrMap := make(map[string]attribute.Value)
	for _, a := range attrs {
		attrMap[string(a.Key)] = a.Value
	}

	if _, ok := attrMap["operation.key"]; !ok {
		t.Error("expected operation.key attribute")
	}
	if _, ok := attrMap["operation.error"]; !ok {
		t.Error("expected operation.error attribute")
	}
	if v, ok := attrMap["operation.category"]; ok && v.AsString() != "" {
		t.Errorf("expected no operation.category, got %v", v)
	}
}

// TestTracer_ContextPropagation verifies parent span is propagated.
func TestTracer_ContextPropagation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := OperationMeta{Key: "child_op"}

	parentCtx, parentSpan := tracer.Start(context.Background(), "parent")

	childCtx, childSpan := tr.StartSpan(parentCtx, meta)
	tr.EndSpan(childSpan, nil)
	parentSpan.End()
	_ = childCtx

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	var child sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == "reliability.exec.child_op" {
			child = s
			break
		}
	}
	if child == nil {
		t.Fatal("child span not found")
	}

	if child.Parent().TraceID() != parentSpan.SpanContext().TraceID() {
		t.Error("child span should have same trace ID as parent")
	}
	if !child.Parent().SpanID().IsValid() {
		t.Error("child span should have valid parent span ID")
	}
}

// TestTracer_ErrorRecording verifies error sets span status and attribute.
func TestTracer_ErrorRecording(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := OperationMeta{Key: "failing_op"}

	ctx, span := tr.StartSpan(context.Background(), meta)
	testErr := errors.New("execution failed")
	tr.EndSpan(span, testErr)
	_ = ctx

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]

	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status().Code)
	}

	attrs := s.Attributes()
	var opError bool
	for _, a := range attrs {
		if string(a.Key) == "operation.error" {
			opError = a.Value.AsBool()
			break
		}
	}
	if !opError {
		t.Error("expected operation.error=true")
	}
}
