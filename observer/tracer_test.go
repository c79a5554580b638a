package observer

import (
	"context"
	"errors"
	"testing"

	"github.com/cairnlabs/cairn"
	"go.opentelemetry.io/otel/attribute"
)

func TestToOTELAttr(t *testing.T) {
	cases := []struct {
		in   cairn.SpanAttr
		want attribute.KeyValue
	}{
		{cairn.StringAttr("tool", "read_file"), attribute.String("tool", "read_file")},
		{cairn.IntAttr("step", 3), attribute.Int("step", 3)},
		{cairn.BoolAttr("debug", true), attribute.Bool("debug", true)},
		{cairn.SpanAttr{Key: "f", Value: 1.5}, attribute.Float64("f", 1.5)},
		{cairn.SpanAttr{Key: "other", Value: []int{1}}, attribute.String("other", "[1]")},
	}
	for _, c := range cases {
		if got := toOTELAttr(c.in); got != c.want {
			t.Errorf("toOTELAttr(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTracerSpanLifecycle(t *testing.T) {
	// Without Init the global provider is a no-op; the adapter must still
	// hand back usable spans.
	tr := NewTracer()
	ctx, span := tr.Start(context.Background(), "test.span", cairn.IntAttr("step", 1))
	if ctx == nil || span == nil {
		t.Fatal("expected non-nil context and span")
	}
	span.SetAttr(cairn.StringAttr("k", "v"))
	span.Error(errors.New("boom"))
	span.End()
}
