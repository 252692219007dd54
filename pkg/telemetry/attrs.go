package telemetry

import (
	"fmt"
	"maps"

	"go.opentelemetry.io/otel/attribute"
)

// SpanAttributes carries the fields reportbridge spans attach: which
// target/batch a span concerns, and the divergence classification and
// artifact path once a report has been written.
type SpanAttributes struct {
	ActionCategory string

	TargetID   optional[string] // nezha.target.id
	ClassTag   optional[string] // nezha.class.tag
	DiffPath   optional[string] // nezha.diff.path
	HExit      optional[int64]  // nezha.hash.exit
	HCoarse    optional[int64]  // nezha.hash.coarse
	HFine      optional[int64]  // nezha.hash.fine
	Suppressed optional[bool]   // nezha.report.suppressed

	extraAttributes map[string]any
}

func NewSpanAttributes(actionCategory ActionCategory) *SpanAttributes {
	return &SpanAttributes{
		ActionCategory:  actionCategory.String(),
		extraAttributes: make(map[string]any),
	}
}

// EmptySpanAttributes returns a SpanAttributes instance with no action
// category, useful when populating attributes before the category is
// known.
func EmptySpanAttributes() *SpanAttributes {
	return &SpanAttributes{
		extraAttributes: make(map[string]any),
	}
}

// Merge updates the receiver with values set on other but not already
// set locally. ActionCategory is always overwritten when other sets it.
func (o *SpanAttributes) Merge(other *SpanAttributes) {
	if other == nil {
		return
	}

	if other.ActionCategory != "" {
		o.ActionCategory = other.ActionCategory
	}

	mergeOptional(&o.TargetID, &other.TargetID)
	mergeOptional(&o.ClassTag, &other.ClassTag)
	mergeOptional(&o.DiffPath, &other.DiffPath)
	mergeOptional(&o.HExit, &other.HExit)
	mergeOptional(&o.HCoarse, &other.HCoarse)
	mergeOptional(&o.HFine, &other.HFine)
	mergeOptional(&o.Suppressed, &other.Suppressed)

	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	for k, v := range other.extraAttributes {
		if _, exists := o.extraAttributes[k]; !exists {
			o.extraAttributes[k] = v
		}
	}
}

func (o *SpanAttributes) WithTargetID(val string) *SpanAttributes {
	o.TargetID.Set(val)
	return o
}

func (o *SpanAttributes) WithClassTag(val string) *SpanAttributes {
	o.ClassTag.Set(val)
	return o
}

func (o *SpanAttributes) WithDiffPath(val string) *SpanAttributes {
	o.DiffPath.Set(val)
	return o
}

func (o *SpanAttributes) WithHashes(hExit, hCoarse, hFine uint32) *SpanAttributes {
	o.HExit.Set(int64(hExit))
	o.HCoarse.Set(int64(hCoarse))
	o.HFine.Set(int64(hFine))
	return o
}

func (o *SpanAttributes) WithSuppressed(val bool) *SpanAttributes {
	o.Suppressed.Set(val)
	return o
}

func (o *SpanAttributes) WithExtraAttribute(key string, val any) *SpanAttributes {
	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	o.extraAttributes[key] = val
	return o
}

func (o *SpanAttributes) WithExtraAttributes(attrs map[string]any) *SpanAttributes {
	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	maps.Copy(o.extraAttributes, attrs)
	return o
}

func (o SpanAttributes) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	attrs = append(attrs, attribute.String("nezha.action.category", o.ActionCategory))
	if o.TargetID.set {
		attrs = append(attrs, attribute.String("nezha.target.id", o.TargetID.val))
	}
	if o.ClassTag.set {
		attrs = append(attrs, attribute.String("nezha.class.tag", o.ClassTag.val))
	}
	if o.DiffPath.set {
		attrs = append(attrs, attribute.String("nezha.diff.path", o.DiffPath.val))
	}
	if o.HExit.set {
		attrs = append(attrs, attribute.Int64("nezha.hash.exit", o.HExit.val))
	}
	if o.HCoarse.set {
		attrs = append(attrs, attribute.Int64("nezha.hash.coarse", o.HCoarse.val))
	}
	if o.HFine.set {
		attrs = append(attrs, attribute.Int64("nezha.hash.fine", o.HFine.val))
	}
	if o.Suppressed.set {
		attrs = append(attrs, attribute.Bool("nezha.report.suppressed", o.Suppressed.val))
	}

	for k, v := range o.extraAttributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	return attrs
}

type EventAttributes []attribute.KeyValue

func NewEventAttributes(attributes map[string]string) EventAttributes {
	attrs := make(EventAttributes, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

type optional[T any] struct {
	val T
	set bool
}

func (o *optional[T]) Set(val T) { o.val = val; o.set = true }

func mergeOptional[T any](target, source *optional[T]) {
	if !target.set && source.set {
		target.val = source.val
		target.set = true
	}
}
