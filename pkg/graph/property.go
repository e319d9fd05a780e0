package graph

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValueType is the engine's tag for a property or output value.
type ValueType string

const (
	TypeString   ValueType = "String"
	TypeNumber   ValueType = "Number"
	TypeGeometry ValueType = "Geometry"
)

// Property names the engine accepts for the two value kinds.
const (
	PropContent = "content" // text payload of a String property
	PropValue   = "value"   // numeric payload of a Number property
)

// PropertyValue is a value that can be submitted to a node. It has exactly
// two implementations, Text and Number; callers dispatch with a type switch.
type PropertyValue interface {
	Type() ValueType
	propertyValue() // restricts implementations to this package
}

// Text is a String-kind property value.
type Text string

// Type returns TypeString.
func (Text) Type() ValueType { return TypeString }
func (Text) propertyValue()  {}

// Number is a Number-kind property value.
type Number float64

// Type returns TypeNumber.
func (Number) Type() ValueType { return TypeNumber }
func (Number) propertyValue()  {}

// Property is a named value change addressed to one node.
type Property struct {
	Name  string
	Value PropertyValue
}

// NewProperty builds the property the engine expects for v: text goes to
// "content", numbers go to "value".
func NewProperty(v PropertyValue) Property {
	switch v.(type) {
	case Text:
		return Property{Name: PropContent, Value: v}
	default:
		return Property{Name: PropValue, Value: v}
	}
}

// envelope is the wire form of a PropertyValue: {"type": ..., "content": ...}.
type envelope struct {
	Type    ValueType       `json:"type"`
	Content json.RawMessage `json:"content"`
}

// MarshalValue encodes v in the engine's {"type","content"} form.
func MarshalValue(v PropertyValue) ([]byte, error) {
	var content any
	switch v := v.(type) {
	case Text:
		content = string(v)
	case Number:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("graph: number %v is not representable", f)
		}
		content = f
	case nil:
		return nil, fmt.Errorf("graph: nil property value")
	default:
		return nil, fmt.Errorf("graph: unsupported property value %T", v)
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: v.Type(), Content: raw})
}

// UnmarshalValue decodes the engine's {"type","content"} form.
func UnmarshalValue(data []byte) (PropertyValue, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("graph: decoding property value: %w", err)
	}
	switch env.Type {
	case TypeString:
		var s string
		if err := json.Unmarshal(env.Content, &s); err != nil {
			return nil, fmt.Errorf("graph: String content: %w", err)
		}
		return Text(s), nil
	case TypeNumber:
		var f float64
		if err := json.Unmarshal(env.Content, &f); err != nil {
			return nil, fmt.Errorf("graph: Number content: %w", err)
		}
		return Number(f), nil
	default:
		return nil, fmt.Errorf("graph: unsupported property type %q", env.Type)
	}
}

// MarshalJSON encodes the property as {"name": ..., "value": {...}}.
func (p Property) MarshalJSON() ([]byte, error) {
	value, err := MarshalValue(p.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}{p.Name, value})
}

// UnmarshalJSON decodes the {"name": ..., "value": {...}} form.
func (p *Property) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	v, err := UnmarshalValue(wire.Value)
	if err != nil {
		return err
	}
	p.Name = wire.Name
	p.Value = v
	return nil
}

// String formats the property for logs.
func (p Property) String() string {
	switch v := p.Value.(type) {
	case Text:
		return fmt.Sprintf("%s=%q (%s)", p.Name, string(v), v.Type())
	case Number:
		return fmt.Sprintf("%s=%g (%s)", p.Name, float64(v), v.Type())
	default:
		return fmt.Sprintf("%s=<invalid>", p.Name)
	}
}
