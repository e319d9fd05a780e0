package native

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/configurator/pkg/expr"
	"github.com/chazu/configurator/pkg/graph"
	"github.com/chazu/configurator/pkg/kernel"
)

// segments is the circular resolution requested from polygonal kernels.
const segments = 48

// valueKind enumerates what a node evaluates to.
type valueKind int

const (
	valNumber valueKind = iota
	valText
	valShape
)

func (k valueKind) String() string {
	switch k {
	case valNumber:
		return "number"
	case valText:
		return "text"
	case valShape:
		return "shape"
	default:
		return "unknown"
	}
}

// shape is a kernel solid in local space plus the placement accumulated by
// transform nodes downstream of it.
type shape struct {
	solid     kernel.Solid
	transform graph.Transform
}

// value is the output of one node in one pass.
type value struct {
	kind  valueKind
	num   float64
	text  string
	shape shape
}

func numberValue(f float64) value { return value{kind: valNumber, num: f} }
func textValue(s string) value    { return value{kind: valText, text: s} }
func shapeValue(s shape) value    { return value{kind: valShape, shape: s} }

// output converts a value into the engine's published node output.
func (v value) output() graph.Output {
	switch v.kind {
	case valNumber:
		return graph.Output{Name: graph.PropValue, Type: graph.TypeNumber, Value: v.num}
	case valText:
		return graph.Output{Name: graph.PropContent, Type: graph.TypeString, Value: v.text}
	default:
		return graph.Output{Name: "geometry", Type: graph.TypeGeometry}
	}
}

// port is a named input of a node kind.
type port struct {
	name     string
	kind     valueKind
	optional bool
	def      float64 // default for optional numeric ports
}

// kindSpec describes one node kind: its inputs, its editable properties and
// how it evaluates.
type kindSpec struct {
	ports []port

	// variadic kinds accept inputs under any name (expression variables).
	variadic bool

	// own lists properties that are not numeric ports.
	own map[string]graph.ValueType

	eval func(p *pass, n *node) (value, error)

	propTypes map[string]graph.ValueType
}

func (s *kindSpec) port(name string) *port {
	for i := range s.ports {
		if s.ports[i].name == name {
			return &s.ports[i]
		}
	}
	return nil
}

// props returns every property the kind accepts: its own properties plus a
// Number property per numeric port, used when the port is not linked.
func (s *kindSpec) props() map[string]graph.ValueType {
	return s.propTypes
}

func number(name string) port { return port{name: name, kind: valNumber} }

func optionalNumber(name string, def float64) port {
	return port{name: name, kind: valNumber, optional: true, def: def}
}

func shapePort(name string) port { return port{name: name, kind: valShape} }

var kinds = map[string]*kindSpec{
	"number": {
		own:  map[string]graph.ValueType{graph.PropValue: graph.TypeNumber},
		eval: evalNumber,
	},
	"text": {
		own:  map[string]graph.ValueType{graph.PropContent: graph.TypeString},
		eval: evalText,
	},
	"expression": {
		variadic: true,
		own:      map[string]graph.ValueType{graph.PropContent: graph.TypeString},
		eval:     evalExpression,
	},
	"box": {
		ports: []port{number("x"), number("y"), number("z")},
		eval:  evalBox,
	},
	"cylinder": {
		ports: []port{number("height"), number("diameter")},
		eval:  evalCylinder,
	},
	"cone": {
		ports: []port{number("height"), number("bottom"), optionalNumber("top", 0)},
		eval:  evalCone,
	},
	"tube": {
		ports: []port{number("height"), number("outer"), optionalNumber("inner", 0)},
		eval:  evalTube,
	},
	"translate": {
		ports: []port{shapePort("shape"), optionalNumber("x", 0), optionalNumber("y", 0), optionalNumber("z", 0)},
		eval:  evalTranslate,
	},
	"rotate": {
		ports: []port{shapePort("shape"), optionalNumber("x", 0), optionalNumber("y", 0), optionalNumber("z", 0)},
		eval:  evalRotate,
	},
	"union": {
		ports: []port{shapePort("a"), shapePort("b")},
		eval:  evalUnion,
	},
	"difference": {
		ports: []port{shapePort("a"), shapePort("b")},
		eval:  evalDifference,
	},
}

func init() {
	for _, spec := range kinds {
		spec.propTypes = make(map[string]graph.ValueType, len(spec.own)+len(spec.ports))
		for name, typ := range spec.own {
			spec.propTypes[name] = typ
		}
		for _, p := range spec.ports {
			if p.kind == valNumber {
				spec.propTypes[p.name] = graph.TypeNumber
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Scalars
// ---------------------------------------------------------------------------

func evalNumber(p *pass, n *node) (value, error) {
	v, ok := n.props[graph.PropValue].(graph.Number)
	if !ok {
		return value{}, errors.New("number node has no value")
	}
	return numberValue(float64(v)), nil
}

func evalText(p *pass, n *node) (value, error) {
	v, _ := n.props[graph.PropContent].(graph.Text)
	return textValue(string(v)), nil
}

func evalExpression(p *pass, n *node) (value, error) {
	src, ok := n.props[graph.PropContent].(graph.Text)
	if !ok {
		return value{}, errors.New("expression node has no content")
	}

	vars := make(map[string]expr.Value, len(n.def.Inputs))
	for _, name := range sortedKeys(n.def.Inputs) {
		in, err := p.eval(n.def.Inputs[name])
		if err != nil {
			return value{}, err
		}
		switch in.kind {
		case valNumber:
			vars[name] = expr.NumberValue(in.num)
		case valText:
			vars[name] = expr.TextValue(in.text)
		default:
			return value{}, fmt.Errorf("input %q: expressions cannot take a %s", name, in.kind)
		}
	}

	out, evalErrs, err := p.exprs.Eval(string(src), vars)
	if err != nil {
		return value{}, err
	}
	if len(evalErrs) > 0 {
		errs := make([]error, len(evalErrs))
		for i, e := range evalErrs {
			errs[i] = e
		}
		return value{}, fmt.Errorf("expression: %w", errors.Join(errs...))
	}
	if out.IsText {
		return textValue(out.Text), nil
	}
	if math.IsNaN(out.Num) || math.IsInf(out.Num, 0) {
		return value{}, fmt.Errorf("expression produced %v", out.Num)
	}
	return numberValue(out.Num), nil
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

func evalBox(p *pass, n *node) (value, error) {
	dims, err := p.positives(n, "x", "y", "z")
	if err != nil {
		return value{}, err
	}
	return shapeValue(shape{solid: p.k.Box(dims[0], dims[1], dims[2])}), nil
}

func evalCylinder(p *pass, n *node) (value, error) {
	dims, err := p.positives(n, "height", "diameter")
	if err != nil {
		return value{}, err
	}
	return shapeValue(shape{solid: p.k.Cylinder(dims[0], dims[1]/2, segments)}), nil
}

func evalCone(p *pass, n *node) (value, error) {
	dims, err := p.positives(n, "height", "bottom")
	if err != nil {
		return value{}, err
	}
	top, err := p.number(n, "top")
	if err != nil {
		return value{}, err
	}
	if top < 0 {
		return value{}, fmt.Errorf("top must not be negative, got %g", top)
	}
	return shapeValue(shape{solid: p.k.Cone(dims[0], dims[1]/2, top/2, segments)}), nil
}

func evalTube(p *pass, n *node) (value, error) {
	dims, err := p.positives(n, "height", "outer")
	if err != nil {
		return value{}, err
	}
	height, outer := dims[0], dims[1]
	inner, err := p.number(n, "inner")
	if err != nil {
		return value{}, err
	}
	switch {
	case inner < 0:
		return value{}, fmt.Errorf("inner must not be negative, got %g", inner)
	case inner >= outer:
		return value{}, fmt.Errorf("inner diameter %g must be smaller than outer diameter %g", inner, outer)
	}

	body := p.k.Cylinder(height, outer/2, segments)
	if inner == 0 {
		return shapeValue(shape{solid: body}), nil
	}
	// The bore overshoots both caps so the difference cuts cleanly through.
	bore := p.k.Cylinder(height+math.Max(1, height/10), inner/2, segments)
	return shapeValue(shape{solid: p.k.Difference(body, bore)}), nil
}

// ---------------------------------------------------------------------------
// Placement and booleans
// ---------------------------------------------------------------------------

func evalTranslate(p *pass, n *node) (value, error) {
	s, offset, err := p.shapeAndVector(n)
	if err != nil {
		return value{}, err
	}
	s.transform = s.transform.Then(graph.Transform{Translation: offset})
	return shapeValue(s), nil
}

func evalRotate(p *pass, n *node) (value, error) {
	s, angles, err := p.shapeAndVector(n)
	if err != nil {
		return value{}, err
	}
	s.transform = s.transform.Then(graph.Transform{Rotation: angles})
	return shapeValue(s), nil
}

func evalUnion(p *pass, n *node) (value, error) {
	a, b, err := p.operands(n)
	if err != nil {
		return value{}, err
	}
	return shapeValue(shape{solid: p.k.Union(a, b)}), nil
}

func evalDifference(p *pass, n *node) (value, error) {
	a, b, err := p.operands(n)
	if err != nil {
		return value{}, err
	}
	return shapeValue(shape{solid: p.k.Difference(a, b)}), nil
}
