package expr

import "testing"

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"kebab identifier", "(* tip-size 2)", "(* tip_size 2)"},
		{"minus operator kept", "(- a 1)", "(- a 1)"},
		{"negative literal kept", "(+ a -1)", "(+ a -1)"},
		{"comment", "(+ 1 2) ; add", "(+ 1 2) // add"},
		{"double comment", ";; note\n1", "// note\n1"},
		{"string untouched", `"tip-size; x"`, `"tip-size; x"`},
		{"escaped quote", `"a\"b-c"`, `"a\"b-c"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocessSource(tt.in); got != tt.want {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NumberValue(2), "2.0"},
		{NumberValue(0.25), "0.25"},
		{NumberValue(-3), "-3.0"},
		{TextValue(`say "hi"`), `"say \"hi\""`},
	}
	for _, tt := range tests {
		if got := literal(tt.v); got != tt.want {
			t.Errorf("literal(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestBindingsAreSorted(t *testing.T) {
	got, err := bindings(map[string]Value{"b": NumberValue(2), "a": NumberValue(1)})
	if err != nil {
		t.Fatalf("bindings: %v", err)
	}
	want := "(def a 1.0)\n(def b 2.0)\n"
	if got != want {
		t.Errorf("bindings = %q, want %q", got, want)
	}
}
