package canonicalize

import (
	"testing"
)

func TestCanonicalJSON_SortsKeysRecursively(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		expect string
	}{
		{
			name:   "flat object unordered keys",
			input:  map[string]any{"b": 2, "a": 1},
			expect: `{"a":1,"b":2}`,
		},
		{
			name: "nested object",
			input: map[string]any{
				"x": map[string]any{"z": 10, "y": 5},
			},
			expect: `{"x":{"y":5,"z":10}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalJSON(tt.input)
			if err != nil {
				t.Fatalf("CanonicalJSON failed: %v", err)
			}
			if string(got) != tt.expect {
				t.Errorf("got %s, want %s", got, tt.expect)
			}
		})
	}
}

func TestCanonicalJSON_ExcludesKeys(t *testing.T) {
	input := map[string]any{
		"plan_id":        "abc",
		"hmac_signature": "deadbeef",
	}
	got, err := CanonicalJSON(input, "hmac_signature")
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}
	want := `{"plan_id":"abc"}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonicalJSON_ByteStable(t *testing.T) {
	input := map[string]any{"a": 1, "b": []any{3, 2, 1}}
	a, err := CanonicalJSON(input)
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}
	b, err := CanonicalJSON(input)
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("canonical serialization is not byte-stable: %s != %s", a, b)
	}
}

func TestCanonicalHash(t *testing.T) {
	h1, err := CanonicalHash(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("CanonicalHash failed: %v", err)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(h1))
	}
	h2, err := CanonicalHash(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("CanonicalHash failed: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash is not deterministic: %s != %s", h1, h2)
	}
}
