package ai

import (
	"testing"
)

type extractionOut struct {
	Entities []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"entities"`
}

func TestUnmarshalFlexibleModelOutputVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "valid json",
			input: `{"entities":[{"name":"Alice","type":"person"}]}`,
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{entities: [{name: 'Alice', type: 'person'}]}`,
		},
		{
			name:  "trailing comma",
			input: `{"entities":[{"name":"Alice","type":"person"},]}`,
		},
		{
			name:  "truncated closers",
			input: `{"entities":[{"name":"Alice","type":"person"`,
		},
		{
			name:  "double-encoded string",
			input: `"{\"entities\":[{\"name\":\"Alice\",\"type\":\"person\"}]}"`,
		},
		{
			name:  "doubled opening brace",
			input: "{\n{\"entities\":[{\"name\":\"Alice\",\"type\":\"person\"}]}",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got extractionOut
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible: %v", err)
			}
			if len(got.Entities) != 1 || got.Entities[0].Name != "Alice" || got.Entities[0].Type != "person" {
				t.Fatalf("unexpected result: %+v", got)
			}
		})
	}
}

func TestUnmarshalFlexibleArray(t *testing.T) {
	var got []struct {
		Name string `json:"name"`
	}
	if err := UnmarshalFlexible(`[{name:'Alice'},{name:'Bob',}]`, &got); err != nil {
		t.Fatalf("UnmarshalFlexible: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Alice" || got[1].Name != "Bob" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestUnmarshalFlexibleUnrecoverable(t *testing.T) {
	var got extractionOut
	if err := UnmarshalFlexible("the requested entities are Alice and Bob", &got); err == nil {
		t.Fatalf("expected error for non-JSON input")
	}
}

func TestUnmarshalFlexibleStringifiedWithNewlines(t *testing.T) {
	input := `"{\n  \"entities\": [\n    {\"name\": \"ACME Corporation\", \"type\": \"org\"}\n  ]\n}\n"`

	var got extractionOut
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible: %v", err)
	}
	if len(got.Entities) != 1 || got.Entities[0].Name != "ACME Corporation" {
		t.Fatalf("unexpected result: %+v", got)
	}
}
