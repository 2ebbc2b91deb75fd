package jsonutil

import (
	"errors"
	"testing"
)

func TestUnmarshalDirect(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	repaired, err := Unmarshal([]byte(`{"a": 3}`), &v)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if repaired {
		t.Fatal("well-formed input must not be flagged as repaired")
	}
	if v.A != 3 {
		t.Fatalf("got %d, want 3", v.A)
	}
}

func TestUnmarshalStripsFences(t *testing.T) {
	raw := "```json\n{\"a\": 5}\n```"
	var v struct {
		A int `json:"a"`
	}
	repaired, err := Unmarshal([]byte(raw), &v)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !repaired {
		t.Fatal("fenced input must be flagged as repaired")
	}
	if v.A != 5 {
		t.Fatalf("got %d, want 5", v.A)
	}
}

func TestUnmarshalExtractsLiteralFromProse(t *testing.T) {
	raw := `Sure! Here is the result you asked for:

{"queries": ["one", "two"]}

Let me know if you need anything else.`
	var v struct {
		Queries []string `json:"queries"`
	}
	repaired, err := Unmarshal([]byte(raw), &v)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !repaired {
		t.Fatal("prose-wrapped input must be flagged as repaired")
	}
	if len(v.Queries) != 2 || v.Queries[0] != "one" {
		t.Fatalf("unexpected queries %v", v.Queries)
	}
}

func TestUnmarshalNoJSON(t *testing.T) {
	var v map[string]any
	_, err := Unmarshal([]byte("there is no structure here"), &v)
	if !errors.Is(err, ErrNoJSON) {
		t.Fatalf("got %v, want ErrNoJSON", err)
	}
}

func TestLargestLiteralHonorsStrings(t *testing.T) {
	raw := `noise {"text": "a brace } inside a string", "n": 1} trailing`
	lit, ok := LargestLiteral([]byte(raw))
	if !ok {
		t.Fatal("expected a literal")
	}
	want := `{"text": "a brace } inside a string", "n": 1}`
	if string(lit) != want {
		t.Fatalf("got %s, want %s", lit, want)
	}
}

func TestLargestLiteralPicksLargest(t *testing.T) {
	raw := `{"a":1} and also {"b": {"c": [1,2,3]}}`
	lit, ok := LargestLiteral([]byte(raw))
	if !ok {
		t.Fatal("expected a literal")
	}
	if string(lit) != `{"b": {"c": [1,2,3]}}` {
		t.Fatalf("got %s", lit)
	}
}

func TestStripFencesPassThrough(t *testing.T) {
	if got := string(StripFences([]byte("  {\"a\":1}  "))); got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
}

func TestMarshalIndentNoEscape(t *testing.T) {
	b, err := MarshalIndentNoEscape(map[string]string{"k": "<value>"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(b); got != "{\n  \"k\": \"<value>\"\n}" {
		t.Fatalf("got %q", got)
	}
}
