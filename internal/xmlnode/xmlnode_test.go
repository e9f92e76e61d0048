// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package xmlnode

import (
	"errors"
	"testing"
)

func TestStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple text", input: "<test>7</test>", want: "7"},
		{name: "nested text", input: "<a>x<b>y</b>z</a>", want: "xyz"},
		{name: "comments skipped", input: "<a>1<!-- c -->2</a>", want: "12"},
		{name: "empty element", input: "<a/>", want: ""},
		{name: "cdata", input: "<a><![CDATA[<raw>]]></a>", want: "<raw>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseDocument() error = %v", err)
			}
			if got := DocumentStringValue(doc); got != tt.want {
				t.Errorf("DocumentStringValue() = %q, want %q", got, tt.want)
			}
			if got := StringValue(doc.Root()); got != tt.want {
				t.Errorf("StringValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDocument_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error // nil means any error
	}{
		{name: "unclosed element", input: "<open>"},
		{name: "mismatched end tag", input: "<a></b>"},
		{name: "blank", input: "   ", want: ErrNoRoot},
		{name: "atomic value", input: "42", want: ErrNoRoot},
		{name: "trailing text", input: "<a/>junk", want: ErrNotWellFormed},
		{name: "leading text", input: "junk<a/>", want: ErrNotWellFormed},
		{name: "second root", input: "<a/><b/>", want: ErrNotWellFormed},
		{name: "second root after whitespace", input: "<a>1</a>\n<a>2</a>", want: ErrNotWellFormed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.input))
			if err == nil {
				t.Fatalf("ParseDocument(%q) = %v, want error", tt.input, doc)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("ParseDocument(%q) error = %v, want %v", tt.input, err, tt.want)
			}
		})
	}
}

func TestParseDocument_TopLevelMiscAllowed(t *testing.T) {
	input := "<?xml version=\"1.0\"?>\n<!-- head -->\n<a>x</a>\n<?pi data?>\n"
	doc, err := ParseDocument([]byte(input))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	if got := DocumentStringValue(doc); got != "x" {
		t.Errorf("DocumentStringValue() = %q, want %q", got, "x")
	}
}

func TestParseElement(t *testing.T) {
	el, err := ParseElement([]byte(`<?xml version="1.0"?><basex><server>h</server></basex>`))
	if err != nil {
		t.Fatalf("ParseElement() error = %v", err)
	}
	if el.Tag != "basex" {
		t.Errorf("Tag = %q, want basex", el.Tag)
	}
	if StringValue(nil) != "" {
		t.Error("StringValue(nil) should be empty")
	}
}
