// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package xmlnode holds small helpers over etree trees that give them the
// XPath data model view the extension relies on: string values of elements and
// documents, and parsing of standalone elements such as connection descriptors.
package xmlnode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

var (
	// ErrNoRoot is returned when parsed markup has no root element.
	ErrNoRoot = errors.New("markup has no root element")
	// ErrNotWellFormed is returned when markup has a root element but also a
	// second top-level element or non-whitespace text outside it.
	ErrNotWellFormed = errors.New("markup is not a well-formed document")
)

// StringValue returns the concatenation of all descendant text of el, like
// the XPath string() function applied to an element node.
func StringValue(el *etree.Element) string {
	if el == nil {
		return ""
	}
	var b strings.Builder
	writeText(&b, el)
	return b.String()
}

// DocumentStringValue returns the text of the root element. For documents
// built by ParseDocument this equals the XPath string value of the document
// node, since only whitespace, comments and processing instructions may sit
// outside the root. It is not the full document string value for trees
// assembled by hand with several top-level elements.
func DocumentStringValue(doc *etree.Document) string {
	if doc == nil {
		return ""
	}
	return StringValue(doc.Root())
}

func writeText(b *strings.Builder, el *etree.Element) {
	for _, tok := range el.Child {
		switch v := tok.(type) {
		case *etree.CharData:
			b.WriteString(v.Data)
		case *etree.Element:
			writeText(b, v)
		}
	}
}

// ParseDocument parses data into a document. The markup must hold exactly
// one root element; anything else at top level other than whitespace,
// comments, processing instructions and a doctype is rejected.
func ParseDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, ErrNoRoot
	}
	if err := checkTopLevel(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// checkTopLevel catches what etree's reader lets through: a second root
// element or text outside the root.
func checkTopLevel(doc *etree.Document) error {
	roots := 0
	for _, tok := range doc.Child {
		switch v := tok.(type) {
		case *etree.Element:
			roots++
			if roots > 1 {
				return fmt.Errorf("%w: second top-level element <%s>", ErrNotWellFormed, v.FullTag())
			}
		case *etree.CharData:
			if strings.TrimSpace(v.Data) != "" {
				return fmt.Errorf("%w: text outside the root element", ErrNotWellFormed)
			}
		}
	}
	return nil
}

// ParseElement parses data and returns its root element.
func ParseElement(data []byte) (*etree.Element, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return doc.Root(), nil
}
