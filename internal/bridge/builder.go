// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"github.com/cmarchand/xpath-basex-ext/internal/xmlnode"

	"github.com/beevik/etree"
)

// DocumentBuilder builds a native document from one serialized item.
type DocumentBuilder interface {
	Build(data []byte) (*etree.Document, error)
}

// EtreeBuilder parses items with etree and requires each to have a root element.
type EtreeBuilder struct{}

func (EtreeBuilder) Build(data []byte) (*etree.Document, error) {
	return xmlnode.ParseDocument(data)
}

// BuilderFunc adapts a function to DocumentBuilder.
type BuilderFunc func(data []byte) (*etree.Document, error)

func (f BuilderFunc) Build(data []byte) (*etree.Document, error) { return f(data) }
