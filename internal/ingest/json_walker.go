package ingest

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// JsonWalker selects parts of a parsed JSON document with JSONPath.
type JsonWalker struct{}

func NewJsonWalker() *JsonWalker {
	return &JsonWalker{}
}

// Query runs selector against root and returns the matches in document
// order. An empty selector matches root itself.
func (w *JsonWalker) Query(root any, selector string) ([]any, error) {
	if selector == "" || selector == "$" {
		return []any{root}, nil
	}
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	return x.Get(root), nil
}
