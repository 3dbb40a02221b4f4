// Package gqlrequest decodes and inspects incoming GraphQL requests before
// execution so logging, metrics and tracing can describe them consistently.
package gqlrequest

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// Analysis stores parsed and derived GraphQL request metadata.
type Analysis struct {
	Envelope Envelope

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string
	OperationHash string

	// RootFields lists the distinct top-level fields the operation selects,
	// sorted by name. Aliases are resolved to the underlying field.
	RootFields []string

	FieldCount     int
	SelectionDepth int
	VariableCount  int

	DecodeError    error
	ParseError     error
	SelectionError error
	HashError      error
}

// Err joins every error recorded while analyzing the request.
func (a *Analysis) Err() error {
	if a == nil {
		return nil
	}
	return errors.Join(a.DecodeError, a.ParseError, a.SelectionError, a.HashError)
}

// Selects reports whether the operation selects field at the root.
func (a *Analysis) Selects(field string) bool {
	if a == nil {
		return false
	}
	i := sort.SearchStrings(a.RootFields, field)
	return i < len(a.RootFields) && a.RootFields[i] == field
}

// AnalyzeRequest decodes and analyzes a GraphQL request payload.
func AnalyzeRequest(r *http.Request) *Analysis {
	env, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(env)
	analysis.DecodeError = err
	return analysis
}

// AnalyzeEnvelope parses and analyzes a normalized request envelope.
func AnalyzeEnvelope(env Envelope) *Analysis {
	analysis := &Analysis{
		Envelope:  env,
		Fragments: map[string]*ast.FragmentDefinition{},
	}
	if strings.TrimSpace(env.Query) == "" {
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(env.Query), Name: "graphql"}),
	})
	if err != nil {
		analysis.ParseError = err
		return analysis
	}
	analysis.Document = doc

	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			operations = append(operations, d)
		case *ast.FragmentDefinition:
			if d.Name != nil && d.Name.Value != "" {
				analysis.Fragments[d.Name.Value] = d
			}
		}
	}

	op, err := pickOperation(operations, env.OperationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}

	analysis.Operation = op
	analysis.OperationName = operationLabel(op)
	analysis.OperationType = string(op.Operation)
	analysis.VariableCount = len(op.VariableDefinitions)

	w := &selectionWalker{fragments: analysis.Fragments, expanding: map[string]bool{}}
	analysis.RootFields = w.rootFields(op.SelectionSet)
	analysis.FieldCount, analysis.SelectionDepth = w.walk(op.SelectionSet, 1)

	analysis.OperationHash, analysis.HashError = operationHash(op, analysis.Fragments)
	return analysis
}

func pickOperation(operations []*ast.OperationDefinition, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == name {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", name)
	}
	switch len(operations) {
	case 0:
		return nil, errors.New("request does not include an operation")
	case 1:
		return operations[0], nil
	default:
		return nil, errors.New("operationName is required when request has multiple operations")
	}
}

// selectionWalker expands fragment spreads while guarding against cycles.
type selectionWalker struct {
	fragments map[string]*ast.FragmentDefinition
	expanding map[string]bool
}

// walk returns the number of fields under set and the deepest field level.
func (w *selectionWalker) walk(set *ast.SelectionSet, depth int) (fields, deepest int) {
	if set == nil {
		return 0, depth - 1
	}
	deepest = depth
	for _, selection := range set.Selections {
		var n, d int
		switch sel := selection.(type) {
		case *ast.Field:
			n, d = w.walk(sel.SelectionSet, depth+1)
			n++
		case *ast.InlineFragment:
			n, d = w.walk(sel.SelectionSet, depth)
		case *ast.FragmentSpread:
			n, d = w.spread(sel, func(set *ast.SelectionSet) (int, int) { return w.walk(set, depth) })
		}
		fields += n
		if d > deepest {
			deepest = d
		}
	}
	return fields, deepest
}

func (w *selectionWalker) rootFields(set *ast.SelectionSet) []string {
	seen := map[string]bool{}
	var collect func(*ast.SelectionSet)
	collect = func(set *ast.SelectionSet) {
		if set == nil {
			return
		}
		for _, selection := range set.Selections {
			switch sel := selection.(type) {
			case *ast.Field:
				if sel.Name != nil {
					seen[sel.Name.Value] = true
				}
			case *ast.InlineFragment:
				collect(sel.SelectionSet)
			case *ast.FragmentSpread:
				w.spread(sel, func(set *ast.SelectionSet) (int, int) {
					collect(set)
					return 0, 0
				})
			}
		}
	}
	collect(set)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (w *selectionWalker) spread(sel *ast.FragmentSpread, visit func(*ast.SelectionSet) (int, int)) (int, int) {
	if sel.Name == nil {
		return 0, 0
	}
	name := sel.Name.Value
	fragment, ok := w.fragments[name]
	if !ok || w.expanding[name] {
		return 0, 0
	}
	w.expanding[name] = true
	defer delete(w.expanding, name)
	return visit(fragment.SelectionSet)
}
