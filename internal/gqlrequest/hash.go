package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperation = "<anonymous>"

func operationLabel(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperation
	}
	return op.Name.Value
}

// operationHash fingerprints the selected operation plus the fragments it
// reaches. The document is reprinted first so whitespace and comments do not
// change the hash.
func operationHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, error) {
	used := map[string]bool{}
	markFragments(op.SelectionSet, fragments, used)

	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := []ast.Node{op}
	for _, name := range names {
		defs = append(defs, fragments[name])
	}

	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: defs})).(string)
	if !ok {
		return "", fmt.Errorf("printer returned non-string document for %s", operationLabel(op))
	}
	return framedSHA256(printed, operationLabel(op)), nil
}

func markFragments(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, used map[string]bool) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			markFragments(sel.SelectionSet, fragments, used)
		case *ast.InlineFragment:
			markFragments(sel.SelectionSet, fragments, used)
		case *ast.FragmentSpread:
			if sel.Name == nil || used[sel.Name.Value] {
				continue
			}
			if fragment, ok := fragments[sel.Name.Value]; ok {
				used[sel.Name.Value] = true
				markFragments(fragment.SelectionSet, fragments, used)
			}
		}
	}
}

// framedSHA256 length-prefixes each part so ("ab","c") and ("a","bc") differ.
func framedSHA256(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
