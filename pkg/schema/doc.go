// Package schema decodes and validates diagnostic trees.
//
// Two levels of checking are offered. CheckShape is the gate applied to an
// admin import: it only requires a start id and a non-empty node map, so a
// tree with dangling references is still accepted. Lint walks the graph and
// reports dangling references, unreachable nodes and questions without
// options; it is used by the validate command and never blocks a swap.
//
// Basic usage:
//
//	tree, err := schema.DecodeFile("tree.json")
//	if err != nil {
//	    // malformed JSON/YAML or unknown node type
//	}
//	if err := schema.CheckShape(tree); err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        fmt.Println(e)
//	    }
//	}
package schema
