package graph

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/armtemiy/armlab/pkg/domain"
)

// maxLabel truncates node captions so large trees stay readable.
const maxLabel = 40

// GraphOverlay contains session state to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFor builds the overlay of a traversal state.
func OverlayFor(state *domain.State) *GraphOverlay {
	if state == nil {
		return nil
	}
	return &GraphOverlay{
		VisitedNodes: append([]string(nil), state.History...),
		CurrentNode:  state.CurrentNodeID,
	}
}

// GenerateMermaid produces a Mermaid flowchart of the tree.
// It applies semantic styling:
// - Start: ((Circle))
// - Question: [/Parallelogram/]
// - Result: [Rectangle], premium results with the premium class
// - Missing targets: {{Hexagon}} with the missing class
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(tree *domain.Tree, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var premium []string
	missing := make(map[string]bool)

	for _, id := range tree.NodeIDs() {
		node := tree.Nodes[id]
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		caption := id
		switch node.Kind() {
		case domain.KindQuestion:
			opener, closer = "[/", "/]"
			caption = id + " <br/> " + escape(truncate(node.Question.Text))
		case domain.KindResult:
			caption = id + " <br/> " + escape(truncate(node.Result.Title))
			if node.Result.Premium {
				premium = append(premium, safeID)
				caption += " ⭐"
			}
		}
		if id == tree.Start {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, caption, closer)

		if node.Kind() != domain.KindQuestion {
			continue
		}
		for _, opt := range node.Question.Options {
			if _, ok := tree.Nodes[opt.Next]; !ok {
				missing[opt.Next] = true
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escape(truncate(opt.Label)), sanitizeMermaidID(opt.Next))
		}
	}

	if _, ok := tree.Nodes[tree.Start]; !ok {
		missing[tree.Start] = true
	}
	for _, id := range sortedKeys(missing) {
		fmt.Fprintf(&sb, "    %s{{\"%s ⚠\"}}\n", sanitizeMermaidID(id), escape(id))
	}

	if len(premium) > 0 || len(missing) > 0 {
		sb.WriteString("\n    classDef premium fill:#fff3e0,stroke:#ef6c00,color:#000;\n")
		sb.WriteString("    classDef missing fill:#ffebee,stroke:#c62828,stroke-dasharray:4,color:#000;\n")
		for _, id := range premium {
			fmt.Fprintf(&sb, "    class %s premium;\n", id)
		}
		for _, id := range sortedKeys(missing) {
			fmt.Fprintf(&sb, "    class %s missing;\n", sanitizeMermaidID(id))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxLabel {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLabel-1]) + "…"
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
