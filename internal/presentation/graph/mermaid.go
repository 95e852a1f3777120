package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/topical/pkg/domain"
)

// GenerateInstanceMermaid renders the instance tree of a conversation as a
// Mermaid flowchart. Edges point from the instance notified on completion to
// the instance that will notify it. Shapes:
// - Root: ((Circle))
// - Other instances: [Rectangle]
// Completed instances and active leaves get the "completed" and "active" classes.
func GenerateInstanceMermaid(conv *domain.Conversation) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	instances := conv.Topical.Instances
	ids := make([]string, 0, len(instances))
	for id := range instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	hasChild := make(map[string]bool)
	for _, id := range ids {
		if cb := instances[id].CallbackID; cb != "" && !instances[id].Completed() {
			hasChild[cb] = true
		}
	}

	var completed, active []string
	for _, id := range ids {
		inst := instances[id]
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		if id == conv.Topical.RootInstanceID {
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s <br/> %s\"%s\n", safeID, opener, inst.TopicName, id, closer))

		if inst.CallbackID != "" {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(inst.CallbackID), safeID))
		}

		switch {
		case inst.Completed():
			completed = append(completed, safeID)
		case !hasChild[id]:
			active = append(active, safeID)
		}
	}

	if len(completed)+len(active) > 0 {
		sb.WriteString("\n    %% Status Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef completed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef active fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		for _, id := range completed {
			sb.WriteString(fmt.Sprintf("    class %s completed;\n", id))
		}
		for _, id := range active {
			sb.WriteString(fmt.Sprintf("    class %s active;\n", id))
		}
	}

	return sb.String()
}

// GenerateTopicMermaid renders which topics handle the completion of which,
// one edge per completion handler. Topics referenced but not registered are
// drawn with dashed edges.
func GenerateTopicMermaid(names []string, children func(name string) []string) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	registered := make(map[string]bool, len(names))
	for _, name := range names {
		registered[name] = true
	}

	var missing []string
	seen := make(map[string]bool)
	for _, name := range names {
		safeID := sanitizeMermaidID(name)
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", safeID, name))

		kids := append([]string(nil), children(name)...)
		sort.Strings(kids)
		for _, child := range kids {
			arrow := "-->"
			if !registered[child] {
				arrow = "-.->"
				if !seen[child] {
					seen[child] = true
					missing = append(missing, child)
				}
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, sanitizeMermaidID(child)))
		}
	}
	for _, name := range missing {
		sb.WriteString(fmt.Sprintf("    %s[\"%s (missing)\"]\n", sanitizeMermaidID(name), name))
	}
	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
