package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olehluchkiv/mastersort/internal/graph"
)

// DiagramOptions controls Mermaid diagram generation.
type DiagramOptions struct {
	MaxMastersPerUnit int  // 0 means unlimited; extra masters collapse into one node
	HideMasters       bool // draw inputs and units only
	IncludeInit       bool // include %%{init:}%% directive (for standalone .mmd files)
}

// DefaultDiagramOptions returns sensible defaults for diagram generation.
func DefaultDiagramOptions() DiagramOptions {
	return DiagramOptions{MaxMastersPerUnit: 25}
}

const initDirective = "%%{init: {'theme': 'base', 'themeVariables': {'primaryColor': '#ffffff', 'primaryBorderColor': '#cccccc', 'primaryTextColor': '#000000', 'lineColor': '#555555'}}%%\n"

// GenerateMermaid produces a Mermaid flowchart: each input plugin points at
// its output units, each unit points at the masters it declares.
func GenerateMermaid(summaries []Summary, opts DiagramOptions) string {
	var b strings.Builder

	if opts.IncludeInit {
		b.WriteString(initDirective)
	}
	b.WriteString("flowchart LR")
	if len(summaries) == 0 {
		return b.String()
	}
	b.WriteString("\n")
	b.WriteString("    classDef sourceStyle fill:#2374ab,stroke:#1a5a8a,color:#fff,stroke-width:2px,font-weight:bold\n")
	b.WriteString("    classDef unitStyle fill:#4a9c6d,stroke:#357a50,color:#fff,stroke-width:2px\n")
	b.WriteString("    classDef masterStyle fill:#f4f4f4,stroke:#999999,color:#212529")

	var sources, units []string
	masters := make(map[string]graph.SourceID)
	var edges []string

	for _, s := range summaries {
		srcID := NodeID("src", string(s.Source))
		sources = append(sources, fmt.Sprintf("    %s[\"%s\"]", srcID, s.Source))
		for _, u := range s.Units {
			unitID := NodeID("unit", string(u.Name))
			units = append(units, fmt.Sprintf("    %s([\"%s<br/>%d/%d masters\"])", unitID, u.Name, len(u.Masters), s.Limit))
			edges = append(edges, fmt.Sprintf("    %s --> %s", srcID, unitID))

			if opts.HideMasters {
				continue
			}
			shown := u.Masters
			hidden := 0
			if opts.MaxMastersPerUnit > 0 && len(shown) > opts.MaxMastersPerUnit {
				hidden = len(shown) - opts.MaxMastersPerUnit
				shown = shown[:opts.MaxMastersPerUnit]
			}
			for _, m := range shown {
				masterID := NodeID("master", string(m))
				masters[masterID] = m
				edges = append(edges, fmt.Sprintf("    %s -.-> %s", unitID, masterID))
			}
			if hidden > 0 {
				moreID := NodeID("more", string(u.Name))
				units = append(units, fmt.Sprintf("    %s[\"... %d more\"]", moreID, hidden))
				edges = append(edges, fmt.Sprintf("    %s -.-> %s", unitID, moreID))
			}
		}
	}

	masterIDs := make([]string, 0, len(masters))
	for id := range masters {
		masterIDs = append(masterIDs, id)
	}
	sort.Strings(masterIDs)

	b.WriteString("\n")
	for _, line := range sources {
		b.WriteString("\n" + line)
	}
	for _, line := range units {
		b.WriteString("\n" + line)
	}
	for _, id := range masterIDs {
		b.WriteString(fmt.Sprintf("\n    %s[\"%s\"]", id, masters[id]))
	}

	b.WriteString("\n")
	for _, e := range edges {
		b.WriteString("\n" + e)
	}

	// Style assignments section.
	b.WriteString("\n")
	for _, s := range summaries {
		b.WriteString(fmt.Sprintf("\n    class %s sourceStyle", NodeID("src", string(s.Source))))
		for _, u := range s.Units {
			b.WriteString(fmt.Sprintf("\n    class %s unitStyle", NodeID("unit", string(u.Name))))
		}
	}
	for _, id := range masterIDs {
		b.WriteString(fmt.Sprintf("\n    class %s masterStyle", id))
	}

	return b.String()
}

// sanitizeID replaces characters Mermaid does not accept in node ids.
func sanitizeID(s string) string {
	r := strings.NewReplacer("/", "_", ".", "_", "-", "_", " ", "_", "'", "_", "\"", "_", "(", "_", ")", "_")
	return r.Replace(s)
}

// NodeID builds a sanitized node ID from a node role and a plugin name.
func NodeID(role, name string) string {
	return sanitizeID(role + "_" + name)
}
