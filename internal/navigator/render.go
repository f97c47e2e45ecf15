package navigator

import (
	"fmt"
	"io"
	"strings"
)

// Render writes the sidebar as an indented text tree.
func Render(w io.Writer, view Sidebar) error {
	var b strings.Builder

	b.WriteString(view.Prompt + "\n")
	writeSection(&b, view.Databases, "  ")

	if view.Schemas.Display == ShowHidden {
		if view.Schemas.Message != "" {
			b.WriteString("\n" + view.Schemas.Message + "\n")
		}
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("\n" + view.Schemas.Heading + "\n")
	if view.Schemas.Display != ShowList {
		b.WriteString("  " + view.Schemas.Message + "\n")
	}
	for _, node := range view.Nodes {
		marker := "▸"
		if node.Expanded {
			marker = "▾"
		}
		fmt.Fprintf(&b, "  %s %s\n", marker, node.Name)
		if node.Tables == nil {
			continue
		}
		b.WriteString("      " + node.Tables.Heading + "\n")
		writeSection(&b, *node.Tables, "        ")
	}

	if d := view.Detail; d != nil {
		fmt.Fprintf(&b, "\n%s\n", d.Name)
		if len(d.Columns) > 0 {
			b.WriteString("  " + d.ColumnsHeading + "\n")
			for _, c := range d.Columns {
				fmt.Fprintf(&b, "    %s %s\n", c.Name, c.TypeID)
			}
		}
		if len(d.Indexes) > 0 {
			b.WriteString("  " + d.IndexesHeading + "\n")
			for _, idx := range d.Indexes {
				fmt.Fprintf(&b, "    %s (%s)\n", idx.Name, idx.Kind)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSection(b *strings.Builder, s Section, indent string) {
	if s.Display != ShowList {
		if s.Message != "" {
			b.WriteString(indent + s.Message + "\n")
		}
		return
	}
	for _, it := range s.Items {
		mark := " "
		if it.Selected {
			mark = "*"
		}
		fmt.Fprintf(b, "%s%s %s\n", indent, mark, it.Name)
	}
}
