package flow

import (
	"fmt"
	"strings"
)

// Plot renders the static stage graph in Graphviz DOT form for inspection.
// Start stages are drawn as double circles, the terminal result stage as a
// filled box, and OR edges dashed. Plot never executes anything.
func (f *Flow) Plot() string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", f.name)
	b.WriteString("  rankdir=LR;\n")

	for _, st := range f.stages {
		attrs := []string{fmt.Sprintf("label=%q", st.name)}
		if len(st.predecessors) == 0 {
			attrs = append(attrs, "shape=doublecircle")
		} else {
			attrs = append(attrs, "shape=box")
		}
		if st.name == f.returns {
			attrs = append(attrs, "style=filled", "fillcolor=lightgrey")
		}
		fmt.Fprintf(&b, "  %q [%s];\n", st.name, strings.Join(attrs, ", "))
	}

	for _, st := range f.stages {
		for _, pred := range st.predecessors {
			if st.combinator == CombinatorOr && len(st.predecessors) > 1 {
				fmt.Fprintf(&b, "  %q -> %q [style=dashed, label=\"any\"];\n", pred, st.name)
			} else {
				fmt.Fprintf(&b, "  %q -> %q;\n", pred, st.name)
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}
