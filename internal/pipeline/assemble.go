package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/bookgen/internal/model"
	"github.com/sells-group/bookgen/internal/render"
)

// runAssemble concatenates front matter, a linked table of contents, and the
// chapter bodies in ordinal order, then writes the book artifacts. Chapters
// still pending (a sampled run) are left out; failed chapters keep their
// placeholder bodies so the gap is visible in the output.
func (p *Pipeline) runAssemble(state *model.RunState) (string, error) {
	state.BookMarkdown = assembleMarkdown(state)

	title := ""
	if state.Spec != nil {
		title = state.Spec.Title
	}
	path, err := render.WriteBook(p.cfg.OutDir, title, state.BookMarkdown)
	if err != nil {
		return "", err
	}
	return path, nil
}

func assembleMarkdown(state *model.RunState) string {
	title, subtitle := "Book", ""
	if state.Spec != nil {
		if state.Spec.Title != "" {
			title = state.Spec.Title
		}
		subtitle = state.Spec.Subtitle
	}

	included := make([]model.Draft, 0, len(state.Drafts))
	for _, d := range state.Drafts {
		if d.Status == model.DraftDone || d.Status == model.DraftFailed {
			included = append(included, d)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)
	if subtitle != "" {
		fmt.Fprintf(&b, "_%s_\n", subtitle)
	}
	b.WriteString("\n---\n\n")

	b.WriteString("## Table of Contents\n")
	for _, d := range included {
		fmt.Fprintf(&b, "- [%d. %s](#ch%d)\n", d.Number, d.Title, d.Number)
	}
	b.WriteString("\n---\n\n")

	for _, d := range included {
		fmt.Fprintf(&b, "## <a id=\"ch%d\"></a>%d. %s\n\n", d.Number, d.Number, d.Title)
		b.WriteString(d.Body)
		b.WriteString("\n\n")
	}
	return b.String()
}
