package report

// Slide represents one navigable page of the report.
type Slide struct {
	Title   string
	Mermaid string
}

// BuildSlides returns a single slide for one input plugin; with several
// inputs it returns an overview slide followed by one slide per input.
func BuildSlides(summaries []Summary, opts DiagramOptions) []Slide {
	if len(summaries) <= 1 {
		title := "Partition"
		if len(summaries) == 1 {
			title = string(summaries[0].Source)
		}
		return []Slide{{Title: title, Mermaid: GenerateMermaid(summaries, opts)}}
	}

	// Overview: every input with its units, no masters.
	overviewOpts := opts
	overviewOpts.HideMasters = true
	slides := []Slide{{
		Title:   "Overview",
		Mermaid: GenerateMermaid(summaries, overviewOpts),
	}}

	for _, s := range summaries {
		slides = append(slides, Slide{
			Title:   string(s.Source),
			Mermaid: GenerateMermaid([]Summary{s}, opts),
		})
	}
	return slides
}
