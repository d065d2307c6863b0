package content

// SetSectionNavigation links PrevID/NextID between sibling single pages
// within each section, after sorting each section's pages newest first
// (SortByDate with ascending=false). Generated on the taxonomy
// phase, not discovery, since it depends on the full date ordering of a
// section's pages (spec §4.8 phase: taxonomy precedes rendering).
func SetSectionNavigation(site *Site) {
	bySection := make(map[SectionID][]*Page)
	for _, p := range site.Pages {
		if p.Type != PageTypeSingle || p.Virtual {
			continue
		}
		bySection[p.SectionID] = append(bySection[p.SectionID], p)
	}

	for _, pages := range bySection {
		SortByDate(pages, false)
		for i, p := range pages {
			if i > 0 {
				p.NextID = pages[i-1].ID // newer page
			}
			if i < len(pages)-1 {
				p.PrevID = pages[i+1].ID // older page
			}
		}
	}
}
