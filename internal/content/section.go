package content

// Section is a directory-backed grouping of pages, possibly with nested
// subsections. Identity is Path. Subsections and pages are referenced by ID
// through the owning Site, never by pointer, so the tree can be built
// bottom-up or top-down without creating reference cycles (spec §9).
type Section struct {
	ID       SectionID
	ParentID SectionID // NoSectionID for a root section

	Path  string // site-root-absolute directory path, e.g. "/blog"
	Href  string // includes baseurl
	Title string

	// IndexPageID points at the page rendered from this section's
	// _index.md, or NoPageID if the section has no index content (an
	// auto-generated listing is used instead).
	IndexPageID PageID

	PageIDs       []PageID
	SubsectionIDs []SectionID

	Metadata map[string]any
	Weight   int
}

// NewSection returns a Section with ID/Parent/IndexPageID sentinels
// initialized.
func NewSection(path string) *Section {
	return &Section{
		ID:          NoSectionID,
		ParentID:    NoSectionID,
		IndexPageID: NoPageID,
		Path:        path,
		Metadata:    map[string]any{},
	}
}

// Pages resolves this section's PageIDs against the owning Site.
func (sec *Section) Pages(s *Site) []*Page {
	out := make([]*Page, 0, len(sec.PageIDs))
	for _, id := range sec.PageIDs {
		if p := s.Page(id); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Subsections resolves this section's SubsectionIDs against the owning
// Site.
func (sec *Section) Subsections(s *Site) []*Section {
	out := make([]*Section, 0, len(sec.SubsectionIDs))
	for _, id := range sec.SubsectionIDs {
		if child := s.Section(id); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// Parent resolves this section's ParentID against the owning Site. Returns
// nil for a root section.
func (sec *Section) Parent(s *Site) *Section {
	return s.Section(sec.ParentID)
}

// IndexPage resolves this section's IndexPageID against the owning Site.
// Returns nil if the section has no _index.md.
func (sec *Section) IndexPage(s *Site) *Page {
	return s.Page(sec.IndexPageID)
}

// sectionSubtreeHasCycle reports whether following SubsectionIDs from root
// ever revisits a SectionID, guarding the invariant that the section tree
// is acyclic (construction bug, not user error, if violated).
func sectionSubtreeHasCycle(s *Site, root SectionID) bool {
	visited := make(map[SectionID]bool)
	var walk func(id SectionID) bool
	walk = func(id SectionID) bool {
		if visited[id] {
			return true
		}
		visited[id] = true
		sec := s.Section(id)
		if sec == nil {
			return false
		}
		for _, child := range sec.SubsectionIDs {
			if walk(child) {
				return true
			}
		}
		return false
	}
	return walk(root)
}
