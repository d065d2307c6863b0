package content

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/bengal-ssg/bengal/internal/bengalerr"
)

// datePrefixRe matches a leading YYYY-MM-DD- date prefix in a filename.
var datePrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-`)

// slugifyRe removes characters that are not alphanumeric, hyphens, or periods.
var slugifyRe = regexp.MustCompile(`[^a-z0-9\-.]`)

// multiHyphenRe collapses multiple consecutive hyphens into one.
var multiHyphenRe = regexp.MustCompile(`-{2,}`)

// BuildMode controls draft/future/expired inclusion (spec §4.5 edge cases).
type BuildMode int

// Recognised build modes.
const (
	ModeDefault BuildMode = iota // exclude drafts
	ModeDraft                    // include drafts, exclude nothing else
	ModeAll                      // include everything
)

// Discover walks contentDir breadth-first and returns a Site populated with
// Sections, Pages, and page bundles. It does not render markdown, derive
// taxonomies, or build the menu tree — callers run BuildTaxonomies and the
// nav package afterward (spec §4.5).
//
// Errors for individual files are recorded into session (coded N001/N003)
// and the offending page is skipped; a missing contentDir (D001) or two
// pages resolving to the same output path (discovery/duplicate_url) is
// fatal and aborts the walk immediately (spec §4.5 invariant 2).
func Discover(contentDir string, prettyURLs bool, mode BuildMode, session *bengalerr.Session) (*Site, error) {
	if info, err := os.Stat(contentDir); err != nil || !info.IsDir() {
		return nil, bengalerr.New(bengalerr.KindDiscovery, "D001",
			fmt.Sprintf("content directory not found: %s", contentDir),
			bengalerr.InPhase("discovery"),
			bengalerr.Suggest("create a content/ directory at the project root, or point --content at one"))
	}

	site := NewSite()
	sectionByPath := map[string]SectionID{"": rootSectionID(site)}
	bundleDirs := collectBundleDirs(contentDir)
	seenOutputPaths := map[string]string{} // output path -> source path, for duplicate detection

	dirs := []string{contentDir}
	for len(dirs) > 0 {
		dir := dirs[0]
		dirs = dirs[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			session.RecordError(bengalerr.New(bengalerr.KindDiscovery, "D007",
				fmt.Sprintf("reading directory %s: %v", dir, err),
				bengalerr.InPhase("discovery")))
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		relDir, _ := filepath.Rel(contentDir, dir)
		relDir = filepath.ToSlash(relDir)
		if relDir == "." {
			relDir = ""
		}

		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				dirs = append(dirs, full)
				continue
			}
			if filepath.Ext(entry.Name()) != ".md" {
				continue
			}
			if bundleDirs[dir] && entry.Name() != "index.md" {
				continue
			}

			page, sectionMeta, err := loadPage(contentDir, full, prettyURLs, bundleDirs, session)
			if err != nil {
				continue // already recorded
			}

			switch {
			case entry.Name() == "_index.md" && relDir == "":
				page.Type = PageTypeHome
				page.Path = "/"
				rootID := sectionByPath[""]
				applySectionMetadata(site.Section(rootID), sectionMeta)
				pid := site.AddPage(page)
				site.Section(rootID).IndexPageID = pid
			case entry.Name() == "_index.md":
				secID := ensureSection(site, sectionByPath, relDir)
				sec := site.Section(secID)
				applySectionMetadata(sec, sectionMeta)
				page.Type = PageTypeList
				page.SectionID = secID
				if page.Path == "" {
					page.Path = sec.Path + "/"
				}
				pid := site.AddPage(page)
				sec.IndexPageID = pid
			default:
				if page.Draft && mode == ModeDefault {
					continue
				}
				secID := ensureSection(site, sectionByPath, relDir)
				page.SectionID = secID
				pid := site.AddPage(page)
				site.Section(secID).PageIDs = append(site.Section(secID).PageIDs, pid)
			}

			if prior, dup := seenOutputPaths[page.Path]; dup && page.Path != "" {
				return nil, bengalerr.New(bengalerr.KindDiscovery, "discovery/duplicate_url",
					fmt.Sprintf("both %s and %s resolve to %s", prior, page.SourcePath, page.Path),
					bengalerr.InPhase("discovery"),
					bengalerr.Suggest("set an explicit permalink in front matter to disambiguate"))
			}
			if page.Path != "" {
				seenOutputPaths[page.Path] = page.SourcePath
			}
		}
	}

	return site, nil
}

// rootSectionID creates and registers the synthetic root section, returning
// its ID.
func rootSectionID(site *Site) SectionID {
	root := NewSection("")
	id := site.AddSection(root)
	site.RootSections = append(site.RootSections, id)
	return id
}

// ensureSection returns the SectionID for relDir, creating it and any
// missing ancestors.
func ensureSection(site *Site, byPath map[string]SectionID, relDir string) SectionID {
	if id, ok := byPath[relDir]; ok {
		return id
	}

	parentPath := ""
	if idx := strings.LastIndex(relDir, "/"); idx >= 0 {
		parentPath = relDir[:idx]
	}
	parentID := ensureSection(site, byPath, parentPath)

	sec := NewSection("/" + relDir)
	sec.Title = capitalizeFirst(filepath.Base(relDir))
	sec.ParentID = parentID
	id := site.AddSection(sec)
	byPath[relDir] = id

	parent := site.Section(parentID)
	parent.SubsectionIDs = append(parent.SubsectionIDs, id)

	return id
}

// applySectionMetadata copies metadata parsed from an _index.md page onto
// its owning Section.
func applySectionMetadata(sec *Section, metadata map[string]any) {
	if metadata == nil {
		return
	}
	sec.Metadata = metadata
	if v, ok := metadata["title"].(string); ok && v != "" {
		sec.Title = v
	}
	if v, ok := metadata["weight"]; ok {
		if w, err := toInt(v); err == nil {
			sec.Weight = w
		}
	}
}

// loadPage reads, decodes, and populates a single content file. On error it
// records a coded error into session and returns a non-nil error so the
// caller skips the page.
func loadPage(contentDir, path string, prettyURLs bool, bundleDirs map[string]bool, session *bengalerr.Session) (*Page, map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		session.RecordError(bengalerr.New(bengalerr.KindDiscovery, "D007",
			fmt.Sprintf("reading %s: %v", path, err), bengalerr.InPhase("discovery")))
		return nil, nil, err
	}

	if err := CheckEncoding(raw); err != nil {
		session.RecordError(bengalerr.New(bengalerr.KindContent, "N003",
			fmt.Sprintf("%s: %v", path, err),
			bengalerr.At(path, 1), bengalerr.InPhase("discovery")))
		return nil, nil, err
	}

	metadata, body, err := ParseFrontmatter(raw)
	if err != nil {
		session.RecordError(bengalerr.New(bengalerr.KindContent, "N001",
			fmt.Sprintf("%s: %v", path, err),
			bengalerr.At(path, 1), bengalerr.InPhase("discovery"),
			bengalerr.Suggest("check frontmatter delimiters and YAML/TOML syntax")))
		return nil, nil, err
	}

	page := NewPage()
	if metadata != nil {
		if err := PopulatePage(page, metadata); err != nil {
			session.RecordError(bengalerr.New(bengalerr.KindContent, "N001",
				fmt.Sprintf("%s: %v", path, err),
				bengalerr.At(path, 1), bengalerr.InPhase("discovery")))
			return nil, nil, err
		}
	}
	page.RawContent = string(body)

	relPath, _ := filepath.Rel(contentDir, path)
	page.SourcePath = filepath.ToSlash(relPath)
	page.SourceDir = filepath.ToSlash(filepath.Dir(relPath))
	if page.SourceDir == "." {
		page.SourceDir = ""
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	isBundle := bundleDirs[dir]
	if isBundle {
		page.IsBundle = true
		page.BundleDir = filepath.ToSlash(dir)
		page.BundleFiles = collectBundleFiles(dir)
	}

	page.Type = PageTypeSingle

	if page.Slug == "" && filename != "_index.md" {
		name := strings.TrimSuffix(filename, ".md")
		if isBundle {
			name = filepath.Base(dir)
		}
		name = datePrefixRe.ReplaceAllString(name, "")
		page.Slug = slugify(name)
	}

	if page.Path == "" && filename != "_index.md" {
		page.Path = buildPagePath(page.SourceDir, page.Slug, prettyURLs)
	}

	page.WordCount = countWords(page.RawContent)
	if page.WordCount > 0 {
		page.ReadingTime = page.WordCount / 200
		if page.ReadingTime < 1 {
			page.ReadingTime = 1
		}
	}

	return page, metadata, nil
}

// buildPagePath computes a page's site-root-absolute path from its source
// directory and slug, honoring pretty_urls.
func buildPagePath(sourceDir, slug string, prettyURLs bool) string {
	dir := filepath.ToSlash(sourceDir)
	var p string
	if dir == "" {
		p = "/" + slug
	} else {
		p = "/" + dir + "/" + slug
	}
	if prettyURLs {
		return p + "/"
	}
	return p + ".html"
}

// slugify converts a name into a URL-safe slug. It lowercases, replaces
// spaces and underscores with hyphens, removes non-alphanumeric characters
// (except hyphens and periods), collapses multiple hyphens, and trims
// leading/trailing hyphens.
func slugify(name string) string {
	s := norm.NFC.String(name)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = slugifyRe.ReplaceAllString(s, "")
	s = multiHyphenRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// collectBundleDirs returns the set of directories containing an index.md,
// identifying page bundles.
func collectBundleDirs(contentDir string) map[string]bool {
	bundleDirs := make(map[string]bool)
	var walk func(dir string)
	walk = func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				walk(full)
				continue
			}
			if entry.Name() == "index.md" {
				bundleDirs[dir] = true
			}
		}
	}
	walk(contentDir)
	return bundleDirs
}

// collectBundleFiles returns the relative filenames of non-.md files
// co-located in a page bundle directory.
func collectBundleFiles(dir string) []string {
	var files []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".md" {
			continue
		}
		files = append(files, entry.Name())
	}
	return files
}

// countWords counts words by splitting on whitespace.
func countWords(s string) int {
	return len(strings.Fields(s))
}
