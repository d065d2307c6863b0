package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengal-ssg/bengal/internal/config"
	"github.com/bengal-ssg/bengal/internal/content"
)

func TestBuildFromConfigOrdersByWeightThenName(t *testing.T) {
	tree := BuildFromConfig("main", []config.MenuEntry{
		{Name: "Contact", URL: "/contact/", Weight: 20},
		{Name: "About", URL: "/about/", Weight: 10},
		{Name: "Home", URL: "/", Weight: 10},
	})
	require.Len(t, tree.Roots, 3)
	assert.Equal(t, "About", tree.Roots[0].Name)
	assert.Equal(t, "Home", tree.Roots[1].Name)
	assert.Equal(t, "Contact", tree.Roots[2].Name)
}

func TestBuildFromConfigNesting(t *testing.T) {
	tree := BuildFromConfig("main", []config.MenuEntry{
		{Name: "Docs", URL: "/docs/"},
		{Name: "Guides", URL: "/docs/guides/", Parent: "Docs"},
	})
	require.Len(t, tree.Roots, 1)
	require.Len(t, tree.Roots[0].Children, 1)
	assert.Equal(t, "Guides", tree.Roots[0].Children[0].Name)
}

func TestBuildFromSectionsStableSortByWeightAndTitle(t *testing.T) {
	site := content.NewSite()
	root := content.NewSection("")
	rootID := site.AddSection(root)
	site.RootSections = append(site.RootSections, rootID)

	zebra := content.NewSection("/zebra")
	zebra.Title = "Zebra"
	zebraID := site.AddSection(zebra)
	site.Section(rootID).SubsectionIDs = append(site.Section(rootID).SubsectionIDs, zebraID)
	site.Sections[zebraID].ParentID = rootID

	apple := content.NewSection("/apple")
	apple.Title = "Apple"
	appleID := site.AddSection(apple)
	site.Section(rootID).SubsectionIDs = append(site.Section(rootID).SubsectionIDs, appleID)
	site.Sections[appleID].ParentID = rootID

	// RootSections only lists actual top-level sections, not the synthetic
	// empty-path root itself, so attach zebra/apple directly as roots too.
	site.RootSections = append(site.RootSections, zebraID, appleID)

	tree := BuildFromSections(site)
	require.True(t, len(tree.Roots) >= 2)
	require.Len(t, tree.Roots, 2)
	assert.Equal(t, "Apple", tree.Roots[0].Name)
	assert.Equal(t, "Zebra", tree.Roots[1].Name)
}

func TestCacheClearBumpsVersion(t *testing.T) {
	c := NewCache()
	c.Set("main", &Tree{Name: "main"})
	v0 := c.Version()
	c.Clear()
	assert.Equal(t, v0+1, c.Version())
	_, ok := c.Get("main")
	assert.False(t, ok)
}
