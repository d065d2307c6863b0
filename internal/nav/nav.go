// Package nav builds and caches the site navigation tree (spec §3 Menu):
// either derived from sections and page weights, or declared explicitly in
// config. Trees are cached per tree name and cleared through
// cacheregistry's nav_change / structural_change reasons.
package nav

import (
	"sort"
	"strings"
	"sync"

	"github.com/bengal-ssg/bengal/internal/config"
	"github.com/bengal-ssg/bengal/internal/content"
)

// Node is one entry in a navigation tree.
type Node struct {
	Name     string
	Href     string
	Path     string
	Weight   int
	Children []*Node
}

// Tree is a named navigation tree (e.g. "main", "footer").
type Tree struct {
	Name  string
	Roots []*Node
}

// BuildFromConfig constructs a Tree from declarative config.MenuEntry
// values. Entries without a Parent become roots; an entry naming a Parent
// is attached under the entry with that name wherever it sits in the list
// (if names repeat, the last one in weight order); an entry whose Parent
// names no entry becomes a root.
func BuildFromConfig(name string, entries []config.MenuEntry) *Tree {
	tree := &Tree{Name: name}
	byName := map[string]*Node{}

	sorted := make([]config.MenuEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight < sorted[j].Weight
		}
		return sorted[i].Name < sorted[j].Name
	})

	for _, e := range sorted {
		n := &Node{Name: e.Name, Href: e.URL, Path: e.URL, Weight: e.Weight}
		byName[e.Name] = n
	}
	for _, e := range sorted {
		n := byName[e.Name]
		if e.Parent != "" {
			if parent, ok := byName[e.Parent]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		tree.Roots = append(tree.Roots, n)
	}
	return tree
}

// BuildFromSections derives a Tree from the Site's section graph, ordering
// siblings by Section.Weight ascending with weight 0 (unset) after every
// weighted sibling, ties broken by case-insensitive Title (stable sort),
// per spec §4.5 "Menu derivation".
func BuildFromSections(site *content.Site) *Tree {
	tree := &Tree{Name: "main"}
	for _, id := range site.RootSections {
		sec := site.Section(id)
		if sec == nil || sec.Path == "" {
			continue // skip the synthetic root section itself
		}
		tree.Roots = append(tree.Roots, sectionNode(site, sec))
	}
	sortNodesByWeightThenTitle(tree.Roots)
	return tree
}

func sectionNode(site *content.Site, sec *content.Section) *Node {
	n := &Node{Name: sec.Title, Href: sec.Href, Path: sec.Path, Weight: sec.Weight}
	for _, childID := range sec.SubsectionIDs {
		child := site.Section(childID)
		if child == nil {
			continue
		}
		n.Children = append(n.Children, sectionNode(site, child))
	}
	sortNodesByWeightThenTitle(n.Children)
	return n
}

func sortNodesByWeightThenTitle(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		wi, wj := nodes[i].Weight, nodes[j].Weight
		if wi != wj {
			if wi == 0 {
				return false
			}
			if wj == 0 {
				return true
			}
			return wi < wj
		}
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
}

// Cache is the NavTree cache: keyed by tree name only (no site identity is
// part of the key; Version counts clears), cleared on nav_change /
// structural_change / config_changed (spec §3, §9 OQ3).
type Cache struct {
	mu      sync.Mutex
	version int
	trees   map[string]*Tree
}

// NewCache returns an empty NavTree cache.
func NewCache() *Cache {
	return &Cache{trees: make(map[string]*Tree)}
}

// Get returns a cached Tree for name, or (nil, false) on a miss.
func (c *Cache) Get(name string) (*Tree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.trees[name]
	return t, ok
}

// Set stores a built Tree under name.
func (c *Cache) Set(name string, t *Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trees[name] = t
}

// Clear empties the cache and bumps its version, invalidating any Tree
// pointers callers may still hold from before the clear.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trees = make(map[string]*Tree)
	c.version++
}

// Version returns the cache's current version, bumped on every Clear.
func (c *Cache) Version() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}
