package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bengal-ssg/bengal/internal/cacheregistry"
	"github.com/bengal-ssg/bengal/internal/config"
)

func TestNewOrchestratorRegistersCaches(t *testing.T) {
	root := t.TempDir()
	themeDir := filepath.Join(root, "themes", "default", "layouts")
	if err := os.MkdirAll(themeDir, 0o755); err != nil {
		t.Fatalf("creating theme layout dir: %v", err)
	}

	cfg := config.Default()
	dirs := resolveDirs(cfg, root, "")

	_, registry, navCache, err := newOrchestrator(cfg, dirs)
	if err != nil {
		t.Fatalf("newOrchestrator: %v", err)
	}

	navCache.Set("main", nil)
	if _, ok := navCache.Get("main"); !ok {
		t.Fatal("expected nav cache to hold the entry before invalidation")
	}

	// A structural_change invalidation must reach the registered nav_tree
	// entry and actually clear the live navCache, not just log the event.
	registry.InvalidateForReason(cacheregistry.ReasonStructuralChange)

	if _, ok := navCache.Get("main"); ok {
		t.Error("expected nav_tree entry's ClearFn to empty navCache on structural_change")
	}
}
