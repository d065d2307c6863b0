package content

import (
	"os"
	"path/filepath"
	"sort"
)

// DiscoverAssets walks assetsDir and returns an Asset for every regular
// file found, mirroring Discover's directory-walk pattern (spec §3 Asset,
// §4.8 phase: assets). Path is the file's site-root-absolute destination,
// preserving its path relative to assetsDir.
func DiscoverAssets(assetsDir string) ([]*Asset, error) {
	info, err := os.Stat(assetsDir)
	if err != nil || !info.IsDir() {
		return nil, nil // no assets directory is not an error; nothing to copy
	}

	var assets []*Asset
	err = filepath.WalkDir(assetsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(assetsDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		a := NewAsset(path, filepath.Ext(path))
		a.Path = "/" + rel
		assets = append(assets, a)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].SourcePath < assets[j].SourcePath })
	return assets, nil
}
