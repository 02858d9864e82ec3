package skills

import (
	"context"

	"github.com/jingkaihe/skillet/pkg/config"
)

// DiscoveryFromConfig builds a Discovery for the default directories plus
// any extra directories and the built-in skills, as configured.
func DiscoveryFromConfig(cfg config.SkillsConfig) (*Discovery, error) {
	return NewDiscovery(
		WithDefaultDirs(),
		WithExtraDirs(cfg.Dirs...),
		WithBuiltin(cfg.Builtin),
	)
}

// NewCatalogFromConfig returns a loaded catalog for cfg. A disabled
// configuration yields an empty static catalog.
func NewCatalogFromConfig(ctx context.Context, cfg config.SkillsConfig) (*Catalog, error) {
	if !cfg.Enabled {
		return NewStaticCatalog(map[string]*Skill{}), nil
	}

	discovery, err := DiscoveryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	catalog := NewCatalog(discovery, cfg.Allowed)
	if err := catalog.Reload(ctx); err != nil {
		return nil, err
	}
	return catalog, nil
}
