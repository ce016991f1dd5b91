// Package command wires the driver's standalone packages into the cobra CLI
// surface: a root command that runs a pipeline expression against a source,
// and a "plugin" command group for inspecting discovered plugins.
package command

import (
	"path/filepath"

	"github.com/aunum/log"
	"github.com/pkg/errors"

	"github.com/uniconv/uniconv/pkg/common"
	"github.com/uniconv/uniconv/pkg/config"
	"github.com/uniconv/uniconv/pkg/depenv"
	"github.com/uniconv/uniconv/pkg/discovery"
	"github.com/uniconv/uniconv/pkg/loader"
	"github.com/uniconv/uniconv/pkg/manifest"
	"github.com/uniconv/uniconv/pkg/registry"
	"github.com/uniconv/uniconv/pkg/resolver"
)

// app holds every long-lived collaborator a command needs, built once per
// process invocation from the on-disk config and plugin discovery.
type app struct {
	settings  config.Settings
	manifests []*manifest.Manifest
	plugins   []loader.Plugin
	registry  *registry.Registry
	resolver  *resolver.Resolver
	depenvs   *depenv.Manager
	mapping   *registry.DefaultMapping
}

func newApp() (*app, error) {
	cfgPath := filepath.Join(common.DefaultConfigDir, config.FileName)
	settings, err := config.Load(cfgPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading config")
	}

	roots := settings.PluginDirs
	manifests, err := discovery.Discover(roots...)
	if err != nil {
		return nil, errors.Wrap(err, "discovering plugins")
	}

	depenvs := depenv.NewManager(filepath.Join(common.DefaultConfigDir, "deps"))

	reg := registry.New()
	plugins := make([]loader.Plugin, 0, len(manifests))
	for _, m := range manifests {
		reg.Add(m.Info())

		var prefixer loader.PathPrefixer
		if len(m.Dependencies) > 0 {
			env, envErr := depenvs.GetOrCreate(m.Group)
			if envErr != nil {
				log.Warningf("skipping dependency environment for %s: %v", m.ID(), envErr)
			} else {
				prefixer = env
			}
		}

		p, loadErr := loader.Load(m, prefixer)
		if loadErr != nil {
			log.Warningf("skipping plugin %s: %v", m.ID(), loadErr)
			continue
		}
		if cp, ok := p.(*loader.CLIPlugin); ok {
			cp.Timeout = settings.CLITimeout()
		}
		plugins = append(plugins, p)
	}

	mapping, err := registry.OpenDefaultMapping(common.DefaultConfigDir)
	if err != nil {
		return nil, errors.Wrap(err, "loading default plugin mapping")
	}

	res := resolver.New()
	for target, group := range mapping.Map() {
		res.SetDefault(target, group)
	}

	return &app{
		settings:  settings,
		manifests: manifests,
		plugins:   plugins,
		registry:  reg,
		resolver:  res,
		depenvs:   depenvs,
		mapping:   mapping,
	}, nil
}

func (a *app) workspaceBaseDir() string {
	if a.settings.WorkspaceBaseDir != "" {
		return a.settings.WorkspaceBaseDir
	}
	return ""
}
