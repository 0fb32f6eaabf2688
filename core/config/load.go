package config

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory.
func Load(path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	return loadFs(afero.NewBasePathFs(afero.NewOsFs(), path), path)
}

func loadFs(configFs afero.Fs, dir string) (*Configuration, error) {
	configContents, err := afero.ReadFile(configFs, ConfigurationName)
	if err != nil {
		return nil, errors.Wrap(err, "reading configuration")
	}

	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", ConfigurationName)
	}
	if err := out.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid %s", ConfigurationName)
	}

	out.configFs = configFs
	out.configurationDir = dir
	return &out, nil
}
