package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Initialize creates a configuration directory at dir, existing files are
// left untouched.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	logger.Printf("Initializing configuration in %q\n", absDir)
	if err := os.MkdirAll(absDir, 0700); err != nil {
		return nil, errors.Wrap(err, "creating configuration directory")
	}
	configFs := afero.NewBasePathFs(afero.NewOsFs(), absDir)

	if err := writeIfMissing(configFs, logger, ConfigurationName, 0600, func() ([]byte, error) {
		return defaultConfigData, nil
	}); err != nil {
		return nil, err
	}

	if err := writeIfMissing(configFs, logger, PrivateKeyName, 0600, generateHostKey); err != nil {
		return nil, err
	}

	logger.Printf("- Creating %s/\n", LogsDirName)
	if err := configFs.MkdirAll(LogsDirName, 0700); err != nil {
		return nil, errors.Wrapf(err, "creating %s", LogsDirName)
	}

	return loadFs(configFs, absDir)
}

func writeIfMissing(fs afero.Fs, logger *log.Logger, name string, perm os.FileMode, contents func() ([]byte, error)) error {
	exists, err := afero.Exists(fs, name)
	if err != nil {
		return err
	}
	if exists {
		logger.Printf("- Keeping existing %s\n", name)
		return nil
	}

	logger.Printf("- Writing %s\n", name)
	data, err := contents()
	if err != nil {
		return errors.Wrapf(err, "generating %s", name)
	}
	return errors.Wrapf(afero.WriteFile(fs, name, data, perm), "writing %s", name)
}

func generateHostKey() ([]byte, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
