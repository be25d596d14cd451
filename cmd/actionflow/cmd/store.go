package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/credvault"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flowstore"
)

const (
	keyVaultPassphrase = "vault_passphrase"
	defaultDBName      = ".actionflow.db"
	// passphraseSalt is fixed so the same passphrase always opens the same store.
	passphraseSalt = "actionflow/credvault/v1"
)

var errNoVaultKey = errors.New("no vault key configured (set ACTIONFLOW_VAULT_KEY or ACTIONFLOW_VAULT_PASSPHRASE)")

func dbPath() (string, error) {
	if p := viper.GetString(keyDB); p != "" {
		return homedir.Expand(p)
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, defaultDBName), nil
}

// openVault returns nil without error when no key is configured.
func openVault() (*credvault.Vault, error) {
	if hexKey := viper.GetString(keyVaultKey); hexKey != "" {
		key, err := credvault.KeyFromHex(hexKey)
		if err != nil {
			return nil, err
		}
		return credvault.New(key)
	}
	if pass := viper.GetString(keyVaultPassphrase); pass != "" {
		return credvault.New(credvault.KeyFromPassphrase(pass, []byte(passphraseSalt)))
	}
	return nil, nil
}

func openStore(ctx context.Context, logger *slog.Logger) (*flowstore.Store, error) {
	path, err := dbPath()
	if err != nil {
		return nil, err
	}
	vault, err := openVault()
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	store, err := flowstore.Open(ctx, path, flowstore.Options{Logger: logger, Vault: vault})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return store, nil
}
