// Copyright 2025 The Chronoseal Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads engine configuration. Defaults match the endpoints
// the original desktop application shipped with; everything is overridable
// through CHRONOSEAL_* environment variables or an explicit config file.
package config

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chronoseal/go-chronoseal/cryptoutil"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const envPrefix = "CHRONOSEAL"

// Config holds everything needed to construct the engine's components. It is
// an explicit value passed into constructors, never ambient state, so
// multiple engines with independent storage roots can coexist.
type Config struct {
	StorageRoot      string
	HashAlgorithm    crypto.Hash
	TSAURL           string
	TSAPolicyOID     string
	EthereumNodeURL  string
	EthereumAccount  string
	MinConfirmations uint64
	NetworkTimeout   time.Duration

	// TSATrustAnchors are the certificates token signatures must chain to,
	// loaded from the PEM bundle at tsa_ca_path. Verification without trust
	// anchors fails closed, so a verifying deployment must set this.
	TSATrustAnchors []*x509.Certificate
}

// New loads configuration from the environment, optionally merged over a
// config file at path (yaml). Pass an empty path to use defaults and
// environment only.
func New(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("storage_root", "")
	v.SetDefault("hash_algorithm", "sha256")
	v.SetDefault("tsa_url", "http://timestamp.digicert.com")
	v.SetDefault("tsa_policy_oid", "")
	v.SetDefault("tsa_ca_path", "")
	v.SetDefault("ethereum_node_url", "https://mainnet.infura.io/v3/YOUR-PROJECT-ID")
	v.SetDefault("ethereum_account", "")
	v.SetDefault("min_confirmations", 12)
	v.SetDefault("network_timeout", "30s")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	hash, err := cryptoutil.HashFromString(v.GetString("hash_algorithm"))
	if err != nil {
		return nil, err
	}

	root := v.GetString("storage_root")
	if root == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory for default storage root: %w", err)
		}

		root = filepath.Join(home, ".chronoseal")
	}

	timeout := v.GetDuration("network_timeout")
	if timeout <= 0 {
		return nil, fmt.Errorf("network timeout must be positive, got %v", timeout)
	}

	var anchors []*x509.Certificate
	if caPath := v.GetString("tsa_ca_path"); caPath != "" {
		pemBytes, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read tsa ca bundle: %w", err)
		}

		anchors, err = cryptoutil.TryParseCertificates(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tsa ca bundle: %w", err)
		}
	}

	return &Config{
		StorageRoot:      root,
		HashAlgorithm:    hash,
		TSAURL:           v.GetString("tsa_url"),
		TSAPolicyOID:     v.GetString("tsa_policy_oid"),
		EthereumNodeURL:  v.GetString("ethereum_node_url"),
		EthereumAccount:  v.GetString("ethereum_account"),
		MinConfirmations: v.GetUint64("min_confirmations"),
		NetworkTimeout:   timeout,
		TSATrustAnchors:  anchors,
	}, nil
}
