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

package chronoseal

import (
	"encoding/asn1"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/chronoseal/go-chronoseal/anchor"
	"github.com/chronoseal/go-chronoseal/config"
	"github.com/chronoseal/go-chronoseal/proofstore"
	"github.com/chronoseal/go-chronoseal/timestamp"
)

// NewTimestamper builds the RFC3161 client described by cfg. The configured
// network timeout bounds each exchange with the authority.
func NewTimestamper(cfg *config.Config) (timestamp.TSPTimestamper, error) {
	opts := []timestamp.TimestamperOption{
		timestamp.TimestampWithUrl(cfg.TSAURL),
		timestamp.TimestampWithHash(cfg.HashAlgorithm),
		timestamp.TimestampWithHTTPClient(&http.Client{Timeout: cfg.NetworkTimeout}),
	}

	if len(cfg.TSATrustAnchors) > 0 {
		opts = append(opts, timestamp.TimestampWithTrustAnchors(cfg.TSATrustAnchors))
	}

	if cfg.TSAPolicyOID != "" {
		oid, err := parsePolicyOID(cfg.TSAPolicyOID)
		if err != nil {
			return timestamp.TSPTimestamper{}, err
		}

		opts = append(opts, timestamp.TimestampWithPolicyOID(oid))
	}

	return timestamp.NewTimestamper(opts...), nil
}

// NewTokenVerifier builds a token verifier carrying cfg's trust anchor bundle.
// With an empty bundle verification fails closed.
func NewTokenVerifier(cfg *config.Config) timestamp.TSPVerifier {
	return timestamp.NewVerifier(timestamp.VerifyWithCerts(cfg.TSATrustAnchors))
}

// NewAnchorer builds the Ethereum client described by cfg.
func NewAnchorer(cfg *config.Config) *anchor.Client {
	return anchor.New(cfg.EthereumNodeURL,
		anchor.WithMinConfirmations(cfg.MinConfirmations),
		anchor.WithHTTPClient(&http.Client{Timeout: cfg.NetworkTimeout}),
	)
}

// NewStore opens the proof store under cfg's storage root.
func NewStore(cfg *config.Config) (*proofstore.Store, error) {
	return proofstore.New(cfg.StorageRoot)
}

func parsePolicyOID(s string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(s, ".")
	oid := make(asn1.ObjectIdentifier, 0, len(parts))
	for _, part := range parts {
		arc, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid policy oid %q: %w", s, err)
		}

		oid = append(oid, arc)
	}

	return oid, nil
}
