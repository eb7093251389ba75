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

// Package proofstore persists proof artifacts under a storage root split into
// one partition per mechanism, so an artifact's kind is determinable from its
// location alone. Timestamp tokens keep the authority's native DER encoding
// in a .tsr file with a JSON metadata sidecar; anchor receipts are a single
// JSON record. The store is the only component that touches this layout.
package proofstore

import (
	"time"

	"github.com/chronoseal/go-chronoseal/anchor"
)

// Kind discriminates the two proof mechanisms.
type Kind string

const (
	// KindToken is an RFC3161 timestamp token.
	KindToken Kind = "rfc3161"

	// KindAnchor is a blockchain commitment receipt.
	KindAnchor Kind = "blockchain"
)

// Metadata is the provenance record persisted with every artifact.
type Metadata struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Document  string    `json:"document"`
	DigestAlg string    `json:"digestAlg"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"createdAt"`
}

// Artifact is a stored proof: exactly one of Token or Anchor is set,
// according to Kind. Callers receive copies; the store owns the persisted
// form.
type Artifact struct {
	Metadata Metadata

	// Token is the DER encoded TimeStampResp when Kind is KindToken.
	Token []byte

	// Anchor is the commitment record when Kind is KindAnchor.
	Anchor *anchor.Commitment
}

// Handle identifies a stored artifact.
type Handle struct {
	Kind     Kind   `json:"kind"`
	Document string `json:"document"`
}
