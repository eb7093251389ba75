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

// Package chronoseal issues and verifies proofs that a document existed,
// unmodified, at a point in time. Two mechanisms are supported: RFC3161
// timestamp tokens from a trusted authority and digest commitments anchored
// on an Ethereum network. Both operate on a digest of the document only; the
// document's content never leaves the machine.
package chronoseal

import (
	"context"
	"crypto"
	"fmt"
	"path/filepath"

	"github.com/chronoseal/go-chronoseal/anchor"
	"github.com/chronoseal/go-chronoseal/cryptoutil"
	"github.com/chronoseal/go-chronoseal/log"
	"github.com/chronoseal/go-chronoseal/proofstore"
	"github.com/chronoseal/go-chronoseal/timestamp"
)

type sealOptions struct {
	timestamper timestamp.Timestamper
	anchorer    anchor.Anchorer
	account     string
	store       *proofstore.Store
	hash        crypto.Hash
	overwrite   bool
}

type SealOption func(*sealOptions)

// SealWithTimestamper requests an RFC3161 token for the document.
func SealWithTimestamper(t timestamp.Timestamper) SealOption {
	return func(so *sealOptions) {
		so.timestamper = t
	}
}

// SealWithAnchorer requests a blockchain commitment for the document,
// submitted from account.
func SealWithAnchorer(a anchor.Anchorer, account string) SealOption {
	return func(so *sealOptions) {
		so.anchorer = a
		so.account = account
	}
}

// SealWithStore persists each mechanism's artifact as it is obtained.
// Without a store the artifacts are only returned to the caller.
func SealWithStore(store *proofstore.Store) SealOption {
	return func(so *sealOptions) {
		so.store = store
	}
}

// SealWithHash sets the digest algorithm. Defaults to SHA-256.
func SealWithHash(hash crypto.Hash) SealOption {
	return func(so *sealOptions) {
		so.hash = hash
	}
}

// SealWithOverwrite replaces an existing stored artifact for the same
// document instead of failing.
func SealWithOverwrite() SealOption {
	return func(so *sealOptions) {
		so.overwrite = true
	}
}

// MechanismResult is one mechanism's outcome within a seal call. Error is set
// when the mechanism failed; the other mechanism's outcome is unaffected.
type MechanismResult struct {
	Kind     proofstore.Kind
	Artifact *proofstore.Artifact
	Handle   proofstore.Handle
	Saved    bool
	Error    error
}

// SealResult reports a seal call. Token and Anchor are nil for mechanisms
// that were not requested.
type SealResult struct {
	Document string
	Digest   cryptoutil.Digest
	Token    *MechanismResult
	Anchor   *MechanismResult
}

// Seal computes the document's digest once and runs every requested
// mechanism on it. A digest failure aborts the call; a failure in one
// mechanism is reported in its MechanismResult and does not stop the other.
// Seal returns an error alongside the result only when no requested
// mechanism produced an artifact.
func Seal(ctx context.Context, documentPath string, opts ...SealOption) (SealResult, error) {
	so := sealOptions{hash: crypto.SHA256}
	for _, opt := range opts {
		opt(&so)
	}

	result := SealResult{Document: filepath.Base(documentPath)}
	if so.timestamper == nil && so.anchorer == nil {
		return result, fmt.Errorf("at least one mechanism must be requested")
	}

	digest, err := cryptoutil.CalculateDigestFromFile(documentPath, so.hash)
	if err != nil {
		return result, fmt.Errorf("failed to digest document: %w", err)
	}

	result.Digest = digest
	hashName, err := cryptoutil.HashToString(digest.Hash)
	if err != nil {
		return result, err
	}

	meta := proofstore.Metadata{
		Document:  result.Document,
		DigestAlg: hashName,
		Digest:    digest.HexValue(),
	}

	if so.timestamper != nil {
		result.Token = so.sealToken(ctx, digest, meta)
	}

	if so.anchorer != nil {
		result.Anchor = so.sealAnchor(ctx, digest, meta)
	}

	if failed, err := result.allFailed(); failed {
		return result, err
	}

	return result, nil
}

func (so *sealOptions) sealToken(ctx context.Context, digest cryptoutil.Digest, meta proofstore.Metadata) *MechanismResult {
	mr := &MechanismResult{Kind: proofstore.KindToken}
	token, err := so.timestamper.Timestamp(ctx, digest)
	if err != nil {
		log.Warnf("(seal) timestamp mechanism failed for %v: %v", meta.Document, err)
		mr.Error = err
		return mr
	}

	meta.Kind = proofstore.KindToken
	mr.Artifact = &proofstore.Artifact{Metadata: meta, Token: token.Raw}
	so.persist(mr)
	return mr
}

func (so *sealOptions) sealAnchor(ctx context.Context, digest cryptoutil.Digest, meta proofstore.Metadata) *MechanismResult {
	mr := &MechanismResult{Kind: proofstore.KindAnchor}
	commitment, err := so.anchorer.Submit(ctx, digest, so.account)
	if err != nil {
		log.Warnf("(seal) anchor mechanism failed for %v: %v", meta.Document, err)
		mr.Error = err
		return mr
	}

	meta.Kind = proofstore.KindAnchor
	mr.Artifact = &proofstore.Artifact{Metadata: meta, Anchor: &commitment}
	so.persist(mr)
	return mr
}

func (so *sealOptions) persist(mr *MechanismResult) {
	if so.store == nil {
		return
	}

	handle, err := so.store.Save(mr.Artifact, so.overwrite)
	if err != nil {
		mr.Error = err
		mr.Artifact = nil
		return
	}

	mr.Handle = handle
	mr.Saved = true
}

func (r SealResult) allFailed() (bool, error) {
	requested := 0
	failed := 0
	var firstErr error
	for _, mr := range []*MechanismResult{r.Token, r.Anchor} {
		if mr == nil {
			continue
		}

		requested++
		if mr.Error != nil {
			failed++
			if firstErr == nil {
				firstErr = mr.Error
			}
		}
	}

	if requested > 0 && requested == failed {
		return true, fmt.Errorf("every requested mechanism failed: %w", firstErr)
	}

	return false, nil
}
