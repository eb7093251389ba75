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
	"context"
	"crypto"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chronoseal/go-chronoseal/anchor"
	"github.com/chronoseal/go-chronoseal/cryptoutil"
	"github.com/chronoseal/go-chronoseal/log"
	"github.com/chronoseal/go-chronoseal/proofstore"
	"github.com/chronoseal/go-chronoseal/timestamp"
)

// Reason classifies why a verdict is what it is. The two mechanisms have
// different trust roots and failure modes, so a failed verdict always says
// which property broke rather than collapsing into a single boolean.
type Reason string

const (
	// ReasonOK means every check passed.
	ReasonOK Reason = "OK"

	// ReasonContentModified means the candidate document's digest does not
	// match the digest the proof was issued for.
	ReasonContentModified Reason = "CONTENT_MODIFIED"

	// ReasonArtifactInvalid means the proof itself is structurally or
	// cryptographically broken.
	ReasonArtifactInvalid Reason = "ARTIFACT_INVALID"

	// ReasonNotYetConfirmed means a blockchain commitment has not reached
	// the required confirmation depth. Verifying again later may succeed.
	ReasonNotYetConfirmed Reason = "NOT_YET_CONFIRMED"
)

// Verdict is the outcome of one verification call. Verdicts are produced
// fresh per call and never persisted.
type Verdict struct {
	Kind  proofstore.Kind
	Valid bool

	// AssertedTime is the time the proof vouches for: the token's claimed
	// time or the anchoring block's inclusion time. Zero when the verdict
	// is not valid.
	AssertedTime time.Time

	Reason Reason

	// Detail elaborates on a failed verdict for display; it carries no
	// information a dispatcher should branch on.
	Detail string
}

type verifyOptions struct {
	tokenVerifier timestamp.TokenVerifier
	anchorer      anchor.Anchorer
	hash          crypto.Hash
}

type VerifyOption func(*verifyOptions)

// VerifyWithTokenVerifier sets the verifier used for timestamp token
// artifacts. Required to verify tokens; the verifier carries the caller's
// trust anchors.
func VerifyWithTokenVerifier(v timestamp.TokenVerifier) VerifyOption {
	return func(vo *verifyOptions) {
		vo.tokenVerifier = v
	}
}

// VerifyWithAnchorer makes anchor verification query the network for the
// commitment's current status. Without it the status recorded in the
// artifact is used as-is.
func VerifyWithAnchorer(a anchor.Anchorer) VerifyOption {
	return func(vo *verifyOptions) {
		vo.anchorer = a
	}
}

// VerifyWithHash overrides the digest algorithm recorded in the artifact's
// metadata.
func VerifyWithHash(hash crypto.Hash) VerifyOption {
	return func(vo *verifyOptions) {
		vo.hash = hash
	}
}

// Verify recomputes the document's digest and validates the artifact against
// it, dispatching on the artifact's kind. An error is returned only when
// verification could not be carried out at all (unreadable document, missing
// verifier, network failure while polling); a proof that fails its checks
// yields a verdict with Valid false and a classifying Reason.
func Verify(ctx context.Context, documentPath string, artifact *proofstore.Artifact, opts ...VerifyOption) (Verdict, error) {
	vo := verifyOptions{}
	for _, opt := range opts {
		opt(&vo)
	}

	if artifact == nil {
		return Verdict{}, fmt.Errorf("artifact must not be nil")
	}

	hash := vo.hash
	if hash == crypto.Hash(0) {
		parsed, err := cryptoutil.HashFromString(artifact.Metadata.DigestAlg)
		if err != nil {
			return Verdict{}, fmt.Errorf("artifact metadata names no usable digest algorithm: %w", err)
		}

		hash = parsed
	}

	digest, err := cryptoutil.CalculateDigestFromFile(documentPath, hash)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to digest document: %w", err)
	}

	switch artifact.Metadata.Kind {
	case proofstore.KindToken:
		return vo.verifyToken(ctx, digest, artifact)
	case proofstore.KindAnchor:
		return vo.verifyAnchor(ctx, digest, artifact)
	default:
		return Verdict{}, fmt.Errorf("unknown artifact kind %v", artifact.Metadata.Kind)
	}
}

// VerifyStored loads the document's stored artifact of the given kind and
// verifies it.
func VerifyStored(ctx context.Context, documentPath string, store *proofstore.Store, kind proofstore.Kind, opts ...VerifyOption) (Verdict, error) {
	artifact, err := store.Load(proofstore.Handle{Kind: kind, Document: filepath.Base(documentPath)})
	if err != nil {
		return Verdict{}, err
	}

	return Verify(ctx, documentPath, artifact, opts...)
}

func (vo *verifyOptions) verifyToken(ctx context.Context, digest cryptoutil.Digest, artifact *proofstore.Artifact) (Verdict, error) {
	verdict := Verdict{Kind: proofstore.KindToken}
	if vo.tokenVerifier == nil {
		return verdict, fmt.Errorf("no token verifier configured")
	}

	assertedTime, err := vo.tokenVerifier.Verify(ctx, artifact.Token, digest)
	if err != nil {
		if errors.As(err, &timestamp.ErrNoTrustAnchor{}) {
			return verdict, err
		}

		verdict.Detail = err.Error()
		if errors.As(err, &timestamp.ErrDigestMismatch{}) {
			verdict.Reason = ReasonContentModified
		} else {
			verdict.Reason = ReasonArtifactInvalid
		}

		log.Debugf("(verify) token for %v failed: %v", artifact.Metadata.Document, err)
		return verdict, nil
	}

	verdict.Valid = true
	verdict.Reason = ReasonOK
	verdict.AssertedTime = assertedTime
	return verdict, nil
}

func (vo *verifyOptions) verifyAnchor(ctx context.Context, digest cryptoutil.Digest, artifact *proofstore.Artifact) (Verdict, error) {
	verdict := Verdict{Kind: proofstore.KindAnchor}
	expected := anchor.CommitmentValue(digest)
	if artifact.Anchor.Value != expected {
		verdict.Reason = ReasonContentModified
		verdict.Detail = "recomputed commitment does not match the one on chain"
		return verdict, nil
	}

	commitment := *artifact.Anchor
	if vo.anchorer != nil {
		updated, err := vo.anchorer.Status(ctx, commitment)
		if err != nil {
			if errors.As(err, &anchor.ErrCommitmentMismatch{}) {
				verdict.Reason = ReasonArtifactInvalid
				verdict.Detail = err.Error()
				return verdict, nil
			}

			return verdict, fmt.Errorf("failed to poll commitment status: %w", err)
		}

		commitment = updated
	}

	switch commitment.State {
	case anchor.StateConfirmed:
		verdict.Valid = true
		verdict.Reason = ReasonOK
		verdict.AssertedTime = commitment.BlockTime
	case anchor.StatePending:
		verdict.Reason = ReasonNotYetConfirmed
		verdict.Detail = fmt.Sprintf("commitment has %v confirmations", commitment.Confirmations)
	case anchor.StateFailed:
		verdict.Reason = ReasonArtifactInvalid
		verdict.Detail = "commitment transaction failed on chain"
	default:
		return verdict, fmt.Errorf("unknown commitment state %v", commitment.State)
	}

	return verdict, nil
}
