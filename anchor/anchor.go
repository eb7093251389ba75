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

// Package anchor records document digests on an Ethereum network and tracks
// the resulting commitments to confirmation.
//
// A commitment is the hex encoded digest carried verbatim as the calldata of
// a zero-value transaction from the submitting account to itself, so a
// verifier can recompute the expected commitment from the document alone.
// Confirmed is treated as terminal: once a commitment has reached the
// configured confirmation depth a later chain reorganization is not detected
// by this package.
package anchor

import (
	"context"
	"time"

	"github.com/chronoseal/go-chronoseal/cryptoutil"
)

// State is the lifecycle state of a commitment. Transitions only move
// forward: pending to confirmed or pending to failed.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Commitment is a digest anchored to the chain by a transaction.
type Commitment struct {
	// Value is the commitment payload, 0x-prefixed hex of the digest.
	Value string `json:"value"`

	// Account is the submitting account.
	Account string `json:"account"`

	// TxID is the network transaction hash.
	TxID string `json:"txid"`

	State         State     `json:"state"`
	Confirmations uint64    `json:"confirmations"`
	SubmittedAt   time.Time `json:"submittedAt"`

	// BlockTime is the inclusion time of the containing block, set once the
	// commitment confirms. This, not SubmittedAt, is the time the anchor
	// asserts.
	BlockTime time.Time `json:"blockTime,omitempty"`
}

// Anchorer submits commitments and reports their confirmation status.
type Anchorer interface {
	// Submit records a commitment for digest on the network. The returned
	// commitment is pending; the caller polls Status at its own cadence.
	Submit(ctx context.Context, digest cryptoutil.Digest, account string) (Commitment, error)

	// Status performs a single non-blocking confirmation check and returns
	// an updated copy of the commitment.
	Status(ctx context.Context, commitment Commitment) (Commitment, error)
}

// CommitmentValue computes the on-chain payload for a digest. Verification
// recomputes this from the candidate document and compares it to the stored
// commitment.
func CommitmentValue(digest cryptoutil.Digest) string {
	return "0x" + digest.HexValue()
}
