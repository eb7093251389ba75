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

package timestamp

import (
	"crypto"
	"fmt"
)

// ErrNetwork indicates the authority could not be reached or did not answer
// in time.
type ErrNetwork struct {
	Err error
}

func (e ErrNetwork) Error() string {
	return fmt.Sprintf("timestamp authority unreachable: %v", e.Err)
}

func (e ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrProtocol indicates the authority answered with data that does not decode
// as a timestamp response.
type ErrProtocol struct {
	Err error
}

func (e ErrProtocol) Error() string {
	return fmt.Sprintf("malformed timestamp response: %v", e.Err)
}

func (e ErrProtocol) Unwrap() error {
	return e.Err
}

// ErrRejected indicates the authority explicitly declined the request, or
// returned a well-formed token that failed validation against the request.
// A rejected exchange never yields a partial token.
type ErrRejected struct {
	Reason string
}

func (e ErrRejected) Error() string {
	return fmt.Sprintf("timestamp request rejected: %v", e.Reason)
}

// ErrAlgorithmMismatch indicates the caller declared one hash algorithm but
// supplied a digest computed with another. This is caught before anything is
// sent to the authority.
type ErrAlgorithmMismatch struct {
	Declared crypto.Hash
	Digest   crypto.Hash
}

func (e ErrAlgorithmMismatch) Error() string {
	return fmt.Sprintf("request declares %v but digest was computed with %v", e.Declared, e.Digest)
}

// ErrDigestMismatch indicates a token's message imprint does not match the
// digest of the candidate document. At verification time this means the
// document content changed since the token was issued.
type ErrDigestMismatch struct{}

func (e ErrDigestMismatch) Error() string {
	return "token message imprint does not match document digest"
}

// ErrNoTrustAnchor indicates verification was attempted without any
// configured trust anchor. Verification fails closed rather than trusting a
// token's embedded certificates.
type ErrNoTrustAnchor struct{}

func (e ErrNoTrustAnchor) Error() string {
	return "no trust anchor configured for token verification"
}
