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

// Package timestamp obtains and verifies RFC3161 timestamp tokens binding a
// document digest to a point in time asserted by a Time-Stamping Authority.
package timestamp

import (
	"context"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/chronoseal/go-chronoseal/cryptoutil"
)

// Token is a timestamp token as returned by a TSA. Raw holds the complete DER
// encoded TimeStampResp, which is the form persisted to disk and the form
// real authorities interoperate on; the remaining fields are extracted from
// it for the caller's convenience.
type Token struct {
	Raw          []byte
	Time         time.Time
	SerialNumber *big.Int
	Policy       asn1.ObjectIdentifier
}

// Timestamper obtains a timestamp token for a digest.
type Timestamper interface {
	Timestamp(ctx context.Context, digest cryptoutil.Digest) (*Token, error)
}

// TokenVerifier validates a stored token against a freshly computed digest of
// the candidate document and returns the time the token asserts.
type TokenVerifier interface {
	Verify(ctx context.Context, token []byte, digest cryptoutil.Digest) (time.Time, error)
}
