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
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/chronoseal/go-chronoseal/cryptoutil"
)

// FakeTimestamper issues tokens that only this package's FakeVerifier can
// check. Useful for exercising callers without a real authority; the tokens
// it produces are not valid DER and cannot be persisted through a proof
// store.
type FakeTimestamper struct {
	T   time.Time
	Err error
}

func (ft FakeTimestamper) Timestamp(ctx context.Context, digest cryptoutil.Digest) (*Token, error) {
	if ft.Err != nil {
		return nil, ft.Err
	}

	raw := fmt.Sprintf("faketoken %s %s", ft.T.Format(time.RFC3339), digest.HexValue())
	return &Token{Raw: []byte(raw), Time: ft.T}, nil
}

// FakeVerifier checks tokens produced by a FakeTimestamper with the same T.
type FakeVerifier struct {
	T time.Time
}

func (fv FakeVerifier) Verify(ctx context.Context, token []byte, digest cryptoutil.Digest) (time.Time, error) {
	expected := fmt.Sprintf("faketoken %s %s", fv.T.Format(time.RFC3339), digest.HexValue())
	prefix := fmt.Sprintf("faketoken %s ", fv.T.Format(time.RFC3339))
	if !bytes.HasPrefix(token, []byte(prefix)) {
		return time.Time{}, fmt.Errorf("mismatched time")
	}

	if string(token) != expected {
		return time.Time{}, ErrDigestMismatch{}
	}

	return fv.T, nil
}
