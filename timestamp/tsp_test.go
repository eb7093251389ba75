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
	"context"
	"crypto"
	"crypto/x509"
	"testing"
	"time"

	"github.com/chronoseal/go-chronoseal/cryptoutil"
	"github.com/chronoseal/go-chronoseal/internal/tsatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDigest(t *testing.T, content string) cryptoutil.Digest {
	t.Helper()
	digest, err := cryptoutil.CalculateDigestFromBytes([]byte(content), crypto.SHA256)
	require.NoError(t, err)
	return digest
}

func TestTSPTimestamper(t *testing.T) {
	authority, err := tsatest.New()
	require.NoError(t, err)
	defer authority.Close()

	digest := testDigest(t, "some data to timestamp")

	t.Run("grants token", func(t *testing.T) {
		ts := NewTimestamper(TimestampWithUrl(authority.URL()))
		token, err := ts.Timestamp(context.Background(), digest)
		require.NoError(t, err)
		assert.NotEmpty(t, token.Raw)
		assert.NotNil(t, token.SerialNumber)
		assert.WithinDuration(t, time.Now(), token.Time, time.Minute)
	})

	t.Run("grants token with trust anchors checked at issuance", func(t *testing.T) {
		ts := NewTimestamper(
			TimestampWithUrl(authority.URL()),
			TimestampWithTrustAnchors([]*x509.Certificate{authority.Cert}),
		)
		token, err := ts.Timestamp(context.Background(), digest)
		require.NoError(t, err)
		assert.NotEmpty(t, token.Raw)
	})

	t.Run("algorithm mismatch caught before sending", func(t *testing.T) {
		ts := NewTimestamper(TimestampWithUrl(authority.URL()), TimestampWithHash(crypto.SHA512))
		_, err := ts.Timestamp(context.Background(), digest)
		var mismatch ErrAlgorithmMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, crypto.SHA512, mismatch.Declared)
		assert.Equal(t, crypto.SHA256, mismatch.Digest)
	})

	t.Run("unreachable authority", func(t *testing.T) {
		ts := NewTimestamper(TimestampWithUrl("http://127.0.0.1:1/tsa"))
		_, err := ts.Timestamp(context.Background(), digest)
		var netErr ErrNetwork
		assert.ErrorAs(t, err, &netErr)
	})
}

func TestTSPTimestamperRejectsBadResponses(t *testing.T) {
	digest := testDigest(t, "some data to timestamp")

	t.Run("tampered nonce", func(t *testing.T) {
		authority, err := tsatest.New()
		require.NoError(t, err)
		defer authority.Close()
		authority.TamperNonce = true

		ts := NewTimestamper(TimestampWithUrl(authority.URL()))
		_, err = ts.Timestamp(context.Background(), digest)
		var rejected ErrRejected
		require.ErrorAs(t, err, &rejected)
		assert.Contains(t, rejected.Reason, "nonce")
	})

	t.Run("tampered imprint", func(t *testing.T) {
		authority, err := tsatest.New()
		require.NoError(t, err)
		defer authority.Close()
		authority.TamperImprint = true

		ts := NewTimestamper(TimestampWithUrl(authority.URL()))
		_, err = ts.Timestamp(context.Background(), digest)
		var rejected ErrRejected
		require.ErrorAs(t, err, &rejected)
		assert.Contains(t, rejected.Reason, "imprint")
	})

	t.Run("explicit rejection", func(t *testing.T) {
		authority, err := tsatest.New()
		require.NoError(t, err)
		defer authority.Close()
		authority.Reject = true

		ts := NewTimestamper(TimestampWithUrl(authority.URL()))
		_, err = ts.Timestamp(context.Background(), digest)
		var rejected ErrRejected
		assert.ErrorAs(t, err, &rejected)
	})

	t.Run("garbage response", func(t *testing.T) {
		authority, err := tsatest.New()
		require.NoError(t, err)
		defer authority.Close()
		authority.Garbage = true

		ts := NewTimestamper(TimestampWithUrl(authority.URL()))
		_, err = ts.Timestamp(context.Background(), digest)
		var protocolErr ErrProtocol
		assert.ErrorAs(t, err, &protocolErr)
	})
}

func TestTSPVerifier(t *testing.T) {
	authority, err := tsatest.New()
	require.NoError(t, err)
	defer authority.Close()

	digest := testDigest(t, "some data to timestamp")
	ts := NewTimestamper(TimestampWithUrl(authority.URL()))
	token, err := ts.Timestamp(context.Background(), digest)
	require.NoError(t, err)

	t.Run("pass", func(t *testing.T) {
		v := NewVerifier(VerifyWithCerts([]*x509.Certificate{authority.Cert}))
		signedTime, err := v.Verify(context.Background(), token.Raw, digest)
		assert.NoError(t, err)
		assert.NotZero(t, signedTime)
	})

	t.Run("modified content", func(t *testing.T) {
		v := NewVerifier(VerifyWithCerts([]*x509.Certificate{authority.Cert}))
		other := testDigest(t, "some data to timestamp!")
		signedTime, err := v.Verify(context.Background(), token.Raw, other)
		var mismatch ErrDigestMismatch
		assert.ErrorAs(t, err, &mismatch)
		assert.Zero(t, signedTime)
	})

	t.Run("untrusted authority", func(t *testing.T) {
		other, err := tsatest.New()
		require.NoError(t, err)
		defer other.Close()

		v := NewVerifier(VerifyWithCerts([]*x509.Certificate{other.Cert}))
		signedTime, err := v.Verify(context.Background(), token.Raw, digest)
		assert.Error(t, err)
		assert.Zero(t, signedTime)
	})

	t.Run("no trust anchor fails closed", func(t *testing.T) {
		v := NewVerifier()
		_, err := v.Verify(context.Background(), token.Raw, digest)
		var noAnchor ErrNoTrustAnchor
		assert.ErrorAs(t, err, &noAnchor)
	})

	t.Run("idempotent", func(t *testing.T) {
		v := NewVerifier(VerifyWithCerts([]*x509.Certificate{authority.Cert}))
		first, err := v.Verify(context.Background(), token.Raw, digest)
		require.NoError(t, err)
		second, err := v.Verify(context.Background(), token.Raw, digest)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestFakeTimestamper(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	ft := FakeTimestamper{T: now}
	fv := FakeVerifier{T: now}

	digest := testDigest(t, "payload")
	token, err := ft.Timestamp(context.Background(), digest)
	require.NoError(t, err)

	signedTime, err := fv.Verify(context.Background(), token.Raw, digest)
	require.NoError(t, err)
	assert.True(t, now.Equal(signedTime))

	other := testDigest(t, "other payload")
	_, err = fv.Verify(context.Background(), token.Raw, other)
	var mismatch ErrDigestMismatch
	assert.ErrorAs(t, err, &mismatch)
}
