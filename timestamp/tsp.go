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
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/chronoseal/go-chronoseal/cryptoutil"
	"github.com/chronoseal/go-chronoseal/log"
	"github.com/digitorus/pkcs7"
	tsproto "github.com/digitorus/timestamp"
)

// TSPTimestamper requests timestamp tokens from an RFC3161 authority over
// HTTP. One call is one network exchange; retry policy belongs to the caller.
type TSPTimestamper struct {
	url                string
	hash               crypto.Hash
	requestCertificate bool
	policyOID          asn1.ObjectIdentifier
	anchors            []*x509.Certificate
	client             *http.Client
}

type TimestamperOption func(*TSPTimestamper)

// TimestampWithUrl sets the authority's endpoint.
func TimestampWithUrl(url string) TimestamperOption {
	return func(t *TSPTimestamper) {
		t.url = url
	}
}

// TimestampWithHash sets the hash algorithm declared in the request. It must
// match the algorithm of every digest passed to Timestamp.
func TimestampWithHash(hash crypto.Hash) TimestamperOption {
	return func(t *TSPTimestamper) {
		t.hash = hash
	}
}

// TimestampWithRequestCertificate controls whether the authority is asked to
// include its certificate in the token.
func TimestampWithRequestCertificate(requestCertificate bool) TimestamperOption {
	return func(t *TSPTimestamper) {
		t.requestCertificate = requestCertificate
	}
}

// TimestampWithPolicyOID requests a specific TSA policy.
func TimestampWithPolicyOID(oid asn1.ObjectIdentifier) TimestamperOption {
	return func(t *TSPTimestamper) {
		t.policyOID = oid
	}
}

// TimestampWithTrustAnchors enables signature chain verification of the
// returned token at issuance time. Without anchors only the token's internal
// signature consistency is checked at issuance; full chain verification then
// happens at verification time.
func TimestampWithTrustAnchors(certs []*x509.Certificate) TimestamperOption {
	return func(t *TSPTimestamper) {
		t.anchors = certs
	}
}

// TimestampWithHTTPClient sets the http client used for the exchange. The
// caller controls timeouts through it and through the context passed to
// Timestamp.
func TimestampWithHTTPClient(client *http.Client) TimestamperOption {
	return func(t *TSPTimestamper) {
		if client != nil {
			t.client = client
		}
	}
}

func NewTimestamper(opts ...TimestamperOption) TSPTimestamper {
	t := TSPTimestamper{
		hash:               crypto.SHA256,
		requestCertificate: true,
		client:             http.DefaultClient,
	}

	for _, opt := range opts {
		opt(&t)
	}

	return t
}

// Timestamp builds a TimeStampReq for digest with a fresh nonce, exchanges it
// with the authority, and validates the returned token against the request.
// The returned Token's Raw bytes are the authority's complete DER response.
func (t TSPTimestamper) Timestamp(ctx context.Context, digest cryptoutil.Digest) (*Token, error) {
	if digest.Hash != t.hash {
		return nil, ErrAlgorithmMismatch{Declared: t.hash, Digest: digest.Hash}
	}

	if len(digest.Value) != t.hash.Size() {
		return nil, fmt.Errorf("digest is %v bytes, expected %v for %v", len(digest.Value), t.hash.Size(), t.hash)
	}

	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	tsq := tsproto.Request{
		HashAlgorithm: t.hash,
		HashedMessage: digest.Value,
		Certificates:  t.requestCertificate,
		Nonce:         nonce,
		TSAPolicyOID:  t.policyOID,
	}

	reqBytes, err := tsq.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp request: %w", err)
	}

	respBytes, err := t.exchange(ctx, reqBytes)
	if err != nil {
		return nil, err
	}

	status, err := decodeResponseStatus(respBytes)
	if err != nil {
		return nil, ErrProtocol{Err: err}
	}

	if status > 1 {
		return nil, ErrRejected{Reason: fmt.Sprintf("authority returned status %v", status)}
	}

	ts, err := tsproto.ParseResponse(respBytes)
	if err != nil {
		return nil, ErrProtocol{Err: err}
	}

	if ts.HashAlgorithm != digest.Hash {
		return nil, ErrRejected{Reason: "token hash algorithm does not match request"}
	}

	if !bytes.Equal(ts.HashedMessage, digest.Value) {
		return nil, ErrRejected{Reason: "token message imprint does not match submitted digest"}
	}

	if ts.Nonce == nil || ts.Nonce.Cmp(nonce) != 0 {
		return nil, ErrRejected{Reason: "token nonce does not match request nonce"}
	}

	if err := verifyTokenSignature(ts, t.anchors); err != nil {
		return nil, ErrRejected{Reason: fmt.Sprintf("token signature verification failed: %v", err)}
	}

	log.Debugf("(timestamp) token granted by %v at %v, serial %v", t.url, ts.Time, ts.SerialNumber)
	return &Token{
		Raw:          respBytes,
		Time:         ts.Time,
		SerialNumber: ts.SerialNumber,
		Policy:       ts.Policy,
	}, nil
}

func (t TSPTimestamper) exchange(ctx context.Context, tsq []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(tsq))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/timestamp-query")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, ErrNetwork{Err: err}
	}

	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrNetwork{Err: fmt.Errorf("request to timestamp authority failed with status %v", resp.StatusCode)}
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrNetwork{Err: err}
	}

	return respBytes, nil
}

// TSPVerifier re-validates a stored timestamp token. Trust anchors are always
// caller supplied; verification without them fails closed.
type TSPVerifier struct {
	anchors []*x509.Certificate
}

type VerifierOption func(*TSPVerifier)

// VerifyWithCerts sets the certificates the token's signature chain must
// terminate in.
func VerifyWithCerts(certs []*x509.Certificate) VerifierOption {
	return func(v *TSPVerifier) {
		v.anchors = certs
	}
}

func NewVerifier(opts ...VerifierOption) TSPVerifier {
	v := TSPVerifier{}
	for _, opt := range opts {
		opt(&v)
	}

	return v
}

// Verify checks a DER encoded TimeStampResp against digest and returns the
// token's asserted time. An ErrDigestMismatch means the document content no
// longer matches the token; any other error means the token itself failed
// structural or cryptographic validation.
func (v TSPVerifier) Verify(ctx context.Context, token []byte, digest cryptoutil.Digest) (time.Time, error) {
	if len(v.anchors) == 0 {
		return time.Time{}, ErrNoTrustAnchor{}
	}

	ts, err := tsproto.ParseResponse(token)
	if err != nil {
		return time.Time{}, ErrProtocol{Err: err}
	}

	if ts.HashAlgorithm != digest.Hash {
		return time.Time{}, fmt.Errorf("token was issued for a %v digest, got %v", ts.HashAlgorithm, digest.Hash)
	}

	if !bytes.Equal(ts.HashedMessage, digest.Value) {
		return time.Time{}, ErrDigestMismatch{}
	}

	if err := verifyTokenSignature(ts, v.anchors); err != nil {
		return time.Time{}, err
	}

	return ts.Time, nil
}

func verifyTokenSignature(ts *tsproto.Timestamp, anchors []*x509.Certificate) error {
	p7, err := pkcs7.Parse(ts.RawToken)
	if err != nil {
		return fmt.Errorf("failed to parse token signature structure: %w", err)
	}

	if len(anchors) == 0 {
		return p7.Verify()
	}

	return p7.VerifyWithChain(cryptoutil.CertificatesToPool(anchors))
}

// generateNonce returns 64 bits of crypto/rand entropy. A nonce is used for
// exactly one request.
func generateNonce() (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 64)
	return rand.Int(rand.Reader, max)
}

// decodeResponseStatus pulls just the PKIStatus out of a TimeStampResp so a
// rejection can be told apart from a malformed response before the full token
// parse.
func decodeResponseStatus(respBytes []byte) (int, error) {
	var resp struct {
		Status struct {
			Status       int
			StatusString asn1.RawValue `asn1:"optional"`
			FailInfo     asn1.BitString `asn1:"optional"`
		}
		TimeStampToken asn1.RawValue `asn1:"optional"`
	}

	if _, err := asn1.Unmarshal(respBytes, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode response status: %w", err)
	}

	return resp.Status.Status, nil
}
