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

// Package tsatest runs an in-process RFC3161 authority for tests. It signs
// tokens with a freshly generated self-signed ECDSA certificate and can be
// told to misbehave in specific ways so clients' validation paths can be
// exercised.
package tsatest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"time"

	tsproto "github.com/digitorus/timestamp"
)

// Authority is a test TSA listening on a local httptest server.
type Authority struct {
	Server *httptest.Server
	Cert   *x509.Certificate
	key    *ecdsa.PrivateKey

	// Now is the time asserted in issued tokens.
	Now func() time.Time

	// TamperNonce makes the authority echo a wrong nonce.
	TamperNonce bool

	// TamperImprint makes the authority flip a byte of the message imprint.
	TamperImprint bool

	// Reject makes the authority answer every request with a rejection
	// status.
	Reject bool

	// Garbage makes the authority answer with bytes that are not a
	// timestamp response at all.
	Garbage bool
}

// New starts a test authority. Callers must Close it.
func New() (*Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "chronoseal test tsa", Organization: []string{"chronoseal"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certDer, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(certDer)
	if err != nil {
		return nil, err
	}

	a := &Authority{
		Cert: cert,
		key:  key,
		Now:  time.Now,
	}

	a.Server = httptest.NewServer(http.HandlerFunc(a.handle))
	return a, nil
}

// URL returns the authority's endpoint.
func (a *Authority) URL() string {
	return a.Server.URL
}

// Close shuts the authority down.
func (a *Authority) Close() {
	a.Server.Close()
}

func (a *Authority) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if a.Garbage {
		w.Header().Set("Content-Type", "application/timestamp-reply")
		_, _ = w.Write([]byte("this is not a timestamp response"))
		return
	}

	if a.Reject {
		resp, err := tsproto.CreateErrorResponse(tsproto.Rejection, tsproto.UnacceptedPolicy)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/timestamp-reply")
		_, _ = w.Write(resp)
		return
	}

	req, err := tsproto.ParseRequest(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	nonce := req.Nonce
	if a.TamperNonce && nonce != nil {
		nonce = new(big.Int).Add(nonce, big.NewInt(1))
	}

	imprint := make([]byte, len(req.HashedMessage))
	copy(imprint, req.HashedMessage)
	if a.TamperImprint && len(imprint) > 0 {
		imprint[0] ^= 0xff
	}

	policy := req.TSAPolicyOID
	if len(policy) == 0 {
		policy = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 2}
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	ts := tsproto.Timestamp{
		HashAlgorithm:     req.HashAlgorithm,
		HashedMessage:     imprint,
		Time:              a.Now().UTC(),
		Policy:            policy,
		SerialNumber:      serial,
		Nonce:             nonce,
		AddTSACertificate: req.Certificates,
	}

	resp, err := ts.CreateResponse(a.Cert, a.key)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/timestamp-reply")
	_, _ = w.Write(resp)
}
