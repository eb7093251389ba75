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

package cryptoutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCert(t *testing.T, cn string) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	return der
}

func TestTryParseCertificate(t *testing.T) {
	der := createTestCert(t, "test cert")

	t.Run("der", func(t *testing.T) {
		cert, err := TryParseCertificate(der)
		require.NoError(t, err)
		assert.Equal(t, "test cert", cert.Subject.CommonName)
	})

	t.Run("pem", func(t *testing.T) {
		pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
		cert, err := TryParseCertificate(pemBytes)
		require.NoError(t, err)
		assert.Equal(t, "test cert", cert.Subject.CommonName)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := TryParseCertificate([]byte("not a certificate"))
		assert.Error(t, err)
	})
}

func TestTryParseCertificates(t *testing.T) {
	bundle := []byte{}
	for _, cn := range []string{"first", "second"} {
		der := createTestCert(t, cn)
		bundle = append(bundle, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})...)
	}

	certs, err := TryParseCertificates(bundle)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "first", certs[0].Subject.CommonName)
	assert.Equal(t, "second", certs[1].Subject.CommonName)

	pool := CertificatesToPool(certs)
	assert.NotNil(t, pool)

	_, err = TryParseCertificates([]byte("no pem blocks here"))
	assert.Error(t, err)
}
