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
	"bytes"
	"crypto"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ErrUnsupportedHash is returned when a hash algorithm is requested that the
// engine does not support or that is not linked into the binary.
type ErrUnsupportedHash string

func (e ErrUnsupportedHash) Error() string {
	return fmt.Sprintf("unsupported hash function: %v", string(e))
}

// Digest is the output of a hash function over a document's full byte stream,
// along with the function that produced it. Values are immutable once
// computed.
type Digest struct {
	Hash  crypto.Hash
	Value []byte
}

var hashNames = map[crypto.Hash]string{
	crypto.SHA256: "sha256",
	crypto.SHA384: "sha384",
	crypto.SHA512: "sha512",
	crypto.SHA1:   "sha1",
}

var hashesByName = map[string]crypto.Hash{
	"sha256": crypto.SHA256,
	"sha384": crypto.SHA384,
	"sha512": crypto.SHA512,
	"sha1":   crypto.SHA1,
}

// HashToString returns the lowercase name of a hash function.
func HashToString(h crypto.Hash) (string, error) {
	if name, ok := hashNames[h]; ok {
		return name, nil
	}

	return "", ErrUnsupportedHash(h.String())
}

// HashFromString returns the hash function registered under name.
func HashFromString(name string) (crypto.Hash, error) {
	if h, ok := hashesByName[name]; ok {
		return h, nil
	}

	return crypto.Hash(0), ErrUnsupportedHash(name)
}

// CalculateDigestFromReader hashes everything r produces. The reader is
// consumed in bounded chunks, so memory use is independent of input size.
func CalculateDigestFromReader(r io.Reader, hash crypto.Hash) (Digest, error) {
	if !hash.Available() {
		return Digest{}, ErrUnsupportedHash(hash.String())
	}

	hasher := hash.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return Digest{}, err
	}

	return Digest{Hash: hash, Value: hasher.Sum(nil)}, nil
}

// CalculateDigestFromFile hashes the file at path.
func CalculateDigestFromFile(path string, hash crypto.Hash) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}

	defer file.Close()
	return CalculateDigestFromReader(file, hash)
}

// CalculateDigestFromBytes hashes data. Intended for small in-memory values
// such as nonces and test fixtures; file content should go through
// CalculateDigestFromFile.
func CalculateDigestFromBytes(data []byte, hash crypto.Hash) (Digest, error) {
	return CalculateDigestFromReader(bytes.NewReader(data), hash)
}

// DigestFromHex reconstructs a Digest from its hex encoding and hash name, as
// persisted in artifact metadata.
func DigestFromHex(hexValue string, hashName string) (Digest, error) {
	hash, err := HashFromString(hashName)
	if err != nil {
		return Digest{}, err
	}

	value, err := hex.DecodeString(hexValue)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to decode digest hex: %w", err)
	}

	if len(value) != hash.Size() {
		return Digest{}, fmt.Errorf("digest is %v bytes, expected %v for %v", len(value), hash.Size(), hashName)
	}

	return Digest{Hash: hash, Value: value}, nil
}

// HexValue returns the lowercase hex encoding of the digest value.
func (d Digest) HexValue() string {
	return hex.EncodeToString(d.Value)
}

// Equal reports whether two digests used the same hash function and produced
// the same value.
func (d Digest) Equal(other Digest) bool {
	return d.Hash == other.Hash && bytes.Equal(d.Value, other.Value)
}
