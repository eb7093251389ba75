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

package proofstore

import (
	"context"
	"crypto"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chronoseal/go-chronoseal/anchor"
	"github.com/chronoseal/go-chronoseal/cryptoutil"
	"github.com/chronoseal/go-chronoseal/internal/tsatest"
	"github.com/chronoseal/go-chronoseal/timestamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenArtifact(t *testing.T, document string) *Artifact {
	t.Helper()
	authority, err := tsatest.New()
	require.NoError(t, err)
	t.Cleanup(authority.Close)

	digest, err := cryptoutil.CalculateDigestFromBytes([]byte("content of "+document), crypto.SHA256)
	require.NoError(t, err)

	ts := timestamp.NewTimestamper(timestamp.TimestampWithUrl(authority.URL()))
	token, err := ts.Timestamp(context.Background(), digest)
	require.NoError(t, err)

	return &Artifact{
		Metadata: Metadata{
			Kind:      KindToken,
			Document:  document,
			DigestAlg: "sha256",
			Digest:    digest.HexValue(),
		},
		Token: token.Raw,
	}
}

func testAnchorArtifact(document string) *Artifact {
	return &Artifact{
		Metadata: Metadata{
			Kind:      KindAnchor,
			Document:  document,
			DigestAlg: "sha256",
			Digest:    "aa00000000000000000000000000000000000000000000000000000000000000",
		},
		Anchor: &anchor.Commitment{
			Value:       "0xaa00000000000000000000000000000000000000000000000000000000000000",
			Account:     "0x00a329c0648769a73afac7f9381e08fb43dbea72",
			TxID:        "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
			State:       anchor.StatePending,
			SubmittedAt: time.Now().UTC(),
		},
	}
}

func TestStoreTokenRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	artifact := testTokenArtifact(t, "report.pdf")
	handle, err := store.Save(artifact, false)
	require.NoError(t, err)
	assert.Equal(t, KindToken, handle.Kind)
	assert.Equal(t, "report.pdf", handle.Document)

	loaded, err := store.Load(handle)
	require.NoError(t, err)
	assert.Equal(t, artifact.Token, loaded.Token)
	assert.Equal(t, artifact.Metadata.Digest, loaded.Metadata.Digest)
	assert.NotEmpty(t, loaded.Metadata.ID)
	assert.False(t, loaded.Metadata.CreatedAt.IsZero())
}

func TestStoreAnchorRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	artifact := testAnchorArtifact("report.pdf")
	handle, err := store.Save(artifact, false)
	require.NoError(t, err)

	loaded, err := store.Load(handle)
	require.NoError(t, err)
	require.NotNil(t, loaded.Anchor)
	assert.Equal(t, artifact.Anchor.Value, loaded.Anchor.Value)
	assert.Equal(t, artifact.Anchor.TxID, loaded.Anchor.TxID)
	assert.Equal(t, anchor.StatePending, loaded.Anchor.State)
}

func TestStoreCollision(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	artifact := testAnchorArtifact("report.pdf")
	_, err = store.Save(artifact, false)
	require.NoError(t, err)

	_, err = store.Save(artifact, false)
	var exists ErrExists
	require.ErrorAs(t, err, &exists)

	_, err = store.Save(artifact, true)
	assert.NoError(t, err)
}

func TestStoreNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for _, kind := range []Kind{KindToken, KindAnchor} {
		_, err = store.Load(Handle{Kind: kind, Document: "missing.pdf"})
		var notFound ErrNotFound
		assert.ErrorAs(t, err, &notFound)
	}
}

func TestStoreCorruptArtifacts(t *testing.T) {
	t.Run("token with flipped byte", func(t *testing.T) {
		root := t.TempDir()
		store, err := New(root)
		require.NoError(t, err)

		artifact := testTokenArtifact(t, "report.pdf")
		handle, err := store.Save(artifact, false)
		require.NoError(t, err)

		target := filepath.Join(root, tokenPartition, "report.pdf"+tokenExt)
		data, err := os.ReadFile(target)
		require.NoError(t, err)
		data[0] ^= 0xff
		require.NoError(t, os.WriteFile(target, data, 0o644))

		_, err = store.Load(handle)
		var corrupt ErrCorrupt
		assert.ErrorAs(t, err, &corrupt)
	})

	t.Run("anchor with invalid json", func(t *testing.T) {
		root := t.TempDir()
		store, err := New(root)
		require.NoError(t, err)

		artifact := testAnchorArtifact("report.pdf")
		handle, err := store.Save(artifact, false)
		require.NoError(t, err)

		target := filepath.Join(root, anchorPartition, "report.pdf"+anchorExt)
		require.NoError(t, os.WriteFile(target, []byte("{not json"), 0o644))

		_, err = store.Load(handle)
		var corrupt ErrCorrupt
		assert.ErrorAs(t, err, &corrupt)
	})

	t.Run("anchor with missing fields", func(t *testing.T) {
		root := t.TempDir()
		store, err := New(root)
		require.NoError(t, err)

		target := filepath.Join(root, anchorPartition, "report.pdf"+anchorExt)
		require.NoError(t, os.WriteFile(target, []byte("{}"), 0o644))

		_, err = store.Load(Handle{Kind: KindAnchor, Document: "report.pdf"})
		var corrupt ErrCorrupt
		assert.ErrorAs(t, err, &corrupt)
	})
}

func TestStoreList(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = store.Save(testAnchorArtifact(fmt.Sprintf("doc-%d.pdf", i)), false)
		require.NoError(t, err)
	}

	handles, err := store.List(KindAnchor)
	require.NoError(t, err)
	assert.Len(t, handles, 3)

	handles, err = store.List(KindToken)
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestStoreListUnknownKind(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.List(Kind("parchment"))
	var invalid ErrInvalidArtifact
	assert.ErrorAs(t, err, &invalid)
}

func TestStoreSaveAfterInterruptedSave(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)

	// A save torn between the sidecar and token writes leaves only the
	// sidecar. A later save of the same document must go through.
	orphan := filepath.Join(root, tokenPartition, "report.pdf"+tokenSidecarExt)
	require.NoError(t, os.WriteFile(orphan, []byte("{}"), 0o644))

	artifact := testTokenArtifact(t, "report.pdf")
	handle, err := store.Save(artifact, false)
	require.NoError(t, err)

	loaded, err := store.Load(handle)
	require.NoError(t, err)
	assert.Equal(t, artifact.Token, loaded.Token)
	assert.Equal(t, artifact.Metadata.Digest, loaded.Metadata.Digest)
}

func TestStoreConcurrentSaves(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Save(testAnchorArtifact(fmt.Sprintf("doc-%d.pdf", i)), false)
		}(i)
	}

	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "save %d", i)
	}

	handles, err := store.List(KindAnchor)
	require.NoError(t, err)
	assert.Len(t, handles, 8)
}

func TestSanitizeDocumentName(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	artifact := testAnchorArtifact("../../etc/passwd")
	handle, err := store.Save(artifact, false)
	require.NoError(t, err)

	loaded, err := store.Load(handle)
	require.NoError(t, err)
	assert.NotNil(t, loaded.Anchor)
	assert.Equal(t, filepath.Join(store.Root(), anchorPartition, "passwd"+anchorExt), store.artifactPath(handle))
}
