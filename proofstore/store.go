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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chronoseal/go-chronoseal/anchor"
	"github.com/chronoseal/go-chronoseal/log"
	tsproto "github.com/digitorus/timestamp"
	"github.com/google/uuid"
)

const (
	tokenPartition  = "tokens"
	anchorPartition = "anchors"

	tokenExt        = ".tsr"
	tokenSidecarExt = ".tsr.json"
	anchorExt       = ".anchor.json"
)

// Store reads and writes proof artifacts under a single storage root. Writes
// to the same target are serialized; writes to different targets may proceed
// in parallel.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New opens a store rooted at root, creating the partition directories if
// needed.
func New(root string) (*Store, error) {
	for _, partition := range []string{tokenPartition, anchorPartition} {
		if err := os.MkdirAll(filepath.Join(root, partition), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage partition: %w", err)
		}
	}

	return &Store{
		root:  root,
		locks: map[string]*sync.Mutex{},
	}, nil
}

// Root returns the storage root the store was opened with.
func (s *Store) Root() string {
	return s.root
}

// Save persists the artifact under its deterministic location. It fails with
// ErrExists when the location is occupied unless overwrite is set. Missing
// metadata ID and creation time are filled in; the stored copy is returned
// through the handle, the caller's artifact is not modified.
func (s *Store) Save(artifact *Artifact, overwrite bool) (Handle, error) {
	if err := validateArtifact(artifact); err != nil {
		return Handle{}, err
	}

	meta := artifact.Metadata
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	handle := Handle{Kind: meta.Kind, Document: meta.Document}
	target := s.artifactPath(handle)
	lock := s.targetLock(target)
	lock.Lock()
	defer lock.Unlock()

	if !overwrite {
		if _, err := os.Stat(target); err == nil {
			return Handle{}, ErrExists{Path: target}
		}
	}

	switch meta.Kind {
	case KindToken:
		sidecar, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return Handle{}, fmt.Errorf("failed to marshal artifact metadata: %w", err)
		}

		// The sidecar goes first: an interrupted save must never leave an
		// orphan token behind to block retries.
		sidecarTarget := s.sidecarPath(handle)
		if err := writeAtomic(sidecarTarget, sidecar); err != nil {
			return Handle{}, err
		}

		if err := writeAtomic(target, artifact.Token); err != nil {
			os.Remove(sidecarTarget)
			return Handle{}, err
		}
	case KindAnchor:
		record, err := json.MarshalIndent(anchorRecord{Metadata: meta, Commitment: *artifact.Anchor}, "", "  ")
		if err != nil {
			return Handle{}, fmt.Errorf("failed to marshal anchor record: %w", err)
		}

		if err := writeAtomic(target, record); err != nil {
			return Handle{}, err
		}
	}

	log.Debugf("(proofstore) saved %v artifact for %v at %v", meta.Kind, meta.Document, target)
	return handle, nil
}

// Load reads the artifact identified by handle. A missing artifact is
// ErrNotFound; an artifact that fails to parse is ErrCorrupt.
func (s *Store) Load(handle Handle) (*Artifact, error) {
	switch handle.Kind {
	case KindToken:
		return s.loadToken(handle)
	case KindAnchor:
		return s.loadAnchor(handle)
	default:
		return nil, ErrInvalidArtifact{Reason: fmt.Sprintf("unknown artifact kind %v", handle.Kind)}
	}
}

// List enumerates the handles stored for a mechanism.
func (s *Store) List(kind Kind) ([]Handle, error) {
	var partition, ext string
	switch kind {
	case KindToken:
		partition, ext = tokenPartition, tokenExt
	case KindAnchor:
		partition, ext = anchorPartition, anchorExt
	default:
		return nil, ErrInvalidArtifact{Reason: fmt.Sprintf("unknown artifact kind %v", kind)}
	}

	entries, err := os.ReadDir(filepath.Join(s.root, partition))
	if err != nil {
		return nil, err
	}

	handles := make([]Handle, 0)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}

		handles = append(handles, Handle{Kind: kind, Document: strings.TrimSuffix(name, ext)})
	}

	return handles, nil
}

type anchorRecord struct {
	Metadata   Metadata          `json:"metadata"`
	Commitment anchor.Commitment `json:"commitment"`
}

func (s *Store) loadToken(handle Handle) (*Artifact, error) {
	target := s.artifactPath(handle)
	token, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Handle: handle}
		}

		return nil, err
	}

	if _, err := tsproto.ParseResponse(token); err != nil {
		return nil, ErrCorrupt{Path: target, Err: err}
	}

	sidecarPath := s.sidecarPath(handle)
	sidecar, err := os.ReadFile(sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCorrupt{Path: sidecarPath, Err: fmt.Errorf("token metadata sidecar is missing")}
		}

		return nil, err
	}

	meta := Metadata{}
	if err := json.Unmarshal(sidecar, &meta); err != nil {
		return nil, ErrCorrupt{Path: sidecarPath, Err: err}
	}

	if meta.Kind != KindToken || meta.Digest == "" {
		return nil, ErrCorrupt{Path: sidecarPath, Err: fmt.Errorf("metadata does not describe a token artifact")}
	}

	return &Artifact{Metadata: meta, Token: token}, nil
}

func (s *Store) loadAnchor(handle Handle) (*Artifact, error) {
	target := s.artifactPath(handle)
	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Handle: handle}
		}

		return nil, err
	}

	record := anchorRecord{}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, ErrCorrupt{Path: target, Err: err}
	}

	if record.Metadata.Kind != KindAnchor || record.Commitment.Value == "" || record.Commitment.TxID == "" {
		return nil, ErrCorrupt{Path: target, Err: fmt.Errorf("record does not describe an anchor artifact")}
	}

	commitment := record.Commitment
	return &Artifact{Metadata: record.Metadata, Anchor: &commitment}, nil
}

func (s *Store) artifactPath(handle Handle) string {
	doc := sanitizeDocumentName(handle.Document)
	if handle.Kind == KindAnchor {
		return filepath.Join(s.root, anchorPartition, doc+anchorExt)
	}

	return filepath.Join(s.root, tokenPartition, doc+tokenExt)
}

func (s *Store) sidecarPath(handle Handle) string {
	return filepath.Join(s.root, tokenPartition, sanitizeDocumentName(handle.Document)+tokenSidecarExt)
}

func (s *Store) targetLock(target string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[target]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[target] = lock
	}

	return lock
}

// sanitizeDocumentName keeps artifact names inside their partition even when
// the document reference is a path.
func sanitizeDocumentName(document string) string {
	base := filepath.Base(document)
	return strings.ReplaceAll(base, string(filepath.Separator), "_")
}

func validateArtifact(artifact *Artifact) error {
	if artifact == nil {
		return ErrInvalidArtifact{Reason: "artifact is nil"}
	}

	if artifact.Metadata.Document == "" {
		return ErrInvalidArtifact{Reason: "artifact has no document reference"}
	}

	switch artifact.Metadata.Kind {
	case KindToken:
		if len(artifact.Token) == 0 {
			return ErrInvalidArtifact{Reason: "token artifact has no token bytes"}
		}
	case KindAnchor:
		if artifact.Anchor == nil {
			return ErrInvalidArtifact{Reason: "anchor artifact has no commitment"}
		}
	default:
		return ErrInvalidArtifact{Reason: fmt.Sprintf("unknown artifact kind %v", artifact.Metadata.Kind)}
	}

	return nil
}

// writeAtomic writes data next to target and renames it into place so
// readers never observe a partial artifact.
func writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close artifact: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}

	return nil
}
