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

import "fmt"

// ErrExists indicates an artifact already occupies the target location and
// overwrite was not requested.
type ErrExists struct {
	Path string
}

func (e ErrExists) Error() string {
	return fmt.Sprintf("artifact already exists at %v", e.Path)
}

// ErrNotFound indicates no artifact is stored for the handle.
type ErrNotFound struct {
	Handle Handle
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("no %v artifact stored for %v", e.Handle.Kind, e.Handle.Document)
}

// ErrCorrupt indicates a stored artifact could not be parsed.
type ErrCorrupt struct {
	Path string
	Err  error
}

func (e ErrCorrupt) Error() string {
	return fmt.Sprintf("artifact at %v is corrupt: %v", e.Path, e.Err)
}

func (e ErrCorrupt) Unwrap() error {
	return e.Err
}

// ErrInvalidArtifact indicates an artifact's kind and payload disagree, for
// example a token artifact with no token bytes.
type ErrInvalidArtifact struct {
	Reason string
}

func (e ErrInvalidArtifact) Error() string {
	return fmt.Sprintf("invalid artifact: %v", e.Reason)
}
