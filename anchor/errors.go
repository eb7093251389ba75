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

package anchor

import "fmt"

// ErrNetwork indicates the node could not be reached or did not answer in
// time.
type ErrNetwork struct {
	Err error
}

func (e ErrNetwork) Error() string {
	return fmt.Sprintf("node unreachable: %v", e.Err)
}

func (e ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrProtocol indicates the node answered with data that does not decode as
// a JSON-RPC response.
type ErrProtocol struct {
	Err error
}

func (e ErrProtocol) Error() string {
	return fmt.Sprintf("malformed node response: %v", e.Err)
}

func (e ErrProtocol) Unwrap() error {
	return e.Err
}

// ErrRejected indicates the node explicitly refused the submission, for
// example for an unknown account or insufficient funds.
type ErrRejected struct {
	Code    int
	Message string
}

func (e ErrRejected) Error() string {
	return fmt.Sprintf("node rejected request (%v): %v", e.Code, e.Message)
}

// ErrCommitmentMismatch indicates the transaction a commitment points at does
// not carry the commitment value in its calldata. The receipt and the
// commitment describe different submissions.
type ErrCommitmentMismatch struct {
	TxID string
}

func (e ErrCommitmentMismatch) Error() string {
	return fmt.Sprintf("transaction %v does not carry the commitment value", e.TxID)
}

// ErrNoAccount indicates a submission was attempted without a configured
// account.
type ErrNoAccount struct{}

func (e ErrNoAccount) Error() string {
	return "no account configured for commitment submission"
}
