//
// Copyright (c) SAS Institute Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package authenticode

import "errors"

var (
	// ErrNoCertificate is returned when SignParams.Chain is empty.
	ErrNoCertificate = errors.New("authenticode: no signing certificate provided")
	// ErrNoPrivateKey is returned when SignParams.PrivateKey is nil.
	ErrNoPrivateKey = errors.New("authenticode: no private key provided")
	// ErrUnsupportedKeyAlgorithm is returned when the private key's
	// public counterpart is neither RSA nor ECDSA.
	ErrUnsupportedKeyAlgorithm = errors.New("authenticode: unsupported private key algorithm")
)
