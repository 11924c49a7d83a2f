// Copyright © SAS Institute Inc.
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

package pkcs9

import (
	"context"
	"crypto"
	"encoding/asn1"

	"github.com/wincodesign/authenticode/lib/pkcs7"
)

// Request is what a Timestamper needs to produce a countersignature:
// the primary SignerInfo's EncryptedDigest (the bytes to timestamp)
// and, for the RFC 3161 strategy, the hash algorithm to digest it
// with before sending. The legacy Authenticode strategy sends
// EncryptedDigest as-is.
type Request struct {
	EncryptedDigest []byte
	Hash            crypto.Hash
	Legacy          bool
}

// Timestamper obtains a countersignature token for req and returns it
// as a CMS SignedData, without modifying any existing signature.
// Implementations must treat a non-2xx HTTP response, a malformed
// response body, or a token that fails MessageImprint.Verify as fatal
// rather than silently skipping the timestamp.
type Timestamper interface {
	Timestamp(ctx context.Context, req *Request) (*pkcs7.ContentInfoSignedData, error)
}

// AddStampToSignedData attaches token as an unsigned attribute of
// signerInfo, under the OID appropriate to the token's origin. Callers
// pass the same OID they used to obtain the token (OidAttributeCounterSign
// for the legacy strategy, OidSpcTimeStampToken for RFC 3161).
func AddStampToSignedData(signerInfo *pkcs7.SignerInfo, oid asn1.ObjectIdentifier, token pkcs7.ContentInfoSignedData) error {
	return signerInfo.UnauthenticatedAttributes.Add(oid, token)
}
