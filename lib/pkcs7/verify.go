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

package pkcs7

import (
	"bytes"
	"crypto/x509"
	"fmt"

	"github.com/wincodesign/authenticode/lib/x509tools"
)

// Verify checks that the single SignerInfo in sd is internally
// self-consistent: its certificate's key produced EncryptedDigest over
// the DER of AuthenticatedAttributes, and MessageDigest within those
// attributes matches a fresh digest of the supplied content. It does
// not check certificate chain validity, expiry, or trust; callers that
// need those guarantees build them on top of the certificates returned
// here.
func (ci *ContentInfoSignedData) Verify(content []byte) (*x509.Certificate, error) {
	sd := ci.Content
	if len(sd.SignerInfos) != 1 {
		return nil, fmt.Errorf("pkcs7: expected exactly one SignerInfo, got %d", len(sd.SignerInfos))
	}
	info := sd.SignerInfos[0]

	certs, err := ParseCertificates(sd.Certificates)
	if err != nil {
		return nil, err
	}
	signer := findSigner(certs, info)
	if signer == nil {
		return nil, fmt.Errorf("pkcs7: no certificate matches SignerInfo issuer/serial")
	}

	hash, ok := x509tools.PkixDigestToHash(info.DigestAlgorithm)
	if !ok {
		return nil, fmt.Errorf("pkcs7: unsupported digest algorithm %s", info.DigestAlgorithm.Algorithm)
	}

	var digest []byte
	if err := info.AuthenticatedAttributes.GetOne(OidAttributeMessageDigest, &digest); err != nil {
		return nil, fmt.Errorf("pkcs7: reading messageDigest attribute: %w", err)
	}
	hasher := hash.New()
	hasher.Write(content)
	if !bytes.Equal(hasher.Sum(nil), digest) {
		return nil, fmt.Errorf("pkcs7: content digest does not match messageDigest attribute")
	}

	attrsDER, err := marshalUnsortedSet(info.AuthenticatedAttributes)
	if err != nil {
		return nil, fmt.Errorf("pkcs7: marshaling authenticated attributes: %w", err)
	}
	attrHasher := hash.New()
	attrHasher.Write(attrsDER)
	attrDigest := attrHasher.Sum(nil)

	if err := x509tools.Verify(signer.PublicKey, hash, attrDigest, info.EncryptedDigest); err != nil {
		return nil, fmt.Errorf("pkcs7: signature does not verify: %w", err)
	}
	return signer, nil
}

func findSigner(certs []*x509.Certificate, info SignerInfo) *x509.Certificate {
	for _, cert := range certs {
		if cert.SerialNumber.Cmp(info.IssuerAndSerialNumber.SerialNumber) == 0 &&
			bytes.Equal(cert.RawIssuer, info.IssuerAndSerialNumber.IssuerName.FullBytes) {
			return cert
		}
	}
	return nil
}
