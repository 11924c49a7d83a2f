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
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"math/big"
)

// ContentInfoSignedData is the outermost PKCS#7/CMS structure carrying
// a SignedData payload.
type ContentInfoSignedData struct {
	ContentType asn1.ObjectIdentifier
	Content     SignedData `asn1:"explicit,tag:0"`
}

// SignedData is the CMS SignedData structure, restricted to the shape
// Authenticode uses: exactly the fields needed to carry one signer
// over an SpcIndirectDataContent payload.
type SignedData struct {
	Version          int                        `asn1:"default:1"`
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	ContentInfo      EncapsulatedContentInfo
	Certificates     asn1.RawValue          `asn1:"optional"`
	CRLs             []pkix.CertificateList `asn1:"optional,set,tag:1"`
	SignerInfos      []SignerInfo           `asn1:"set"`
}

// EncapsulatedContentInfo carries the eContent. Authenticode does not
// wrap eContent in the OCTET STRING that plain CMS requires: the DER
// of the inner content type (e.g. SpcIndirectDataContent) is embedded
// directly under the explicit [0] tag. Content is therefore stored as
// a raw value rather than as []byte so both directions of that quirk
// round-trip exactly.
type EncapsulatedContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"optional"`
}

// Bytes returns the DER of the encapsulated content (without the
// explicit [0] wrapper). Authenticode's own eContent omits the OCTET
// STRING that plain CMS wraps content in, so the DER under [0] is the
// content's own TLV directly; some standards-conformant producers
// (e.g. genuine RFC 3161 responders) still wrap it in one. Both forms
// are accepted by unwrapping a leading OCTET STRING if present.
func (ci EncapsulatedContentInfo) Bytes() ([]byte, error) {
	blob := ci.Content.Bytes
	if len(blob) == 0 {
		blob = ci.Content.FullBytes
	}
	if len(blob) == 0 {
		return nil, errors.New("pkcs7: no encapsulated content present")
	}
	if blob[0] == asn1.TagOctetString {
		var octets []byte
		if _, err := asn1.Unmarshal(blob, &octets); err == nil {
			return octets, nil
		}
	}
	return blob, nil
}

// Unmarshal decodes the encapsulated content into out.
func (ci EncapsulatedContentInfo) Unmarshal(out interface{}) error {
	blob, err := ci.Bytes()
	if err != nil {
		return err
	}
	rest, err := asn1.Unmarshal(blob, out)
	if err != nil {
		return err
	} else if len(rest) != 0 {
		return errors.New("pkcs7: trailing bytes after encapsulated content")
	}
	return nil
}

// setExplicitContent packs raw DER (already a complete TLV) as the
// eContent, applying the Authenticode no-OCTET-STRING convention.
func setExplicitContent(oid asn1.ObjectIdentifier, der []byte) EncapsulatedContentInfo {
	return EncapsulatedContentInfo{
		ContentType: oid,
		Content: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      der,
		},
	}
}

// SignerInfo is a single CMS SignerInfo using the issuer-and-serial
// signer identifier form.
type SignerInfo struct {
	Version               int `asn1:"default:1"`
	IssuerAndSerialNumber issuerAndSerial
	DigestAlgorithm       pkix.AlgorithmIdentifier
	AuthenticatedAttributes   AttributeList `asn1:"optional,set,tag:0"`
	DigestEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedDigest           []byte
	UnauthenticatedAttributes AttributeList `asn1:"optional,set,tag:1"`
}

type issuerAndSerial struct {
	IssuerName   asn1.RawValue
	SerialNumber *big.Int
}
