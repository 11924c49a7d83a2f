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
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/wincodesign/authenticode/lib/x509tools"
)

// SignatureBuilder assembles a single-signer CMS SignedData over an
// explicitly-supplied content blob (SpcIndirectDataContent, in the
// Authenticode case). Fields are filled in via SetContent and
// AddAuthenticatedAttribute before calling Sign.
type SignatureBuilder struct {
	signer crypto.Signer
	chain  []*x509.Certificate
	hash   crypto.Hash

	contentType asn1.ObjectIdentifier
	contentDER  []byte

	authAttrs AttributeList
}

// NewBuilder starts a SignatureBuilder for one signer over chain,
// hashing the content and the signed attribute set with hash. chain
// must start with the signer's own certificate.
func NewBuilder(signer crypto.Signer, chain []*x509.Certificate, hash crypto.Hash) (*SignatureBuilder, error) {
	if len(chain) == 0 {
		return nil, errors.New("pkcs7: certificate chain must include at least the signer's own certificate")
	}
	if !hash.Available() {
		return nil, fmt.Errorf("pkcs7: hash %s is not available", hash)
	}
	return &SignatureBuilder{signer: signer, chain: chain, hash: hash}, nil
}

// SetContent sets the eContent of the SignedData to the already
// DER-encoded value der, tagged with contentType.
func (b *SignatureBuilder) SetContent(contentType asn1.ObjectIdentifier, der []byte) {
	b.contentType = contentType
	b.contentDER = der
}

// AddAuthenticatedAttribute adds a signed attribute. contentType and
// messageDigest are added automatically by Sign and must not be added
// here.
func (b *SignatureBuilder) AddAuthenticatedAttribute(oid asn1.ObjectIdentifier, value interface{}) error {
	return b.authAttrs.Add(oid, value)
}

// Sign computes the content digest, finalizes the authenticated
// attribute set, signs it, and returns the completed ContentInfo.
func (b *SignatureBuilder) Sign() (*ContentInfoSignedData, error) {
	if b.contentDER == nil {
		return nil, errors.New("pkcs7: SetContent was not called")
	}
	leaf := b.chain[0]

	digestAlg, ok := x509tools.PkixDigestAlgorithm(b.hash)
	if !ok {
		return nil, fmt.Errorf("pkcs7: no AlgorithmIdentifier for hash %s", b.hash)
	}
	sigAlg, err := digestEncryptionAlgorithm(leaf.PublicKey, b.hash)
	if err != nil {
		return nil, err
	}

	hasher := b.hash.New()
	hasher.Write(b.contentDER)
	contentDigest := hasher.Sum(nil)

	attrs := make(AttributeList, len(b.authAttrs))
	copy(attrs, b.authAttrs)
	if err := attrs.Add(OidAttributeContentType, b.contentType); err != nil {
		return nil, err
	}
	if err := attrs.Add(OidAttributeMessageDigest, contentDigest); err != nil {
		return nil, err
	}

	attrsDER, err := marshalUnsortedSet(attrs)
	if err != nil {
		return nil, fmt.Errorf("pkcs7: marshaling authenticated attributes: %w", err)
	}
	attrHasher := b.hash.New()
	attrHasher.Write(attrsDER)
	attrDigest := attrHasher.Sum(nil)

	signature, err := signDigest(b.signer, b.hash, attrDigest)
	if err != nil {
		return nil, fmt.Errorf("pkcs7: signing: %w", err)
	}

	embedChain, err := TrimChain(b.chain)
	if err != nil {
		return nil, err
	}
	certs, err := MarshalCertificates(embedChain)
	if err != nil {
		return nil, err
	}

	info := SignerInfo{
		Version: 1,
		IssuerAndSerialNumber: issuerAndSerial{
			IssuerName:   asn1.RawValue{FullBytes: leaf.RawIssuer},
			SerialNumber: leaf.SerialNumber,
		},
		DigestAlgorithm:           digestAlg,
		AuthenticatedAttributes:   attrs,
		DigestEncryptionAlgorithm: sigAlg,
		EncryptedDigest:           signature,
	}

	sd := SignedData{
		Version:          1,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{digestAlg},
		ContentInfo:      setExplicitContent(b.contentType, b.contentDER),
		Certificates:     certs,
		SignerInfos:      []SignerInfo{info},
	}
	return &ContentInfoSignedData{ContentType: OidSignedData, Content: sd}, nil
}

// signDigest signs digest (already hashed with hash) using signer.
// RSA keys use PKCS#1v1.5; ECDSA keys produce an ASN.1 {r,s} signature.
func signDigest(signer crypto.Signer, hash crypto.Hash, digest []byte) ([]byte, error) {
	switch signer.Public().(type) {
	case *rsa.PublicKey:
		return signer.Sign(rand.Reader, digest, hash)
	case *ecdsa.PublicKey:
		return signer.Sign(rand.Reader, digest, hash)
	default:
		return nil, fmt.Errorf("pkcs7: unsupported public key type %T", signer.Public())
	}
}

// digestEncryptionAlgorithm picks the PKCS#7 "digest encryption"
// algorithm identifier for the leaf key: for RSA this is plain RSA
// (PKCS#1v1.5 over the raw digest, the historical Authenticode/PKCS#7
// convention), for ECDSA it is ecdsa-with-<hash>, since PKCS#7 encodes
// the combined signature OID rather than the bare key OID here.
func digestEncryptionAlgorithm(pub crypto.PublicKey, hash crypto.Hash) (pkix.AlgorithmIdentifier, error) {
	alg, ok := x509tools.PkixPublicKeyAlgorithm(pub)
	if !ok {
		return pkix.AlgorithmIdentifier{}, fmt.Errorf("pkcs7: unsupported public key type %T", pub)
	}
	if _, isECDSA := pub.(*ecdsa.PublicKey); isECDSA {
		oid, err := ecdsaWithHashOid(hash)
		if err != nil {
			return pkix.AlgorithmIdentifier{}, err
		}
		alg.Algorithm = oid
	}
	return alg, nil
}

var ecdsaWithHashOids = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.SHA256: {1, 2, 840, 10045, 4, 3, 2},
	crypto.SHA384: {1, 2, 840, 10045, 4, 3, 3},
	crypto.SHA512: {1, 2, 840, 10045, 4, 3, 4},
}

func ecdsaWithHashOid(hash crypto.Hash) (asn1.ObjectIdentifier, error) {
	oid, ok := ecdsaWithHashOids[hash]
	if !ok {
		return nil, fmt.Errorf("pkcs7: no ecdsa-with-%s OID defined", hash)
	}
	return oid, nil
}
