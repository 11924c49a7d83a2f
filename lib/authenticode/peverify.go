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

import (
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/wincodesign/authenticode/lib/pkcs7"
	"github.com/wincodesign/authenticode/lib/x509tools"
)

// PESignature is one Authenticode signature found in a PE image's
// certificate table. Verification is purely structural and
// cryptographic: it checks that the signature was produced by the
// embedded leaf certificate and that the embedded digest matches the
// image, but it does not build or validate a certificate chain, check
// revocation, or validate the authenticity of any attached timestamp
// (all out of scope; see the countersignature-verification exclusion).
type PESignature struct {
	Signer    *x509.Certificate
	Indirect  SpcIndirectDataContent
	ImageHash crypto.Hash
}

// VerifyPE extracts and verifies every Authenticode signature present
// in the certificate table of the PE image exposed by r (of total
// length size), recomputing the image digest to confirm it matches
// what each signature claims.
func VerifyPE(r io.ReaderAt, size int64) ([]PESignature, error) {
	hvals, err := findSignatures(r, size)
	if err != nil {
		return nil, err
	}
	if hvals.certSize == 0 {
		return nil, errors.New("authenticode: image carries no certificate table")
	}
	sigblob, err := readNAt(r, hvals.certStart, int(hvals.certSize))
	if err != nil {
		return nil, err
	}
	sigs, hashes, err := parseSignatures(sigblob)
	if err != nil {
		return nil, err
	}
	for imgHash, claimed := range hashes {
		digest, err := DigestPE(r, size, imgHash)
		if err != nil {
			return nil, err
		}
		if !hashEqual(digest.Imprint, claimed) {
			return nil, fmt.Errorf("authenticode: image digest mismatch: got %x, signature claims %x", digest.Imprint, claimed)
		}
	}
	return sigs, nil
}

func findSignatures(r io.ReaderAt, size int64) (*peHeaderValues, error) {
	sr := io.NewSectionReader(r, 0, size)
	peStart, err := readDosHeader(sr, io.Discard)
	if err != nil {
		return nil, err
	}
	fh, err := readCoffHeader(sr, io.Discard)
	if err != nil {
		return nil, err
	}
	return readOptHeader(sr, io.Discard, peStart, fh)
}

func parseSignatures(blob []byte) ([]PESignature, map[crypto.Hash][]byte, error) {
	sigs := make([]PESignature, 0, 1)
	hashes := make(map[crypto.Hash][]byte, 1)
	for len(blob) != 0 {
		if len(blob) < 8 {
			return nil, nil, errors.New("authenticode: invalid certificate table entry")
		}
		wLen := binary.LittleEndian.Uint32(blob)
		end := (int(wLen) + 7) / 8 * 8
		certSize := int(wLen) - 8
		if end > len(blob) || certSize < 0 {
			return nil, nil, errors.New("authenticode: invalid certificate table entry")
		}
		der := blob[8 : 8+certSize]
		blob = blob[end:]

		sig, err := checkSignature(der)
		if err != nil {
			return nil, nil, err
		}
		sigs = append(sigs, *sig)
		imageDigest := sig.Indirect.MessageDigest.Digest
		if existing, ok := hashes[sig.ImageHash]; ok {
			if !hashEqual(existing, imageDigest) {
				return nil, nil, fmt.Errorf("authenticode: conflicting image digests under %s", sig.ImageHash)
			}
		} else {
			hashes[sig.ImageHash] = imageDigest
		}
	}
	return sigs, hashes, nil
}

func checkSignature(der []byte) (*PESignature, error) {
	var psd pkcs7.ContentInfoSignedData
	if _, err := asn1.Unmarshal(der, &psd); err != nil {
		return nil, fmt.Errorf("authenticode: unmarshaling signature: %w", err)
	}
	if !psd.Content.ContentInfo.ContentType.Equal(OidSpcIndirectDataContent) {
		return nil, errors.New("authenticode: not an Authenticode signature")
	}
	content, err := psd.Content.ContentInfo.Bytes()
	if err != nil {
		return nil, err
	}
	signer, err := psd.Verify(content)
	if err != nil {
		return nil, fmt.Errorf("authenticode: verifying signature: %w", err)
	}
	var indirect SpcIndirectDataContent
	if err := psd.Content.ContentInfo.Unmarshal(&indirect); err != nil {
		return nil, fmt.Errorf("authenticode: unmarshaling SpcIndirectDataContent: %w", err)
	}
	imgHash, ok := x509tools.PkixDigestToHash(indirect.MessageDigest.DigestAlgorithm)
	if !ok || !imgHash.Available() {
		return nil, fmt.Errorf("authenticode: unsupported hash algorithm %s", indirect.MessageDigest.DigestAlgorithm.Algorithm)
	}
	return &PESignature{Signer: signer, Indirect: indirect, ImageHash: imgHash}, nil
}

func hashEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
