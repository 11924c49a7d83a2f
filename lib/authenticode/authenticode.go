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
	"context"
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/wincodesign/authenticode/lib/pkcs7"
	"github.com/wincodesign/authenticode/lib/pkcs9"
	"github.com/wincodesign/authenticode/lib/x509tools"
)

// SignParams configures one signing operation.
type SignParams struct {
	Chain      []*x509.Certificate
	PrivateKey crypto.Signer

	// Hash selects the image digest algorithm. Zero defaults to
	// crypto.SHA256; callers that need to resolve a configured hash
	// name (including the SHA-1-with-warning and unrecognized-name
	// cases) should do so before calling Sign, e.g. via
	// internal/signctl's resolveHash.
	Hash crypto.Hash

	// ProgramName and ProgramURL populate SpcSpOpusInfo. Either or both
	// may be empty; the attribute is omitted entirely when both are.
	ProgramName string
	ProgramURL  string

	// Timestamping enables counter-signing. When true, Timestamper and
	// UseRFC3161 select the strategy. The zero value of UseRFC3161
	// (false) selects the legacy Authenticode base64-PKCS#7 exchange,
	// the historical default; true switches to RFC 3161.
	Timestamping bool
	UseRFC3161   bool
	Timestamper  pkcs9.Timestamper
}

func makePeIndirect(imprint []byte, hash crypto.Hash) (SpcIndirectDataContent, error) {
	alg, ok := x509tools.PkixDigestAlgorithm(hash)
	if !ok {
		return SpcIndirectDataContent{}, errors.New("unsupported digest algorithm")
	}
	var indirect SpcIndirectDataContent
	indirect.Data.Type = OidSpcPeImageData
	indirect.Data.Value = SpcPeImageData{File: emptyPeImageFile()}
	indirect.MessageDigest.Digest = imprint
	indirect.MessageDigest.DigestAlgorithm = alg
	return indirect, nil
}

// signIndirect builds the CMS SignedData over indirect, attaching the
// opus-info attributes and, if requested, a timestamp countersignature.
func signIndirect(ctx context.Context, indirect SpcIndirectDataContent, hash crypto.Hash, params SignParams) (*pkcs7.ContentInfoSignedData, error) {
	der, err := asn1.Marshal(indirect)
	if err != nil {
		return nil, fmt.Errorf("authenticode: encoding SpcIndirectDataContent: %w", err)
	}
	b, err := pkcs7.NewBuilder(params.PrivateKey, params.Chain, hash)
	if err != nil {
		return nil, err
	}
	b.SetContent(OidSpcIndirectDataContent, der)
	if err := addOpusAttrs(b, params.ProgramName, params.ProgramURL); err != nil {
		return nil, err
	}
	sig, err := b.Sign()
	if err != nil {
		return nil, err
	}
	if params.Timestamping {
		if err := timestampSignedData(ctx, sig, hash, params); err != nil {
			return nil, fmt.Errorf("authenticode: timestamping: %w", err)
		}
	}
	return sig, nil
}

func addOpusAttrs(b *pkcs7.SignatureBuilder, programName, programURL string) error {
	if err := b.AddAuthenticatedAttribute(OidSpcStatementType, SpcStatementType{Type: OidSpcIndividualPurpose}); err != nil {
		return err
	}
	if programName == "" && programURL == "" {
		return nil
	}
	info, err := newOpusInfo(programName, programURL)
	if err != nil {
		return err
	}
	return b.AddAuthenticatedAttribute(OidSpcSpOpusInfo, info)
}

// timestampSignedData requests a countersignature over the primary
// signer's EncryptedDigest and attaches it as an unsigned attribute.
func timestampSignedData(ctx context.Context, sig *pkcs7.ContentInfoSignedData, hash crypto.Hash, params SignParams) error {
	if params.Timestamper == nil {
		return errors.New("timestamping requested but no Timestamper configured")
	}
	signerInfo := &sig.Content.SignerInfos[0]
	req := &pkcs9.Request{
		EncryptedDigest: signerInfo.EncryptedDigest,
		Hash:            hash,
		Legacy:          !params.UseRFC3161,
	}
	token, err := params.Timestamper.Timestamp(ctx, req)
	if err != nil {
		return err
	}
	oid := pkcs9.OidAttributeCounterSign
	if params.UseRFC3161 {
		oid = pkcs9.OidSpcTimeStampToken
	}
	return pkcs9.AddStampToSignedData(signerInfo, oid, *token)
}
