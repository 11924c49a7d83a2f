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
	"bytes"
	"encoding/asn1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/wincodesign/authenticode/lib/pkcs7"
)

// legacyTimestampRequest is the ASN.1 shape of the pre-RFC3161
// Authenticode timestamp request: a SPC_TIME_STAMP_REQUEST_OBJID
// content-info wrapping the raw signature bytes to be timestamped.
type legacyTimestampRequest struct {
	Type asn1.ObjectIdentifier
	Blob legacyContentInfo
}

type legacyContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

// NewLegacyRequest builds the legacy Authenticode timestamp request
// for imprint (the primary signer's raw EncryptedDigest) and wraps it
// in a base64-encoded HTTP POST to url.
func NewLegacyRequest(url string, imprint []byte) (*http.Request, error) {
	octet, err := asn1.Marshal(imprint)
	if err != nil {
		return nil, err
	}
	msg := legacyTimestampRequest{
		Type: OidSpcTimeStampRequest,
		Blob: legacyContentInfo{
			ContentType: pkcs7.OidData,
			Content: asn1.RawValue{
				Class:      asn1.ClassContextSpecific,
				Tag:        0,
				IsCompound: true,
				Bytes:      octet,
			},
		},
	}
	der, err := asn1.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("pkcs9: marshaling legacy timestamp request: %w", err)
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(der)))
	base64.StdEncoding.Encode(encoded, der)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return req, nil
}

// ParseLegacyResponse decodes a legacy Authenticode timestamp
// response: a base64 body decoding to a PKCS#7 SignedData, which is
// returned unmodified so the caller can attach it under
// OidAttributeCounterSign.
func ParseLegacyResponse(body []byte) (*pkcs7.ContentInfoSignedData, error) {
	der := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
	n, err := base64.StdEncoding.Decode(der, bytes.TrimSpace(body))
	if err != nil {
		return nil, fmt.Errorf("pkcs9: decoding legacy timestamp response: %w", err)
	}
	der = der[:n]
	token := new(pkcs7.ContentInfoSignedData)
	rest, err := asn1.Unmarshal(der, token)
	if err != nil {
		return nil, fmt.Errorf("pkcs9: unmarshaling legacy timestamp response: %w", err)
	} else if len(rest) != 0 {
		return nil, errors.New("pkcs9: trailing bytes in legacy timestamp response")
	}
	if len(token.Content.SignerInfos) == 0 {
		return nil, errors.New("pkcs9: legacy timestamp response has no SignerInfo")
	}
	return token, nil
}
