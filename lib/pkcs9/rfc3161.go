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
	"crypto"
	"crypto/hmac"
	"encoding/asn1"
	"errors"
	"fmt"
	"net/http"

	"github.com/wincodesign/authenticode/lib/pkcs7"
	"github.com/wincodesign/authenticode/lib/x509tools"
)

// NewRequest builds the RFC 3161 TimeStampReq for a digest of imprint
// (already hashed with hash) and wraps it in an HTTP POST to url.
func NewRequest(url string, hash crypto.Hash, imprint []byte) (*TimeStampReq, *http.Request, error) {
	alg, ok := x509tools.PkixDigestAlgorithm(hash)
	if !ok {
		return nil, nil, errors.New("pkcs9: unknown digest algorithm")
	}
	msg := &TimeStampReq{
		Version: 1,
		MessageImprint: MessageImprint{
			HashAlgorithm: alg,
			HashedMessage: imprint,
		},
		Nonce:   x509tools.MakeSerial(),
		CertReq: true,
	}
	der, err := asn1.Marshal(*msg)
	if err != nil {
		return nil, nil, fmt.Errorf("pkcs9: marshaling timestamp request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(der))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/timestamp-query")
	return msg, req, nil
}

// ParseResponse decodes and sanity checks a RFC 3161 TimeStampResp
// against the request that produced it, returning the embedded
// TimeStampToken.
func (msg *TimeStampReq) ParseResponse(body []byte) (*pkcs7.ContentInfoSignedData, error) {
	resp := new(TimeStampResp)
	rest, err := asn1.Unmarshal(body, resp)
	if err != nil {
		return nil, fmt.Errorf("pkcs9: unmarshaling timestamp response: %w", err)
	} else if len(rest) != 0 {
		return nil, errors.New("pkcs9: trailing bytes in timestamp response")
	} else if resp.Status.Status > StatusGrantedWithMods {
		return nil, fmt.Errorf("pkcs9: timestamp request denied: status=%d", resp.Status.Status)
	}
	token := resp.TimeStampToken
	if err := sanityCheckToken(msg, &token); err != nil {
		return nil, fmt.Errorf("pkcs9: timestamp token failed sanity check: %w", err)
	}
	return &token, nil
}

// sanityCheckToken verifies the token is internally self-consistent
// and that its TSTInfo nonce and message imprint match the request
// that was sent, per spec's "propagate structural or cryptographic
// defects as fatal" requirement.
func sanityCheckToken(req *TimeStampReq, token *pkcs7.ContentInfoSignedData) error {
	var info TSTInfo
	if err := token.Content.ContentInfo.Unmarshal(&info); err != nil {
		return fmt.Errorf("unpacking TSTInfo: %w", err)
	}
	if req.Nonce != nil && (info.Nonce == nil || req.Nonce.Cmp(info.Nonce) != 0) {
		return errors.New("nonce mismatch")
	}
	if !hmac.Equal(info.MessageImprint.HashedMessage, req.MessageImprint.HashedMessage) {
		return errors.New("message imprint mismatch")
	}
	content, err := token.Content.ContentInfo.Bytes()
	if err != nil {
		return err
	}
	if _, err := token.Verify(content); err != nil {
		return err
	}
	return nil
}
