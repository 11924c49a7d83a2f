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
	"encoding/asn1"
	"errors"
	"fmt"
)

// MarshalCertificates packs a chain as the implicit [0] SET OF
// Certificate that CMS SignedData carries: an IMPLICIT context tag
// replaces the universal SET tag that a plain SET OF would otherwise
// have, so the contents are written directly under tag [0].
func MarshalCertificates(chain []*x509.Certificate) (asn1.RawValue, error) {
	var buf bytes.Buffer
	for _, cert := range chain {
		buf.Write(cert.Raw)
	}
	return asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      buf.Bytes(),
	}, nil
}

// ParseCertificates decodes the [0] SET OF Certificate field back into
// a slice of certificates, in the order they appear on the wire.
func ParseCertificates(rc asn1.RawValue) ([]*x509.Certificate, error) {
	rest := rc.Bytes
	if len(rest) == 0 {
		rest = rc.FullBytes
	}
	if len(rest) == 0 {
		return nil, nil
	}
	var certs []*x509.Certificate
	for len(rest) > 0 {
		var raw asn1.RawValue
		tail, err := asn1.Unmarshal(rest, &raw)
		if err != nil {
			return nil, fmt.Errorf("pkcs7: parsing certificate set: %w", err)
		}
		cert, err := x509.ParseCertificate(raw.FullBytes)
		if err != nil {
			return nil, fmt.Errorf("pkcs7: parsing certificate: %w", err)
		}
		certs = append(certs, cert)
		rest = tail
	}
	return certs, nil
}

// TrimChain drops a self-issued root certificate from the end of a
// leaf-to-root chain, if the chain's last certificate's subject and
// issuer match structurally. Authenticode signatures conventionally
// omit the root: verifiers are expected to already trust it via their
// own root store, not via the signature's certificate set. A
// single-certificate chain is returned unchanged even if that one
// certificate is self-signed: there is no root to omit without leaving
// the signature's embedded set empty.
func TrimChain(chain []*x509.Certificate) ([]*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, errors.New("pkcs7: empty certificate chain")
	}
	if len(chain) == 1 {
		return chain, nil
	}
	last := chain[len(chain)-1]
	if bytes.Equal(last.RawSubject, last.RawIssuer) {
		return chain[:len(chain)-1], nil
	}
	return chain, nil
}
