/*
 * Copyright (c) SAS Institute Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package x509tools

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"os"
)

func MakeSerial() *big.Int {
	blob := make([]byte, 12)
	if n, err := rand.Reader.Read(blob); err != nil || n != len(blob) {
		return nil
	}
	return new(big.Int).SetBytes(blob)
}

func X509SignatureAlgorithm(pub crypto.PublicKey) x509.SignatureAlgorithm {
	switch pub.(type) {
	case *rsa.PublicKey:
		return x509.SHA256WithRSA
	case *ecdsa.PublicKey:
		return x509.ECDSAWithSHA256
	default:
		return x509.UnknownSignatureAlgorithm
	}
}

type pkixPublicKey struct {
	Algo      pkix.AlgorithmIdentifier
	BitString asn1.BitString
}

func SubjectKeyId(pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	// extract the raw "bit string" part of the public key bytes
	var pki pkixPublicKey
	if rest, err := asn1.Unmarshal(der, &pki); err != nil {
		return nil, err
	} else if len(rest) != 0 {
		return nil, errors.New("trailing garbage on public key")
	}
	digest := sha256.Sum256(pki.BitString.Bytes)
	return digest[:], nil
}

// SameKey reports whether two public keys represent the same key
// material, regardless of whether they arrived via a certificate, a
// private key's Public(), or a raw crypto.PublicKey value.
func SameKey(a, b crypto.PublicKey) bool {
	switch ak := a.(type) {
	case *rsa.PublicKey:
		bk, ok := b.(*rsa.PublicKey)
		return ok && ak.N.Cmp(bk.N) == 0 && ak.E == bk.E
	case *ecdsa.PublicKey:
		bk, ok := b.(*ecdsa.PublicKey)
		return ok && ak.Curve == bk.Curve && ak.X.Cmp(bk.X) == 0 && ak.Y.Cmp(bk.Y) == 0
	default:
		return false
	}
}

type ecdsaSignature struct {
	R, S *big.Int
}

// Verify checks signature against digest under pub. hash identifies
// the digest algorithm that produced digest; pass crypto.Hash(0) to
// verify an RSA signature computed directly over digest without the
// DigestInfo wrapping normally prepended by PKCS#1v1.5 (some signers
// encode the DigestInfo themselves before calling out to the key).
func Verify(pub crypto.PublicKey, hash crypto.Hash, digest, signature []byte) error {
	switch pubkey := pub.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(pubkey, hash, digest, signature)
	case *ecdsa.PublicKey:
		var sig ecdsaSignature
		if _, err := asn1.Unmarshal(signature, &sig); err != nil {
			return fmt.Errorf("parsing ECDSA signature: %w", err)
		}
		if !ecdsa.Verify(pubkey, digest, sig.R, sig.S) {
			return errors.New("ECDSA signature does not verify")
		}
		return nil
	default:
		return fmt.Errorf("unsupported public key type %T", pub)
	}
}

// LoadCertPool reads a PEM bundle from caFile and installs it as
// tconf.RootCAs. An empty caFile is a no-op, leaving tconf to use the
// system root store.
func LoadCertPool(caFile string, tconf *tls.Config) error {
	if caFile == "" {
		return nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return fmt.Errorf("reading CA bundle %s: %w", caFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return fmt.Errorf("no certificates found in %s", caFile)
	}
	tconf.RootCAs = pool
	return nil
}
