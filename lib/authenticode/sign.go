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
	"bytes"
	"context"
	"crypto"
	"io"

	"github.com/wincodesign/authenticode/lib/x509tools"
)

// Sign digests the PE image exposed by r (of length size), signs it per
// params, and writes the complete signed image to out. The certificate
// table is appended rather than patched in place, so the whole patched
// image is assembled in memory before the single write to out -- this
// is the "buffer the new certificate table in memory and issue a
// single truncating write" strategy, which also lets out be a plain
// io.Writer (an atomicfile.AtomicFile has no Seek) rather than
// requiring random-access file semantics.
func Sign(ctx context.Context, r io.ReaderAt, size int64, out io.Writer, params SignParams) error {
	if err := validateParams(&params); err != nil {
		return err
	}
	pd, err := DigestPE(r, size, params.Hash)
	if err != nil {
		return err
	}
	patch, err := pd.Sign(ctx, params)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.Grow(int(size) + 4096)
	if err := patch.Apply(r, size, &buf); err != nil {
		return err
	}
	if err := fixChecksum(buf.Bytes()); err != nil {
		return err
	}
	_, err = out.Write(buf.Bytes())
	return err
}

func validateParams(params *SignParams) error {
	if len(params.Chain) == 0 {
		return ErrNoCertificate
	}
	if params.PrivateKey == nil {
		return ErrNoPrivateKey
	}
	if _, ok := x509tools.PkixPublicKeyAlgorithm(params.PrivateKey.Public()); !ok {
		return ErrUnsupportedKeyAlgorithm
	}
	if params.Hash == 0 {
		params.Hash = crypto.SHA256
	}
	return nil
}

// fixChecksum recomputes the PE checksum over the fully assembled
// image in buf and writes it back into the Optional Header's Checksum
// field in place.
func fixChecksum(buf []byte) error {
	peStart, err := readDosHeader(bytes.NewReader(buf), io.Discard)
	if err != nil {
		return err
	}
	ck := NewPEChecksum(int(peStart))
	if _, err := ck.Write(buf); err != nil {
		return err
	}
	sum := ck.Sum(nil)
	copy(buf[peStart+88:peStart+92], sum)
	return nil
}
