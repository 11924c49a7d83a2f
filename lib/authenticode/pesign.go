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
	"encoding/asn1"
	"encoding/binary"
	"errors"

	"github.com/wincodesign/authenticode/lib/binpatch"
)

// Sign builds the Authenticode content and CMS signature for pd,
// timestamps it if requested, and returns the patch set that embeds
// it as the image's certificate table.
func (pd *PEDigest) Sign(ctx context.Context, params SignParams) (*binpatch.PatchSet, error) {
	indirect, err := pd.GetIndirect()
	if err != nil {
		return nil, err
	}
	sig, err := signIndirect(ctx, indirect, pd.Hash, params)
	if err != nil {
		return nil, err
	}
	der, err := asn1.Marshal(*sig)
	if err != nil {
		return nil, err
	}
	return pd.MakePatch(der)
}

// GetIndirect returns the SpcIndirectDataContent describing this
// digest, ready to be signed.
func (pd *PEDigest) GetIndirect() (SpcIndirectDataContent, error) {
	return makePeIndirect(pd.Imprint, pd.Hash)
}

// MakePatch builds a patch set that appends sig, padded to an 8-byte
// boundary and framed in a WIN_CERTIFICATE header, as the image's
// certificate table, and rewrites the SECURITY data directory entry
// to point at it. It replaces (rather than appends beside) any
// certificate table that was already present when pd was computed.
func (pd *PEDigest) MakePatch(sig []byte) (*binpatch.PatchSet, error) {
	padded := (len(sig) + 7) / 8 * 8
	info := certTableHeader{
		Length:          uint32(8 + padded),
		Revision:        0x0200,
		CertificateType: 0x0002,
	}
	var buf bytes.Buffer
	pad := pd.CertStart - pd.OrigSize
	if pad != 0 {
		buf.Write(make([]byte, pad))
	}
	if err := binary.Write(&buf, binary.LittleEndian, info); err != nil {
		return nil, err
	}
	buf.Write(sig)
	buf.Write(make([]byte, padded-len(sig)))
	certTbl := buf.Bytes()

	if pd.CertStart >= (1 << 32) {
		return nil, errors.New("PE file is too big")
	}
	var dd dataDirectoryEntry
	dd.VirtualAddress = uint32(pd.CertStart)
	dd.Size = uint32(len(certTbl)) - uint32(pad)
	var ddbuf bytes.Buffer
	if err := binary.Write(&ddbuf, binary.LittleEndian, dd); err != nil {
		return nil, err
	}

	patch := binpatch.New()
	patch.Add(pd.markers.posDDCert, 8, ddbuf.Bytes())
	patch.Add(pd.OrigSize, int(pd.markers.certSize), certTbl)
	return patch, nil
}

// certTableHeader is the WIN_CERTIFICATE header prefixed to the DER
// of the CMS SignedData in the Certificate Table.
type certTableHeader struct {
	Length          uint32
	Revision        uint16
	CertificateType uint16
}

type dataDirectoryEntry struct {
	VirtualAddress uint32
	Size           uint32
}
