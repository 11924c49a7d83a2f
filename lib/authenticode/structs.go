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

package authenticode

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"unicode/utf16"
)

var (
	OidSpcIndirectDataContent = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 4}
	OidSpcPeImageData         = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 15}
	OidSpcStatementType       = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 11}
	OidSpcSpOpusInfo          = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 12}
	OidSpcIndividualPurpose   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 21}
)

// SpcIndirectDataContent is the Authenticode eContent: a digest over
// the signed image plus a marker identifying the image flavour.
type SpcIndirectDataContent struct {
	Data          SpcAttributePeImageData
	MessageDigest DigestInfo
}

// SpcAttributePeImageData names the PE image flavour. The Value field
// is optional and, for a plain PE, is left as an empty file descriptor.
type SpcAttributePeImageData struct {
	Type  asn1.ObjectIdentifier
	Value SpcPeImageData `asn1:"explicit,optional,tag:0"`
}

type DigestInfo struct {
	DigestAlgorithm pkix.AlgorithmIdentifier
	Digest          []byte
}

// SpcPeImageData carries a set of image flags and a file descriptor.
// The descriptor is a CHOICE (SpcLink) that this package never
// populates with anything but the empty unicode-string form, so it is
// captured as a raw value rather than modeled field by field.
type SpcPeImageData struct {
	Flags asn1.BitString
	File  asn1.RawValue
}

// emptyPeImageFile is the conventional "no file descriptor" value:
// an SpcLink CHOICE picking its "file" alternative ([2] EXPLICIT
// SpcString) with an empty unicode SpcString.
func emptyPeImageFile() asn1.RawValue {
	inner := spcStringUnicode("")
	wrapped, _ := explicitTag(2, inner)
	return wrapped
}

// SpcStatementType wraps the single OID naming the code-signing
// purpose. Its wire shape (SEQUENCE containing one OID) is
// indistinguishable in DER from `SEQUENCE OF OBJECT IDENTIFIER`
// holding one element, which is what Microsoft's tools actually emit.
type SpcStatementType struct {
	Type asn1.ObjectIdentifier
}

// SpcSpOpusInfo carries the optional program name and URL shown by
// Windows when a user inspects a signature's properties. ProgramName
// and MoreInfo are each a CHOICE ([0]/[1] EXPLICIT SpcString/SpcLink)
// and so are represented as ready-made raw TLVs built by
// spcStringUnicode/spcLinkURL rather than as Go struct fields with
// their own tags.
type SpcSpOpusInfo struct {
	ProgramName asn1.RawValue `asn1:"optional,tag:0"`
	MoreInfo    asn1.RawValue `asn1:"optional,tag:1"`
}

// newOpusInfo builds the SpcSpOpusInfo attribute value, leaving either
// field zero (absent) when its corresponding string is empty.
func newOpusInfo(programName, programURL string) (SpcSpOpusInfo, error) {
	var info SpcSpOpusInfo
	var err error
	if programName != "" {
		if info.ProgramName, err = explicitTag(0, spcStringUnicode(programName)); err != nil {
			return info, err
		}
	}
	if programURL != "" {
		if info.MoreInfo, err = explicitTag(1, spcLinkURL(programURL)); err != nil {
			return info, err
		}
	}
	return info, nil
}

// spcStringUnicode builds the "unicode" alternative of the SpcString
// CHOICE: `[0] IMPLICIT BMPString`, i.e. UTF-16BE code units with no
// byte-order mark.
func spcStringUnicode(s string) asn1.RawValue {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.BigEndian.PutUint16(buf[i*2:], u)
	}
	return asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, Bytes: buf}
}

// spcLinkURL builds the "url" alternative of the SpcLink CHOICE:
// `[0] IMPLICIT IA5String`.
func spcLinkURL(url string) asn1.RawValue {
	return asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, Bytes: []byte(url)}
}

// explicitTag wraps inner's own encoding in an outer EXPLICIT tag,
// the way CHOICE-typed fields (SpcString, SpcLink) are nested inside
// their EXPLICIT-tagged struct fields.
func explicitTag(tag int, inner asn1.RawValue) (asn1.RawValue, error) {
	der, err := asn1.Marshal(inner)
	if err != nil {
		return asn1.RawValue{}, err
	}
	return asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: tag, IsCompound: true, Bytes: der}, nil
}
