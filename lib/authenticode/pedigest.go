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
	"crypto"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// PE-COFF: https://www.microsoft.com/en-us/download/details.aspx?id=19509
// PE Authenticode: http://msdn.microsoft.com/en-us/windows/hardware/gg463180.aspx

// PEDigest is the result of hashing a PE image the Authenticode way:
// every byte except the Checksum field, the SECURITY data directory
// entry, and any existing certificate table.
type PEDigest struct {
	OrigSize  int64
	CertStart int64
	Imprint   []byte
	Hash      crypto.Hash
	markers   *peHeaderValues
}

const dosHeaderSize = 64

// DigestPE computes the Authenticode digest of the PE image exposed by
// r, whose total length is size. It returns a structure that can be
// used to sign the imprint and produce a binary patch embedding the
// signature.
func DigestPE(r io.ReaderAt, size int64, hash crypto.Hash) (*PEDigest, error) {
	sr := io.NewSectionReader(r, 0, size)
	// Read and buffer all the headers
	buf := bytes.NewBuffer(make([]byte, 0, 4096))
	peStart, err := readDosHeader(sr, buf)
	if err != nil {
		return nil, err
	}
	if _, err := io.CopyN(buf, sr, peStart-dosHeaderSize); err != nil {
		return nil, err
	}
	fh, err := readCoffHeader(sr, buf)
	if err != nil {
		return nil, err
	}
	hvals, err := readOptHeader(sr, buf, peStart, fh)
	if err != nil {
		return nil, err
	}
	sections, err := readSections(sr, buf, fh, hvals)
	if err != nil {
		return nil, err
	}
	digest := hash.New()
	digest.Write(buf.Bytes())
	// Hash sections
	nextSection := hvals.sizeOfHdr
	for i, sh := range sections {
		if sh.SizeOfRawData == 0 {
			continue
		}
		if int64(sh.PointerToRawData) != nextSection {
			return nil, fmt.Errorf("PE section %d begins at 0x%x but expected 0x%x", i, sh.PointerToRawData, nextSection)
		}
		if _, err := io.CopyN(digest, sr, int64(sh.SizeOfRawData)); err != nil {
			return nil, err
		}
		nextSection += int64(sh.SizeOfRawData)
	}
	// Hash trailer after the sections and cert table
	origSize, err := readTrailer(sr, digest, nextSection, hvals.certStart, hvals.certSize)
	if err != nil {
		return nil, err
	}
	certStart := origSize
	if n := origSize % 8; n != 0 {
		// pad to 8 bytes
		padding := 8 - n
		digest.Write(make([]byte, padding))
		certStart += padding
	}
	return &PEDigest{
		OrigSize:  origSize,
		CertStart: certStart,
		Imprint:   digest.Sum(nil),
		Hash:      hash,
		markers:   hvals,
	}, nil
}

func readDosHeader(r io.Reader, d io.Writer) (int64, error) {
	dosheader, err := readAndHash(r, d, dosHeaderSize)
	if err != nil {
		return 0, err
	} else if dosheader[0] != 'M' || dosheader[1] != 'Z' {
		return 0, errors.New("not a PE file")
	}
	return int64(binary.LittleEndian.Uint32(dosheader[0x3c:])), nil
}

func readCoffHeader(r io.Reader, d io.Writer) (*pe.FileHeader, error) {
	if magic, err := readAndHash(r, d, 4); err != nil {
		return nil, err
	} else if magic[0] != 'P' || magic[1] != 'E' || magic[2] != 0 || magic[3] != 0 {
		return nil, errors.New("not a PE file")
	}

	buf, err := readAndHash(r, d, 20)
	if err != nil {
		return nil, err
	}
	hdr := new(pe.FileHeader)
	if err := binaryReadBytes(buf, hdr); err != nil {
		return nil, err
	}
	return hdr, nil
}

const (
	// https://learn.microsoft.com/en-us/windows/win32/debug/pe-format#optional-header-image-only
	optHeaderMagicPE32     = 0x10b
	optHeaderMagicPE32Plus = 0x20b
)

func readOptHeader(r io.Reader, d io.Writer, peStart int64, fh *pe.FileHeader) (*peHeaderValues, error) {
	hvals := new(peHeaderValues)
	hvals.peStart = peStart
	buf := make([]byte, fh.SizeOfOptionalHeader)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	// locate the bits that need to be omitted from hash
	cksumStart := 64
	cksumEnd := cksumStart + 4
	var dd4Start int64
	var dd pe.DataDirectory
	optMagic := binary.LittleEndian.Uint16(buf[:2])
	switch optMagic {
	case optHeaderMagicPE32:
		var opt pe.OptionalHeader32
		if err := binaryReadBytes(buf, &opt); err != nil {
			return nil, err
		}
		if opt.NumberOfRvaAndSizes < 5 {
			return nil, errors.New("PE header did not leave room for signature")
		}
		dd = opt.DataDirectory[4]
		dd4Start = 128
		hvals.sizeOfHdr = int64(opt.SizeOfHeaders)
		hvals.fileAlign = opt.FileAlignment
	case optHeaderMagicPE32Plus:
		var opt pe.OptionalHeader64
		if err := binaryReadBytes(buf, &opt); err != nil {
			return nil, err
		}
		if opt.NumberOfRvaAndSizes < 5 {
			return nil, errors.New("PE header did not leave room for signature")
		}
		dd = opt.DataDirectory[4]
		dd4Start = 144
		hvals.sizeOfHdr = int64(opt.SizeOfHeaders)
		hvals.fileAlign = opt.FileAlignment
	default:
		return nil, errors.New("unrecognized optional header magic")
	}
	dd4End := dd4Start + 8
	hvals.certStart = int64(dd.VirtualAddress)
	hvals.certSize = int64(dd.Size)
	hvals.secTblStart = peStart + 24 + int64(fh.SizeOfOptionalHeader)
	_, _ = d.Write(buf[:cksumStart])
	_, _ = d.Write(buf[cksumEnd:dd4Start])
	_, _ = d.Write(buf[dd4End:])
	hvals.posDDCert = peStart + 24 + dd4Start
	hvals.posCksum = peStart + 24 + int64(cksumStart)
	return hvals, nil
}

func readSections(r io.Reader, d io.Writer, fh *pe.FileHeader, hvals *peHeaderValues) ([]pe.SectionHeader32, error) {
	// read and hash section table
	sections := make([]pe.SectionHeader32, fh.NumberOfSections)
	size := int(fh.NumberOfSections) * 40
	secTblEnd := hvals.secTblStart + int64(size)
	if secTblEnd > hvals.sizeOfHdr {
		return nil, errors.New("PE section overlaps section table")
	}
	if buf, err := readAndHash(r, d, size); err != nil {
		return nil, err
	} else if err := binaryReadBytes(buf, sections); err != nil {
		return nil, err
	}
	// look for start of first section and check for overlap
	for i, section := range sections {
		if section.SizeOfRawData == 0 {
			continue
		}
		if p := int64(section.PointerToRawData); p < secTblEnd {
			return nil, fmt.Errorf("PE section %d at 0x%x overlaps section table at 0x%x", i, p, secTblEnd)
		} else if p < hvals.sizeOfHdr {
			// some samples have a SizeOfHeaders that goes past the start of the first section
			hvals.sizeOfHdr = p
		}
		// Adjust any sections that are not properly aligned
		sections[i].SizeOfRawData = align32(section.SizeOfRawData, hvals.fileAlign)
	}
	// hash the padding after the section table
	if _, err := io.CopyN(d, r, hvals.sizeOfHdr-secTblEnd); err != nil {
		return nil, err
	}
	return sections, nil
}

func readTrailer(r io.Reader, d io.Writer, lastSection, certStart, certSize int64) (int64, error) {
	if certSize == 0 {
		n, err := io.Copy(d, r)
		return lastSection + n, err
	}
	if certStart < lastSection {
		return 0, errors.New("existing signature overlaps with PE sections")
	}
	if _, err := io.CopyN(d, r, certStart-lastSection); err != nil {
		return 0, err
	}
	if _, err := io.CopyN(io.Discard, r, certSize); err != nil {
		return 0, err
	}
	if n, _ := io.Copy(io.Discard, r); n > 0 {
		return 0, errors.New("trailing garbage after existing certificate")
	}
	return certStart, nil
}

type peHeaderValues struct {
	// start of PE header
	peStart int64
	// file offset to the Checksum field in the optional header
	posCksum int64
	// file offset to the data directory entry for the cert table, in the optional header
	posDDCert int64
	// file offset to the end of the optional header and the start of the section table
	secTblStart int64
	// size of all headers plus padding
	sizeOfHdr int64
	// section alignment in file
	fileAlign uint32
	// file offset and size of the certificate table
	certStart, certSize int64
}
