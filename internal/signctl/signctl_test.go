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

package signctl

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"debug/pe"
	"encoding/binary"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wincodesign/authenticode/lib/authenticode"
	"github.com/wincodesign/authenticode/lib/certloader"
)

const (
	testOptHeaderMagicPE32Plus = 0x20b
	testPeStart                = 64
	testFileAlign              = 0x200
	testSectionAlign           = 0x1000
	testSectionRawLen          = 0x200
)

// buildTestPE assembles a minimal but structurally valid PE32+ image,
// mirroring lib/authenticode's own test helper since test files
// cannot be shared across package boundaries.
func buildTestPE(t *testing.T) []byte {
	t.Helper()
	opt := pe.OptionalHeader64{
		Magic:                 testOptHeaderMagicPE32Plus,
		SectionAlignment:      testSectionAlign,
		FileAlignment:         testFileAlign,
		MajorSubsystemVersion: 6,
		SizeOfImage:           testSectionAlign * 2,
		SizeOfHeaders:         testFileAlign,
		Subsystem:             3,
		SizeOfStackReserve:    0x100000,
		SizeOfStackCommit:     0x1000,
		SizeOfHeapReserve:     0x100000,
		SizeOfHeapCommit:      0x1000,
		NumberOfRvaAndSizes:   16,
	}
	optBuf := new(bytes.Buffer)
	require.NoError(t, binary.Write(optBuf, binary.LittleEndian, opt))

	fh := pe.FileHeader{
		Machine:              0x8664,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(optBuf.Len()),
		Characteristics:      0x0022,
	}

	sec := pe.SectionHeader32{
		VirtualSize:      testSectionRawLen,
		VirtualAddress:   testSectionAlign,
		SizeOfRawData:    testSectionRawLen,
		PointerToRawData: testFileAlign,
	}
	copy(sec.Name[:], ".text")

	buf := new(bytes.Buffer)
	dos := make([]byte, testPeStart)
	dos[0], dos[1] = 'M', 'Z'
	dos[0x3c] = testPeStart
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")
	require.NoError(t, binary.Write(buf, binary.LittleEndian, fh))
	buf.Write(optBuf.Bytes())
	require.NoError(t, binary.Write(buf, binary.LittleEndian, sec))
	require.True(t, buf.Len() < testFileAlign)
	buf.Write(make([]byte, testFileAlign-buf.Len()))

	section := make([]byte, testSectionRawLen)
	for i := range section {
		section[i] = byte(i)
	}
	buf.Write(section)
	return buf.Bytes()
}

func selfSignedCert(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "signctl test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return key, cert
}

func TestSignOrchestratesSuccessfully(t *testing.T) {
	image := buildTestPE(t)
	key, cert := selfSignedCert(t)
	cred := &certloader.Certificate{
		Leaf:         cert,
		Certificates: []*x509.Certificate{cert},
		PrivateKey:   key,
		KeyName:      "test-key",
	}

	var out bytes.Buffer
	err := Sign(context.Background(), bytes.NewReader(image), int64(len(image)), &out, Params{
		Certificate: cred,
	})
	require.NoError(t, err)

	sigs, err := authenticode.VerifyPE(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	require.Equal(t, cert.Raw, sigs[0].Signer.Raw)
	require.Equal(t, crypto.SHA256, sigs[0].ImageHash)
}

func TestSignRejectsNilCertificate(t *testing.T) {
	image := buildTestPE(t)
	err := Sign(context.Background(), bytes.NewReader(image), int64(len(image)), io.Discard, Params{})
	require.ErrorIs(t, err, authenticode.ErrNoCertificate)
}

func TestSignRejectsMissingPrivateKey(t *testing.T) {
	image := buildTestPE(t)
	_, cert := selfSignedCert(t)
	cred := &certloader.Certificate{Leaf: cert, Certificates: []*x509.Certificate{cert}}
	err := Sign(context.Background(), bytes.NewReader(image), int64(len(image)), io.Discard, Params{
		Certificate: cred,
	})
	require.ErrorIs(t, err, authenticode.ErrNoPrivateKey)
}

func TestSignRejectsTimestampingWithoutConfig(t *testing.T) {
	image := buildTestPE(t)
	key, cert := selfSignedCert(t)
	cred := &certloader.Certificate{
		Leaf:         cert,
		Certificates: []*x509.Certificate{cert},
		PrivateKey:   key,
	}
	err := Sign(context.Background(), bytes.NewReader(image), int64(len(image)), io.Discard, Params{
		Certificate:  cred,
		Timestamping: true,
	})
	require.ErrorIs(t, err, errNoTimestampConfig)
}

func TestResolveHashDefaultsToSHA256(t *testing.T) {
	require.Equal(t, crypto.SHA256, resolveHash("", zerolog.Nop()))
	require.Equal(t, crypto.SHA256, resolveHash("SHA-256", zerolog.Nop()))
	require.Equal(t, crypto.SHA1, resolveHash("SHA-1", zerolog.Nop()))
	require.Equal(t, crypto.SHA256, resolveHash("blake2", zerolog.Nop()))
}
