package pkcs7

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T, key crypto.Signer, cn string, parent *x509.Certificate, parentKey crypto.Signer) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:         parent == nil,
	}
	signWith := tmpl
	signKey := key
	if parent != nil {
		signWith = parent
		signKey = parentKey
	} else {
		tmpl.Subject.CommonName = cn // self-signed root
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, signWith, key.Public(), signKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestSignAndVerifyRSA(t *testing.T) {
	rootKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	root := selfSignedCert(t, rootKey, "test root", nil, nil)

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	leaf := selfSignedCert(t, leafKey, "test leaf", root, rootKey)

	content := []byte("hello authenticode")

	b, err := NewBuilder(leafKey, []*x509.Certificate{leaf, root}, crypto.SHA256)
	require.NoError(t, err)
	b.SetContent(OidData, content)
	ci, err := b.Sign()
	require.NoError(t, err)

	signer, err := ci.Verify(content)
	require.NoError(t, err)
	assert.Equal(t, leaf.SerialNumber, signer.SerialNumber)
}

func TestSignAndVerifyECDSA(t *testing.T) {
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	root := selfSignedCert(t, rootKey, "ec root", nil, nil)

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leaf := selfSignedCert(t, leafKey, "ec leaf", root, rootKey)

	content := []byte("ecdsa content")

	b, err := NewBuilder(leafKey, []*x509.Certificate{leaf, root}, crypto.SHA256)
	require.NoError(t, err)
	b.SetContent(OidData, content)
	ci, err := b.Sign()
	require.NoError(t, err)

	_, err = ci.Verify(content)
	require.NoError(t, err)
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	leaf := selfSignedCert(t, leafKey, "solo", nil, nil)

	b, err := NewBuilder(leafKey, []*x509.Certificate{leaf}, crypto.SHA256)
	require.NoError(t, err)
	b.SetContent(OidData, []byte("original"))
	ci, err := b.Sign()
	require.NoError(t, err)

	_, err = ci.Verify([]byte("tampered"))
	assert.Error(t, err)
}

func TestTrimChainDropsSelfIssuedRoot(t *testing.T) {
	rootKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	root := selfSignedCert(t, rootKey, "root", nil, nil)
	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	leaf := selfSignedCert(t, leafKey, "leaf", root, rootKey)

	trimmed, err := TrimChain([]*x509.Certificate{leaf, root})
	require.NoError(t, err)
	assert.Equal(t, []*x509.Certificate{leaf}, trimmed)

	trimmed, err = TrimChain([]*x509.Certificate{leaf})
	require.NoError(t, err)
	assert.Equal(t, []*x509.Certificate{leaf}, trimmed)
}

func TestTrimChainKeepsLoneSelfSignedCert(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	solo := selfSignedCert(t, key, "solo self-signed", nil, nil)

	trimmed, err := TrimChain([]*x509.Certificate{solo})
	require.NoError(t, err)
	assert.Equal(t, []*x509.Certificate{solo}, trimmed)
}

func TestSignTrimsRootFromUntrimmedChain(t *testing.T) {
	rootKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	root := selfSignedCert(t, rootKey, "root", nil, nil)
	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	leaf := selfSignedCert(t, leafKey, "leaf", root, rootKey)

	b, err := NewBuilder(leafKey, []*x509.Certificate{leaf, root}, crypto.SHA256)
	require.NoError(t, err)
	b.SetContent(OidData, []byte("content"))
	ci, err := b.Sign()
	require.NoError(t, err)

	embedded, err := ParseCertificates(ci.Content.Certificates)
	require.NoError(t, err)
	require.Len(t, embedded, 1, "root must not be embedded even when the caller supplies an untrimmed chain")
	assert.Equal(t, leaf.Raw, embedded[0].Raw)
}

func TestMarshalParseCertificatesRoundTrip(t *testing.T) {
	rootKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	root := selfSignedCert(t, rootKey, "root", nil, nil)
	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	leaf := selfSignedCert(t, leafKey, "leaf", root, rootKey)

	rc, err := MarshalCertificates([]*x509.Certificate{leaf, root})
	require.NoError(t, err)
	parsed, err := ParseCertificates(rc)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, leaf.Raw, parsed[0].Raw)
	assert.Equal(t, root.Raw, parsed[1].Raw)
}
