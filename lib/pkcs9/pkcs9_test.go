package pkcs9

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wincodesign/authenticode/lib/pkcs7"
	"github.com/wincodesign/authenticode/lib/x509tools"
)

func tsaCert(t *testing.T) (*x509.Certificate, crypto.Signer) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test tsa"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

// buildToken signs a TSTInfo matching imprint and returns the CMS
// SignedData to serve back to a client.
func buildToken(t *testing.T, imprint MessageImprint, nonce *big.Int) *pkcs7.ContentInfoSignedData {
	t.Helper()
	cert, key := tsaCert(t)
	info := TSTInfo{
		Version:        1,
		Policy:         asn1.ObjectIdentifier{1, 2, 3},
		MessageImprint: imprint,
		SerialNumber:   big.NewInt(42),
		GenTime:        time.Now().UTC().Truncate(time.Second),
		Nonce:          nonce,
	}
	der, err := asn1.Marshal(info)
	require.NoError(t, err)

	b, err := pkcs7.NewBuilder(key, []*x509.Certificate{cert}, crypto.SHA256)
	require.NoError(t, err)
	b.SetContent(asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}, der)
	ci, err := b.Sign()
	require.NoError(t, err)
	return ci
}

func TestRFC3161RequestResponseRoundTrip(t *testing.T) {
	imprintData := []byte("encrypted digest bytes")
	h := crypto.SHA256.New()
	h.Write(imprintData)
	imprint := h.Sum(nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req TimeStampReq
		_, err = asn1.Unmarshal(body, &req)
		require.NoError(t, err)

		token := buildToken(t, req.MessageImprint, req.Nonce)
		resp := TimeStampResp{
			Status:         PKIStatusInfo{Status: StatusGranted},
			TimeStampToken: *token,
		}
		der, err := asn1.Marshal(resp)
		require.NoError(t, err)
		w.Write(der)
	}))
	defer server.Close()

	msg, httpReq, err := NewRequest(server.URL, crypto.SHA256, imprint)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	token, err := msg.ParseResponse(body)
	require.NoError(t, err)
	assert.NotNil(t, token)
}

func TestMessageImprintVerify(t *testing.T) {
	data := []byte("some content")
	h := crypto.SHA256.New()
	h.Write(data)
	digest := h.Sum(nil)
	alg, ok := x509tools.PkixDigestAlgorithm(crypto.SHA256)
	require.True(t, ok)
	mi := MessageImprint{HashAlgorithm: alg, HashedMessage: digest}
	assert.NoError(t, mi.Verify(data))
	assert.Error(t, mi.Verify([]byte("other content")))
}

func TestLegacyRequestResponseRoundTrip(t *testing.T) {
	imprint := []byte("raw signature bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NotEmpty(t, body)

		cert, key := tsaCert(t)
		b, err := pkcs7.NewBuilder(key, []*x509.Certificate{cert}, crypto.SHA256)
		require.NoError(t, err)
		b.SetContent(pkcs7.OidData, imprint)
		ci, err := b.Sign()
		require.NoError(t, err)
		der, err := asn1.Marshal(*ci)
		require.NoError(t, err)

		w.Write([]byte(base64.StdEncoding.EncodeToString(der)))
	}))
	defer server.Close()

	httpReq, err := NewLegacyRequest(server.URL, imprint)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	token, err := ParseLegacyResponse(body)
	require.NoError(t, err)
	assert.Len(t, token.Content.SignerInfos, 1)
}
