package binpatch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyReplacesRegionsOutOfOrder(t *testing.T) {
	src := strings.NewReader("0123456789")
	p := New()
	// add out of order to exercise the sort
	p.Add(8, 2, []byte("YZ"))
	p.Add(2, 3, []byte("xx"))

	var out bytes.Buffer
	require.NoError(t, p.Apply(src, 10, &out))
	assert.Equal(t, "01xx567YZ", out.String())
}

func TestApplyAppendsPastSourceLength(t *testing.T) {
	src := strings.NewReader("hello")
	p := New()
	p.Add(5, 0, []byte("world"))

	var out bytes.Buffer
	require.NoError(t, p.Apply(src, 5, &out))
	assert.Equal(t, "helloworld", out.String())
}

func TestApplyRejectsOverlappingRegions(t *testing.T) {
	src := strings.NewReader("0123456789")
	p := New()
	p.Add(0, 5, []byte("AAAAA"))
	p.Add(3, 2, []byte("BB"))

	var out bytes.Buffer
	assert.Error(t, p.Apply(src, 10, &out))
}
