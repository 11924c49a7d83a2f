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

package audit

import (
	"bytes"
	"crypto"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndMarshalRoundTrip(t *testing.T) {
	info := New("mykey", "authenticode", crypto.SHA256)
	info.SetTimestamped(false)

	blob, err := info.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(blob)
	require.NoError(t, err)
	assert.Equal(t, "mykey", parsed.Attributes["sig.keyname"])
	assert.Equal(t, "SHA-256", parsed.Attributes["sig.hash"])
	assert.Equal(t, "rfc3161", parsed.Attributes["sig.ts.strategy"])
}

func TestAttrsForLogStripsPrefix(t *testing.T) {
	info := New("mykey", "authenticode", crypto.SHA256)
	ev := info.AttrsForLog("sig.")
	require.NotNil(t, ev)

	var buf bytes.Buffer
	zerolog.New(&buf).Log().Dict("audit", ev).Msg("")
	assert.Contains(t, buf.String(), `"keyname":"mykey"`)
	assert.NotContains(t, buf.String(), `"sig.keyname"`)
}

func TestParseRejectsEmptyBlob(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)
}
