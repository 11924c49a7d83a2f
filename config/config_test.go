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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
keys:
  default:
    certificate: /etc/authenticode/cert.pem
    privatekey: /etc/authenticode/key.pem
timestamp:
  urls:
    - https://timestamp.example.com/rfc3161
  msurls:
    - https://timestamp.example.com/legacy
  timeout: 15
  cacert: /etc/authenticode/ca.pem
  ratelimit: 2.5
  rateburst: 4
  memcache:
    - memcache1:11211
    - memcache2:11211
`

func TestReadFileRoundTripsTimestampConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authenticode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0600))

	conf, err := ReadFile(path)
	require.NoError(t, err)
	require.NotNil(t, conf.Timestamp)
	require.Equal(t, []string{"https://timestamp.example.com/rfc3161"}, conf.Timestamp.URLs)
	require.Equal(t, []string{"https://timestamp.example.com/legacy"}, conf.Timestamp.MsURLs)
	require.Equal(t, 15, conf.Timestamp.Timeout)
	require.Equal(t, "/etc/authenticode/ca.pem", conf.Timestamp.CaCert)
	require.InDelta(t, 2.5, conf.Timestamp.RateLimit, 0.0001)
	require.Equal(t, 4, conf.Timestamp.RateBurst)
	require.Equal(t, []string{"memcache1:11211", "memcache2:11211"}, conf.Timestamp.Memcache)

	key, err := conf.GetKey("default")
	require.NoError(t, err)
	require.Equal(t, "/etc/authenticode/cert.pem", key.Certificate)
}

func TestGetKeyRejectsUnknownName(t *testing.T) {
	conf := &Config{Keys: map[string]*KeyConfig{"a": {}}}
	_, err := conf.GetKey("b")
	require.Error(t, err)
}

func TestReadFileRejectsMissingPath(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
