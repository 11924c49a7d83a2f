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

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UserAgent is sent on every outbound HTTP request this module makes,
// notably timestamp requests.
const UserAgent = "authenticode-signer"

// TimestampConfig configures the two Timestamper strategies and their
// optional rate-limiting/caching decorators.
type TimestampConfig struct {
	URLs      []string `yaml:"urls"`      // RFC 3161 endpoints
	MsURLs    []string `yaml:"msurls"`    // legacy Authenticode endpoints
	Timeout   int      `yaml:"timeout"`   // seconds
	CaCert    string   `yaml:"cacert"`    // optional PEM path
	RateLimit float64  `yaml:"ratelimit"` // requests/sec, 0 disables
	RateBurst int      `yaml:"rateburst"`
	Memcache  []string `yaml:"memcache"` // memcache server list, empty disables caching
}

// KeyConfig names the certificate and key material for one signing
// identity, as they'd be referenced from a caller's own configuration
// file. This library does not resolve these paths itself; it is
// `lib/certloader`'s callers who read them.
type KeyConfig struct {
	Certificate string `yaml:"certificate"`
	PrivateKey  string `yaml:"privatekey"`
	PKCS12      string `yaml:"pkcs12"`
}

// Config is the top-level configuration document.
type Config struct {
	Keys      map[string]*KeyConfig `yaml:"keys"`
	Timestamp *TimestampConfig      `yaml:"timestamp"`
}

// ReadFile loads a Config from a YAML file at path.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	conf := new(Config)
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return conf, nil
}

// GetKey looks up a named key configuration.
func (c *Config) GetKey(name string) (*KeyConfig, error) {
	if c.Keys == nil {
		return nil, fmt.Errorf("config: no keys defined")
	}
	key, ok := c.Keys[name]
	if !ok {
		return nil, fmt.Errorf("config: key %q not found", name)
	}
	return key, nil
}
