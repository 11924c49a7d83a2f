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

package certloader

import (
	"crypto/x509"

	"software.sslmate.com/src/go-pkcs12"
)

// LoadPKCS12 decodes a PKCS#12 blob with the given password. Unlike
// the teacher's interactive password-prompt loop, the caller is
// expected to already know the password.
func LoadPKCS12(blob []byte, password string) (*Certificate, error) {
	priv, leaf, chain, err := pkcs12.DecodeChain(blob, password)
	if err != nil {
		return nil, err
	}
	certs := append([]*x509.Certificate{leaf}, chain...)
	return &Certificate{
		PrivateKey:   priv,
		Leaf:         leaf,
		Certificates: certs,
	}, nil
}
