// Copyright © SAS Institute Inc.
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

package pkcs9

import "encoding/asn1"

var (
	// OidAttributeCounterSign is the legacy Authenticode timestamp
	// attribute: the timestamp server's whole PKCS#7 SignedData,
	// signed over the outer signature's EncryptedDigest, carried as an
	// unauthenticated attribute of the outer SignerInfo.
	OidAttributeCounterSign = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 6}

	// OidSpcTimeStampToken is Microsoft's attribute OID for embedding a
	// full RFC 3161 TimeStampToken (a nested SignedData) as an
	// unauthenticated attribute of an Authenticode SignerInfo, in place
	// of the standard CMS id-aa-timeStampToken attribute.
	OidSpcTimeStampToken = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 3, 3, 1}

	// OidAttributeTimeStampToken is the standard RFC 3161 / CMS
	// id-aa-timeStampToken attribute OID.
	OidAttributeTimeStampToken = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}

	// OidSpcTimeStampRequest is the content type of the legacy
	// Authenticode timestamp request and response bodies.
	OidSpcTimeStampRequest = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 3, 2, 1}
)
