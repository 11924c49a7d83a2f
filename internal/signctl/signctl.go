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

// Package signctl orchestrates one PE signing operation: it resolves
// the configured hash algorithm, builds the audit record, wires up a
// Timestamper if requested, calls authenticode.Sign, and logs the
// result. It is the "Signer Facade" that scripts and services built
// on this module are expected to call instead of reaching into
// lib/authenticode directly.
package signctl

import (
	"context"
	"crypto"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wincodesign/authenticode/config"
	"github.com/wincodesign/authenticode/lib/audit"
	"github.com/wincodesign/authenticode/lib/authenticode"
	"github.com/wincodesign/authenticode/lib/certloader"
	"github.com/wincodesign/authenticode/lib/pkcs9"
	"github.com/wincodesign/authenticode/lib/pkcs9/tsclient"
)

// Params configures one orchestrated signing operation.
type Params struct {
	// Certificate carries the signing chain and key, as produced by
	// lib/certloader.
	Certificate *certloader.Certificate

	// HashAlgorithm names the digest algorithm ("SHA-1" or "SHA-256").
	// Empty selects the default; an unrecognized name silently falls
	// back to the default as well. See resolveHash.
	HashAlgorithm string

	ProgramName string
	ProgramURL  string

	// Timestamping enables counter-signing. When true and Timestamper
	// is nil, a Timestamper is built from TimestampConfig.
	Timestamping bool

	// UseRFC3161 selects the countersignature strategy. The zero value
	// (false) uses the legacy Authenticode base64-PKCS#7 exchange, the
	// historical default; true switches to RFC 3161.
	UseRFC3161      bool
	Timestamper     pkcs9.Timestamper
	TimestampConfig *config.TimestampConfig

	// Logger receives structured debug/info events for this
	// operation. The zero value (zerolog.Logger{}) behaves like
	// zerolog.Nop().
	Logger zerolog.Logger
}

// Sign digests the PE image exposed by r (of length size), signs it
// per p, and writes the complete signed image to out.
func Sign(ctx context.Context, r io.ReaderAt, size int64, out io.Writer, p Params) error {
	log := p.Logger
	if p.Certificate == nil || len(p.Certificate.Certificates) == 0 {
		return authenticode.ErrNoCertificate
	}
	if p.Certificate.PrivateKey == nil {
		return authenticode.ErrNoPrivateKey
	}
	signer := p.Certificate.Signer()

	hash := resolveHash(p.HashAlgorithm, log)
	log.Debug().Str("hash", hash.String()).Msg("resolved digest algorithm")

	rec := audit.New(p.Certificate.KeyName, "authenticode", hash)
	if p.Certificate.Leaf != nil {
		rec.SetX509Cert(p.Certificate.Leaf)
	}
	log.Debug().Str("keyname", p.Certificate.KeyName).Msg("loaded audit metadata")

	timestamper := p.Timestamper
	if p.Timestamping && timestamper == nil {
		var err error
		timestamper, err = buildTimestamper(p.TimestampConfig, log)
		if err != nil {
			return err
		}
	}

	params := authenticode.SignParams{
		Chain:        p.Certificate.Chain(),
		PrivateKey:   signer,
		Hash:         hash,
		ProgramName:  p.ProgramName,
		ProgramURL:   p.ProgramURL,
		Timestamping: p.Timestamping && timestamper != nil,
		UseRFC3161:   p.UseRFC3161,
		Timestamper:  timestamper,
	}
	log.Debug().Bool("timestamping", params.Timestamping).Msg("built signature parameters")

	if err := authenticode.Sign(ctx, r, size, out, params); err != nil {
		return err
	}
	log.Debug().Msg("applied certificate table patch")

	if params.Timestamping {
		rec.SetTimestamped(!p.UseRFC3161)
	}
	log.Info().EmbedObject(auditDict{rec}).Msg("signed PE image")
	return nil
}

// auditDict adapts an *audit.Info to zerolog's MarshalZerologObject so
// its sig.* attributes can be embedded directly into a log event.
type auditDict struct {
	rec *audit.Info
}

func (d auditDict) MarshalZerologObject(e *zerolog.Event) {
	e.Dict("audit", d.rec.AttrsForLog("sig."))
}

// resolveHash maps a configured hash algorithm name to a crypto.Hash.
// The default (empty name) is unconditionally SHA-256; an explicit
// request for SHA-1 is honored but logged as a warning rather than
// silently accepted, since SHA-1 is only still supported for
// compatibility with old verifiers. An unrecognized name falls back
// to the SHA-256 default without complaint, matching historical
// Authenticode signer behavior.
func resolveHash(name string, log zerolog.Logger) crypto.Hash {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "":
		return crypto.SHA256
	case "SHA1", "SHA-1":
		log.Warn().Msg("signing with SHA-1 is deprecated; prefer SHA-256")
		return crypto.SHA1
	case "SHA256", "SHA-256":
		return crypto.SHA256
	default:
		return crypto.SHA256
	}
}

// buildTimestamper constructs the HTTP-transport Timestamper
// described by conf, or returns an error if timestamping was
// requested without any configuration to build one from.
func buildTimestamper(conf *config.TimestampConfig, log zerolog.Logger) (pkcs9.Timestamper, error) {
	if conf == nil {
		return nil, errNoTimestampConfig
	}
	return tsclient.New(conf, log)
}
