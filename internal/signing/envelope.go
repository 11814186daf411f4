// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signing

import (
	"bytes"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"github.com/AleutianAI/flagforge/internal/domain"
)

// Header is the protected header of a signed envelope.
type Header struct {
	Alg string `json:"alg"`
	KID string `json:"kid"`
}

// Sign serializes the artifact into the compact envelope shipped to
// clients:
//
//	base64url(header) "." base64url(payload) "." base64url(signature)
//
// The signature covers "header.payload" using the key's Ed25519 private
// material. Malformed key material yields a *domain.SignatureError.
func Sign(artifact *domain.Artifact, key *domain.SigningKey) ([]byte, error) {
	priv, err := parsePrivateKey(key.PrivatePEM)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(artifact)
	if err != nil {
		return nil, &domain.SignatureError{Reason: "encode payload", Err: err}
	}
	header, err := json.Marshal(Header{Alg: key.Algorithm, KID: key.KID})
	if err != nil {
		return nil, &domain.SignatureError{Reason: "encode header", Err: err}
	}

	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString(header) + "." + enc.EncodeToString(payload)
	sig := ed25519.Sign(priv, []byte(signingInput))

	return []byte(signingInput + "." + enc.EncodeToString(sig)), nil
}

// Verify checks an envelope against a key set and returns the embedded
// artifact. The header's kid selects the key; any key in the set works,
// active or retired — deletion is the only act that removes trust.
func Verify(envelope []byte, keys []domain.SigningKey) (*domain.Artifact, error) {
	header, parts, err := split(envelope)
	if err != nil {
		return nil, err
	}

	var key *domain.SigningKey
	for i := range keys {
		if keys[i].KID == header.KID {
			key = &keys[i]
			break
		}
	}
	if key == nil {
		return nil, &domain.SignatureError{Reason: fmt.Sprintf("no trusted key with kid %q", header.KID)}
	}

	pub, err := parsePublicKey(key.PublicPEM)
	if err != nil {
		return nil, err
	}

	enc := base64.RawURLEncoding
	sig, err := enc.DecodeString(string(parts[2]))
	if err != nil {
		return nil, &domain.SignatureError{Reason: "decode signature", Err: err}
	}
	signingInput := append(append(append([]byte{}, parts[0]...), '.'), parts[1]...)
	if !ed25519.Verify(pub, signingInput, sig) {
		return nil, &domain.SignatureError{Reason: "signature verification failed"}
	}

	return decodeArtifact(parts[1])
}

// DecodePayload extracts the artifact from an envelope without verifying
// the signature. The pipeline uses it to read the previously published
// artifact for diffing, where trust is not in question.
func DecodePayload(envelope []byte) (*domain.Artifact, error) {
	_, parts, err := split(envelope)
	if err != nil {
		return nil, err
	}
	return decodeArtifact(parts[1])
}

func split(envelope []byte) (Header, [3][]byte, error) {
	var parts [3][]byte
	segments := bytes.Split(envelope, []byte("."))
	if len(segments) != 3 {
		return Header{}, parts, &domain.SignatureError{
			Reason: fmt.Sprintf("envelope has %d segments, want 3", len(segments)),
		}
	}
	copy(parts[:], segments)

	headerJSON, err := base64.RawURLEncoding.DecodeString(string(parts[0]))
	if err != nil {
		return Header{}, parts, &domain.SignatureError{Reason: "decode header", Err: err}
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, parts, &domain.SignatureError{Reason: "parse header", Err: err}
	}
	return header, parts, nil
}

func decodeArtifact(payloadSegment []byte) (*domain.Artifact, error) {
	payload, err := base64.RawURLEncoding.DecodeString(string(payloadSegment))
	if err != nil {
		return nil, &domain.SignatureError{Reason: "decode payload", Err: err}
	}
	var artifact domain.Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, &domain.SignatureError{Reason: "parse payload", Err: err}
	}
	return &artifact, nil
}

func parsePrivateKey(pemStr string) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, &domain.SignatureError{Reason: "private key is not valid PEM"}
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, &domain.SignatureError{Reason: "parse private key", Err: err}
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, &domain.SignatureError{Reason: fmt.Sprintf("private key is %T, want ed25519", parsed)}
	}
	return priv, nil
}

func parsePublicKey(pemStr string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, &domain.SignatureError{Reason: "public key is not valid PEM"}
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, &domain.SignatureError{Reason: "parse public key", Err: err}
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, &domain.SignatureError{Reason: fmt.Sprintf("public key is %T, want ed25519", parsed)}
	}
	return pub, nil
}
