// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math/big"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// MockAuthenticator simulates a WebAuthn authenticator for testing. It
// produces attestation and assertion responses that verify against a real
// webauthn instance, which lets ceremony and HTTP tests run end to end
// without a browser.
type MockAuthenticator struct {
	// AAGUID is the authenticator's model identifier (16 bytes).
	AAGUID []byte

	// CredentialID is the credential identifier.
	CredentialID []byte

	// SignCount is the current signature counter.
	SignCount uint32

	// UserPresent indicates whether the UP flag should be set.
	UserPresent bool

	// UserVerified indicates whether the UV flag should be set.
	UserVerified bool

	privateKey *ecdsa.PrivateKey
	rpID       string
	rpIDHash   []byte
}

// MockAuthenticatorOption is a functional option for configuring a MockAuthenticator.
type MockAuthenticatorOption func(*MockAuthenticator)

// WithCredentialID sets a custom credential ID.
func WithCredentialID(credID []byte) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.CredentialID = credID
	}
}

// WithSignCount sets the initial sign count.
func WithSignCount(count uint32) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.SignCount = count
	}
}

// WithUserVerified sets the UV flag.
func WithUserVerified(uv bool) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.UserVerified = uv
	}
}

// NewMockAuthenticator creates a new mock authenticator for the given RP ID.
func NewMockAuthenticator(rpID string, opts ...MockAuthenticatorOption) (*MockAuthenticator, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	aaguid := make([]byte, 16)
	if _, err := rand.Read(aaguid); err != nil {
		return nil, err
	}

	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		return nil, err
	}

	rpIDHash := sha256.Sum256([]byte(rpID))

	m := &MockAuthenticator{
		AAGUID:       aaguid,
		CredentialID: credID,
		SignCount:    0,
		UserPresent:  true,
		UserVerified: true,
		privateKey:   privateKey,
		rpID:         rpID,
		rpIDHash:     rpIDHash[:],
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// PublicKeyBytes returns the public key in COSE format.
func (m *MockAuthenticator) PublicKeyBytes() ([]byte, error) {
	pubKey := m.privateKey.Public().(*ecdsa.PublicKey)

	// COSE key representation for ES256
	coseKey := map[int]interface{}{
		1:  2,                          // kty: EC2
		3:  int(webauthncose.AlgES256), // alg: ES256
		-1: 1,                          // crv: P-256
		-2: pubKey.X.Bytes(),           // x coordinate
		-3: pubKey.Y.Bytes(),           // y coordinate
	}

	return webauthncbor.Marshal(coseKey)
}

// SetSignCount sets the sign count to a specific value, useful for
// exercising clone detection.
func (m *MockAuthenticator) SetSignCount(count uint32) {
	m.SignCount = count
}

// CreateAttestationResponse builds a registration response for the given
// challenge, as a real authenticator would during `navigator.credentials.create`.
func (m *MockAuthenticator) CreateAttestationResponse(challenge []byte, origin string) (*protocol.ParsedCredentialCreationData, error) {
	authData, err := m.buildAuthenticatorData(true)
	if err != nil {
		return nil, err
	}

	clientDataJSON := m.buildClientDataJSON(challenge, origin, "webauthn.create")

	// "none" attestation: no statement, no signature over the attestation.
	attestationObject := map[string]interface{}{
		"authData": authData,
		"fmt":      "none",
		"attStmt":  map[string]interface{}{},
	}
	attestationObjectBytes, err := webauthncbor.Marshal(attestationObject)
	if err != nil {
		return nil, err
	}

	pubKeyBytes, err := m.PublicKeyBytes()
	if err != nil {
		return nil, err
	}

	parsedAttObj := protocol.AttestationObject{
		Format:       "none",
		AttStatement: map[string]interface{}{},
		AuthData: protocol.AuthenticatorData{
			RPIDHash: m.rpIDHash,
			Flags:    m.buildFlags(true),
			Counter:  m.SignCount,
			AttData: protocol.AttestedCredentialData{
				AAGUID:              m.AAGUID,
				CredentialID:        m.CredentialID,
				CredentialPublicKey: pubKeyBytes,
			},
		},
	}

	credentialIDBase64 := base64.RawURLEncoding.EncodeToString(m.CredentialID)

	return &protocol.ParsedCredentialCreationData{
		ParsedPublicKeyCredential: protocol.ParsedPublicKeyCredential{
			ParsedCredential: protocol.ParsedCredential{
				ID:   credentialIDBase64,
				Type: "public-key",
			},
			RawID:                  m.CredentialID,
			ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
		},
		Response: protocol.ParsedAttestationResponse{
			CollectedClientData: protocol.CollectedClientData{
				Type:      "webauthn.create",
				Challenge: base64.RawURLEncoding.EncodeToString(challenge),
				Origin:    origin,
			},
			AttestationObject: parsedAttObj,
			Transports:        []protocol.AuthenticatorTransport{protocol.USB},
		},
		Raw: protocol.CredentialCreationResponse{
			PublicKeyCredential: protocol.PublicKeyCredential{
				Credential: protocol.Credential{
					ID:   credentialIDBase64,
					Type: "public-key",
				},
				RawID:                  m.CredentialID,
				ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
			},
			AttestationResponse: protocol.AuthenticatorAttestationResponse{
				AuthenticatorResponse: protocol.AuthenticatorResponse{
					ClientDataJSON: clientDataJSON,
				},
				AttestationObject: attestationObjectBytes,
				Transports:        []string{"usb"},
			},
		},
	}, nil
}

// CreateAssertionResponse builds an authentication response for the given
// challenge, as a real authenticator would during `navigator.credentials.get`.
// The sign count advances by one per call.
func (m *MockAuthenticator) CreateAssertionResponse(challenge []byte, userHandle []byte, origin string) (*protocol.ParsedCredentialAssertionData, error) {
	m.SignCount++

	authData, err := m.buildAuthenticatorData(false)
	if err != nil {
		return nil, err
	}

	clientDataJSON := m.buildClientDataJSON(challenge, origin, "webauthn.get")
	clientDataHash := sha256.Sum256(clientDataJSON)

	// Signature covers authData || clientDataHash.
	signedData := append(authData, clientDataHash[:]...)
	signature, err := m.sign(signedData)
	if err != nil {
		return nil, err
	}

	parsedAuthData := protocol.AuthenticatorData{
		RPIDHash: m.rpIDHash,
		Flags:    m.buildFlags(false),
		Counter:  m.SignCount,
	}

	credentialIDBase64 := base64.RawURLEncoding.EncodeToString(m.CredentialID)

	return &protocol.ParsedCredentialAssertionData{
		ParsedPublicKeyCredential: protocol.ParsedPublicKeyCredential{
			ParsedCredential: protocol.ParsedCredential{
				ID:   credentialIDBase64,
				Type: "public-key",
			},
			RawID:                  m.CredentialID,
			ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
		},
		Response: protocol.ParsedAssertionResponse{
			CollectedClientData: protocol.CollectedClientData{
				Type:      "webauthn.get",
				Challenge: base64.RawURLEncoding.EncodeToString(challenge),
				Origin:    origin,
			},
			AuthenticatorData: parsedAuthData,
			Signature:         signature,
			UserHandle:        userHandle,
		},
		Raw: protocol.CredentialAssertionResponse{
			PublicKeyCredential: protocol.PublicKeyCredential{
				Credential: protocol.Credential{
					ID:   credentialIDBase64,
					Type: "public-key",
				},
				RawID:                  m.CredentialID,
				ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
			},
			AssertionResponse: protocol.AuthenticatorAssertionResponse{
				AuthenticatorResponse: protocol.AuthenticatorResponse{
					ClientDataJSON: clientDataJSON,
				},
				AuthenticatorData: authData,
				Signature:         signature,
				UserHandle:        userHandle,
			},
		},
	}, nil
}

// buildFlags builds the authenticator flags byte.
func (m *MockAuthenticator) buildFlags(includeCredential bool) protocol.AuthenticatorFlags {
	var flags byte
	if m.UserPresent {
		flags |= 0x01 // UP
	}
	if m.UserVerified {
		flags |= 0x04 // UV
	}
	if includeCredential {
		flags |= 0x40 // AT (attested credential data present)
	}
	return protocol.AuthenticatorFlags(flags)
}

// buildAuthenticatorData builds the raw authenticator data structure.
// Attested credential data is included only for registration.
func (m *MockAuthenticator) buildAuthenticatorData(includeCredential bool) ([]byte, error) {
	var buf bytes.Buffer

	// rpIdHash (32 bytes)
	buf.Write(m.rpIDHash)

	// flags (1 byte)
	buf.WriteByte(byte(m.buildFlags(includeCredential)))

	// signCount (4 bytes, big-endian)
	signCountBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(signCountBytes, m.SignCount)
	buf.Write(signCountBytes)

	if includeCredential {
		// AAGUID (16 bytes)
		buf.Write(m.AAGUID)

		// Credential ID length (2 bytes, big-endian) + ID
		credIDLen := make([]byte, 2)
		binary.BigEndian.PutUint16(credIDLen, uint16(len(m.CredentialID)))
		buf.Write(credIDLen)
		buf.Write(m.CredentialID)

		// Credential public key (COSE format)
		pubKeyBytes, err := m.PublicKeyBytes()
		if err != nil {
			return nil, err
		}
		buf.Write(pubKeyBytes)
	}

	return buf.Bytes(), nil
}

// buildClientDataJSON builds the collected client data JSON.
func (m *MockAuthenticator) buildClientDataJSON(challenge []byte, origin, ceremonyType string) []byte {
	clientData := struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		Origin    string `json:"origin"`
	}{
		Type:      ceremonyType,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    origin,
	}

	jsonBytes, _ := json.Marshal(clientData)
	return jsonBytes
}

// sign creates an ECDSA signature over the data.
func (m *MockAuthenticator) sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, m.privateKey, hash[:])
	if err != nil {
		return nil, err
	}

	// WebAuthn requires an ASN.1 DER encoded signature.
	return asn1MarshalSignature(r, s)
}

// asn1MarshalSignature encodes r and s as an ASN.1 DER signature.
func asn1MarshalSignature(r, s *big.Int) ([]byte, error) {
	rBytes := r.Bytes()
	sBytes := s.Bytes()

	// Leading zero keeps high-bit values positive.
	if len(rBytes) > 0 && rBytes[0] >= 0x80 {
		rBytes = append([]byte{0x00}, rBytes...)
	}
	if len(sBytes) > 0 && sBytes[0] >= 0x80 {
		sBytes = append([]byte{0x00}, sBytes...)
	}

	rLen := len(rBytes)
	sLen := len(sBytes)
	seqLen := 2 + rLen + 2 + sLen

	sig := make([]byte, 0, 2+seqLen)
	sig = append(sig, 0x30)         // SEQUENCE tag
	sig = append(sig, byte(seqLen)) // SEQUENCE length
	sig = append(sig, 0x02)         // INTEGER tag (r)
	sig = append(sig, byte(rLen))   // r length
	sig = append(sig, rBytes...)    // r value
	sig = append(sig, 0x02)         // INTEGER tag (s)
	sig = append(sig, byte(sLen))   // s length
	sig = append(sig, sBytes...)    // s value

	return sig, nil
}
