// Package crypto signs and verifies detached RS256 JWS envelopes over
// artifact manifests.
package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
)

var ErrBadSignature = errors.New("signature does not verify")

// JWS is the flattened JSON serialization with the payload left out.
type JWS struct {
	Protected string `json:"protected"`
	Signature string `json:"signature"`
}

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
}

func signingInput(protected string, payload []byte) []byte {
	return []byte(protected + "." + base64.RawURLEncoding.EncodeToString(payload))
}

// SignDetached signs payload with an RSA key in PKCS#1 or PKCS#8 PEM form.
func SignDetached(payload, privateKeyPEM []byte) (JWS, error) {
	priv, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return JWS{}, err
	}
	hb, err := json.Marshal(header{Alg: "RS256", Typ: "JOSE"})
	if err != nil {
		return JWS{}, err
	}
	protected := base64.RawURLEncoding.EncodeToString(hb)
	h := sha256.Sum256(signingInput(protected, payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, h[:])
	if err != nil {
		return JWS{}, err
	}
	return JWS{Protected: protected, Signature: base64.RawURLEncoding.EncodeToString(sig)}, nil
}

// VerifyDetached checks sig over payload against the RSA key of the PEM
// certificate.
func VerifyDetached(payload []byte, sig JWS, certPEM []byte) error {
	hb, err := base64.RawURLEncoding.DecodeString(sig.Protected)
	if err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	var hdr header
	if err := json.Unmarshal(hb, &hdr); err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	if hdr.Alg != "RS256" {
		return fmt.Errorf("unsupported alg %q", hdr.Alg)
	}
	raw, err := base64.RawURLEncoding.DecodeString(sig.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	cert, err := ParseCertificate(certPEM)
	if err != nil {
		return err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return errors.New("certificate does not hold an RSA key")
	}
	h := sha256.Sum256(signingInput(sig.Protected, payload))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], raw); err != nil {
		return ErrBadSignature
	}
	return nil
}

func ParseCertificate(pemBytes []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	return x509.ParseCertificate(block.Bytes)
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}
