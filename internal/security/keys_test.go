package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func ecKeyPEMs(t *testing.T) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	priv := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return string(priv), string(pub)
}

func TestLoadPEM_ExpandsEscapedNewlines(t *testing.T) {
	b, err := LoadPEM(`-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----`)
	if err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	if strings.Contains(string(b), `\n`) || strings.Count(string(b), "\n") != 2 {
		t.Errorf("LoadPEM = %q", b)
	}
}

func TestLoadPEM_Empty(t *testing.T) {
	if _, err := LoadPEM("   "); err != ErrInvalidKey {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}

func TestLoadPEM_FilePath(t *testing.T) {
	priv, _ := ecKeyPEMs(t)
	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, []byte(priv), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ParsePrivateKey(path); err != nil {
		t.Fatalf("ParsePrivateKey(path): %v", err)
	}
}

func TestLoadPEM_MissingFile(t *testing.T) {
	if _, err := LoadPEM(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadKeyPair(t *testing.T) {
	priv, pub := ecKeyPEMs(t)
	signer, pk, err := LoadKeyPair(priv, pub)
	if err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}
	if signer == nil || pk == nil {
		t.Fatal("LoadKeyPair returned nil key")
	}
}

func TestLoadKeyPair_Mismatch(t *testing.T) {
	priv, _ := ecKeyPEMs(t)
	_, otherPub := ecKeyPEMs(t)
	if _, _, err := LoadKeyPair(priv, otherPub); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestParsePrivateKey_RSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	p := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	signer, err := ParsePrivateKey(string(p))
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if signingMethod(signer.Public()).Alg() != "RS256" {
		t.Errorf("alg = %s, want RS256", signingMethod(signer.Public()).Alg())
	}
}

func TestParsePrivateKey_UnknownBlock(t *testing.T) {
	p := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("x")})
	if _, err := ParsePrivateKey(string(p)); err != ErrInvalidKey {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}

func TestParsePublicKey_NotPEM(t *testing.T) {
	if _, err := ParsePublicKey("-----BEGIN nonsense"); err != ErrInvalidKey {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}
