package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTLSAcceptSurvivesBadHandshake(t *testing.T) {
	certFile, keyFile, pool := writeSelfSignedCert(t)

	tctx, err := NewTLSContextBuilder().LoadCert(certFile, keyFile).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	factory, err := ListenTLS("127.0.0.1:0", tctx)
	if err != nil {
		t.Fatalf("ListenTLS: %v", err)
	}
	defer factory.Close()

	acceptResult := make(chan error, 1)
	go func() {
		_, err := factory.Accept(context.Background())
		acceptResult <- err
	}()

	// A plain-TCP client whose bytes are not a valid TLS ClientHello:
	// the handshake must fail internally without Accept returning it.
	bad, err := net.Dial("tcp", factory.Addr().String())
	if err != nil {
		t.Fatalf("dial bad client: %v", err)
	}
	bad.Write([]byte{0x05, 0x01, 0x00})
	bad.Close()

	clientConfig := &tls.Config{RootCAs: pool, ServerName: "socks5relay-test"}
	good, err := tls.Dial("tcp", factory.Addr().String(), clientConfig)
	if err != nil {
		t.Fatalf("tls.Dial: %v", err)
	}
	defer good.Close()

	select {
	case err := <-acceptResult:
		if err != nil {
			t.Fatalf("Accept returned an error after the good handshake: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Accept never returned for the good handshake after the bad one failed")
	}
}

// writeSelfSignedCert generates a throwaway self-signed certificate for
// "socks5relay-test" valid on 127.0.0.1, writes the cert and key as PEM
// files under t.TempDir, and returns their paths plus a pool trusting the
// cert.
func writeSelfSignedCert(t *testing.T) (certFile, keyFile string, pool *x509.CertPool) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "socks5relay-test"},
		DNSNames:     []string{"socks5relay-test"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	pool = x509.NewCertPool()
	pool.AppendCertsFromPEM(certPEM)
	return certFile, keyFile, pool
}
