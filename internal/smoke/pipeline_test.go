package smoke

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"example.com/logopack/internal/samples"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func writeSigner(t *testing.T, keyPath, certPath string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	now := time.Now().UTC()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Repack Signer", Organization: []string{"logopack"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("WriteFile key: %v", err)
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		t.Fatalf("WriteFile cert: %v", err)
	}
}

func buildCLI(t *testing.T) string {
	t.Helper()
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available")
	}
	bin := filepath.Join(t.TempDir(), "logopack")
	cmd := exec.Command(goBin, "build", "-o", bin, "./cmd/logopack")
	cmd.Dir = repoRoot(t)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build failed: %v\n%s", err, output)
	}
	return bin
}

func run(t *testing.T, bin string, args ...string) []byte {
	t.Helper()
	output, err := exec.Command(bin, args...).CombinedOutput()
	if err != nil {
		t.Fatalf("logopack %v failed: %v\n%s", args, err, output)
	}
	return output
}

func TestRepackPipelineSigned(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping CLI smoke test in short mode")
	}
	bin := buildCLI(t)
	tmp := t.TempDir()
	if err := samples.WriteFiles(tmp); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	dump := filepath.Join(tmp, samples.MSIFileName)
	extracted := filepath.Join(tmp, "extracted")
	run(t, bin, "extract", "--in", dump, "--out-dir", extracted)

	var st struct {
		Containers []struct {
			Entries []struct {
				File   string `json:"file"`
				Type   string `json:"type"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"entries"`
		} `json:"containers"`
	}
	raw, err := os.ReadFile(filepath.Join(extracted, "structure.json"))
	if err != nil {
		t.Fatalf("ReadFile structure: %v", err)
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		t.Fatalf("Unmarshal structure: %v", err)
	}
	first := st.Containers[0].Entries[0]
	if first.Type != "png" {
		t.Fatalf("first entry is %s, want png", first.Type)
	}
	bigger, err := samples.PNG(first.Width+16, first.Height+16, 0x99)
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if err := os.WriteFile(filepath.Join(extracted, filepath.FromSlash(first.File)), bigger, 0o644); err != nil {
		t.Fatalf("WriteFile candidate: %v", err)
	}

	out := filepath.Join(tmp, "repacked.bin")
	reportPath := filepath.Join(tmp, "report.json")
	output := run(t, bin, "repack", "--in", dump, "--dir", extracted, "--out", out, "--report", reportPath)
	if !bytes.Contains(output, []byte("strategy: structural")) {
		t.Fatalf("unexpected repack output:\n%s", output)
	}
	run(t, bin, "verify", "--in", out, "--orig", dump, "--dir", extracted)

	packed := filepath.Join(tmp, "packed.bin")
	run(t, bin, "pack", "--dir", extracted, "--orig", dump, "--out", packed)
	want, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile repacked: %v", err)
	}
	got, err := os.ReadFile(packed)
	if err != nil {
		t.Fatalf("ReadFile packed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("pack against the original = %d bytes, want the %d-byte repack output", len(got), len(want))
	}

	keyPath := filepath.Join(tmp, "signing.key")
	certPath := filepath.Join(tmp, "signing.crt")
	writeSigner(t, keyPath, certPath)
	manifestPath := filepath.Join(tmp, "manifest.json")
	run(t, bin, "manifest", "--inputs", dump+","+out+","+reportPath, "--out", manifestPath,
		"--sign", "--key", keyPath, "--cert", certPath)
	output = run(t, bin, "verify-signature", "--manifest", manifestPath,
		"--jws", filepath.Join(tmp, "manifest.jws"), "--cert", certPath)
	if !bytes.Contains(output, []byte("Signature OK")) {
		t.Fatalf("missing signature confirmation:\n%s", output)
	}
}
