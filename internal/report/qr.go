package report

import (
	"fmt"

	"github.com/opencontainers/go-digest"
	qrcode "github.com/skip2/go-qrcode"
)

// DigestToQR creates a QR code PNG encoding d in its algorithm:hex form.
func DigestToQR(d digest.Digest, size int) ([]byte, error) {
	if d == "" {
		return nil, fmt.Errorf("digest is empty")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode(d.String(), qrcode.Medium, size)
}
