package packer

import (
	"errors"
)

// Scan locates every container of the given variant in buf. Malformed
// entries end the current container and are reported as anomalies; the
// search for further signatures continues past them.
func Scan(buf []byte, v Variant) ([]Container, []Anomaly, error) {
	p, err := PolicyFor(v)
	if err != nil {
		return nil, nil, err
	}
	cs, anomalies := ScanWith(buf, p)
	return cs, anomalies, nil
}

// ScanWith runs the signature search and entry loop of p over buf.
func ScanWith(buf []byte, p Policy) ([]Container, []Anomaly) {
	var (
		containers []Container
		anomalies  []Anomaly
	)
	pos := 0
	for pos < len(buf) {
		start := p.Find(buf, pos)
		if start < 0 {
			break
		}
		c, next, stop := p.Decode(buf, start)
		if stop != nil && !errors.Is(stop, ErrScanTerminated) {
			anomalies = append(anomalies, Anomaly{Variant: p.Variant(), Offset: start, Err: stop})
		}
		if c.Length > 0 {
			containers = append(containers, c)
		}
		if next <= start {
			next = start + 1
		}
		pos = next
	}
	return containers, anomalies
}

// SniffVariant returns the variants that find at least one entry in buf.
func SniffVariant(buf []byte) []Variant {
	var found []Variant
	for _, p := range Policies() {
		cs, _ := ScanWith(buf, p)
		if countEntries(cs) > 0 {
			found = append(found, p.Variant())
		}
	}
	return found
}

func countEntries(cs []Container) int {
	n := 0
	for _, c := range cs {
		n += len(c.Entries)
	}
	return n
}
