package packer

import (
	"fmt"
)

// Verify re-scans out and checks that every expected placement is decoded
// at the same offset with the same size and image type.
func Verify(out []byte, want []Placement) error {
	byVariant := make(map[Variant][]Placement)
	var order []Variant
	for _, pl := range want {
		if _, ok := byVariant[pl.Variant]; !ok {
			order = append(order, pl.Variant)
		}
		byVariant[pl.Variant] = append(byVariant[pl.Variant], pl)
	}
	for _, v := range order {
		p, err := PolicyFor(v)
		if err != nil {
			return err
		}
		cs, _ := ScanWith(out, p)
		var got []Entry
		for _, c := range cs {
			got = append(got, c.Entries...)
		}
		exp := byVariant[v]
		if len(got) != len(exp) {
			return fmt.Errorf("%w: %s: decoded %d entries, expected %d", ErrVerifyFailed, v, len(got), len(exp))
		}
		for i, pl := range exp {
			e := got[i]
			if e.Offset != pl.Offset || e.DeclaredSize != pl.Size {
				return fmt.Errorf("%w: %s entry %d: decoded 0x%08X+%d, expected 0x%08X+%d",
					ErrVerifyFailed, v, i, e.Offset, e.DeclaredSize, pl.Offset, pl.Size)
			}
			if e.Type != pl.Type {
				return fmt.Errorf("%w: %s entry %d: decoded type %s, expected %s", ErrVerifyFailed, v, i, e.Type, pl.Type)
			}
		}
	}
	return nil
}
