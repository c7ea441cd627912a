// Package crc implements the two checksums used on the pod radio link.
//
// Packets carry a CRC-8 (polynomial 0x07, init 0) over the whole frame.
// Messages carry a 16-bit checksum built from the MSB-first polynomial 0x8005
// table, but folded in with a right shift:
//
//	acc = (acc >> 8) ^ table[(acc ^ b) & 0xff]
//
// This hybrid is not one of the catalogued CRC-16 variants, so it is
// implemented here rather than through a parameterized CRC library.
package crc

var (
	crc8Table  = makeCRC8Table(0x07)
	crc16Table = makeCRC16Table(0x8005)
)

func makeCRC8Table(poly uint8) [256]uint8 {
	var t [256]uint8
	for i := 0; i < 256; i++ {
		c := uint8(i)
		for j := 0; j < 8; j++ {
			if c&0x80 != 0 {
				c = c<<1 ^ poly
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}

func makeCRC16Table(poly uint16) [256]uint16 {
	var t [256]uint16
	for i := 0; i < 256; i++ {
		c := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if c&0x8000 != 0 {
				c = c<<1 ^ poly
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}

// Checksum8 returns the packet CRC-8 of data.
func Checksum8(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}

// Checksum16 returns the message checksum of data.
func Checksum16(data []byte) uint16 {
	var acc uint16
	for _, b := range data {
		acc = acc>>8 ^ crc16Table[uint8(acc)^b]
	}
	return acc
}
