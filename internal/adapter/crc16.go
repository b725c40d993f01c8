package adapter

// Checksum computes the frame CRC: CRC-16 reflected with polynomial 0x8408,
// initial value 0xFFFF and the result inverted (CRC-16/X.25).
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc ^ 0xFFFF
}
