package packet

// CRC-8 generator polynomial (x^8 + x^2 + x + 1), init 0x00, no reflection, no final XOR
const CRC8Poly = 0x07

// Pre-computed CRC table
var crcTable [256]uint8

// init initializes the pre-computed CRC table
func init() {
	for i := 0; i < 256; i++ {
		c := uint8(i)
		for j := 0; j < 8; j++ {
			if c&0x80 != 0 {
				c = (c << 1) ^ CRC8Poly
			} else {
				c <<= 1
			}
		}
		crcTable[i] = c
	}
}

// Checksum calculates the CRC-8 of data
func Checksum(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		crc = crcTable[crc^b]
	}
	return crc
}

// AppendChecksum appends the CRC-8 of data to data
func AppendChecksum(data []byte) []byte {
	return append(data, Checksum(data))
}

// verifyChecksum checks that the last byte of data is the CRC-8 of the bytes before it.
// It returns the received and calculated values.
func verifyChecksum(data []byte) (received, calculated uint8, ok bool) {
	n := len(data)
	received = data[n-1]
	calculated = Checksum(data[:n-1])
	return received, calculated, received == calculated
}
