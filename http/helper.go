package http

import (
	"errors"
	"math"
)

var errInvalidNumber = errors.New("http: invalid number")

// atoi parses a non-negative decimal without allocating.
func atoi(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, errInvalidNumber
	}

	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errInvalidNumber
		}
		if n > (math.MaxInt64-int64(c-'0'))/10 {
			return 0, errInvalidNumber
		}
		n = n*10 + int64(c-'0')
	}
	return n, nil
}

// parseHex parses a chunk size line.
func parseHex(b []byte) (int64, error) {
	if len(b) == 0 || len(b) > 15 {
		return 0, errInvalidNumber
	}

	var n int64
	for _, c := range b {
		v := hexToByte(c)
		if v == 255 {
			return 0, errInvalidNumber
		}
		n = n<<4 | int64(v)
	}
	return n, nil
}

// Helper function to write integer to buffer without allocation
func writeIntToBuffer(n int, buf []byte) int {
	if n == 0 {
		buf[0] = '0'
		return 1
	}

	// Calculate digits needed
	temp := n
	digits := 0
	for temp > 0 {
		digits++
		temp /= 10
	}

	// Write digits backwards
	for i := digits - 1; i >= 0; i-- {
		buf[i] = '0' + byte(n%10)
		n /= 10
	}

	return digits
}

func hexToByte(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 255 // Invalid hex
}
