package avr

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Intel HEX record: ":" count(2) address(4) type(2) data checksum(2),
// all hex-encoded. Anything that does not match, including stray
// characters outside [0-9A-Fa-f], fails the whole line.
var hexRecord = regexp.MustCompile(`^:([0-9A-Fa-f]{2})([0-9A-Fa-f]{4})([0-9A-Fa-f]{2})([0-9A-Fa-f]*)([0-9A-Fa-f]{2})$`)

const hexRecordData = 0x00

// readHex decodes the data records of an Intel HEX image into program
// words. Within each word the file carries the low byte first, so the
// byte pair CD AB becomes the word 0xABCD. Malformed lines are skipped;
// non-data records such as headers and the EOF marker are tolerated.
func readHex(r io.Reader) ([]uint16, error) {
	var words []uint16

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		m := hexRecord.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		typ, err := strconv.ParseUint(m[3], 16, 8)
		if err != nil || typ != hexRecordData {
			continue
		}

		data := m[4]
		for i := 0; i+4 <= len(data); i += 4 {
			lo, err := strconv.ParseUint(data[i:i+2], 16, 8)
			if err != nil {
				continue
			}
			hi, err := strconv.ParseUint(data[i+2:i+4], 16, 8)
			if err != nil {
				continue
			}
			words = append(words, toWord(byte(hi), byte(lo)))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("avr: unable to read hex image: %w", err)
	}

	return words, nil
}
