package avr

import "testing"

func TestBits(t *testing.T) {
	if got := toWord(0xAB, 0xCD); got != 0xABCD {
		t.Errorf("toWord = 0x%04X", got)
	}
	if lowByte(0xABCD) != 0xCD || highByte(0xABCD) != 0xAB {
		t.Error("unexpected byte halves")
	}
	if lowNibble(0xA5) != 0x5 || highNibble(0xA5) != 0xA {
		t.Error("unexpected nibble halves")
	}
	if !bit(0x04, 2) || bit(0x04, 3) {
		t.Error("unexpected bit extraction")
	}
	if !bit16(0x8000, 15) || bit16(0x8000, 0) {
		t.Error("unexpected word bit extraction")
	}
}
