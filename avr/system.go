package avr

import (
	"fmt"
	"io"
	"os"
)

// System owns the non-volatile parts of the emulated part: program
// memory, EEPROM, and the disassembly of whatever was last flashed.
type System struct {
	ProgramMemory *ProgramMemory
	EEPROM        *EEPROM
	Disassembler  *Disassembler

	// Start is the word address flash images are written to.
	Start uint16
	// LastAddress is the address of the last flashed word; observers
	// use it to bound their listing walk.
	LastAddress uint16
}

func NewSystem() *System {
	return &System{
		ProgramMemory: NewProgramMemory(),
		EEPROM:        NewEEPROM(),
		Disassembler:  NewDisassembler(),
	}
}

// FlashWords writes a program image starting at Start and rebuilds the
// disassembly over the affected range. The caller must not step the CPU
// while flashing.
func (s *System) FlashWords(words []uint16) error {
	for i, w := range words {
		if err := s.ProgramMemory.Write(s.Start+uint16(i), w); err != nil {
			return err
		}
	}
	end := s.Start + uint16(len(words))
	if len(words) > 0 {
		s.LastAddress = end - 1
	}
	return s.Disassembler.Disassemble(s.ProgramMemory.App, s.Start, end)
}

// FlashHex loads an Intel HEX image from path. Open and read failures
// leave the system unchanged.
func (s *System) FlashHex(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("avr: unable to open hex image: %w", err)
	}
	defer f.Close()

	return s.FlashHexFrom(f)
}

// FlashHexFrom is FlashHex over an arbitrary reader. Application flash
// is cleared before the new image is written.
func (s *System) FlashHexFrom(r io.Reader) error {
	words, err := readHex(r)
	if err != nil {
		return err
	}

	s.ProgramMemory.App.Clear()
	return s.FlashWords(words)
}
