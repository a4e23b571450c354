package avr

// registerNames maps data-space addresses 0x00-0xFF to the symbolic
// names of the ATmega328p register file and peripheral registers.
// Addresses without an assigned peripheral are "Reserved" and are left
// out of the map.
var registerNames = map[byte]string{
	0x00: "R0", 0x01: "R1", 0x02: "R2", 0x03: "R3",
	0x04: "R4", 0x05: "R5", 0x06: "R6", 0x07: "R7",
	0x08: "R8", 0x09: "R9", 0x0A: "R10", 0x0B: "R11",
	0x0C: "R12", 0x0D: "R13", 0x0E: "R14", 0x0F: "R15",
	0x10: "R16", 0x11: "R17", 0x12: "R18", 0x13: "R19",
	0x14: "R20", 0x15: "R21", 0x16: "R22", 0x17: "R23",
	0x18: "R24", 0x19: "R25",
	0x1A: "XL", 0x1B: "XH",
	0x1C: "YL", 0x1D: "YH",
	0x1E: "ZL", 0x1F: "ZH",

	0x23: "PINB", 0x24: "DDRB", 0x25: "PORTB",
	0x26: "PINC", 0x27: "DDRC", 0x28: "PORTC",
	0x29: "PIND", 0x2A: "DDRD", 0x2B: "PORTD",

	0x35: "TIFR0", 0x36: "TIFR1", 0x37: "TIFR2",
	0x3B: "PCIFR", 0x3C: "EIFR", 0x3D: "EIMSK",
	0x3E: "GPIOR0", 0x3F: "EECR", 0x40: "EEDR",
	0x41: "EEARL", 0x42: "EEARH", 0x43: "GTCCR",
	0x44: "TCCR0A", 0x45: "TCCR0B", 0x46: "TCNT0",
	0x47: "OCR0A", 0x48: "OCR0B",
	0x4A: "GPIOR1", 0x4B: "GPIOR2",
	0x4C: "SPCR", 0x4D: "SPSR", 0x4E: "SPDR",
	0x50: "ACSR",
	0x53: "SMCR", 0x54: "MCUSR", 0x55: "MCUCR",
	0x57: "SPMCSR",
	0x5D: "SPL", 0x5E: "SPH", 0x5F: "SREG",

	0x60: "WDTCSR", 0x61: "CLKPR", 0x64: "PRR",
	0x66: "OSCCAL", 0x68: "PCICR", 0x69: "EICRA",
	0x6B: "PCMSK0", 0x6C: "PCMSK1", 0x6D: "PCMSK2",
	0x6E: "TIMSK0", 0x6F: "TIMSK1", 0x70: "TIMSK2",

	0x78: "ADCL", 0x79: "ADCH", 0x7A: "ADCSRA",
	0x7B: "ADCSRB", 0x7C: "ADMUX",
	0x7E: "DIDR0", 0x7F: "DIDR1",

	0x80: "TCCR1A", 0x81: "TCCR1B", 0x82: "TCCR1C",
	0x84: "TCNT1L", 0x85: "TCNT1H",
	0x86: "ICR1L", 0x87: "ICR1H",
	0x88: "OCR1AL", 0x89: "OCR1AH",
	0x8A: "OCR1BL", 0x8B: "OCR1BH",

	0xB0: "TCCR2A", 0xB1: "TCCR2B", 0xB2: "TCNT2",
	0xB3: "OCR2A", 0xB4: "OCR2B", 0xB6: "ASSR",

	0xB8: "TWBR", 0xB9: "TWSR", 0xBA: "TWAR",
	0xBB: "TWDR", 0xBC: "TWCR", 0xBD: "TWAMR",

	0xC0: "UCSR0A", 0xC1: "UCSR0B", 0xC2: "UCSR0C",
	0xC4: "UBRR0L", 0xC5: "UBRR0H", 0xC6: "UDR0",
}

// RegisterName returns the symbolic name of a data-space address in
// [0x00, 0xFF]. Unassigned addresses are named "Reserved".
func RegisterName(addr byte) string {
	if name, ok := registerNames[addr]; ok {
		return name
	}
	return "Reserved"
}
