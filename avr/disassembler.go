package avr

import "fmt"

// Reserved is the listing marker for encodings with no defined meaning.
const Reserved = "[R]"

// Entry is one disassembled program word.
type Entry struct {
	Address  uint16
	Opcode   uint16
	Mnemonic string
	Operands string
}

func (e Entry) String() string {
	if e.Operands == "" {
		return fmt.Sprintf("0x%04X  0x%04X  %s", e.Address, e.Opcode, e.Mnemonic)
	}
	return fmt.Sprintf("0x%04X  0x%04X  %s %s", e.Address, e.Opcode, e.Mnemonic, e.Operands)
}

// Disassembler turns application flash into an address-ordered symbolic
// listing. It runs the exact classifier the CPU executes with, so the
// two views of an opcode cannot drift apart.
type Disassembler struct {
	Listing map[uint16]Entry
	Index   []uint16
}

func NewDisassembler() *Disassembler {
	return &Disassembler{}
}

// Disassemble rebuilds the listing over [start, end). Every address
// gets an entry; the trailing word of a two-word instruction is listed
// on its own bits.
func (d *Disassembler) Disassemble(app *AppFlash, start, end uint16) error {
	listing := make(map[uint16]Entry, int(end-start))
	index := make([]uint16, 0, int(end-start))

	for addr := start; addr < end; addr++ {
		opcode, err := app.Read(addr)
		if err != nil {
			return err
		}

		// operand word of jmp/call/lds/sts, when one exists
		var next uint16
		if _, flashEnd := app.AddressRange(); addr+1 < flashEnd {
			next, _ = app.Read(addr + 1)
		}

		mnemonic, operands := decodeEntry(opcode, next)
		listing[addr] = Entry{
			Address:  addr,
			Opcode:   opcode,
			Mnemonic: mnemonic,
			Operands: operands,
		}
		index = append(index, addr)
	}

	d.Listing = listing
	d.Index = index
	return nil
}

var twoRegNames = map[op]string{
	opCpc:  "cpc",
	opSbc:  "sbc",
	opAdd:  "add",
	opCpse: "cpse",
	opCp:   "cp",
	opSub:  "sub",
	opAdc:  "adc",
	opAnd:  "and",
	opEor:  "eor",
	opOr:   "or",
	opMov:  "mov",
	opMul:  "mul",
}

var regImmNames = map[op]string{
	opCpi:  "cpi",
	opSbci: "sbci",
	opSubi: "subi",
	opOri:  "ori",
	opAndi: "andi",
	opLdi:  "ldi",
}

var oneRegNames = map[op]string{
	opCom:  "com",
	opNeg:  "neg",
	opSwap: "swap",
	opInc:  "inc",
	opAsr:  "asr",
	opLsr:  "lsr",
	opRor:  "ror",
	opDec:  "dec",
	opPush: "push",
	opPop:  "pop",
}

var bareNames = map[op]string{
	opNop:   "nop",
	opIjmp:  "ijmp",
	opIcall: "icall",
	opRet:   "ret",
	opReti:  "reti",
	opSleep: "sleep",
	opBreak: "break",
	opWdr:   "wdr",
	opLpm:   "lpm",
	opSpm:   "spm",
}

var (
	branchSetNames   = [8]string{"brcs", "breq", "brmi", "brvs", "brlt", "brhs", "brts", "brie"}
	branchClearNames = [8]string{"brcc", "brne", "brpl", "brvc", "brge", "brhc", "brtc", "brid"}
	flagSetNames     = [8]string{"sec", "sez", "sen", "sev", "ses", "seh", "set", "sei"}
	flagClearNames   = [8]string{"clc", "clz", "cln", "clv", "cls", "clh", "clt", "cli"}
)

// decodeEntry renders one opcode symbolically. next is the following
// program word, consumed by the two-word instructions.
func decodeEntry(opcode, next uint16) (mnemonic, operands string) {
	o := classify(opcode)

	if name, ok := twoRegNames[o]; ok {
		d, r := destSrc(opcode)
		return name, twoReg(d, r)
	}
	if name, ok := regImmNames[o]; ok {
		d, k := destImm(opcode)
		return name, regImm(d, k)
	}
	if name, ok := oneRegNames[o]; ok {
		return name, oneReg(destOnly(opcode))
	}
	if name, ok := bareNames[o]; ok {
		return name, ""
	}

	switch o {
	case opMovw:
		d, r := movwPair(opcode)
		return "movw", fmt.Sprintf("r%d:r%d, r%d:r%d", d+1, d, r+1, r)
	case opMuls:
		d, r := mulsPair(opcode)
		return "muls", twoReg(d, r)
	case opMulsu:
		d, r := mulsuPair(opcode)
		return "mulsu", twoReg(d, r)
	case opFmul:
		d, r := mulsuPair(opcode)
		return "fmul", twoReg(d, r)
	case opFmuls:
		d, r := mulsuPair(opcode)
		return "fmuls", twoReg(d, r)
	case opFmulsu:
		d, r := mulsuPair(opcode)
		return "fmulsu", twoReg(d, r)

	case opAdiw:
		d, k := wordPair(opcode)
		return "adiw", pairImm(d, k)
	case opSbiw:
		d, k := wordPair(opcode)
		return "sbiw", pairImm(d, k)

	case opBset:
		return flagSetNames[opcode>>4&0x7], ""
	case opBclr:
		return flagClearNames[opcode>>4&0x7], ""

	case opDes:
		return "des", fmt.Sprintf("0x%X", desRound(opcode))

	case opJmp:
		return "jmp", fmt.Sprintf("0x%04X", longTarget(opcode, next))
	case opCall:
		return "call", fmt.Sprintf("0x%04X", longTarget(opcode, next))
	case opRjmp:
		return "rjmp", fmt.Sprintf(".%+d", relative12(opcode))
	case opRcall:
		return "rcall", fmt.Sprintf(".%+d", relative12(opcode))

	case opBrbs:
		b, k := branchOperand(opcode)
		return branchSetNames[b], fmt.Sprintf(".%+d", k)
	case opBrbc:
		b, k := branchOperand(opcode)
		return branchClearNames[b], fmt.Sprintf(".%+d", k)

	case opBld, opBst, opSbrc, opSbrs:
		d, b := regBit(opcode)
		name := map[op]string{opBld: "bld", opBst: "bst", opSbrc: "sbrc", opSbrs: "sbrs"}[o]
		return name, fmt.Sprintf("r%d, %d", d, b)

	case opCbi, opSbic, opSbi, opSbis:
		a, b := ioBit(opcode)
		name := map[op]string{opCbi: "cbi", opSbic: "sbic", opSbi: "sbi", opSbis: "sbis"}[o]
		return name, fmt.Sprintf("0x%02X [%d], %d", a, a, b)

	case opIn:
		a, d := ioOperand(opcode)
		return "in", fmt.Sprintf("r%d, 0x%02X [%d]", d, a, a)
	case opOut:
		a, d := ioOperand(opcode)
		return "out", fmt.Sprintf("0x%02X [%d], r%d", a, a, d)

	case opLds:
		return "lds", fmt.Sprintf("r%d, 0x%04X", destOnly(opcode), next)
	case opSts:
		return "sts", fmt.Sprintf("0x%04X, r%d", next, destOnly(opcode))

	case opLdZInc:
		return "ld", fmt.Sprintf("r%d, Z+", destOnly(opcode))
	case opLdZDec:
		return "ld", fmt.Sprintf("r%d, -Z", destOnly(opcode))
	case opLdYInc:
		return "ld", fmt.Sprintf("r%d, Y+", destOnly(opcode))
	case opLdYDec:
		return "ld", fmt.Sprintf("r%d, -Y", destOnly(opcode))
	case opLdX:
		return "ld", fmt.Sprintf("r%d, X", destOnly(opcode))
	case opLdXInc:
		return "ld", fmt.Sprintf("r%d, X+", destOnly(opcode))
	case opLdXDec:
		return "ld", fmt.Sprintf("r%d, -X", destOnly(opcode))

	case opStZInc:
		return "st", fmt.Sprintf("Z+, r%d", destOnly(opcode))
	case opStZDec:
		return "st", fmt.Sprintf("-Z, r%d", destOnly(opcode))
	case opStYInc:
		return "st", fmt.Sprintf("Y+, r%d", destOnly(opcode))
	case opStYDec:
		return "st", fmt.Sprintf("-Y, r%d", destOnly(opcode))
	case opStX:
		return "st", fmt.Sprintf("X, r%d", destOnly(opcode))
	case opStXInc:
		return "st", fmt.Sprintf("X+, r%d", destOnly(opcode))
	case opStXDec:
		return "st", fmt.Sprintf("-X, r%d", destOnly(opcode))

	case opLpmZ:
		return "lpm", fmt.Sprintf("r%d, Z", destOnly(opcode))
	case opLpmZInc:
		return "lpm", fmt.Sprintf("r%d, Z+", destOnly(opcode))

	case opLdd:
		d, q, y := displaced(opcode)
		if y {
			return "ldd", fmt.Sprintf("r%d, Y+%d", d, q)
		}
		return "ldd", fmt.Sprintf("r%d, Z+%d", d, q)
	case opStd:
		d, q, y := displaced(opcode)
		if y {
			return "std", fmt.Sprintf("Y+%d, r%d", q, d)
		}
		return "std", fmt.Sprintf("Z+%d, r%d", q, d)
	}

	return Reserved, ""
}

func twoReg(d, r byte) string {
	return fmt.Sprintf("r%d, r%d", d, r)
}

func regImm(d, k byte) string {
	return fmt.Sprintf("r%d, 0x%02X [%d]", d, k, k)
}

func pairImm(d, k byte) string {
	return fmt.Sprintf("r%d:r%d, 0x%02X [%d]", d+1, d, k, k)
}

func oneReg(d byte) string {
	return fmt.Sprintf("r%d", d)
}
