package avr

import (
	"fmt"
	"io"
)

// CPU holds the architectural state of the part: program counter, stack
// pointer, status register, the data memory (whose first 32 bytes are
// the register file) and the system with program memory and EEPROM.
//
// Step is the only mutation entry point. It never blocks; continuous
// execution is the caller invoking Step in a loop.
type CPU struct {
	System *System
	SRAM   *SRAM

	// PC is the word address of the next instruction.
	PC uint16
	// SP is the data-space stack pointer; the stack grows downward.
	SP uint16
	// Status is the SREG flag vector.
	Status Status
	// Opcode is the word latched by the last fetch.
	Opcode uint16
	// Cycles counts executed cycles per the documented timings.
	Cycles uint64

	debug io.Writer
}

// New returns a CPU with zeroed state. Non-fatal diagnostics, such as
// reserved encodings, are written to debug when it is non-nil.
func New(debug io.Writer) *CPU {
	return &CPU{
		System: NewSystem(),
		SRAM:   NewSRAM(),
		debug:  debug,
	}
}

// Reset returns PC, SP and the cycle counter to zero. Memory contents
// are left intact.
func (c *CPU) Reset() {
	c.PC = 0
	c.SP = 0
	c.Cycles = 0
}

// Step fetches the word at PC, classifies it and runs the handler. The
// handler owns PC and cycle accounting, so branch, call and skip
// instructions can set PC to an arbitrary target. Address faults abort
// the step and leave the fault as the returned error.
func (c *CPU) Step() error {
	c.PC &= progMemMask

	opcode, err := c.System.ProgramMemory.Read(c.PC)
	if err != nil {
		return err
	}
	c.Opcode = opcode

	switch classify(opcode) {
	case opNop:
		c.nop()
	case opMovw:
		c.movw()
	case opMuls:
		c.muls()
	case opMulsu:
		c.mulsu()
	case opFmul:
		c.fmul()
	case opFmuls:
		c.fmuls()
	case opFmulsu:
		c.fmulsu()
	case opCpc:
		c.cpc()
	case opSbc:
		c.sbc()
	case opAdd:
		c.add()
	case opCpse:
		return c.cpse()
	case opCp:
		c.cp()
	case opSub:
		c.sub()
	case opAdc:
		c.adc()
	case opAnd:
		c.and()
	case opEor:
		c.eor()
	case opOr:
		c.or()
	case opMov:
		c.mov()
	case opCpi:
		c.cpi()
	case opSbci:
		c.sbci()
	case opSubi:
		c.subi()
	case opOri:
		c.ori()
	case opAndi:
		c.andi()
	case opLdd:
		return c.ldd()
	case opStd:
		return c.std()
	case opLds:
		return c.lds()
	case opLdZInc:
		return c.ld(ptrZ, +1)
	case opLdZDec:
		return c.ld(ptrZ, -1)
	case opLpmZ:
		return c.lpm(destOnly(opcode), false)
	case opLpmZInc:
		return c.lpm(destOnly(opcode), true)
	case opLdYInc:
		return c.ld(ptrY, +1)
	case opLdYDec:
		return c.ld(ptrY, -1)
	case opLdX:
		return c.ld(ptrX, 0)
	case opLdXInc:
		return c.ld(ptrX, +1)
	case opLdXDec:
		return c.ld(ptrX, -1)
	case opPop:
		return c.pop()
	case opSts:
		return c.sts()
	case opStZInc:
		return c.st(ptrZ, +1)
	case opStZDec:
		return c.st(ptrZ, -1)
	case opStYInc:
		return c.st(ptrY, +1)
	case opStYDec:
		return c.st(ptrY, -1)
	case opStX:
		return c.st(ptrX, 0)
	case opStXInc:
		return c.st(ptrX, +1)
	case opStXDec:
		return c.st(ptrX, -1)
	case opPush:
		return c.push()
	case opCom:
		c.com()
	case opNeg:
		c.neg()
	case opSwap:
		c.swap()
	case opInc:
		c.inc()
	case opAsr:
		c.asr()
	case opLsr:
		c.lsr()
	case opRor:
		c.ror()
	case opBset:
		c.bset()
	case opBclr:
		c.bclr()
	case opIjmp:
		c.ijmp()
	case opIcall:
		return c.icall()
	case opDec:
		c.dec()
	case opDes:
		c.des()
	case opJmp:
		return c.jmp()
	case opCall:
		return c.call()
	case opRet:
		return c.ret()
	case opReti:
		return c.reti()
	case opSleep:
		c.sleep()
	case opBreak:
		c.brk()
	case opWdr:
		c.wdr()
	case opLpm:
		return c.lpm(0, false)
	case opSpm:
		c.spm()
	case opAdiw:
		c.adiw()
	case opSbiw:
		c.sbiw()
	case opCbi:
		return c.cbi()
	case opSbic:
		return c.sbic()
	case opSbi:
		return c.sbi()
	case opSbis:
		return c.sbis()
	case opMul:
		c.mul()
	case opIn:
		return c.in()
	case opOut:
		return c.out()
	case opRjmp:
		c.rjmp()
	case opRcall:
		return c.rcall()
	case opLdi:
		c.ldi()
	case opBrbs:
		c.brbs()
	case opBrbc:
		c.brbc()
	case opBld:
		c.bld()
	case opBst:
		c.bst()
	case opSbrc:
		return c.sbrc()
	case opSbrs:
		return c.sbrs()
	default:
		c.reserved()
	}

	return nil
}

// advance moves PC forward and bills cycles. PC wraps within program
// memory.
func (c *CPU) advance(words uint16, cycles uint64) {
	c.PC = (c.PC + words) & progMemMask
	c.Cycles += cycles
}

// jump sets PC to an absolute word target and bills cycles.
func (c *CPU) jump(target uint16, cycles uint64) {
	c.PC = target & progMemMask
	c.Cycles += cycles
}

// peek reads a program word relative to PC without latching it.
func (c *CPU) peek(off uint16) (uint16, error) {
	return c.System.ProgramMemory.Read((c.PC + off) & progMemMask)
}

func (c *CPU) carry() byte {
	if c.Status.C() {
		return 1
	}
	return 0
}

// addFlags derives H, V, N, S, Z and C from the addition trio
// (Rd, Rr, R).
func (c *CPU) addFlags(rd, rr, res byte) {
	c.Status.set(FlagH, (rd&rr|rr&^res|rd&^res)&0x08 != 0)
	c.Status.set(FlagV, (rd&rr&^res|res&^rd&^rr)&0x80 != 0)
	c.Status.set(FlagN, res&0x80 != 0)
	c.Status.set(FlagS, c.Status.N() != c.Status.V())
	c.Status.set(FlagZ, res == 0)
	c.Status.set(FlagC, (rd&rr|rr&^res|rd&^res)&0x80 != 0)
}

// subFlags derives the flags for the subtraction family. With keepZ the
// zero flag is only ever cleared, which is what lets CPC and SBC chain
// multi-byte compares.
func (c *CPU) subFlags(rd, rr, res byte, keepZ bool) {
	c.Status.set(FlagH, (rr&^rd|rr&res|res&^rd)&0x08 != 0)
	c.Status.set(FlagV, (rd&^rr&^res|rr&res&^rd)&0x80 != 0)
	c.Status.set(FlagN, res&0x80 != 0)
	c.Status.set(FlagS, c.Status.N() != c.Status.V())
	if keepZ {
		c.Status.set(FlagZ, res == 0 && c.Status.Z())
	} else {
		c.Status.set(FlagZ, res == 0)
	}
	c.Status.set(FlagC, (rr&^rd|rr&res|res&^rd)&0x80 != 0)
}

// logicFlags derives the flags for AND, OR, EOR and their immediate
// forms. C and H are untouched.
func (c *CPU) logicFlags(res byte) {
	c.Status.set(FlagV, false)
	c.Status.set(FlagN, res&0x80 != 0)
	c.Status.set(FlagS, c.Status.N())
	c.Status.set(FlagZ, res == 0)
}

// Arithmetic and logic

// 0000 11rd dddd rrrr
func (c *CPU) add() {
	d, r := destSrc(c.Opcode)
	rd, rr := c.SRAM.Reg(d), c.SRAM.Reg(r)
	res := rd + rr
	c.addFlags(rd, rr, res)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 0001 11rd dddd rrrr
func (c *CPU) adc() {
	d, r := destSrc(c.Opcode)
	rd, rr := c.SRAM.Reg(d), c.SRAM.Reg(r)
	res := rd + rr + c.carry()
	c.addFlags(rd, rr, res)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 1001 0110 KKdd KKKK
func (c *CPU) adiw() {
	d, k := wordPair(c.Opcode)
	rdh := c.SRAM.Reg(d + 1)
	rd := toWord(rdh, c.SRAM.Reg(d))
	res := rd + uint16(k)
	c.SRAM.SetReg(d, lowByte(res))
	c.SRAM.SetReg(d+1, highByte(res))
	c.Status.set(FlagV, res&0x8000 != 0 && rdh&0x80 == 0)
	c.Status.set(FlagN, res&0x8000 != 0)
	c.Status.set(FlagS, c.Status.N() != c.Status.V())
	c.Status.set(FlagZ, res == 0)
	c.Status.set(FlagC, res&0x8000 == 0 && rdh&0x80 != 0)
	c.advance(1, 2)
}

// 1001 0111 KKdd KKKK
func (c *CPU) sbiw() {
	d, k := wordPair(c.Opcode)
	rdh := c.SRAM.Reg(d + 1)
	rd := toWord(rdh, c.SRAM.Reg(d))
	res := rd - uint16(k)
	c.SRAM.SetReg(d, lowByte(res))
	c.SRAM.SetReg(d+1, highByte(res))
	c.Status.set(FlagV, res&0x8000 == 0 && rdh&0x80 != 0)
	c.Status.set(FlagN, res&0x8000 != 0)
	c.Status.set(FlagS, c.Status.N() != c.Status.V())
	c.Status.set(FlagZ, res == 0)
	c.Status.set(FlagC, res&0x8000 != 0 && rdh&0x80 == 0)
	c.advance(1, 2)
}

// 0001 10rd dddd rrrr
func (c *CPU) sub() {
	d, r := destSrc(c.Opcode)
	rd, rr := c.SRAM.Reg(d), c.SRAM.Reg(r)
	res := rd - rr
	c.subFlags(rd, rr, res, false)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 0101 KKKK dddd KKKK
func (c *CPU) subi() {
	d, k := destImm(c.Opcode)
	rd := c.SRAM.Reg(d)
	res := rd - k
	c.subFlags(rd, k, res, false)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 0000 10rd dddd rrrr
func (c *CPU) sbc() {
	d, r := destSrc(c.Opcode)
	rd, rr := c.SRAM.Reg(d), c.SRAM.Reg(r)
	res := rd - rr - c.carry()
	c.subFlags(rd, rr, res, true)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 0100 KKKK dddd KKKK
func (c *CPU) sbci() {
	d, k := destImm(c.Opcode)
	rd := c.SRAM.Reg(d)
	res := rd - k - c.carry()
	c.subFlags(rd, k, res, true)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 0001 01rd dddd rrrr
func (c *CPU) cp() {
	d, r := destSrc(c.Opcode)
	c.subFlags(c.SRAM.Reg(d), c.SRAM.Reg(r), c.SRAM.Reg(d)-c.SRAM.Reg(r), false)
	c.advance(1, 1)
}

// 0000 01rd dddd rrrr
func (c *CPU) cpc() {
	d, r := destSrc(c.Opcode)
	rd, rr := c.SRAM.Reg(d), c.SRAM.Reg(r)
	c.subFlags(rd, rr, rd-rr-c.carry(), true)
	c.advance(1, 1)
}

// 0011 KKKK dddd KKKK
func (c *CPU) cpi() {
	d, k := destImm(c.Opcode)
	rd := c.SRAM.Reg(d)
	c.subFlags(rd, k, rd-k, false)
	c.advance(1, 1)
}

// 0010 00rd dddd rrrr
func (c *CPU) and() {
	d, r := destSrc(c.Opcode)
	res := c.SRAM.Reg(d) & c.SRAM.Reg(r)
	c.logicFlags(res)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 0111 KKKK dddd KKKK
func (c *CPU) andi() {
	d, k := destImm(c.Opcode)
	res := c.SRAM.Reg(d) & k
	c.logicFlags(res)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 0010 10rd dddd rrrr
func (c *CPU) or() {
	d, r := destSrc(c.Opcode)
	res := c.SRAM.Reg(d) | c.SRAM.Reg(r)
	c.logicFlags(res)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 0110 KKKK dddd KKKK
func (c *CPU) ori() {
	d, k := destImm(c.Opcode)
	res := c.SRAM.Reg(d) | k
	c.logicFlags(res)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 0010 01rd dddd rrrr
func (c *CPU) eor() {
	d, r := destSrc(c.Opcode)
	res := c.SRAM.Reg(d) ^ c.SRAM.Reg(r)
	c.logicFlags(res)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 1001 010d dddd 0000
func (c *CPU) com() {
	d := destOnly(c.Opcode)
	res := ^c.SRAM.Reg(d)
	c.Status.set(FlagV, false)
	c.Status.set(FlagN, res&0x80 != 0)
	c.Status.set(FlagS, c.Status.N())
	c.Status.set(FlagZ, res == 0)
	c.Status.set(FlagC, true)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 1001 010d dddd 0001
func (c *CPU) neg() {
	d := destOnly(c.Opcode)
	rd := c.SRAM.Reg(d)
	res := 0 - rd
	c.Status.set(FlagH, (res|rd)&0x08 != 0)
	c.Status.set(FlagV, res == 0x80)
	c.Status.set(FlagN, res&0x80 != 0)
	c.Status.set(FlagS, c.Status.N() != c.Status.V())
	c.Status.set(FlagZ, res == 0)
	c.Status.set(FlagC, res != 0)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 1001 010d dddd 0011
func (c *CPU) inc() {
	d := destOnly(c.Opcode)
	res := c.SRAM.Reg(d) + 1
	c.Status.set(FlagV, res == 0x80)
	c.Status.set(FlagN, res&0x80 != 0)
	c.Status.set(FlagS, c.Status.N() != c.Status.V())
	c.Status.set(FlagZ, res == 0)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 1001 010d dddd 1010
func (c *CPU) dec() {
	d := destOnly(c.Opcode)
	res := c.SRAM.Reg(d) - 1
	c.Status.set(FlagV, res == 0x7F)
	c.Status.set(FlagN, res&0x80 != 0)
	c.Status.set(FlagS, c.Status.N() != c.Status.V())
	c.Status.set(FlagZ, res == 0)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 1001 010d dddd 0010
func (c *CPU) swap() {
	d := destOnly(c.Opcode)
	rd := c.SRAM.Reg(d)
	c.SRAM.SetReg(d, rd<<4|rd>>4)
	c.advance(1, 1)
}

// 1001 010d dddd 0101
func (c *CPU) asr() {
	d := destOnly(c.Opcode)
	rd := c.SRAM.Reg(d)
	res := rd>>1 | rd&0x80
	c.Status.set(FlagC, rd&0x01 != 0)
	c.Status.set(FlagN, res&0x80 != 0)
	c.Status.set(FlagV, c.Status.N() != c.Status.C())
	c.Status.set(FlagS, c.Status.N() != c.Status.V())
	c.Status.set(FlagZ, res == 0)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 1001 010d dddd 0110
func (c *CPU) lsr() {
	d := destOnly(c.Opcode)
	rd := c.SRAM.Reg(d)
	res := rd >> 1
	c.Status.set(FlagC, rd&0x01 != 0)
	c.Status.set(FlagN, false)
	c.Status.set(FlagV, c.Status.C())
	c.Status.set(FlagS, c.Status.V())
	c.Status.set(FlagZ, res == 0)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 1001 010d dddd 0111
func (c *CPU) ror() {
	d := destOnly(c.Opcode)
	rd := c.SRAM.Reg(d)
	res := rd >> 1
	if c.Status.C() {
		res |= 0x80
	}
	c.Status.set(FlagC, rd&0x01 != 0)
	c.Status.set(FlagN, res&0x80 != 0)
	c.Status.set(FlagV, c.Status.N() != c.Status.C())
	c.Status.set(FlagS, c.Status.N() != c.Status.V())
	c.Status.set(FlagZ, res == 0)
	c.SRAM.SetReg(d, res)
	c.advance(1, 1)
}

// 1001 11rd dddd rrrr
//
// The product lands in R1:R0 regardless of the operands.
func (c *CPU) mul() {
	d, r := destSrc(c.Opcode)
	p := uint16(c.SRAM.Reg(d)) * uint16(c.SRAM.Reg(r))
	c.SRAM.SetReg(0, lowByte(p))
	c.SRAM.SetReg(1, highByte(p))
	c.Status.set(FlagC, p&0x8000 != 0)
	c.Status.set(FlagZ, p == 0)
	c.advance(1, 2)
}

// 0000 0010 dddd rrrr
func (c *CPU) muls() {
	d, r := mulsPair(c.Opcode)
	p := uint16(int16(int8(c.SRAM.Reg(d))) * int16(int8(c.SRAM.Reg(r))))
	c.SRAM.SetReg(0, lowByte(p))
	c.SRAM.SetReg(1, highByte(p))
	c.Status.set(FlagC, p&0x8000 != 0)
	c.Status.set(FlagZ, p == 0)
	c.advance(1, 2)
}

// 0000 0011 0ddd 0rrr
func (c *CPU) mulsu() {
	d, r := mulsuPair(c.Opcode)
	p := uint16(int16(int8(c.SRAM.Reg(d))) * int16(c.SRAM.Reg(r)))
	c.SRAM.SetReg(0, lowByte(p))
	c.SRAM.SetReg(1, highByte(p))
	c.Status.set(FlagC, p&0x8000 != 0)
	c.Status.set(FlagZ, p == 0)
	c.advance(1, 2)
}

// 0000 0011 0ddd 1rrr
//
// The fractional forms shift the product left one bit; C is the bit
// shifted out.
func (c *CPU) fmul() {
	d, r := mulsuPair(c.Opcode)
	p := uint16(c.SRAM.Reg(d)) * uint16(c.SRAM.Reg(r))
	c.Status.set(FlagC, p&0x8000 != 0)
	p <<= 1
	c.Status.set(FlagZ, p == 0)
	c.SRAM.SetReg(0, lowByte(p))
	c.SRAM.SetReg(1, highByte(p))
	c.advance(1, 2)
}

// 0000 0011 1ddd 0rrr
func (c *CPU) fmuls() {
	d, r := mulsuPair(c.Opcode)
	p := uint16(int16(int8(c.SRAM.Reg(d))) * int16(int8(c.SRAM.Reg(r))))
	c.Status.set(FlagC, p&0x8000 != 0)
	p <<= 1
	c.Status.set(FlagZ, p == 0)
	c.SRAM.SetReg(0, lowByte(p))
	c.SRAM.SetReg(1, highByte(p))
	c.advance(1, 2)
}

// 0000 0011 1ddd 1rrr
func (c *CPU) fmulsu() {
	d, r := mulsuPair(c.Opcode)
	p := uint16(int16(int8(c.SRAM.Reg(d))) * int16(c.SRAM.Reg(r)))
	c.Status.set(FlagC, p&0x8000 != 0)
	p <<= 1
	c.Status.set(FlagZ, p == 0)
	c.SRAM.SetReg(0, lowByte(p))
	c.SRAM.SetReg(1, highByte(p))
	c.advance(1, 2)
}

// Control flow

// 1100 kkkk kkkk kkkk
func (c *CPU) rjmp() {
	k := relative12(c.Opcode)
	c.jump(c.PC+1+uint16(k), 2)
}

// 1101 kkkk kkkk kkkk
func (c *CPU) rcall() error {
	k := relative12(c.Opcode)
	if err := c.pushAddress(c.PC + 1); err != nil {
		return err
	}
	c.jump(c.PC+1+uint16(k), 3)
	return nil
}

// 1001 010k kkkk 110k + 16-bit word
func (c *CPU) jmp() error {
	next, err := c.peek(1)
	if err != nil {
		return err
	}
	c.jump(uint16(longTarget(c.Opcode, next)), 3)
	return nil
}

// 1001 010k kkkk 111k + 16-bit word
func (c *CPU) call() error {
	next, err := c.peek(1)
	if err != nil {
		return err
	}
	if err := c.pushAddress(c.PC + 2); err != nil {
		return err
	}
	c.jump(uint16(longTarget(c.Opcode, next)), 4)
	return nil
}

// 1001 0100 0000 1001
func (c *CPU) ijmp() {
	c.jump(c.SRAM.Z(), 2)
}

// 1001 0101 0000 1001
func (c *CPU) icall() error {
	if err := c.pushAddress(c.PC + 1); err != nil {
		return err
	}
	c.jump(c.SRAM.Z(), 3)
	return nil
}

// 1001 0101 0000 1000
func (c *CPU) ret() error {
	addr, err := c.pullAddress()
	if err != nil {
		return err
	}
	c.jump(addr, 4)
	return nil
}

// 1001 0101 0001 1000
func (c *CPU) reti() error {
	addr, err := c.pullAddress()
	if err != nil {
		return err
	}
	c.Status.set(FlagI, true)
	c.jump(addr, 4)
	return nil
}

// 1111 0Bkk kkkk kbbb, branch when SREG bit b is set (B=0) or clear
// (B=1). Taken branches cost an extra cycle.
func (c *CPU) brbs() {
	b, k := branchOperand(c.Opcode)
	if c.Status.Has(Status(1) << b) {
		c.jump(c.PC+1+uint16(int16(k)), 2)
	} else {
		c.advance(1, 1)
	}
}

func (c *CPU) brbc() {
	b, k := branchOperand(c.Opcode)
	if !c.Status.Has(Status(1) << b) {
		c.jump(c.PC+1+uint16(int16(k)), 2)
	} else {
		c.advance(1, 1)
	}
}

// skip hops over the next instruction. The peeked word is only
// classified for its size, never executed; a two-word successor costs
// the extra word and cycle.
func (c *CPU) skip() error {
	next, err := c.peek(1)
	if err != nil {
		return err
	}
	n := wordCount(classify(next))
	c.advance(1+n, uint64(1+n))
	return nil
}

// 0001 00rd dddd rrrr
func (c *CPU) cpse() error {
	d, r := destSrc(c.Opcode)
	if c.SRAM.Reg(d) == c.SRAM.Reg(r) {
		return c.skip()
	}
	c.advance(1, 1)
	return nil
}

// 1111 110d dddd 0bbb
func (c *CPU) sbrc() error {
	d, b := regBit(c.Opcode)
	if !bit(c.SRAM.Reg(d), uint(b)) {
		return c.skip()
	}
	c.advance(1, 1)
	return nil
}

// 1111 111d dddd 0bbb
func (c *CPU) sbrs() error {
	d, b := regBit(c.Opcode)
	if bit(c.SRAM.Reg(d), uint(b)) {
		return c.skip()
	}
	c.advance(1, 1)
	return nil
}

// 1001 1001 AAAA Abbb
func (c *CPU) sbic() error {
	a, b := ioBit(c.Opcode)
	v, err := c.SRAM.Read(ioBase + uint16(a))
	if err != nil {
		return err
	}
	if !bit(byte(v), uint(b)) {
		return c.skip()
	}
	c.advance(1, 1)
	return nil
}

// 1001 1011 AAAA Abbb
func (c *CPU) sbis() error {
	a, b := ioBit(c.Opcode)
	v, err := c.SRAM.Read(ioBase + uint16(a))
	if err != nil {
		return err
	}
	if bit(byte(v), uint(b)) {
		return c.skip()
	}
	c.advance(1, 1)
	return nil
}

// Bit and bit-test

// 1001 1000 AAAA Abbb
func (c *CPU) cbi() error {
	a, b := ioBit(c.Opcode)
	addr := ioBase + uint16(a)
	v, err := c.SRAM.Read(addr)
	if err != nil {
		return err
	}
	if err := c.SRAM.Write(addr, v&^(1<<b)); err != nil {
		return err
	}
	c.advance(1, 2)
	return nil
}

// 1001 1010 AAAA Abbb
func (c *CPU) sbi() error {
	a, b := ioBit(c.Opcode)
	addr := ioBase + uint16(a)
	v, err := c.SRAM.Read(addr)
	if err != nil {
		return err
	}
	if err := c.SRAM.Write(addr, v|1<<b); err != nil {
		return err
	}
	c.advance(1, 2)
	return nil
}

// 1111 100d dddd 0bbb
func (c *CPU) bld() {
	d, b := regBit(c.Opcode)
	rd := c.SRAM.Reg(d)
	if c.Status.T() {
		rd |= 1 << b
	} else {
		rd &^= 1 << b
	}
	c.SRAM.SetReg(d, rd)
	c.advance(1, 1)
}

// 1111 101d dddd 0bbb
func (c *CPU) bst() {
	d, b := regBit(c.Opcode)
	c.Status.set(FlagT, bit(c.SRAM.Reg(d), uint(b)))
	c.advance(1, 1)
}

// 1001 0100 0sss 1000, sec through sei
func (c *CPU) bset() {
	s := byte(c.Opcode >> 4 & 0x7)
	c.Status.set(Status(1)<<s, true)
	c.advance(1, 1)
}

// 1001 0100 1sss 1000, clc through cli
func (c *CPU) bclr() {
	s := byte(c.Opcode >> 4 & 0x7)
	c.Status.set(Status(1)<<s, false)
	c.advance(1, 1)
}

// Data transfer

// 0010 11rd dddd rrrr
func (c *CPU) mov() {
	d, r := destSrc(c.Opcode)
	c.SRAM.SetReg(d, c.SRAM.Reg(r))
	c.advance(1, 1)
}

// 0000 0001 dddd rrrr, moves an even register pair
func (c *CPU) movw() {
	d, r := movwPair(c.Opcode)
	c.SRAM.SetReg(d, c.SRAM.Reg(r))
	c.SRAM.SetReg(d+1, c.SRAM.Reg(r+1))
	c.advance(1, 1)
}

// 1110 KKKK dddd KKKK
func (c *CPU) ldi() {
	d, k := destImm(c.Opcode)
	c.SRAM.SetReg(d, k)
	c.advance(1, 1)
}

type ptrReg int

const (
	ptrX ptrReg = iota
	ptrY
	ptrZ
)

func (s *SRAM) pointer(p ptrReg) uint16 {
	switch p {
	case ptrX:
		return s.X()
	case ptrY:
		return s.Y()
	default:
		return s.Z()
	}
}

func (s *SRAM) setPointer(p ptrReg, v uint16) {
	switch p {
	case ptrX:
		s.SetX(v)
	case ptrY:
		s.SetY(v)
	default:
		s.SetZ(v)
	}
}

// ld covers the indirect loads through X, Y and Z. delta +1 increments
// the pointer after the access, -1 decrements it before.
func (c *CPU) ld(p ptrReg, delta int) error {
	d := destOnly(c.Opcode)
	addr := c.SRAM.pointer(p)
	if delta < 0 {
		addr--
	}
	v, err := c.SRAM.Read(addr)
	if err != nil {
		return err
	}
	c.SRAM.SetReg(d, byte(v))
	switch delta {
	case +1:
		c.SRAM.setPointer(p, addr+1)
	case -1:
		c.SRAM.setPointer(p, addr)
	}
	c.advance(1, 2)
	return nil
}

// st covers the indirect stores through X, Y and Z.
func (c *CPU) st(p ptrReg, delta int) error {
	d := destOnly(c.Opcode)
	addr := c.SRAM.pointer(p)
	if delta < 0 {
		addr--
	}
	if err := c.SRAM.Write(addr, uint16(c.SRAM.Reg(d))); err != nil {
		return err
	}
	switch delta {
	case +1:
		c.SRAM.setPointer(p, addr+1)
	case -1:
		c.SRAM.setPointer(p, addr)
	}
	c.advance(1, 2)
	return nil
}

// 10q0 qq0d dddd yqqq
func (c *CPU) ldd() error {
	d, q, y := displaced(c.Opcode)
	base := c.SRAM.Z()
	if y {
		base = c.SRAM.Y()
	}
	v, err := c.SRAM.Read(base + uint16(q))
	if err != nil {
		return err
	}
	c.SRAM.SetReg(d, byte(v))
	c.advance(1, 2)
	return nil
}

// 10q0 qq1d dddd yqqq
func (c *CPU) std() error {
	d, q, y := displaced(c.Opcode)
	base := c.SRAM.Z()
	if y {
		base = c.SRAM.Y()
	}
	if err := c.SRAM.Write(base+uint16(q), uint16(c.SRAM.Reg(d))); err != nil {
		return err
	}
	c.advance(1, 2)
	return nil
}

// 1001 000d dddd 0000 + 16-bit address
func (c *CPU) lds() error {
	d := destOnly(c.Opcode)
	addr, err := c.peek(1)
	if err != nil {
		return err
	}
	v, err := c.SRAM.Read(addr)
	if err != nil {
		return err
	}
	c.SRAM.SetReg(d, byte(v))
	c.advance(2, 2)
	return nil
}

// 1001 001d dddd 0000 + 16-bit address
func (c *CPU) sts() error {
	d := destOnly(c.Opcode)
	addr, err := c.peek(1)
	if err != nil {
		return err
	}
	if err := c.SRAM.Write(addr, uint16(c.SRAM.Reg(d))); err != nil {
		return err
	}
	c.advance(2, 2)
	return nil
}

// lpm reads program memory at Z; the low bit of Z selects the low or
// high byte of the word.
func (c *CPU) lpm(d byte, inc bool) error {
	z := c.SRAM.Z()
	w, err := c.System.ProgramMemory.Read(z >> 1 & progMemMask)
	if err != nil {
		return err
	}
	v := lowByte(w)
	if z&1 != 0 {
		v = highByte(w)
	}
	c.SRAM.SetReg(d, v)
	if inc {
		c.SRAM.SetZ(z + 1)
	}
	c.advance(1, 3)
	return nil
}

// 1011 0AAd dddd AAAA
func (c *CPU) in() error {
	a, d := ioOperand(c.Opcode)
	v, err := c.SRAM.Read(ioBase + uint16(a))
	if err != nil {
		return err
	}
	c.SRAM.SetReg(d, byte(v))
	c.advance(1, 1)
	return nil
}

// 1011 1AAr rrrr AAAA
func (c *CPU) out() error {
	a, d := ioOperand(c.Opcode)
	if err := c.SRAM.Write(ioBase+uint16(a), uint16(c.SRAM.Reg(d))); err != nil {
		return err
	}
	c.advance(1, 1)
	return nil
}

// stackPush writes at SP then decrements; stackPull is its inverse.
func (c *CPU) stackPush(v byte) error {
	if err := c.SRAM.Write(c.SP, uint16(v)); err != nil {
		return err
	}
	c.SP--
	return nil
}

func (c *CPU) stackPull() (byte, error) {
	c.SP++
	v, err := c.SRAM.Read(c.SP)
	return byte(v), err
}

// pushAddress pushes a return address, high byte first.
func (c *CPU) pushAddress(v uint16) error {
	if err := c.stackPush(highByte(v)); err != nil {
		return err
	}
	return c.stackPush(lowByte(v))
}

func (c *CPU) pullAddress() (uint16, error) {
	lo, err := c.stackPull()
	if err != nil {
		return 0, err
	}
	hi, err := c.stackPull()
	if err != nil {
		return 0, err
	}
	return toWord(hi, lo), nil
}

// 1001 001d dddd 1111
func (c *CPU) push() error {
	d := destOnly(c.Opcode)
	if err := c.stackPush(c.SRAM.Reg(d)); err != nil {
		return err
	}
	c.advance(1, 2)
	return nil
}

// 1001 000d dddd 1111
func (c *CPU) pop() error {
	d := destOnly(c.Opcode)
	v, err := c.stackPull()
	if err != nil {
		return err
	}
	c.SRAM.SetReg(d, v)
	c.advance(1, 2)
	return nil
}

// MCU control

func (c *CPU) nop() {
	c.advance(1, 1)
}

func (c *CPU) sleep() {
	c.advance(1, 1)
}

func (c *CPU) wdr() {
	c.advance(1, 1)
}

func (c *CPU) brk() {
	c.advance(1, 1)
}

// spm advances only; self-programming is not modeled.
func (c *CPU) spm() {
	c.advance(1, 1)
}

// des advances only; the encoding exists in the decode space but the
// part has no DES engine.
func (c *CPU) des() {
	c.advance(1, 1)
}

// reserved handles encodings with no defined meaning: one word, one
// cycle, and a diagnostic.
func (c *CPU) reserved() {
	if c.debug != nil {
		fmt.Fprintf(c.debug, "avr: reserved opcode 0x%04X at 0x%04X\n", c.Opcode, c.PC)
	}
	c.advance(1, 1)
}
