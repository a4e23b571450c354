package main

import (
	"fmt"
	"strings"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/flga/avremu/avr"
)

type view struct {
	cpu  *widgets.Paragraph
	regs *widgets.Paragraph
	io   *widgets.Paragraph
	ram  *widgets.Paragraph
	code *widgets.Paragraph
	logp *widgets.Paragraph
	tips *widgets.Paragraph
}

func newView() *view {
	v := &view{
		cpu:  widgets.NewParagraph(),
		regs: widgets.NewParagraph(),
		io:   widgets.NewParagraph(),
		ram:  widgets.NewParagraph(),
		code: widgets.NewParagraph(),
		logp: widgets.NewParagraph(),
		tips: widgets.NewParagraph(),
	}

	v.cpu.Title = "CPU"
	v.cpu.SetRect(0, 0, 56, 8)

	v.regs.Title = "Registers"
	v.regs.SetRect(0, 8, 56, 19)

	v.io.Title = "I/O 0x20"
	v.io.SetRect(0, 19, 56, 26)

	v.ram.Title = "RAM 0x0100"
	v.ram.SetRect(0, 26, 56, 37)

	v.code.Title = "Disassembly"
	v.code.SetRect(56, 0, 100, 26)

	v.logp.Title = "Log"
	v.logp.SetRect(56, 26, 100, 37)

	v.tips.Title = "Tips"
	v.tips.SetRect(0, 37, 100, 40)

	return v
}

func (v *view) draw(c *avr.CPU, diag *logRing, stepsPerSec int) {
	renderCPU(v.cpu, c)
	renderRegisters(v.regs, c)
	renderBytes(v.io, c.SRAM.IO(), 0x0020)
	renderBytes(v.ram, c.SRAM.InternalRAM()[:128], 0x0100)
	renderCode(v.code, c)
	renderLog(v.logp, diag)
	renderTips(v.tips, stepsPerSec)

	ui.Render(v.cpu, v.regs, v.io, v.ram, v.code, v.logp, v.tips)
}

func renderCPU(p *widgets.Paragraph, c *avr.CPU) {
	sb := &strings.Builder{}

	flags := []avr.Status{
		avr.FlagI, avr.FlagT, avr.FlagH, avr.FlagS,
		avr.FlagV, avr.FlagN, avr.FlagZ, avr.FlagC,
	}
	symbols := []rune{'I', 'T', 'H', 'S', 'V', 'N', 'Z', 'C'}

	sb.WriteString("SREG: ")
	for i, f := range flags {
		color := "red"
		if c.Status.Has(f) {
			color = "green"
		}
		fmt.Fprintf(sb, "[[%c]](fg:%s) ", symbols[i], color)
	}
	sb.WriteRune('\n')
	fmt.Fprintf(sb, "PC: 0x%04X  SP: 0x%04X\n", c.PC, c.SP)
	fmt.Fprintf(sb, "Opcode: 0x%04X\n", c.Opcode)
	fmt.Fprintf(sb, "Cycles: %d", c.Cycles)

	p.Text = sb.String()
}

func renderRegisters(p *widgets.Paragraph, c *avr.CPU) {
	sb := &strings.Builder{}

	regs := c.SRAM.Registers()
	for row := 0; row < 8; row++ {
		for col := 0; col < 4; col++ {
			n := row + col*8
			fmt.Fprintf(sb, "%-3s $%02X   ", avr.RegisterName(byte(n)), regs[n])
		}
		sb.WriteRune('\n')
	}

	p.Text = sb.String()
}

func renderBytes(p *widgets.Paragraph, data []byte, base uint16) {
	sb := &strings.Builder{}

	for row := 0; row*16 < len(data); row++ {
		fmt.Fprintf(sb, "$%04X:", base+uint16(row*16))
		for col := 0; col < 16 && row*16+col < len(data); col++ {
			fmt.Fprintf(sb, " %02X", data[row*16+col])
		}
		sb.WriteRune('\n')
	}

	p.Text = sb.String()
}

func renderCode(p *widgets.Paragraph, c *avr.CPU) {
	sb := &strings.Builder{}

	dis := c.System.Disassembler
	pos := 0
	for i, addr := range dis.Index {
		if addr == c.PC {
			pos = i
			break
		}
	}

	from := pos - 6
	if from < 0 {
		from = 0
	}
	for i := from; i < len(dis.Index) && i < from+22; i++ {
		entry := dis.Listing[dis.Index[i]]
		if entry.Address == c.PC {
			fmt.Fprintf(sb, "[%s](fg:cyan)\n", entry)
		} else {
			fmt.Fprintf(sb, "%s\n", entry)
		}
	}

	p.Text = sb.String()
}

func renderLog(p *widgets.Paragraph, diag *logRing) {
	p.Text = strings.Join(diag.tail(9), "\n")
}

func renderTips(p *widgets.Paragraph, stepsPerSec int) {
	text := "SPACE = Step    G = Run/Pause    R = Reset    Q = Quit"
	if stepsPerSec > 0 {
		text += fmt.Sprintf("    %d steps/s", stepsPerSec)
	}
	p.Text = text
}
