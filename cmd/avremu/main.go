package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	cli "gopkg.in/urfave/cli.v2"

	"github.com/flga/avremu/avr"
	"github.com/flga/avremu/cmd/internal/errors"
	"github.com/flga/avremu/cmd/internal/meter"
)

// stepsPerTick bounds how much work run mode does between repaints.
const stepsPerTick = 1000

func main() {
	app := &cli.App{
		Name:  "avremu",
		Usage: "ATmega328p instruction-set debugger",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "hex",
				Usage: "Intel HEX image to flash",
			},
			&cli.IntFlag{
				Name:  "start",
				Usage: "flash start word address",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx *cli.Context) error {
	diag := newLogRing(64)
	cpu := avr.New(diag)
	cpu.System.Start = uint16(ctx.Int("start"))

	if path := ctx.String("hex"); path != "" {
		if err := cpu.System.FlashHex(path); err != nil {
			return err
		}
	}

	if err := ui.Init(); err != nil {
		return fmt.Errorf("unable to initialize termui: %v", err)
	}
	defer ui.Close()

	v := newView()
	stepMeter := meter.New(0)
	v.draw(cpu, diag, 0)

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	events := ui.PollEvents()
	running := false
	errs := errors.NewList()

	for {
		select {
		case e := <-events:
			if e.Type != ui.KeyboardEvent {
				continue
			}
			switch e.ID {
			case "q", "Q", "<C-c>":
				return errs.Err()
			case "<Space>":
				if err := cpu.Step(); err != nil {
					errs = errs.Add(err)
					diag.append(err.Error())
				}
			case "g", "G":
				running = !running
				if running {
					stepMeter.Reset()
				}
			case "r", "R":
				cpu.Reset()
			}
			v.draw(cpu, diag, rate(stepMeter, running))
		case <-ticker.C:
			if !running {
				continue
			}
			start := time.Now()
			for i := 0; i < stepsPerTick; i++ {
				if err := cpu.Step(); err != nil {
					// an address fault halts execution
					running = false
					errs = errs.Add(err)
					diag.append(err.Error())
					break
				}
			}
			stepMeter.Record(time.Since(start))
			v.draw(cpu, diag, rate(stepMeter, running))
		}
	}
}

func rate(m *meter.Meter, running bool) int {
	if !running {
		return 0
	}
	return m.Rate() * stepsPerTick
}

// logRing keeps the tail of the core's diagnostic stream for the log
// panel. It is the CPU's debug writer.
type logRing struct {
	max   int
	lines []string
}

func newLogRing(max int) *logRing {
	return &logRing{max: max}
}

func (l *logRing) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		l.append(line)
	}
	return len(p), nil
}

func (l *logRing) append(line string) {
	l.lines = append(l.lines, line)
	if len(l.lines) > l.max {
		l.lines = l.lines[len(l.lines)-l.max:]
	}
}

func (l *logRing) tail(n int) []string {
	if len(l.lines) <= n {
		return l.lines
	}
	return l.lines[len(l.lines)-n:]
}
