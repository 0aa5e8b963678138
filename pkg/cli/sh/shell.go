// Package sh provides an interactive console for the bus.
package sh

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/instrbus/pkg/bus"
	"github.com/robotalks/instrbus/pkg/cli"
	"github.com/robotalks/instrbus/pkg/env"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	Quiet       bool

	Shell  *ishell.Shell
	Config *env.Config
	Env    *env.Env

	out    io.Writer
	cancel func()
	regs   []*bus.Registration
}

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "
)

var (
	// flags

	evalOnly bool
	quiet    bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&HeaderCmd,
		&PayloadCmd,
		&SendCmd,
		&PacketCmd,
		&EncodeCmd,
		&StatsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&quiet, "q", quiet, "Don't print received traffic.")
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Quiet:       quiet,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.out = shellWriter{s.Shell}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

type shellWriter struct {
	sh *ishell.Shell
}

func (w shellWriter) Write(p []byte) (int, error) {
	w.sh.Print(string(p))
	return len(p), nil
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an opened bus.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Env == nil {
			c.Err(fmt.Errorf("bus not opened"))
			return
		}
		fn(c)
	}
}

// Attach uses an opened bus.
func (s *Shell) Attach(e *env.Env) {
	s.Detach()
	s.Env = e
	if !s.Quiet {
		s.regs = append(s.regs,
			e.Session.OnPacket(bus.HandlePacketFunc(func(ctx context.Context, pkt *bus.Packet) {
				fmt.Fprintf(s.out, "RX %s\n", pkt)
			})),
			e.Session.OnAck(bus.HandleSignalFunc(s.printSignal)),
			e.Session.OnNack(bus.HandleSignalFunc(s.printSignal)),
			e.Session.OnDrop(bus.HandleDropFunc(func(ctx context.Context, reason bus.DropReason) {
				fmt.Fprintf(s.out, "RX dropped: %s\n", reason)
			})),
		)
	}
	s.setPrompt(fmt.Sprintf("%s > ", e.Config.Port))
}

func (s *Shell) setPrompt(prompt string) {
	if s.Shell != nil {
		s.Shell.SetPrompt(prompt)
	}
}

func (s *Shell) printSignal(ctx context.Context, sig bus.Signal) {
	fmt.Fprintf(s.out, "RX %s\n", sig)
}

// Open opens the bus and starts receiving.
func (s *Shell) Open() error {
	e, err := s.Config.NewEnv()
	if err != nil {
		return err
	}
	s.Attach(e)
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	go func() {
		if err := e.Run(ctx); err != nil && err != context.Canceled {
			fmt.Fprintf(s.out, "bus stopped: %v\n", err)
		}
	}()
	return nil
}

// Detach stops using the opened bus.
func (s *Shell) Detach() {
	for _, reg := range s.regs {
		reg.Close()
	}
	s.regs = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.Env = nil
	s.setPrompt(closedPrompt)
}

// Header starts composing a packet.
func (s *Shell) Header(args []string) error {
	pkt, err := cli.ParseHeader(args)
	if err != nil {
		return err
	}
	data, err := cli.ParseBytes(args[4:])
	if err != nil {
		return err
	}
	s.Env.Session.SetHeader(pkt.SenderCategory, pkt.SenderAddress, pkt.DestCategory, pkt.DestAddress)
	return s.Env.Session.AppendPayload(data...)
}

// Payload appends to the composed packet.
func (s *Shell) Payload(args []string) error {
	data, err := cli.ParseBytes(args)
	if err != nil {
		return err
	}
	return s.Env.Session.AppendPayload(data...)
}

// Send sends the composed packet.
func (s *Shell) Send() error {
	return s.Env.Session.Send()
}

// SendTo sends a packet from this node: "destCategory destAddress bytes...".
func (s *Shell) SendTo(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("destination category and address expected")
	}
	dc, da, err := cli.ParseEndpoint(args[0], args[1])
	if err != nil {
		return err
	}
	data, err := cli.ParseBytes(args[2:])
	if err != nil {
		return err
	}
	return s.Env.Session.SendPacket(s.Env.NewPacket(dc, da).Append(data...))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is the entry of the console.
func Main() {
	flag.Parse()
	New(env.NewConfig()).Run(flag.Args()...)
}
