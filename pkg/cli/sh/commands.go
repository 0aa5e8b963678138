package sh

import (
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/instrbus/pkg/cli"
)

var (
	// OpenCmd opens the bus.
	OpenCmd = ishell.Cmd{
		Name: "open",
		Help: "open [port], open the bus",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Config.Port = c.Args[0]
			}
			s.Detach()
			if err := s.Open(); err != nil {
				c.Err(err)
				return
			}
			c.Printf("opened %s\n", s.Config.Port)
		},
	}

	// CloseCmd closes the bus.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "close the bus",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Detach()
		},
	}

	// HeaderCmd starts composing a packet.
	HeaderCmd = ishell.Cmd{
		Name: "header",
		Help: "header <sender-category> <sender-address> <dest-category> <dest-address> [bytes...]",
		Func: MustBeOpen(func(c *ishell.Context) {
			if err := ShellFrom(c).Header(c.Args); err != nil {
				c.Err(err)
			}
		}),
	}

	// PayloadCmd appends bytes to the composed packet.
	PayloadCmd = ishell.Cmd{
		Name: "payload",
		Help: "payload <bytes...>, bytes in hex",
		Func: MustBeOpen(func(c *ishell.Context) {
			if err := ShellFrom(c).Payload(c.Args); err != nil {
				c.Err(err)
			}
		}),
	}

	// SendCmd sends the composed packet.
	SendCmd = ishell.Cmd{
		Name: "send",
		Help: "send the composed packet",
		Func: MustBeOpen(func(c *ishell.Context) {
			if err := ShellFrom(c).Send(); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// PacketCmd sends a packet from this node.
	PacketCmd = ishell.Cmd{
		Name: "packet",
		Help: "packet <dest-category> <dest-address> [bytes...], send from this node",
		Func: MustBeOpen(func(c *ishell.Context) {
			if err := ShellFrom(c).SendTo(c.Args); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// EncodeCmd prints the wire frame of a packet.
	EncodeCmd = ishell.Cmd{
		Name: "encode",
		Help: "encode <sender-category> <sender-address> <dest-category> <dest-address> [bytes...]",
		Func: func(c *ishell.Context) {
			pkt, err := cli.ParseHeader(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			data, err := cli.ParseBytes(c.Args[4:])
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(cli.FormatFrame(pkt.Append(data...).Bytes()))
		},
	}

	// StatsCmd prints session counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "print receive/send counters",
		Func: MustBeOpen(func(c *ishell.Context) {
			st := ShellFrom(c).Env.Session.Stats()
			c.Println(fmt.Sprintf("frames=%d acks=%d nacks=%d dropped=%d ignored=%d sent=%d",
				st.Frames, st.Acks, st.Nacks, st.Dropped, st.Ignored, st.Sent))
		}),
	}
)
