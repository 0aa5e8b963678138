package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/robotalks/instrbus/pkg/bus"
	"github.com/robotalks/instrbus/pkg/env"
)

var (
	Version   string
	BuildTime string
)

var rootCmd = &cobra.Command{
	Use:   "busctl",
	Short: "busctl talks to devices on the instrument bus",
	Long:  `busctl encodes, decodes, sends and monitors packets of the instrument bus link layer`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// glog reads its flags from the go flag set
		return flag.CommandLine.Parse(nil)
	},
	SilenceUsage: true,
}

func init() {
	sendCmd.Flags().DurationVar(&waitReply, "wait", waitReply, "time to wait for ACK/NACK or replies after sending")
	rootCmd.AddCommand(versionCmd, encodeCmd, decodeCmd, sendCmd, monitorCmd)
}

// Execute runs the root command.
func Execute() {
	env.SetupFlags(flag.CommandLine)
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printer prints bus traffic as it's received.
type printer struct {
	out io.Writer
}

func (p *printer) watch(s *bus.Session) {
	s.OnPacket(bus.HandlePacketFunc(func(ctx context.Context, pkt *bus.Packet) {
		fmt.Fprintf(p.out, "packet %s\n", pkt)
	}))
	signal := bus.HandleSignalFunc(func(ctx context.Context, sig bus.Signal) {
		fmt.Fprintf(p.out, "signal %s\n", sig)
	})
	s.OnAck(signal)
	s.OnNack(signal)
	s.OnDrop(bus.HandleDropFunc(func(ctx context.Context, reason bus.DropReason) {
		fmt.Fprintf(p.out, "dropped %s\n", reason)
	}))
}
