package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robotalks/instrbus/pkg/bus"
	"github.com/robotalks/instrbus/pkg/cli"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <sender-category> <sender-address> <dest-category> <dest-address> [bytes...]",
	Short: "print the wire frame of a packet",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkt, err := cli.ParseHeader(args)
		if err != nil {
			return err
		}
		data, err := cli.ParseBytes(args[4:])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatFrame(pkt.Append(data...).Bytes()))
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <wire bytes...>",
	Short: "decode a captured wire byte stream",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wire, err := cli.ParseBytes(args)
		if err != nil {
			return err
		}
		s := bus.NewSession(nil)
		(&printer{out: cmd.OutOrStdout()}).watch(s)
		s.Feed(context.Background(), wire...)
		if s.Buffered() > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "incomplete frame (%d bytes)\n", s.Buffered())
		}
		return nil
	},
}
