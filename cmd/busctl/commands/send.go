package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/robotalks/instrbus/pkg/cli"
	"github.com/robotalks/instrbus/pkg/env"
	"github.com/robotalks/instrbus/pkg/framework"
)

var waitReply = 200 * time.Millisecond

var sendCmd = &cobra.Command{
	Use:   "send <dest-category> <dest-address> [bytes...]",
	Short: "send a packet from this node",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dc, da, err := cli.ParseEndpoint(args[0], args[1])
		if err != nil {
			return err
		}
		data, err := cli.ParseBytes(args[2:])
		if err != nil {
			return err
		}
		e, err := env.NewConfig().NewEnv()
		if err != nil {
			return err
		}
		(&printer{out: cmd.OutOrStdout()}).watch(e.Session)

		ctx, cancel := context.WithTimeout(context.Background(), waitReply)
		defer cancel()
		runner := framework.NewRunnerWith(ctx).Go(e)
		pkt := e.NewPacket(dc, da).Append(data...)
		if err := e.Session.SendPacket(pkt); err != nil {
			runner.Stop()
			runner.Wait()
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", pkt)
		return runner.Wait()
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "print bus traffic until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := env.NewConfig().NewEnv()
		if err != nil {
			return err
		}
		(&printer{out: cmd.OutOrStdout()}).watch(e.Session)
		err = framework.NewRunner().HandleSignals().Go(e).Wait()
		st := e.Session.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "frames=%d acks=%d nacks=%d dropped=%d ignored=%d\n",
			st.Frames, st.Acks, st.Nacks, st.Dropped, st.Ignored)
		return err
	},
}
