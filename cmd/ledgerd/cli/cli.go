// Package cli wires a cobra command tree around an already-constructed
// pipeline.Pipeline, grounded in the teacher's cmd/empower1d/cli/cli.go
// root-command-plus-subcommands shape, generalized from the teacher's
// addblock/printchain pair to the status/query operations a ledger node
// operator needs.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/empower1/ledger/internal/pipeline"
)

// New builds the root command for p.
func New(p *pipeline.Pipeline, logger *zap.SugaredLogger) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerd",
		Short: "ledgerd runs a proof-of-stake ledger node with an Ethereum bridge",
	}

	root.AddCommand(statusCmd(p))
	root.AddCommand(queueCmd(p))
	root.AddCommand(bridgeCmd(p))

	return root
}

func statusCmd(p *pipeline.Pipeline) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the node's current height and queue depth",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("height=%d queue_depth=%d bridge_pending=%d\n", p.Height(), p.Queue.Len(), len(p.Bridge.Pending()))
		},
	}
}

func queueCmd(p *pipeline.Pipeline) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List the wrappers currently queued awaiting decryption",
		Run: func(cmd *cobra.Command, args []string) {
			for i, e := range p.Queue.Snapshot() {
				fmt.Printf("%d: partial_hash=%x fee=%d gas_limit=%d\n", i, e.PartialHash[:8], e.Wrapper.Fee, e.Wrapper.GasLimit)
			}
		},
	}
}

func bridgeCmd(p *pipeline.Pipeline) *cobra.Command {
	return &cobra.Command{
		Use:   "bridge",
		Short: "List the outbound transfers pending in the bridge pool",
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range p.Bridge.Pending() {
				fmt.Println(t.String())
			}
		},
	}
}
