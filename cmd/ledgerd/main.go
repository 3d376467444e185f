// Command ledgerd runs a single-validator devnet node: it drives the
// block pipeline (InitChain once, then PrepareProposal/ProcessProposal/
// FinalizeBlock/Commit once per tick) against an on-disk bolt store,
// standing in for what a real multi-validator consensus engine would
// otherwise drive externally. Grounded in the teacher's
// cmd/empower1d/main.go construction order and block-creation loop,
// generalized from the teacher's single in-memory blockchain/mempool pair
// to the pipeline's ABCI-shaped surface over persistent storage.
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/empower1/ledger/cmd/ledgerd/cli"
	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/governance"
	"github.com/empower1/ledger/internal/pipeline"
	"github.com/empower1/ledger/internal/storage"
	"github.com/empower1/ledger/internal/txn"
)

const (
	defaultBoltPath       = "ledgerd.bolt"
	defaultBlocksPerEpoch = 100
	defaultBlockInterval  = 5 * time.Second
	defaultGasPriceFloor  = 1
	defaultBaseDecryptGas = 1000
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar().Named("ledgerd")

	// 1. Open persistent storage.
	store, err := storage.OpenBolt(defaultBoltPath)
	if err != nil {
		sugar.Fatalf("failed to open storage: %v", err)
	}
	defer store.Close()
	sugar.Info("-> storage opened")

	// 2. Generate (or in a real deployment, load from disk) this node's
	// bonding and protocol keys.
	bondKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		sugar.Fatalf("failed to generate bonding key: %v", err)
	}
	protoKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		sugar.Fatalf("failed to generate protocol key: %v", err)
	}
	selfAddr, err := address.Implicit(&bondKey.PublicKey)
	if err != nil {
		sugar.Fatalf("failed to derive validator address: %v", err)
	}
	sugar.Infof("-> validator address %s", selfAddr)

	// 3. Construct the pipeline.
	p := pipeline.New(store, defaultBlocksPerEpoch, pipeline.Config{
		GasPriceFloor:  defaultGasPriceFloor,
		BaseDecryptGas: defaultBaseDecryptGas,
		Governance:     governance.DefaultGovernanceQuorumBps,
		SelfAddress:    selfAddr,
		ProtocolKey:    protoKey,
	}, sugar)
	p.RegisterProtocolKey(selfAddr, &protoKey.PublicKey)
	sugar.Info("-> pipeline constructed")

	// 4. Seed genesis. A newly constructed pipeline reports Height() 0
	// (the committed height is not read back from the store), so this
	// runs on every start.
	if p.Height() == 0 {
		if _, err := p.InitChain(pipeline.InitChainRequest{
			Validators: map[address.Address]uint64{selfAddr: 1},
		}); err != nil {
			sugar.Fatalf("InitChain failed: %v", err)
		}
		sugar.Info("-> genesis seeded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.New(p, sugar)
	if len(os.Args) > 1 {
		if err := rootCmd.ExecuteContext(ctx); err != nil {
			sugar.Fatalf("command failed: %v", err)
		}
		return
	}

	sugar.Info("--> entering block production loop")
	runLoop(ctx, p, sugar)
}

// runLoop drives one Prepare/Process/Finalize/Commit cycle per tick, the
// devnet stand-in for a real multi-validator consensus round (spec §6).
func runLoop(ctx context.Context, p *pipeline.Pipeline, sugar *zap.SugaredLogger) {
	ticker := time.NewTicker(defaultBlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sugar.Info("-> shutting down")
			return
		case <-ticker.C:
			height := p.Height() + 1

			prep, err := p.PrepareProposal(pipeline.PrepareProposalRequest{Height: height})
			if err != nil {
				sugar.Warnf("PrepareProposal(%d) failed: %v", height, err)
				continue
			}
			proposalTxs := collectProposalTxs(prep)

			decision, err := p.ProcessProposal(pipeline.ProcessProposalRequest{
				Height: height,
				Time:   time.Now().UTC(),
				Txs:    proposalTxs,
			})
			if err != nil || decision != pipeline.Accept {
				sugar.Warnf("block %d rejected: %v", height, err)
				continue
			}

			resp, err := p.FinalizeBlock(ctx, pipeline.FinalizeBlockRequest{
				Header: pipeline.BlockHeader{Height: height, Time: time.Now().UTC()},
				Txs:    proposalTxs,
			})
			if err != nil {
				sugar.Errorf("FinalizeBlock(%d) failed: %v", height, err)
				continue
			}

			root, err := p.Commit()
			if err != nil {
				sugar.Errorf("Commit(%d) failed: %v", height, err)
				continue
			}

			sugar.Infof("block %d committed: %d txs, %d events, root=%x", height, len(resp.TxResults), len(resp.Events), root[:8])
		}
	}
}

func collectProposalTxs(resp pipeline.PrepareProposalResponse) []*txn.Transaction {
	out := make([]*txn.Transaction, 0, len(resp.TxRecords))
	for _, r := range resp.TxRecords {
		if r.Action == pipeline.ActionRemove {
			continue
		}
		out = append(out, r.Tx)
	}
	return out
}
