package commands

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tangramnet/txfetch/fetch"
	"github.com/tangramnet/txfetch/txrequest"
	"github.com/tangramnet/txfetch/types"
)

var (
	simPeers int
	simTxs   int
	simOps   int
	simSeed  int64
)

// SimCmd drives the download manager with a randomized relay workload on
// a virtual clock and runs the tracker's sanity check at the end. Useful
// for eyeballing scheduling behavior under different [fetch] settings
// without a network.
var SimCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a randomized relay workload against the tracker",
	RunE:  runSim,
}

func init() {
	SimCmd.Flags().IntVar(&simPeers, "peers", 8, "number of simulated peers")
	SimCmd.Flags().IntVar(&simTxs, "txs", 64, "number of distinct transactions announced")
	SimCmd.Flags().IntVar(&simOps, "ops", 100000, "number of simulated operations")
	SimCmd.Flags().Int64Var(&simSeed, "seed", 42, "workload seed")
}

func runSim(cmd *cobra.Command, args []string) error {
	var opts []txrequest.TrackerOption
	if config.PrometheusListenAddr != "" {
		opts = append(opts, txrequest.WithMetrics(txrequest.PrometheusMetrics("txfetch")))
		go func() {
			logger.Info("serving metrics", "addr", config.PrometheusListenAddr)
			if err := http.ListenAndServe(config.PrometheusListenAddr, promhttp.Handler()); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	fetcher, err := fetch.NewFetcher(config.Fetch, logger, opts...)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(simSeed))
	peers := make([]string, simPeers)
	for i := range peers {
		peers[i] = fmt.Sprintf("peer%d", i)
		fetcher.AddPeer(peers[i])
	}
	txs := make([]types.TxKey, simTxs)
	for i := range txs {
		txs[i] = types.Tx(fmt.Sprintf("tx%d", i)).Key()
	}

	now := time.Unix(0, 0)
	var requested, received, expired int
	for op := 0; op < simOps; op++ {
		switch rng.Intn(10) {
		case 0, 1, 2, 3:
			fetcher.Announce(peers[rng.Intn(simPeers)], txs[rng.Intn(simTxs)], rng.Intn(4) == 0, now)
		case 4, 5, 6:
			peer := peers[rng.Intn(simPeers)]
			keys, exp := fetcher.Poll(peer, now)
			requested += len(keys)
			expired += len(exp)
			for _, key := range keys {
				if rng.Intn(3) == 0 {
					fetcher.ReceivedTx(peer, key)
					received++
				}
			}
		case 7:
			fetcher.Forget(txs[rng.Intn(simTxs)])
		case 8:
			peer := peers[rng.Intn(simPeers)]
			fetcher.RemovePeer(peer)
			fetcher.AddPeer(peer)
		case 9:
			now = now.Add(time.Duration(rng.Intn(5000)) * time.Millisecond)
		}
	}

	fetcher.Tracker().SanityCheck()
	logger.Info("simulation finished",
		"ops", simOps,
		"requested", requested,
		"received", received,
		"expired", expired,
		"tracked", fetcher.Size(),
	)
	return nil
}
