// Command paxosd runs one replicated key-value store node: it loads cluster
// configuration, wires a Replica's Store/Acceptor/Learner/Proposer, binds
// the peer RPC surface to a transport, and serves until terminated.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paxoskv/internal/config"
	"paxoskv/internal/logging"
	"paxoskv/internal/metrics"
	"paxoskv/internal/paxos"
	"paxoskv/internal/replica"
	"paxoskv/internal/transport"
	"paxoskv/internal/transport/grpcpeer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the cluster configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level)
	slog.SetDefault(log)
	log.Info("starting paxosd", "node", cfg.Node.ID)

	self := transport.Peer{}
	peers := make([]transport.Peer, 0, len(cfg.Cluster.Members))
	for _, m := range cfg.Cluster.Members {
		p := transport.Peer{ID: m.ID, Address: m.Address}
		peers = append(peers, p)
		if m.ID == cfg.Node.ID {
			self = p
		}
	}

	client := grpcpeer.NewClient(cfg.DialTimeout(), log)
	defer client.Close()

	r := replica.New(replica.Config{
		Self:  self,
		Peers: peers,
		Acceptor: paxos.AcceptorConfig{
			PreparedTTL:   cfg.AcceptorPreparedTTL(),
			AcceptedTTL:   cfg.AcceptorAcceptedTTL(),
			SweepInterval: cfg.AcceptorSweepInterval(),
			FailureInject: paxos.FailureInjection{
				Enabled:  cfg.Acceptor.FailureInjection.Enabled,
				Rate:     cfg.Acceptor.FailureInjection.Rate,
				MaxDelay: cfg.FailureInjectionMaxDelay(),
			},
		},
		Proposer: paxos.ProposerConfig{
			Quorum:        cfg.Quorum(),
			CallTimeout:   cfg.CallTimeout(),
			InFlightTTL:   cfg.ProposerInFlightTTL(),
			SweepInterval: cfg.ProposerSweepInterval(),
		},
		LearnerHistoryTTL: cfg.LearnerHistoryTTL(),
	}, client, log)

	r.Start()

	peerServer := grpcpeer.NewServer(r, cfg.CallTimeout(), log)
	if err := peerServer.Listen(cfg.Node.Listen); err != nil {
		log.Error("failed to start peer server", "error", err)
		os.Exit(1)
	}

	metricsServer := metrics.NewServer(log, cfg.Metrics.Listen)
	metricsServer.Start()

	log.Info("paxosd ready", "node", cfg.Node.ID, "listen", cfg.Node.Listen, "peers", len(peers))
	<-ctx.Done()

	log.Info("shutting down paxosd")
	peerServer.Stop()
	r.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsServer.Stop(shutdownCtx)
}
