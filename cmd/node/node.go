package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"RadNode/internal/api"
	"RadNode/internal/archive"
	"RadNode/internal/logger"
	"RadNode/internal/network"
	"RadNode/internal/podvm"
	"RadNode/internal/rad"
	"RadNode/internal/radon"
	"RadNode/internal/retrieval"
	"RadNode/internal/reveal"
	"RadNode/internal/storage"
	"RadNode/internal/tally"
)

// Node represents a running witness node.
type Node struct {
	cfg       *Config            // cfg is the node configuration
	storage   *storage.Storage   // storage is the pebble store
	archive   *archive.Archive   // archive holds final reports
	podPool   *podvm.Pool        // podPool runs wasm sources
	engine    *rad.Engine        // engine resolves requests
	network   *network.Node      // network is the witness transport
	blsKey    *reveal.BLSKeyPair // blsKey signs reveals
	handler   *reveal.Handler    // handler serves reveals and announces
	witnesses []reveal.Witness   // witnesses is the witness set, this node included
	collector *reveal.Collector  // collector tallies across committees
	api       *api.Server        // api is the HTTP server
}

// NewNode creates and initializes a new node.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg}

	steps := []func() error{
		n.initStorage,
		n.initPodVM,
		n.initEngine,
		n.initNetwork,
		n.initReveal,
	}

	for _, step := range steps {
		if err := step(); err != nil {
			n.Close()
			return nil, err
		}
	}

	return n, nil
}

// initStorage opens the pebble store and the report archive.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(n.cfg.DataPath + "/db")
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db
	n.archive = archive.New(db)

	return nil
}

// initPodVM loads the wasm source programs.
func (n *Node) initPodVM() error {
	n.podPool = podvm.New()

	if n.cfg.ModulesPath == "" {
		return nil
	}

	ids, err := n.podPool.LoadDir(n.cfg.ModulesPath)
	if err != nil {
		return fmt.Errorf("load modules:\n%w", err)
	}

	for _, id := range ids {
		logger.Info("wasm module loaded", "id", hex.EncodeToString(id[:]))
	}

	return nil
}

// initEngine builds the retriever and the resolution engine.
func (n *Node) initEngine() error {
	clustering, err := tally.ParseClustering(n.cfg.Clustering)
	if err != nil {
		return err
	}

	settings := radon.Settings{GasLimit: n.cfg.GasLimit}

	retriever := retrieval.New(map[retrieval.Kind]retrieval.Fetcher{
		retrieval.KindHTTPGet: retrieval.NewHTTPFetcher(retrieval.HTTPConfig{
			AllowedDomains:  n.cfg.AllowedDomains,
			MaxResponseSize: n.cfg.MaxResponseSize,
		}),
		retrieval.KindWasm: retrieval.NewWasmFetcher(n.podPool, 0),
	}, settings)

	n.engine = rad.NewEngine(retriever, n.archive, rad.Config{
		MinConsensusRatio: n.cfg.MinConsensusRatio,
		Clustering:        clustering,
		Timeout:           n.cfg.Timeout,
		Settings:          settings,
	})

	return nil
}

// initNetwork creates the QUIC witness transport.
func (n *Node) initNetwork() error {
	node, err := network.NewNode(network.Config{
		PrivateKey: n.cfg.PrivateKey,
		ListenAddr: n.cfg.QUICAddress,
	})
	if err != nil {
		return fmt.Errorf("init network:\n%w", err)
	}

	n.network = node

	return nil
}

// initReveal sets up the BLS key, the witness set and the collector.
func (n *Node) initReveal() error {
	blsKey, err := n.loadBLSKey()
	if err != nil {
		return err
	}

	n.blsKey = blsKey
	n.handler = reveal.NewHandler(n.archive, blsKey, n.engine)

	n.witnesses = []reveal.Witness{n.self()}

	for _, s := range n.cfg.Witnesses {
		w, err := reveal.ParseWitness(s)
		if err != nil {
			return err
		}

		n.witnesses = append(n.witnesses, w)
	}

	n.collector = reveal.NewCollector(n.network, n.handler, n.witnesses, reveal.Config{
		CommitteeSize: n.cfg.CommitteeSize,
		Settings:      radon.Settings{GasLimit: n.cfg.GasLimit},
	})

	return nil
}

// loadBLSKey derives the BLS key from the seed or from the identity key.
func (n *Node) loadBLSKey() (*reveal.BLSKeyPair, error) {
	if n.cfg.BLSSeed == "" {
		return reveal.DeriveFromED25519(n.cfg.PrivateKey)
	}

	seed, err := hex.DecodeString(n.cfg.BLSSeed)
	if err != nil {
		return nil, fmt.Errorf("decode bls seed:\n%w", err)
	}

	return reveal.GenerateBLSKeyFromSeed(seed)
}

// self describes this node as a witness.
func (n *Node) self() reveal.Witness {
	return reveal.Witness{
		PublicKey: n.network.PublicKey(),
		BLSKey:    n.blsKey.PublicKeyBytes(),
		Addr:      n.cfg.QUICAddress,
	}
}

// Run starts the node and blocks until shutdown signal.
func (n *Node) Run() error {
	n.network.OnRequest(n.handler.HandleRequest)
	n.network.OnMessage(n.handler.HandleMessage)

	if err := n.network.Start(); err != nil {
		return fmt.Errorf("start network:\n%w", err)
	}

	n.connectPeers()

	n.api = api.New(n.cfg.HTTPAddress, n.engine, n.collector, n, n)
	if err := n.api.Start(); err != nil {
		return fmt.Errorf("start api:\n%w", err)
	}

	logger.Info("witness ready", "witness", n.self().String())

	return n.waitForShutdown()
}

// connectPeers dials the configured peers. Failures are retried by the
// network layer once a peer has been seen, so they only get logged here.
func (n *Node) connectPeers() {
	for _, addr := range n.cfg.Peers {
		if _, err := n.network.Connect(context.Background(), addr); err != nil {
			logger.Warn("peer unreachable", "addr", addr, "error", err)
		}
	}
}

// Announce broadcasts a request to the connected witnesses.
func (n *Node) Announce(req rad.Request) error {
	data, err := reveal.EncodeAnnounce(req)
	if err != nil {
		return err
	}

	return n.network.Broadcast(data)
}

// PeerCount returns the number of connected peers.
func (n *Node) PeerCount() int {
	return len(n.network.Peers())
}

// WitnessCount returns the size of the witness set.
func (n *Node) WitnessCount() int {
	return len(n.witnesses)
}

// ModuleCount returns the number of loaded wasm programs.
func (n *Node) ModuleCount() int {
	return n.podPool.Len()
}

// waitForShutdown blocks until SIGINT or SIGTERM is received.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	if n.api != nil {
		n.api.Stop()
	}

	if n.network != nil {
		n.network.Close()
	}

	if n.podPool != nil {
		n.podPool.Close()
	}

	if n.storage != nil {
		n.storage.Close()
	}

	return nil
}
