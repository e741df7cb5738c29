// Package supervisor wires one scan run together: it builds the shared
// validator, source-address rotation, blacklist, and per-shard send
// engines, pairs them with a single receive classifier, and runs the
// send/cooldown/receive handshake from spec.md section 5, grounded on the
// teacher's cmd/gobfd/main.go runServers/gracefulShutdown (goroutine
// fan-out + context cancellation + sync.WaitGroup join): one goroutine
// waits for every send engine to return, then runs the cooldown and
// closes the capture.
package supervisor

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netreach/gozmap/internal/blacklist"
	"github.com/netreach/gozmap/internal/config"
	"github.com/netreach/gozmap/internal/filter"
	"github.com/netreach/gozmap/internal/iterator"
	"github.com/netreach/gozmap/internal/netio"
	"github.com/netreach/gozmap/internal/output"
	"github.com/netreach/gozmap/internal/output/csv"
	"github.com/netreach/gozmap/internal/output/stdout"
	"github.com/netreach/gozmap/internal/probe"
	"github.com/netreach/gozmap/internal/probe/tcpsyn"
	"github.com/netreach/gozmap/internal/recvengine"
	"github.com/netreach/gozmap/internal/sendengine"
	"github.com/netreach/gozmap/internal/state"
	"github.com/netreach/gozmap/internal/validate"
)

// defaultOutputFields is the projection every output module is built
// with: source and destination address, timestamp, classification and
// the probe's own success verdict.
var defaultOutputFields = []string{"saddr", "daddr", "timestamp", "classification", "success"}

// PacketSource feeds the receive classifier raw captured packets. The
// production implementation is a live pcap handle (internal/recvengine);
// tests substitute an in-memory feed so scenario S1/S6 run without a
// capture device.
type PacketSource interface {
	// Run feeds classify with every packet's raw bytes until stop
	// reports true or the source is closed from another goroutine.
	Run(stop func() bool, classify func(raw []byte))
	Close()
}

// Supervisor owns one scan run's send engines, receive classifier, and
// the shared state they report into.
type Supervisor struct {
	logger *slog.Logger

	cfg       *state.Config
	sendState *state.SendState
	recvState *state.RecvState

	engines    []*sendengine.Engine
	classifier *recvengine.Classifier
	source     PacketSource
	sender     netio.Sender
	outMod     output.Module
	validator  *validate.Validator
}

// New builds a Supervisor for cfg using production I/O backends: a live
// pcap capture on cfg.Interface for receive, and either an AF_PACKET
// socket or (when cfg.Dryrun) an in-memory sender for send.
func New(cfg *config.Config, logger *slog.Logger) (*Supervisor, error) {
	var source PacketSource
	var sender netio.Sender

	if cfg.Dryrun {
		source = newNoopSource()
		sender = netio.NewMemorySender()
	} else {
		handle, err := recvengine.OpenLive(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("supervisor: open capture: %w", err)
		}
		source = handle

		sock, err := netio.NewPacketSocket(cfg.Interface)
		if err != nil {
			handle.Close()
			return nil, fmt.Errorf("supervisor: open send socket: %w", err)
		}
		sender = sock
	}

	return Build(cfg, logger, source, sender)
}

// Build wires a Supervisor from an already-constructed packet source and
// sender, the seam New uses for production backends and tests use for an
// in-memory feed/sender pair.
func Build(cfg *config.Config, logger *slog.Logger, source PacketSource, sender netio.Sender) (*Supervisor, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	stateCfg, err := cfg.ToState()
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}
	if stateCfg.RingSize <= 0 {
		stateCfg.RingSize = 1_000_000
	}

	targetFirst, targetLast, err := cfg.TargetIPRange()
	if err != nil {
		return nil, fmt.Errorf("supervisor: target ip range: %w", err)
	}

	bl, err := loadBlacklist(cfg)
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	mod, err := buildProbeModule(cfg.ProbeModule)
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	sendState := &state.SendState{}
	recvState := &state.RecvState{}

	outMod, err := buildOutputModule(cfg)
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	validator, err := validate.New()
	if err != nil {
		return nil, fmt.Errorf("supervisor: validator: %w", err)
	}

	srcFirst32 := addrToUint32(stateCfg.SourceIPFirst)
	srcLast32 := addrToUint32(stateCfg.SourceIPLast)
	srcAddr, err := sendengine.NewSrcAddrRange(srcFirst32, srcLast32)
	if err != nil {
		return nil, fmt.Errorf("supervisor: source address range: %w", err)
	}

	srcHW, gwHW, err := resolveMACs(cfg)
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	params, err := iterator.NewParams()
	if err != nil {
		return nil, fmt.Errorf("supervisor: iterator params: %w", err)
	}
	seed, err := randomSeed()
	if err != nil {
		return nil, fmt.Errorf("supervisor: seed: %w", err)
	}

	audit := sendengine.NewAuditWriter(os.Stdout)

	senders := cfg.Senders
	if senders < 1 {
		senders = 1
	}

	rate := stateCfg.Rate
	if rate == 0 && stateCfg.Bandwidth > 0 {
		rate = int(stateCfg.Bandwidth / (8 * uint64(mod.PacketLength())))
	}

	engines := make([]*sendengine.Engine, 0, senders)
	for i := 0; i < senders; i++ {
		threadSt, err := mod.NewThreadState(srcHW, gwHW, cfg.Target.Port, cfg.Source.PortFirst, cfg.Source.PortLast)
		if err != nil {
			return nil, fmt.Errorf("supervisor: thread state for sender %d: %w", i, err)
		}

		shard := iterator.NewShard(iterator.Config{
			Params:      params,
			Seed:        seed,
			TotalShards: cfg.Shard.Count,
			ShardIndex:  cfg.Shard.Index,
			Senders:     senders,
			SenderIndex: i,
			TargetFirst: addrToUint32(targetFirst),
			TargetLast:  addrToUint32(targetLast),
			Blacklist:   bl,
		})

		engines = append(engines, sendengine.NewEngine(sendengine.EngineConfig{
			Shard:     shard,
			RingSize:  stateCfg.RingSize,
			Pacer:     sendengine.NewPacer(rate, senders),
			Audit:     audit,
			SrcAddr:   srcAddr,
			Validator: validator,
			Module:    mod,
			ThreadSt:  threadSt,
			Sender:    sender,
			SendState: sendState,
			Cfg:       stateCfg,
		}))
	}

	classifier := recvengine.New(mod, validator, stateCfg, sendState, recvState, filter.Always{}, outMod)

	return &Supervisor{
		logger:     logger,
		cfg:        stateCfg,
		sendState:  sendState,
		recvState:  recvState,
		engines:    engines,
		classifier: classifier,
		source:     source,
		sender:     sender,
		outMod:     outMod,
		validator:  validator,
	}, nil
}

// SendState and RecvState expose the shared counters for a metrics
// collector or CLI progress reporting to sample.
func (s *Supervisor) SendState() *state.SendState { return s.sendState }
func (s *Supervisor) RecvState() *state.RecvState { return s.recvState }

// Validator exposes the scan's keyed validation vector generator, e.g.
// for tests that must construct a plausible response packet without
// duplicating the scanner's own key.
func (s *Supervisor) Validator() *validate.Validator { return s.validator }

// Run drives the scan to completion: every send engine runs until its
// shard and retransmit ring are exhausted (or ctx is cancelled), then the
// receive side drains for cfg.CooldownSecs before the capture is closed.
// Run blocks until both sides have stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	now := time.Now()
	s.sendState.Start(now)
	s.recvState.Start(now)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.source.Run(func() bool {
			return gCtx.Err() != nil ||
				(s.cfg.MaxResults > 0 && s.recvState.SuccessUnique.Load() >= s.cfg.MaxResults)
		}, s.classifier.HandlePacket)
		return nil
	})

	var sendWG sync.WaitGroup
	sendWG.Add(len(s.engines))
	for _, eng := range s.engines {
		eng := eng
		g.Go(func() error {
			defer sendWG.Done()
			eng.Run(func() bool { return gCtx.Err() != nil }, s.cfg.MaxRuntime)
			return nil
		})
	}

	g.Go(func() error {
		sendWG.Wait()
		s.sendState.Finish(time.Now())
		if s.logger != nil {
			s.logger.Info("send complete, entering cooldown",
				slog.Duration("cooldown", s.cfg.CooldownSecs),
				slog.Uint64("sent", s.sendState.Sent.Load()),
			)
		}

		timer := time.NewTimer(s.cfg.CooldownSecs)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-gCtx.Done():
		}

		s.recvState.Finish(time.Now())
		s.source.Close()
		return nil
	})

	err := g.Wait()

	if s.sender != nil {
		if cerr := s.sender.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("supervisor: close sender: %w", cerr)
		}
	}
	if s.outMod != nil {
		if cerr := s.outMod.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("supervisor: close output module: %w", cerr)
		}
	}
	return err
}

// -------------------------------------------------------------------------
// Wiring helpers
// -------------------------------------------------------------------------

func buildProbeModule(name string) (probe.Module, error) {
	switch name {
	case "tcp_syn":
		return tcpsyn.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProbe, name)
	}
}

func buildOutputModule(cfg *config.Config) (output.Module, error) {
	fields := defaultOutputFields

	switch cfg.OutputModule {
	case "csv":
		w := os.Stdout
		if cfg.OutputFile != "" {
			f, err := os.Create(cfg.OutputFile)
			if err != nil {
				return nil, fmt.Errorf("open output file %s: %w", cfg.OutputFile, err)
			}
			return csv.New(f, fields), nil
		}
		return csv.New(w, fields), nil
	case "stdout":
		return stdout.New(os.Stdout, fields), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownOutput, cfg.OutputModule)
	}
}

func loadBlacklist(cfg *config.Config) (*blacklist.List, error) {
	bl := blacklist.New()
	if cfg.BlacklistFile != "" {
		f, err := os.Open(cfg.BlacklistFile)
		if err != nil {
			return nil, fmt.Errorf("open blacklist file %s: %w", cfg.BlacklistFile, err)
		}
		defer f.Close()
		if err := bl.LoadBlacklist(f); err != nil {
			return nil, fmt.Errorf("load blacklist file %s: %w", cfg.BlacklistFile, err)
		}
	}
	if cfg.WhitelistFile != "" {
		f, err := os.Open(cfg.WhitelistFile)
		if err != nil {
			return nil, fmt.Errorf("open whitelist file %s: %w", cfg.WhitelistFile, err)
		}
		defer f.Close()
		if err := bl.LoadWhitelist(f); err != nil {
			return nil, fmt.Errorf("load whitelist file %s: %w", cfg.WhitelistFile, err)
		}
	}
	return bl, nil
}

// resolveMACs returns the scanner's own interface hardware address and
// the next-hop gateway's, both supplied directly in config: ARP/gateway
// discovery heuristics are an external collaborator this module does not
// implement (spec.md section 1).
func resolveMACs(cfg *config.Config) (srcHW, gwHW net.HardwareAddr, err error) {
	if cfg.SourceMAC != "" {
		srcHW, err = net.ParseMAC(cfg.SourceMAC)
		if err != nil {
			return nil, nil, fmt.Errorf("parse source_mac %q: %w", cfg.SourceMAC, err)
		}
	} else if cfg.Interface != "" {
		iface, ifErr := net.InterfaceByName(cfg.Interface)
		if ifErr != nil {
			return nil, nil, fmt.Errorf("resolve interface %q: %w", cfg.Interface, ifErr)
		}
		srcHW = iface.HardwareAddr
	}

	if cfg.GatewayMAC == "" {
		return nil, nil, fmt.Errorf("gateway_mac must be set (gateway discovery is not implemented)")
	}
	gwHW, err = net.ParseMAC(cfg.GatewayMAC)
	if err != nil {
		return nil, nil, fmt.Errorf("parse gateway_mac %q: %w", cfg.GatewayMAC, err)
	}
	return srcHW, gwHW, nil
}

func randomSeed() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// noopSource is the dryrun receive side: Dryrun scans still exercise the
// send path but have no real capture device to drain. Close must unblock
// Run even if stop never reports true, the same way the production pcap
// handle's Packets() channel closing unblocks its own Run.
type noopSource struct {
	closed chan struct{}
	once   sync.Once
}

func newNoopSource() *noopSource {
	return &noopSource{closed: make(chan struct{})}
}

func (s *noopSource) Run(stop func() bool, classify func(raw []byte)) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if stop() {
			return
		}
		select {
		case <-s.closed:
			return
		case <-ticker.C:
		}
	}
}

func (s *noopSource) Close() {
	s.once.Do(func() { close(s.closed) })
}
