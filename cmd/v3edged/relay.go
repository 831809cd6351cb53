package main

import (
	"crypto/rand"
	"encoding/binary"
	"log"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"

	"github.com/xtaci/v3edge/aead"
	"github.com/xtaci/v3edge/config"
	"github.com/xtaci/v3edge/edgefilter"
	"github.com/xtaci/v3edge/fec"
	"github.com/xtaci/v3edge/headergate"
	"github.com/xtaci/v3edge/magic"
	"github.com/xtaci/v3edge/pacer"
	"github.com/xtaci/v3edge/shaper"
)

// flow holds the per-client-address state that must never be shared
// across goroutines: one FEC codec, one pacer, one shaper. The receive
// loop (Run) uses only the codec's decode half and hands decoded messages
// to the flow's driveToTarget goroutine; when a target connection exists,
// the flow's driveFromTarget goroutine uses only the encode half.
type flow struct {
	clientAddr *net.UDPAddr
	target     *net.UDPConn

	codec  *fec.Codec
	pacer  *pacer.Pacer
	shaper *shaper.Shaper

	noncePrefix  [4]byte
	nonceCounter uint64

	toTarget chan []byte
	closing  chan struct{}
}

// nextNonce derives a fresh 12-byte nonce: a per-flow random prefix plus a
// monotonically increasing counter, guaranteeing no two Seal calls under
// this flow's key ever reuse a nonce.
func (fl *flow) nextNonce() [12]byte {
	fl.nonceCounter++
	var n [12]byte
	copy(n[:4], fl.noncePrefix[:])
	binary.BigEndian.PutUint64(n[4:], fl.nonceCounter)
	return n
}

// Relay wires the Edge Filter, Header Gate, FEC codec, pacer, and shaper
// into a UDP forwarding loop, adapted from xtaci/kcptun's server accept
// loop, generalized from accepting a KCP session to admitting a
// classified, authenticated UDP flow.
type Relay struct {
	cfg       *config.Config
	masterKey []byte
	aeadImpl  aead.AEAD
	hashImpl  aead.KeyedHash
	filter    *edgefilter.Filter
	conn      *net.UDPConn
	localPort uint16
	fecMode   fec.Mode
	targetUDP *net.UDPAddr
	profile   shaper.Profile

	mu    sync.Mutex
	flows map[string]*flow
}

// NewRelay builds a Relay from a resolved configuration.
func NewRelay(cfg *config.Config) (*Relay, error) {
	laddr, err := net.ResolveUDPAddr("udp", cfg.Listen)
	if err != nil {
		return nil, errors.Wrap(err, "resolve listen address")
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, errors.Wrap(err, "listen udp")
	}
	if cfg.SockBuf > 0 {
		_ = conn.SetReadBuffer(cfg.SockBuf)
		_ = conn.SetWriteBuffer(cfg.SockBuf)
	}
	if cfg.DSCP > 0 {
		if err := ipv4.NewPacketConn(conn).SetTOS(cfg.DSCP << 2); err != nil {
			log.Println("SetTOS:", err)
		}
	}

	targetAddr, err := net.ResolveUDPAddr("udp", cfg.Target)
	if err != nil {
		return nil, errors.Wrap(err, "resolve target address")
	}

	masterKey := config.DeriveMasterKey(cfg.Passphrase)
	aeadImpl, err := aead.NewChaCha20Poly1305(masterKey)
	if err != nil {
		return nil, errors.Wrap(err, "construct aead")
	}

	mode := fec.ModeRS
	if cfg.FECMode == "xor" {
		mode = fec.ModeXOR
	}

	profile, ok := shaper.ParseProfile(cfg.Profile)
	if !ok {
		log.Printf("unknown profile %q, falling back to NONE", cfg.Profile)
	}

	return &Relay{
		cfg:       cfg,
		masterKey: masterKey,
		aeadImpl:  aeadImpl,
		hashImpl:  aead.NewBlake2sKeyedHash(),
		filter:    edgefilter.NewFilter(uint16(laddr.Port)),
		conn:      conn,
		localPort: uint16(laddr.Port),
		fecMode:   mode,
		targetUDP: targetAddr,
		profile:   profile,
		flows:     make(map[string]*flow),
	}, nil
}

// engineName reports which GF(2^8) engine an RS-mode codec would select
// on this host (scalar or wide-lane), for the startup log line.
func (r *Relay) engineName() string {
	if r.fecMode != fec.ModeRS {
		return "xor"
	}
	return fec.NewCodec(fec.ModeRS, 1, 1).EngineName()
}

// validMagics returns the currently tolerated magics for "now".
func (r *Relay) validMagics(now time.Time) [3]uint32 {
	return magic.Valid(r.hashImpl, r.masterKey, now.Unix())
}

// Run drives the batched receive loop until conn is closed.
func (r *Relay) Run() error {
	batch := newBatchReader(r.conn)
	for {
		pkts, err := batch.readBatch()
		if err != nil {
			return errors.Wrap(err, "read batch")
		}
		now := time.Now()
		magics := r.validMagics(now)
		for _, p := range pkts {
			r.handleInbound(p.addr, p.data, now, magics)
		}
	}
}

// handleInbound runs one client datagram through classify, authenticate,
// and FEC decode, then forwards the recovered message to the flow's
// target connection.
func (r *Relay) handleInbound(src *net.UDPAddr, raw []byte, now time.Time, magics [3]uint32) {
	frame := wrapEthernet(src.IP, uint16(src.Port), r.localPort, raw)
	if frame == nil {
		return
	}
	verdict := r.filter.Classify(frame, now.UnixNano(), magics)
	if verdict.Verdict != edgefilter.VerdictPass {
		return
	}
	if len(raw) < headergate.WireSize {
		return
	}

	md, ok := headergate.Authenticate(raw[:headergate.WireSize], magics, r.aeadImpl)
	if !ok {
		return
	}

	shard, ok := fec.ParseShard(raw[headergate.WireSize:], r.fecMode == fec.ModeRS)
	if !ok {
		return
	}

	fl := r.flowFor(src)
	result := fl.codec.Decode(shard)
	if result.Status != fec.StatusOK {
		return
	}

	n := shaper.ProcessInbound(result.Message)
	message := result.Message[:n]
	if !md.AllowZeroRTT() && md.EarlyLen > 0 && len(message) < int(md.EarlyLen) {
		return
	}

	select {
	case fl.toTarget <- append([]byte(nil), message...):
	default:
		if !r.cfg.Quiet {
			log.Printf("flow %s: target queue full, dropping datagram", src)
		}
	}
}

// flowFor returns the flow for src, creating and starting it if absent.
func (r *Relay) flowFor(src *net.UDPAddr) *flow {
	key := src.String()

	r.mu.Lock()
	fl, ok := r.flows[key]
	r.mu.Unlock()
	if ok {
		return fl
	}

	target, err := net.DialUDP("udp", nil, r.targetUDP)
	if err != nil {
		log.Printf("flow %s: dial target: %v", src, err)
		target = nil
	}

	k, m := r.cfg.DataShard, r.cfg.ParityShard
	if k <= 0 {
		k = 4
	}
	if m <= 0 {
		m = 1
	}
	codec := fec.NewCodec(r.fecMode, k, m)
	if r.cfg.LossRate > 0 {
		codec.SetLossRate(r.cfg.LossRate)
	}

	targetBps, minBps, maxBps := r.cfg.TargetBps, r.cfg.MinBps, r.cfg.MaxBps
	if targetBps <= 0 {
		targetBps = 5_000_000
	}
	if minBps <= 0 {
		minBps = 100_000
	}
	if maxBps <= 0 {
		maxBps = 20_000_000
	}
	rttHint := r.cfg.RTTHintUs
	if rttHint <= 0 {
		rttHint = 50_000
	}
	now := time.Now()

	var noncePrefix [4]byte
	_, _ = rand.Read(noncePrefix[:])

	fl = &flow{
		clientAddr:  src,
		target:      target,
		codec:       codec,
		pacer:       pacer.New(targetBps, minBps, maxBps, rttHint, now, uint64(now.UnixNano())^uint64(src.Port)),
		shaper:      shaper.New(r.profile, r.cfg.MTU, now, uint64(now.UnixNano())^uint64(src.Port)<<1),
		noncePrefix: noncePrefix,
		toTarget:    make(chan []byte, 256),
		closing:     make(chan struct{}),
	}

	r.mu.Lock()
	r.flows[key] = fl
	r.mu.Unlock()

	go r.driveToTarget(fl)
	if target != nil {
		go r.driveFromTarget(fl)
	}
	return fl
}

// driveToTarget forwards decoded client messages to the upstream target.
func (r *Relay) driveToTarget(fl *flow) {
	for {
		select {
		case msg := <-fl.toTarget:
			if fl.target != nil {
				if _, err := fl.target.Write(msg); err != nil && !r.cfg.Quiet {
					log.Printf("flow %s: write target: %v", fl.clientAddr, err)
				}
			}
		case <-fl.closing:
			return
		}
	}
}

// driveFromTarget reads target responses, FEC-encodes, shapes, paces, and
// authenticates them back to the client.
func (r *Relay) driveFromTarget(fl *flow) {
	buf := make([]byte, 65536)
	for {
		n, err := fl.target.Read(buf)
		if err != nil {
			return
		}
		r.sendToClient(fl, buf[:n])
	}
}

func (r *Relay) sendToClient(fl *flow, message []byte) {
	scratch := make([]byte, len(message)+fl.shaper.MSS())
	copy(scratch, message)
	now := time.Now()
	newLen, delay := fl.shaper.ProcessOutbound(scratch, len(message), len(scratch), now)
	if delay > 0 {
		time.Sleep(time.Duration(delay))
	}

	groupID, shards, ok := fl.codec.Encode(scratch[:newLen])
	if !ok {
		return
	}
	_ = groupID

	magics := r.validMagics(now)
	for i, s := range shards {
		wait := fl.pacer.Acquire(fec.ShardEnvelopeSize, now)
		if wait > 0 {
			time.Sleep(time.Duration(wait))
		}
		fl.pacer.Commit(fec.ShardEnvelopeSize)

		md := headergate.Metadata{Session: uint64(fl.clientAddr.Port), Intent: 0, Stream: uint16(i), Flags: 0, EarlyLen: 0}
		header := headergate.Build(r.aeadImpl, magics[0], fl.nextNonce(), md, 0)

		out := make([]byte, 0, len(header)+fec.ShardEnvelopeSize)
		out = append(out, header...)
		out = append(out, s.Bytes()...)
		if _, err := r.conn.WriteToUDP(out, fl.clientAddr); err != nil && !r.cfg.Quiet {
			log.Printf("flow %s: write client: %v", fl.clientAddr, err)
		}
	}
}
