package main

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

// maxBatchSize bounds how many datagrams one ReadBatch call drains, the
// same batching idea xtaci/kcp-go's internal batch-conn uses to amortize
// syscalls on Linux. kcp-go's own batch-conn internals aren't part of
// this module's dependency set, so the batching is re-expressed directly
// over golang.org/x/net/ipv4.
const maxBatchSize = 64

// datagram is one received UDP payload and its source address.
type datagram struct {
	addr *net.UDPAddr
	data []byte
}

// batchReader wraps a *net.UDPConn in an ipv4.PacketConn to use
// ReadBatch, falling back to a single ReadFromUDP per call when the
// kernel doesn't support recvmmsg-style batching (ipv4.PacketConn returns
// a ordinary Go io.Reader path transparently in that case).
type batchReader struct {
	pc  *ipv4.PacketConn
	buf [][]byte
	ms  []ipv4.Message
}

func newBatchReader(conn *net.UDPConn) *batchReader {
	br := &batchReader{
		pc:  ipv4.NewPacketConn(conn),
		buf: make([][]byte, maxBatchSize),
		ms:  make([]ipv4.Message, maxBatchSize),
	}
	for i := range br.buf {
		br.buf[i] = make([]byte, 65536)
		br.ms[i].Buffers = [][]byte{br.buf[i]}
	}
	return br
}

// readBatch reads up to maxBatchSize datagrams in one syscall where the
// platform supports it.
func (br *batchReader) readBatch() ([]datagram, error) {
	n, err := br.pc.ReadBatch(br.ms, 0)
	if err != nil {
		return nil, errors.Wrap(err, "ReadBatch")
	}
	out := make([]datagram, 0, n)
	for i := 0; i < n; i++ {
		addr, ok := br.ms[i].Addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		data := make([]byte, br.ms[i].N)
		copy(data, br.buf[i][:br.ms[i].N])
		out = append(out, datagram{addr: addr, data: data})
	}
	return out, nil
}
