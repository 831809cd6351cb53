package main

import (
	"net"
	"testing"
	"time"

	"github.com/xtaci/v3edge/edgefilter"
)

func TestWrapEthernetClassifiesAsUDPToPort(t *testing.T) {
	filter := edgefilter.NewFilter(9000)
	payload := make([]byte, 64)
	frame := wrapEthernet(net.ParseIP("10.0.0.5"), 55555, 9000, payload)
	if frame == nil {
		t.Fatalf("expected non-nil frame")
	}

	var magics [3]uint32
	res := filter.Classify(frame, time.Now().UnixNano(), magics)
	if res.Verdict == edgefilter.VerdictPassNonUDP {
		t.Fatalf("expected frame to be recognized as UDP to the configured port")
	}
}

func TestNextNonceNeverRepeats(t *testing.T) {
	fl := &flow{}
	seen := make(map[[12]byte]bool)
	for i := 0; i < 1000; i++ {
		n := fl.nextNonce()
		if seen[n] {
			t.Fatalf("nonce repeated at iteration %d", i)
		}
		seen[n] = true
	}
}
