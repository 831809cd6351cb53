package fec

// Mode selects the erasure-coding scheme.
type Mode int

const (
	// ModeRS is the general K-data/M-parity Reed-Solomon scheme.
	ModeRS Mode = iota
	// ModeXOR is the single-parity XOR scheme (K <= 4, M == 1).
	ModeXOR
)

// Codec bundles a per-sender encoder with a per-receiver decoder for one
// flow. encoder state must not be shared across threads; instantiate
// one Codec per sender/receiver pair.
type Codec struct {
	mode Mode
	rsEnc  *Encoder
	rsDec  *Decoder
	xorEnc *XOREncoder
	xorDec *XORDecoder
}

// NewCodec builds a codec for K data / M parity shards in the given mode.
func NewCodec(mode Mode, k, m int) *Codec {
	c := &Codec{mode: mode}
	switch mode {
	case ModeXOR:
		c.xorEnc = NewXOREncoder(k)
		c.xorDec = NewXORDecoder()
	default:
		c.rsEnc = NewEncoder(k, m)
		c.rsDec = NewDecoder()
	}
	return c
}

// Encode splits buf into data+parity shards per the codec's mode.
func (c *Codec) Encode(buf []byte) (groupID uint32, shards []Shard, ok bool) {
	if c.mode == ModeXOR {
		return c.xorEnc.Encode(buf)
	}
	return c.rsEnc.Encode(buf)
}

// Decode folds one received shard into its group's decode cache.
func (c *Codec) Decode(s Shard) DecodeResult {
	if c.mode == ModeXOR {
		return c.xorDec.Decode(s)
	}
	return c.rsDec.Decode(s)
}

// SetLossRate adjusts the RS encoder's M for the next group. XOR mode
// ignores the call.
func (c *Codec) SetLossRate(r float64) {
	if c.mode == ModeRS && c.rsEnc != nil {
		c.rsEnc.SetLossRate(r)
	}
}

// EngineName reports which GF(2^8) engine (scalar or wide-lane) this
// codec's RS encoder was constructed with; empty for XOR-mode codecs.
func (c *Codec) EngineName() string {
	if c.rsEnc != nil {
		return c.rsEnc.eng.name()
	}
	return ""
}
