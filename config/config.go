// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config holds the JSON-tagged configuration struct for the relay
// daemon and the pre-shared-passphrase key derivation it depends on to
// produce the 32-byte master key shared out of band with the peer.
package config

import (
	"crypto/sha1"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// Salt is fixed: this is a pre-shared-secret scheme, so secrecy lives in
// the passphrase, not the salt.
const Salt = "v3edge"

// masterKeyLen is the AEAD key size the aead package requires.
const masterKeyLen = 32

// Config is the full JSON configuration for a relay instance.
type Config struct {
	Listen       string  `json:"listen"`
	Target       string  `json:"target"`
	Passphrase   string  `json:"passphrase"`
	MTU          int     `json:"mtu"`
	FECMode      string  `json:"fecmode"`      // "rs" or "xor"
	DataShard    int     `json:"datashard"`
	ParityShard  int     `json:"parityshard"`
	LossRate     float64 `json:"lossrate"`
	Profile      string  `json:"profile"`     // NONE, HTTPS, VIDEO, VOIP, GAMING
	TargetBps    float64 `json:"targetbps"`
	MinBps       float64 `json:"minbps"`
	MaxBps       float64 `json:"maxbps"`
	RTTHintUs    float64 `json:"rtthintus"`
	DSCP         int     `json:"dscp"`
	SockBuf      int     `json:"sockbuf"`
	Log          string  `json:"log"`
	SnmpLog      string  `json:"snmplog"`
	SnmpPeriod   int     `json:"snmpperiod"`
	Pprof        bool    `json:"pprof"`
	Quiet        bool    `json:"quiet"`
}

// ParseJSON overlays path's JSON contents onto cfg, matching kcptun's
// "config from json file, which will override the command from shell"
// precedence.
func ParseJSON(cfg *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "config: open")
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return errors.Wrap(err, "config: decode")
	}
	return nil
}

// DeriveMasterKey stretches a pre-shared passphrase into the 32-byte AEAD
// key via PBKDF2-SHA1, the same construction kcptun uses for its block
// cipher key.
func DeriveMasterKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(Salt), 4096, masterKeyLen, sha1.New)
}
