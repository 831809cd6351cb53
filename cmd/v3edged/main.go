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

package main

import (
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/xtaci/v3edge/config"
	"github.com/xtaci/v3edge/snmp"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "v3edged"
	myApp.Usage = "edge relay: magic-gated, FEC-protected, shaped UDP forwarding"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "listen,l", Value: ":29900", Usage: "UDP listen address"},
		cli.StringFlag{Name: "target,t", Value: "127.0.0.1:12948", Usage: "upstream target address"},
		cli.StringFlag{Name: "passphrase", Value: "it's a secret", Usage: "pre-shared passphrase", EnvVar: "V3EDGE_PASSPHRASE"},
		cli.IntFlag{Name: "mtu", Value: 1400, Usage: "path MTU used to derive MSS"},
		cli.StringFlag{Name: "fecmode", Value: "rs", Usage: "rs or xor"},
		cli.IntFlag{Name: "datashard,ds", Value: 4, Usage: "FEC data shards (K)"},
		cli.IntFlag{Name: "parityshard,ps", Value: 1, Usage: "FEC parity shards (M, RS mode only)"},
		cli.Float64Flag{Name: "lossrate", Value: 0, Usage: "expected loss rate, adjusts RS parity count"},
		cli.StringFlag{Name: "profile", Value: "NONE", Usage: "traffic shaping profile: NONE, HTTPS, VIDEO, VOIP, GAMING"},
		cli.Float64Flag{Name: "targetbps", Value: 5_000_000, Usage: "pacer target bits/sec"},
		cli.Float64Flag{Name: "minbps", Value: 100_000, Usage: "pacer minimum bits/sec"},
		cli.Float64Flag{Name: "maxbps", Value: 20_000_000, Usage: "pacer maximum bits/sec"},
		cli.IntFlag{Name: "sockbuf", Value: 4194304, Usage: "per-socket buffer in bytes"},
		cli.StringFlag{Name: "snmplog", Value: "", Usage: "collect counter snapshots to file, aware of Go timeformat, e.g. ./snmp-20060102.log"},
		cli.IntFlag{Name: "snmpperiod", Value: 60, Usage: "snmp collect period, in seconds"},
		cli.StringFlag{Name: "log", Value: "", Usage: "specify a log file to output, default goes to stderr"},
		cli.IntFlag{Name: "dscp", Value: 0, Usage: "set DSCP(6bit)"},
		cli.BoolFlag{Name: "pprof", Usage: "start profiling server on :6060"},
		cli.BoolFlag{Name: "quiet", Usage: "suppress per-flow logging"},
		cli.StringFlag{Name: "c", Value: "", Usage: "config from json file, which will override the command from shell"},
	}
	myApp.Action = run

	if err := myApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := config.Config{
		Listen:      c.String("listen"),
		Target:      c.String("target"),
		Passphrase:  c.String("passphrase"),
		MTU:         c.Int("mtu"),
		FECMode:     c.String("fecmode"),
		DataShard:   c.Int("datashard"),
		ParityShard: c.Int("parityshard"),
		LossRate:    c.Float64("lossrate"),
		Profile:     c.String("profile"),
		TargetBps:   c.Float64("targetbps"),
		MinBps:      c.Float64("minbps"),
		MaxBps:      c.Float64("maxbps"),
		SockBuf:     c.Int("sockbuf"),
		DSCP:        c.Int("dscp"),
		Log:         c.String("log"),
		SnmpLog:     c.String("snmplog"),
		SnmpPeriod:  c.Int("snmpperiod"),
		Pprof:       c.Bool("pprof"),
		Quiet:       c.Bool("quiet"),
	}

	if c.String("c") != "" {
		if err := config.ParseJSON(&cfg, c.String("c")); err != nil {
			return err
		}
	}

	if cfg.Log != "" {
		f, err := os.OpenFile(cfg.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetOutput(f)
	}

	banner()
	log.Println("version:", VERSION)
	log.Println("listening on:", cfg.Listen)
	log.Println("target:", cfg.Target)
	log.Println("mtu:", cfg.MTU)
	log.Println("fec mode:", cfg.FECMode, "datashard:", cfg.DataShard, "parityshard:", cfg.ParityShard)
	log.Println("profile:", cfg.Profile)
	log.Println("snmplog:", cfg.SnmpLog)

	relay, err := NewRelay(&cfg)
	if err != nil {
		return err
	}
	log.Println("fec engine:", relay.engineName())

	if cfg.SnmpLog != "" {
		go snmp.Logger(cfg.SnmpLog, time.Duration(cfg.SnmpPeriod)*time.Second, relay.filter.Counters)
	}
	if cfg.Pprof {
		go http.ListenAndServe(":6060", nil)
	}

	return relay.Run()
}

func banner() {
	color.Cyan(fmt.Sprintf("v3edged %s", VERSION))
}
