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

// Package snmp periodically snapshots the Edge Filter's counter bank to a
// CSV file, the same rotate-by-filename-format-string pattern kcptun uses
// for its own SNMP dump.
package snmp

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Source is the subset of edgefilter.Counters this package needs.
type Source interface {
	Header() []string
	Row() []string
}

// Logger ticks on an interval, appending one CSV row per tick to a file
// whose name is a time.Format pattern (so operators can roll daily/hourly
// files by naming the path accordingly, e.g. "snmp-20060102.csv").
func Logger(path string, interval time.Duration, src Source) {
	if path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		writeSnapshot(path, src)
	}
}

func writeSnapshot(path string, src Source) {
	logdir, logfile := filepath.Split(path)
	f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Println(err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(append([]string{"Unix"}, src.Header()...)); err != nil {
			log.Println(err)
		}
	}
	if err := w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, src.Row()...)); err != nil {
		log.Println(err)
	}
	w.Flush()
}
