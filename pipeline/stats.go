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

package pipeline

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// StatsLogger periodically snapshots cumulative pipeline counters to a CSV
// file, the way std/snmp.go's SnmpLogger snapshots kcp.DefaultSnmp on a
// ticker. A pipeline has no per-connection SNMP counters to sample, so the
// counters here are the ones a throughput-tuning caller actually wants:
// inputs/batches/outputs processed so far. Every interval the full run of
// rows accumulated is additionally archived, snappy-compressed, to path +
// ".snappy" -- the archival counterpart to std/comp.go's CompStream, here
// wrapping a plain file instead of a net.Conn since there is no peer to
// stream to.
type StatsLogger struct {
	path     string
	interval time.Duration

	inputsProcessed int64
	batchesDispatched int64
	outputsFinished int64

	mu   sync.Mutex
	rows [][]string

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewStatsLogger builds a logger that writes to path every interval. A
// zero path or non-positive interval disables logging, mirroring
// SnmpLogger's own "path == '' || interval == 0" no-op guard.
func NewStatsLogger(path string, interval time.Duration) *StatsLogger {
	return &StatsLogger{path: path, interval: interval, stop: make(chan struct{})}
}

func (s *StatsLogger) recordInputs(n int)  { atomic.AddInt64(&s.inputsProcessed, int64(n)) }
func (s *StatsLogger) recordBatch()        { atomic.AddInt64(&s.batchesDispatched, 1) }
func (s *StatsLogger) recordOutput()       { atomic.AddInt64(&s.outputsFinished, 1) }

// Start launches the periodic snapshot loop. No-op if disabled.
func (s *StatsLogger) Start() {
	if s.path == "" || s.interval <= 0 {
		return
	}
	s.wg.Add(1)
	go s.run()
}

// Close stops the snapshot loop and waits for it to exit.
func (s *StatsLogger) Close() {
	if s.path == "" || s.interval <= 0 {
		return
	}
	close(s.stop)
	s.wg.Wait()
}

func (s *StatsLogger) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.snapshot(now)
		}
	}
}

func (s *StatsLogger) snapshot(now time.Time) {
	row := []string{
		fmt.Sprint(now.Unix()),
		fmt.Sprint(atomic.LoadInt64(&s.inputsProcessed)),
		fmt.Sprint(atomic.LoadInt64(&s.batchesDispatched)),
		fmt.Sprint(atomic.LoadInt64(&s.outputsFinished)),
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Println(err)
		return
	}
	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write([]string{"Unix", "InputsProcessed", "BatchesDispatched", "OutputsFinished"}); err != nil {
			log.Println(err)
		}
	}
	if err := w.Write(row); err != nil {
		log.Println(err)
	}
	w.Flush()
	f.Close()

	s.mu.Lock()
	s.rows = append(s.rows, row)
	rows := append([][]string(nil), s.rows...)
	s.mu.Unlock()

	if err := s.archive(rows); err != nil {
		log.Println(errors.WithStack(err))
	}
}

// archive writes the full row history to path+".snappy", snappy-framed, so
// a long-running process's stats history stays cheap to ship around even
// as it grows.
func (s *StatsLogger) archive(rows [][]string) error {
	f, err := os.OpenFile(s.path+".snappy", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	sw := snappy.NewBufferedWriter(f)
	w := csv.NewWriter(sw)
	if err := w.Write([]string{"Unix", "InputsProcessed", "BatchesDispatched", "OutputsFinished"}); err != nil {
		return errors.WithStack(err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return errors.WithStack(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(sw.Close())
}
