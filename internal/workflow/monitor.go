// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package workflow

import (
	"sync"
	"time"
)

// monitor owns the periodic capacity and break timers of one active workflow.
// Stop is reachable from every exit path and is safe to call more than once;
// after Stop returns, no tick function runs again.
type monitor struct {
	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// startMonitor launches the capacity and break tickers. Either interval may
// be zero to skip that timer.
func startMonitor(capacityInterval, breakInterval time.Duration, onCapacity, onBreak func()) *monitor {
	m := &monitor{stop: make(chan struct{})}

	if capacityInterval > 0 && onCapacity != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ticker := time.NewTicker(capacityInterval)
			defer ticker.Stop()
			for {
				select {
				case <-m.stop:
					return
				case <-ticker.C:
					onCapacity()
				}
			}
		}()
	}

	if breakInterval > 0 && onBreak != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ticker := time.NewTicker(breakInterval)
			defer ticker.Stop()
			for {
				select {
				case <-m.stop:
					return
				case <-ticker.C:
					onBreak()
				}
			}
		}()
	}

	return m
}

// Stop cancels both timers and waits for the tick goroutines to exit.
func (m *monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()
}
