// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cmarchand/xpath-basex-ext/internal/terminal"

	"atomicgo.dev/cursor"
)

var spinnerFrames = []string{"-", "\\", "|", "/"}

// startInlineSpinner animates frames followed by text on the current line of
// w until the returned function is called, which erases the line.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", line)
				i++
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

// spin shows a spinner on stderr with the cursor hidden while work runs.
// Nothing is drawn when stderr is not a terminal.
func spin(text string) func() {
	if !terminal.IsTerminal(os.Stderr) {
		return func() {}
	}
	cursor.Hide()
	stop := startInlineSpinner(os.Stderr, text, spinnerFrames, 100*time.Millisecond)
	return sync.OnceFunc(func() {
		stop()
		cursor.Show()
	})
}
