package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	SummaryFilename    = "summary.log"
	ResultsFilename    = "results.html"
	FailedDirname      = "failed"
)

// FileLogger writes the output of scenario executions to per-attempt files
// under <baseDir>/testrun-<runID>/.
type FileLogger struct {
	baseDir      string                // Root log directory
	logDir       string                // Directory for this run
	failedDir    string                // Copies of logs for scenarios that failed after retry
	runID        string                // Current run ID
	mu           sync.Mutex            // Protects asyncWriters
	asyncWriters map[string]*AsyncFile // Map of async file writers
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(filepath string) (*AsyncFile, error) {
	file, err := os.Create(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", filepath, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100), // Buffer channel to reduce blocking
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) (int, error) {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return 0, fmt.Errorf("async file is closed")
	}

	// Make a copy of the data, callers may reuse the buffer
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	af.queue <- dataCopy
	return len(data), nil
}

// processQueue processes the write queue in the background
func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		_, err := af.file.Write(data)
		if err != nil {
			// Log the error but continue processing
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if af.stopped {
		af.mu.Unlock()
		return nil
	}
	af.stopped = true
	close(af.queue)
	af.mu.Unlock()

	// Wait for all writes to complete
	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates the run directory for runID below baseDir.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	failedDir := filepath.Join(logDir, FailedDirname)
	for _, dir := range []string{baseDir, logDir, failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		failedDir:    failedDir,
		runID:        runID,
		asyncWriters: make(map[string]*AsyncFile),
	}, nil
}

// AttemptWriter opens the log file for one scenario attempt. Everything written to the
// returned writer lands in <run dir>/<name>.log with ANSI escape sequences removed. The
// caller must Close it once the attempt has finished.
func (l *FileLogger) AttemptWriter(name string) (io.WriteCloser, string, error) {
	path := filepath.Join(l.logDir, safeFilename(name)+".log")
	writer, err := l.getAsyncWriter(path)
	if err != nil {
		return nil, "", err
	}
	return &ansiStripWriter{out: writer, closer: writer}, path, nil
}

// MarkFailed copies the log of a scenario that failed after all retries into the failed
// directory, so failures are easy to find in large runs.
func (l *FileLogger) MarkFailed(logPath string) error {
	if logPath == "" {
		return nil
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		return fmt.Errorf("failed to read log %s: %w", logPath, err)
	}
	dst := filepath.Join(l.failedDir, filepath.Base(logPath))
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("failed to write failed log %s: %w", dst, err)
	}
	return nil
}

// LogSummary writes the run summary to summary.log in the run directory
func (l *FileLogger) LogSummary(summary string) error {
	writer, err := l.getAsyncWriter(l.GetSummaryFile())
	if err != nil {
		return err
	}
	_, err = writer.Write([]byte(summary))
	return err
}

// Complete closes all file writers
func (l *FileLogger) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, writer := range l.asyncWriters {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.asyncWriters = make(map[string]*AsyncFile)
	return firstErr
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}

	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

// GetDirectory returns the directory of the current run
func (l *FileLogger) GetDirectory() string {
	return l.logDir
}

// GetFailedDir returns the directory containing logs for failed scenarios
func (l *FileLogger) GetFailedDir() string {
	return l.failedDir
}

// GetSummaryFile returns the path to the summary file
func (l *FileLogger) GetSummaryFile() string {
	return filepath.Join(l.logDir, SummaryFilename)
}

// GetResultsFile returns the path to the HTML results page
func (l *FileLogger) GetResultsFile() string {
	return filepath.Join(l.logDir, ResultsFilename)
}

// ansiStripWriter buffers partial lines so escape sequences split across writes are still
// removed, and forwards complete lines without color codes.
type ansiStripWriter struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
	buf    []byte
}

func (w *ansiStripWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	idx := bytes.LastIndexByte(w.buf, '\n')
	if idx < 0 {
		return len(p), nil
	}
	lines := w.buf[:idx+1]
	if _, err := io.WriteString(w.out, stripANSIEscapeSequences(string(lines))); err != nil {
		return 0, err
	}
	w.buf = append(w.buf[:0], w.buf[idx+1:]...)
	return len(p), nil
}

// Close flushes any trailing partial line and closes the underlying file
func (w *ansiStripWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		if _, err := io.WriteString(w.out, stripANSIEscapeSequences(string(w.buf))); err != nil {
			return err
		}
		w.buf = nil
	}
	return w.closer.Close()
}

func stripANSIEscapeSequences(s string) string {
	return stripansi.Strip(s)
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	s = strings.ReplaceAll(s, "?", "_")
	s = strings.ReplaceAll(s, "\"", "_")
	s = strings.ReplaceAll(s, "<", "_")
	s = strings.ReplaceAll(s, ">", "_")
	s = strings.ReplaceAll(s, "|", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "...", "")
	return s
}
