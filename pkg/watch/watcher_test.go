package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabio/insight-dash/pkg/logging"
)

func TestMatch(t *testing.T) {
	patterns := []string{"*.csv", "*.xlsx", "reports/**/*.xls"}

	tests := []struct {
		rel  string
		want bool
	}{
		{"sales.csv", true},
		{"nested/deep/sales.csv", true},
		{"book.xlsx", true},
		{"reports/2024/q1.xls", true},
		{"other/q1.xls", false},
		{"notes.txt", false},
		{".hidden.csv", false},
		{"~$book.xlsx", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(patterns, tt.rel))
		})
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New(Options{Dir: t.TempDir(), Patterns: []string{"[unclosed"}})
	assert.Error(t, err)
}

func startWatcher(t *testing.T, dir string) <-chan string {
	t.Helper()
	return startWatcherWithDebounce(t, dir, 50*time.Millisecond)
}

func startWatcherWithDebounce(t *testing.T, dir string, debounce time.Duration) <-chan string {
	t.Helper()
	w, err := New(Options{
		Dir:      dir,
		Patterns: []string{"*.csv"},
		Debounce: debounce,
		Logger:   logging.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	files := make(chan string, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(_ context.Context, path string) { files <- path })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	return files
}

func expectFile(t *testing.T, files <-chan string, want string) {
	t.Helper()
	select {
	case got := <-files:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func TestTickInterval(t *testing.T) {
	tests := []struct {
		debounce time.Duration
		want     time.Duration
	}{
		{debounce: DefaultDebounce, want: 250 * time.Millisecond},
		{debounce: 2 * time.Millisecond, want: time.Millisecond},
		{debounce: time.Nanosecond, want: minTick},
	}

	for _, tt := range tests {
		t.Run(tt.debounce.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tickInterval(tt.debounce))
		})
	}
}

func TestRunWithTinyDebounce(t *testing.T) {
	dir := t.TempDir()
	files := startWatcherWithDebounce(t, dir, time.Nanosecond)

	csv := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(csv, []byte("region,sales\n"), 0o644))
	expectFile(t, files, csv)
}

func TestRunDispatchesMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	files := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0o644))
	csv := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(csv, []byte("region,sales\n"), 0o644))

	expectFile(t, files, csv)

	select {
	case extra := <-files:
		t.Fatalf("unexpected dispatch of %s", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRunWatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	files := startWatcher(t, dir)

	sub := filepath.Join(dir, "incoming")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)

	csv := filepath.Join(sub, "q2.csv")
	require.NoError(t, os.WriteFile(csv, []byte("x"), 0o644))

	expectFile(t, files, csv)
}

func TestSettledWaitsForQuiet(t *testing.T) {
	w := &Watcher{debounce: time.Second, pending: make(map[string]time.Time)}
	now := time.Now()
	w.pending["/a.csv"] = now.Add(-2 * time.Second)
	w.pending["/b.csv"] = now

	assert.Equal(t, []string{"/a.csv"}, w.settled(now))
	assert.Contains(t, w.pending, "/b.csv")
	assert.Equal(t, []string{"/b.csv"}, w.settled(now.Add(time.Second)))
}
