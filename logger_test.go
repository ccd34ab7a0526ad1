package eventbus

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFileWriterRotates(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "registry.log")

	// Small max size so a few writes trigger rotation.
	writer, err := NewRotatingFileWriter(logFile, 1024)
	require.NoError(t, err)
	defer writer.Close()

	data := make([]byte, 500)
	for i := range data {
		data[i] = 'A'
	}

	for i := 0; i < 3; i++ {
		n, err := writer.Write(data)
		require.NoError(t, err)
		require.Equal(t, len(data), n)
	}

	_, err = os.Stat(logFile + ".1")
	require.NoError(t, err, "rotation should have created a backup file")

	info, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(1024), "current file should have been rotated")
}

func TestRotatingFileWriterConcurrent(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "concurrent.log")

	writer, err := NewRotatingFileWriter(logFile, 10240)
	require.NoError(t, err)
	defer writer.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				writer.Write([]byte(fmt.Sprintf("goroutine %d, message %d\n", id, j)))
			}
		}(i)
	}
	wg.Wait()

	info, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestWithLogFileRecordsDispatch(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "dispatch.log")

	r := New(WithLogFile(logFile))
	r.SubscribeFree(TypeOf[string](), HandlerFunc(func(any) {
		panic("exploding handler")
	}))
	r.Fire("Test")
	require.NoError(t, r.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "handler subscribed")
	assert.Contains(t, string(content), "handler panicked")
	assert.Contains(t, string(content), "exploding handler")
}

func TestWithLogFileUnopenableStaysSilent(t *testing.T) {
	r := New(WithLogFile(filepath.Join(t.TempDir(), "no", "such", "dir", "x.log")))

	assert.Nil(t, r.logger)
	assert.NoError(t, r.Close())
}
