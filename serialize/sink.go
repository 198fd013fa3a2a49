package serialize

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/k2g/logging"
	"go.viam.com/k2g/pointcloud"
	"go.viam.com/k2g/rimage"
)

// Sink receives every cloud and color frame a session produces.
type Sink interface {
	WriteCloud(cloud *pointcloud.Organized) error
	WriteColorFrame(frame *rimage.ColorFrame) error
	Close() error
}

// FileSink appends records to a file named stream<unix ms> in a directory. The file is created
// on the first write.
type FileSink struct {
	dir    string
	clock  clock.Clock
	logger logging.Logger

	mu     sync.Mutex
	path   string
	file   *os.File
	buf    *bufio.Writer
	writer *Writer
	closed bool
}

// NewFileSink returns a sink writing into dir.
func NewFileSink(dir string, clk clock.Clock, logger logging.Logger) *FileSink {
	if clk == nil {
		clk = clock.New()
	}
	return &FileSink{dir: dir, clock: clk, logger: logger}
}

// Path returns the file being written, or "" before the first write.
func (fs *FileSink) Path() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.path
}

func (fs *FileSink) open() (*Writer, error) {
	if fs.closed {
		return nil, errors.New("sink is closed")
	}
	if fs.writer != nil {
		return fs.writer, nil
	}
	if err := os.MkdirAll(fs.dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "error creating stream directory %s", fs.dir)
	}
	path := filepath.Join(fs.dir, fmt.Sprintf("stream%d", fs.clock.Now().UnixMilli()))
	//nolint:gosec
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, errors.Wrap(err, "error creating stream file")
	}
	fs.path = path
	fs.file = f
	fs.buf = bufio.NewWriter(f)
	fs.writer = NewWriter(fs.buf, fs.clock)
	fs.logger.Infow("serializing to stream", "path", path)
	return fs.writer, nil
}

// WriteCloud appends a cloud record.
func (fs *FileSink) WriteCloud(cloud *pointcloud.Organized) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	w, err := fs.open()
	if err != nil {
		return err
	}
	return w.WriteCloud(cloud)
}

// WriteColorFrame appends a color frame record.
func (fs *FileSink) WriteColorFrame(frame *rimage.ColorFrame) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	w, err := fs.open()
	if err != nil {
		return err
	}
	return w.WriteColorFrame(frame)
}

// Close flushes and closes the stream file. It is safe to call more than once.
func (fs *FileSink) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil
	}
	fs.closed = true
	if fs.file == nil {
		return nil
	}
	return multierr.Combine(fs.buf.Flush(), fs.file.Close())
}
