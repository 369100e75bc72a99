package collect

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/homectlx/panel/internal/errors"
	"github.com/homectlx/panel/internal/protocol"
)

// File is one file selected in a file-type input.
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// OSFile is a file on the local filesystem.
type OSFile string

// Name returns the base name, as a browser would report it.
func (f OSFile) Name() string { return filepath.Base(string(f)) }

// Open opens the file for reading.
func (f OSFile) Open() (io.ReadCloser, error) { return os.Open(string(f)) }

// MemFile is an in-memory file.
type MemFile struct {
	FileName string
	Data     []byte
}

// Name returns the file name.
func (f MemFile) Name() string { return f.FileName }

// Open returns a reader over the data.
func (f MemFile) Open() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(f.Data)), nil }

// Uploads tracks the asynchronous reads started by one collection.
// Each file is a future; the set completes when all of them have.
type Uploads struct {
	pending atomic.Int32
	bytes   atomic.Int64
	group   *errgroup.Group
	ctx     context.Context
	done    chan struct{}
	err     error
	started bool
}

func newUploads(ctx context.Context) *Uploads {
	g, gctx := errgroup.WithContext(ctx)
	return &Uploads{group: g, ctx: gctx, done: make(chan struct{})}
}

// Pending returns the number of reads still outstanding.
func (u *Uploads) Pending() int { return int(u.pending.Load()) }

// Done is closed once every read has finished or one has failed.
func (u *Uploads) Done() <-chan struct{} { return u.done }

// Err returns the first read failure. Valid after Done is closed.
func (u *Uploads) Err() error { return u.err }

// Bytes returns the number of file bytes read so far.
func (u *Uploads) Bytes() int64 { return u.bytes.Load() }

// read starts the future for file i of bundle.
func (u *Uploads) read(bundle *protocol.FileBundle, i int, f File) {
	u.started = true
	u.pending.Add(1)
	u.group.Go(func() error {
		defer u.pending.Add(-1)
		if err := u.ctx.Err(); err != nil {
			return err
		}
		dataURL, n, err := ReadDataURL(f)
		if err != nil {
			return apperrors.UploadReadFailed(f.Name(), err)
		}
		bundle.Bytes[i] = dataURL
		u.bytes.Add(n)
		return nil
	})
}

// seal joins the futures. No further reads may be started.
func (u *Uploads) seal() {
	if !u.started {
		close(u.done)
		return
	}
	go func() {
		u.err = u.group.Wait()
		close(u.done)
	}()
}

// ReadDataURL reads f fully and encodes it as a base64 data URL.
func ReadDataURL(f File) (string, int64, error) {
	rc, err := f.Open()
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", 0, err
	}
	mediaType, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")

	var sb strings.Builder
	sb.Grow(len("data:;base64,") + len(mediaType) + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString("data:")
	sb.WriteString(mediaType)
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	return sb.String(), int64(len(data)), nil
}
