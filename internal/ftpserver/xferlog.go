package ftpserver

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"sync"
)

// transferJournal watches the engine's xferlog stream. The engine writes a
// record only for a transfer that completed, before it closes the file, so an
// upload is complete exactly when a matching record is pending at Close.
type transferJournal struct {
	mu      sync.Mutex
	partial []byte
	pending map[uploadKey]int
}

type uploadKey struct {
	user  string
	bytes int64
}

func newTransferJournal() *transferJournal {
	return &transferJournal{pending: make(map[uploadKey]int)}
}

// tee returns a writer that copies every record to w and notes completed
// uploads.
func (j *transferJournal) tee(w io.Writer) io.Writer {
	if w == nil {
		return j
	}
	return io.MultiWriter(w, j)
}

func (j *transferJournal) Write(p []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.partial = append(j.partial, p...)
	for {
		i := bytes.IndexByte(j.partial, '\n')
		if i < 0 {
			break
		}
		j.record(string(j.partial[:i]))
		j.partial = j.partial[i+1:]
	}
	return len(p), nil
}

// record parses one xferlog line:
//
//	date(5) time host size filename... type action direction mode user service auth authuser status
//
// The filename may contain spaces, so the trailing fields are read from the
// right.
func (j *transferJournal) record(line string) {
	f := strings.Fields(line)
	if len(f) < 18 {
		return
	}
	n := len(f)
	direction, user, status := f[n-7], f[n-5], f[n-1]
	if direction != "i" || status != "c" {
		return
	}
	size, err := strconv.ParseInt(f[7], 10, 64)
	if err != nil {
		return
	}
	j.pending[uploadKey{user: user, bytes: size}]++
}

// completed consumes the record for an upload of n bytes by user, if any.
func (j *transferJournal) completed(user string, n int64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	k := uploadKey{user: user, bytes: n}
	if j.pending[k] == 0 {
		return false
	}
	j.pending[k]--
	if j.pending[k] == 0 {
		delete(j.pending, k)
	}
	return true
}
