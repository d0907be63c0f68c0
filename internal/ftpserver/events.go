package ftpserver

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gonzalop/ftplab/internal/logging"
)

// Events reports session lifecycle events twice: a timestamped line on the
// console and a structured record in the server log.
type Events struct {
	out io.Writer
	log *zap.Logger
	now func() time.Time

	mu sync.Mutex
}

// NewEvents returns an Events writing console lines to out and records to
// log.
func NewEvents(out io.Writer, log *zap.Logger) *Events {
	if log == nil {
		log = zap.NewNop()
	}
	return &Events{out: out, log: log, now: time.Now}
}

func (e *Events) console(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.out, "[%s] %s\n", e.now().Format(logging.TimeLayout), fmt.Sprintf(format, args...))
}

// Connected reports an accepted control connection.
func (e *Events) Connected(addr, sessionID string) {
	e.console("CLIENT CONNECTED: %s", addr)
	e.log.Info(fmt.Sprintf("[CONNECTION] Client connected from %s", addr), zap.String("session_id", sessionID))
}

// Disconnected reports a closed control connection and how long it lasted.
func (e *Events) Disconnected(addr, sessionID string, d time.Duration) {
	e.console("CLIENT DISCONNECTED: %s", addr)
	e.log.Info(fmt.Sprintf("[DISCONNECTION] Client %s disconnected", addr),
		zap.String("session_id", sessionID),
		zap.Duration("duration", d),
	)
}

// LoginSucceeded reports an accepted login.
func (e *Events) LoginSucceeded(user, ip string) {
	e.console("LOGIN SUCCESS: User '%s' from %s", user, ip)
	e.log.Info(fmt.Sprintf("[LOGIN] User '%s' logged in from %s", user, ip))
}

// LoginFailed records a rejected login. The log record carries the attempted
// password; the console line does not.
func (e *Events) LoginFailed(user, password, ip string) {
	e.console("LOGIN FAILED: User '%s' from %s", user, ip)
	e.log.Warn(fmt.Sprintf("[LOGIN FAILED] Failed login attempt - Username: '%s', Password: '%s' from %s", user, password, ip))
}

// LoginLocked reports a login refused because the address is locked out.
func (e *Events) LoginLocked(user, ip string, until time.Time) {
	e.console("LOGIN LOCKED: User '%s' from %s until %s", user, ip, until.Format(logging.TimeLayout))
	e.log.Warn(fmt.Sprintf("[LOGIN LOCKED] Login for user '%s' from %s refused until %s", user, ip, until.Format(logging.TimeLayout)))
}

// Logout reports the end of an authenticated session.
func (e *Events) Logout(user, ip string) {
	e.console("LOGOUT: User '%s' from %s", user, ip)
	e.log.Info(fmt.Sprintf("[LOGOUT] User '%s' logged out from %s", user, ip))
}

// FileSent reports a download that reached the end of the file.
func (e *Events) FileSent(file, user, ip string, bytes int64) {
	e.console("FILE DOWNLOADED: '%s' by %s", file, user)
	e.log.Info(fmt.Sprintf("[DOWNLOAD] File '%s' downloaded by %s from %s", file, user, ip), zap.Int64("bytes", bytes))
}

// FileSendIncomplete reports a download that stopped before the end of the file.
func (e *Events) FileSendIncomplete(file, user, ip string, bytes int64) {
	e.console("FILE DOWNLOAD INCOMPLETE: '%s' by %s", file, user)
	e.log.Warn(fmt.Sprintf("[DOWNLOAD] Incomplete download of '%s' by %s from %s", file, user, ip), zap.Int64("bytes", bytes))
}

// FileReceived reports an upload the engine completed.
func (e *Events) FileReceived(file, user, ip string, bytes int64) {
	e.console("FILE UPLOADED: '%s' by %s", file, user)
	e.log.Info(fmt.Sprintf("[UPLOAD] File '%s' uploaded by %s from %s", file, user, ip), zap.Int64("bytes", bytes))
}

// FileReceiveIncomplete reports an upload that failed or was aborted. Whatever
// reached the file stays on disk.
func (e *Events) FileReceiveIncomplete(file, user, ip string, bytes int64) {
	e.console("FILE UPLOAD INCOMPLETE: '%s' by %s", file, user)
	e.log.Warn(fmt.Sprintf("[UPLOAD] Incomplete upload of '%s' by %s from %s", file, user, ip), zap.Int64("bytes", bytes))
}

// List reports a directory listing.
func (e *Events) List(dir, user string) {
	e.console("COMMAND: LIST '%s' by %s", dir, user)
	e.log.Info(fmt.Sprintf("[COMMAND] LIST command executed by %s for path: %s", user, dir))
}

// Pwd reports a PWD command.
func (e *Events) Pwd(user string) {
	e.console("COMMAND: PWD by %s", user)
	e.log.Info(fmt.Sprintf("[COMMAND] PWD command executed by %s", user))
}

// Cwd reports a directory change; dir is the path as the client sent it.
func (e *Events) Cwd(dir, user string) {
	e.console("COMMAND: CWD '%s' by %s", dir, user)
	e.log.Info(fmt.Sprintf("[COMMAND] CWD command executed by %s to: %s", user, dir))
}
