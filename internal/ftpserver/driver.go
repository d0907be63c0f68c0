package ftpserver

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gonzalop/ftp/server"

	"github.com/gonzalop/ftplab/internal/config"
)

// AnonymousPermissions are granted to anonymous sessions.
const AnonymousPermissions config.Permissions = "elr"

var (
	errBadCredentials = errors.New("invalid username or password")
	errLockedOut      = errors.New("too many failed login attempts")
)

// Driver authenticates the lab account and hands out session contexts rooted
// at the server root. It sits in front of the engine's filesystem driver so
// that every login decision is reported.
type Driver struct {
	fs      *server.FSDriver
	events  *Events
	guard   *loginGuard
	journal *transferJournal
	metrics *Metrics

	user        string
	password    string
	permissions config.Permissions
	anonymous   bool
}

// NewDriver returns a driver serving root with the account, permissions and
// login limits from cfg.
func NewDriver(root string, cfg *config.Server, events *Events) (*Driver, error) {
	d := &Driver{
		events:      events,
		guard:       newLoginGuard(cfg.MaxLoginAttempts, cfg.LoginLockout),
		journal:     newTransferJournal(),
		user:        cfg.User,
		password:    cfg.Password,
		permissions: cfg.Permissions,
		anonymous:   cfg.AllowAnonymous,
	}

	fs, err := server.NewFSDriver(root,
		server.WithAuthenticator(func(user, pass, _ string, _ net.IP) (string, bool, error) {
			switch {
			case d.isAccount(user, pass):
				return root, !d.permissions.Writable(), nil
			case d.isAnonymous(user):
				return root, true, nil
			}
			return "", false, errBadCredentials
		}),
		server.WithSettings(&server.Settings{
			PublicHost:  cfg.PublicHost,
			PasvMinPort: cfg.PasvMinPort,
			PasvMaxPort: cfg.PasvMaxPort,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem driver: %w", err)
	}
	d.fs = fs
	return d, nil
}

func (d *Driver) isAccount(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(d.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(d.password)) == 1
	return userOK && passOK
}

func (d *Driver) isAnonymous(user string) bool {
	return d.anonymous && (user == "anonymous" || user == "ftp")
}

// Authenticate implements server.Driver.
func (d *Driver) Authenticate(user, pass, host string, remoteIP net.IP) (server.ClientContext, error) {
	ip := ipString(remoteIP)

	if until, locked := d.guard.lockedUntil(ip); locked {
		d.events.LoginLocked(user, ip, until)
		return nil, errLockedOut
	}

	ctx, err := d.fs.Authenticate(user, pass, host, remoteIP)
	if err != nil {
		d.events.LoginFailed(user, pass, ip)
		if until, locked := d.guard.fail(ip); locked {
			d.events.LoginLocked(user, ip, until)
		}
		return nil, err
	}

	d.guard.succeed(ip)
	d.events.LoginSucceeded(user, ip)

	perms := d.permissions
	if !d.isAccount(user, pass) {
		perms = AnonymousPermissions
	}
	return &sessionContext{
		ClientContext: ctx,
		user:          user,
		ip:            ip,
		perms:         perms,
		events:        d.events,
		journal:       d.journal,
		metrics:       d.metrics,
	}, nil
}

// TransferLog wraps the engine's xferlog destination w. Uploads are reported
// as complete only when the engine logged them through this writer, so it
// must be passed to server.WithTransferLog. w may be nil.
func (d *Driver) TransferLog(w io.Writer) io.Writer {
	return d.journal.tee(w)
}

// setClock replaces the lockout clock; tests only.
func (d *Driver) setClock(now func() time.Time) {
	d.guard.now = now
}

func ipString(ip net.IP) string {
	if ip == nil {
		return "unknown"
	}
	return ip.String()
}
