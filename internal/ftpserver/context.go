package ftpserver

import (
	"io"
	"os"
	"path"
	"time"

	"github.com/gonzalop/ftp/server"

	"github.com/gonzalop/ftplab/internal/config"
)

// sessionContext decorates the engine's per-session filesystem context. It
// enforces the permission letters, reports directory commands, finished
// transfers and logout, and counts the commands it sees.
type sessionContext struct {
	server.ClientContext

	user    string
	ip      string
	perms   config.Permissions
	events  *Events
	journal *transferJournal
	metrics *Metrics
}

func (c *sessionContext) require(letter byte) error {
	if c.perms.Allows(letter) {
		return nil
	}
	return os.ErrPermission
}

// track starts timing cmd; call the result with the operation's error.
//
//	defer c.track("MKD")(&err)
func (c *sessionContext) track(cmd string) func(*error) {
	start := time.Now()
	return func(err *error) {
		c.metrics.RecordCommand(cmd, *err == nil, time.Since(start))
	}
}

// display returns the absolute virtual path of p for event messages.
func (c *sessionContext) display(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	wd, err := c.ClientContext.GetWd()
	if err != nil {
		return p
	}
	return path.Join(wd, p)
}

func (c *sessionContext) ChangeDir(p string) (err error) {
	defer c.track("CWD")(&err)
	if err := c.require(config.PermChangeDir); err != nil {
		return err
	}
	c.events.Cwd(p, c.user)
	return c.ClientContext.ChangeDir(p)
}

func (c *sessionContext) GetWd() (wd string, err error) {
	defer c.track("PWD")(&err)
	c.events.Pwd(c.user)
	return c.ClientContext.GetWd()
}

// ListDir serves LIST, NLST and MLSD.
func (c *sessionContext) ListDir(p string) (entries []os.FileInfo, err error) {
	defer c.track("LIST")(&err)
	if err := c.require(config.PermList); err != nil {
		return nil, err
	}
	c.events.List(c.display(p), c.user)
	return c.ClientContext.ListDir(p)
}

// GetFileInfo serves SIZE, MDTM and MLST, and the existence check of RNFR,
// so either l or f is enough.
func (c *sessionContext) GetFileInfo(p string) (os.FileInfo, error) {
	if !c.perms.Allows(config.PermList) && !c.perms.Allows(config.PermRename) {
		return nil, os.ErrPermission
	}
	return c.ClientContext.GetFileInfo(p)
}

func (c *sessionContext) MakeDir(p string) (err error) {
	defer c.track("MKD")(&err)
	if err := c.require(config.PermMakeDir); err != nil {
		return err
	}
	return c.ClientContext.MakeDir(p)
}

func (c *sessionContext) RemoveDir(p string) (err error) {
	defer c.track("RMD")(&err)
	if err := c.require(config.PermDelete); err != nil {
		return err
	}
	return c.ClientContext.RemoveDir(p)
}

func (c *sessionContext) DeleteFile(p string) (err error) {
	defer c.track("DELE")(&err)
	if err := c.require(config.PermDelete); err != nil {
		return err
	}
	return c.ClientContext.DeleteFile(p)
}

func (c *sessionContext) Rename(from, to string) (err error) {
	defer c.track("RNTO")(&err)
	if err := c.require(config.PermRename); err != nil {
		return err
	}
	return c.ClientContext.Rename(from, to)
}

func (c *sessionContext) Chmod(p string, mode os.FileMode) (err error) {
	defer c.track("CHMOD")(&err)
	if err := c.require(config.PermChmod); err != nil {
		return err
	}
	return c.ClientContext.Chmod(p, mode)
}

func (c *sessionContext) SetTime(p string, t time.Time) (err error) {
	defer c.track("MFMT")(&err)
	if err := c.require(config.PermSetTime); err != nil {
		return err
	}
	return c.ClientContext.SetTime(p, t)
}

func (c *sessionContext) GetHash(p, algo string) (sum string, err error) {
	defer c.track("HASH")(&err)
	if err := c.require(config.PermRead); err != nil {
		return "", err
	}
	return c.ClientContext.GetHash(p, algo)
}

// OpenFile checks r for reads, a for appends and w for other writes, and
// wraps the file so its outcome is reported on Close. The command is counted
// when the file is closed, or right away if it cannot be opened.
func (c *sessionContext) OpenFile(p string, flag int) (io.ReadWriteCloser, error) {
	writing := flag&(os.O_WRONLY|os.O_RDWR) != 0
	cmd, letter := "RETR", config.PermRead
	switch {
	case writing && flag&os.O_APPEND != 0:
		cmd, letter = "APPE", config.PermAppend
	case writing:
		cmd, letter = "STOR", config.PermWrite
	}

	start := time.Now()
	f, err := c.open(p, flag, letter)
	if err != nil {
		c.metrics.RecordCommand(cmd, false, time.Since(start))
		return nil, err
	}

	name := c.display(p)
	if writing {
		return newTrackedFile(f, func(n int64, _ bool) {
			ok := c.journal.completed(c.user, n)
			c.metrics.RecordCommand(cmd, ok, time.Since(start))
			if ok {
				c.events.FileReceived(name, c.user, c.ip, n)
				return
			}
			c.events.FileReceiveIncomplete(name, c.user, c.ip, n)
		}), nil
	}
	return newTrackedFile(f, func(n int64, eof bool) {
		c.metrics.RecordCommand(cmd, eof, time.Since(start))
		if eof {
			c.events.FileSent(name, c.user, c.ip, n)
			return
		}
		c.events.FileSendIncomplete(name, c.user, c.ip, n)
	}), nil
}

func (c *sessionContext) open(p string, flag int, letter byte) (io.ReadWriteCloser, error) {
	if err := c.require(letter); err != nil {
		return nil, err
	}
	return c.ClientContext.OpenFile(p, flag)
}

func (c *sessionContext) Close() error {
	c.events.Logout(c.user, c.ip)
	return c.ClientContext.Close()
}
