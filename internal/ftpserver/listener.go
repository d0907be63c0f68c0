package ftpserver

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// trackingListener reports every accepted control connection and its
// eventual close. Each connection gets a session id that ties the two
// records together in the log.
type trackingListener struct {
	net.Listener
	events  *Events
	metrics *Metrics
}

func newTrackingListener(ln net.Listener, events *Events, metrics *Metrics) *trackingListener {
	return &trackingListener{Listener: ln, events: events, metrics: metrics}
}

func (l *trackingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	tc := &trackedConn{
		Conn:    conn,
		id:      uuid.NewString(),
		start:   time.Now(),
		events:  l.events,
		metrics: l.metrics,
	}
	l.events.Connected(conn.RemoteAddr().String(), tc.id)
	l.metrics.sessionOpened()
	return tc, nil
}

type trackedConn struct {
	net.Conn
	id      string
	start   time.Time
	events  *Events
	metrics *Metrics
	once    sync.Once
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() {
		c.metrics.sessionClosed()
		c.events.Disconnected(c.RemoteAddr().String(), c.id, time.Since(c.start))
	})
	return err
}
