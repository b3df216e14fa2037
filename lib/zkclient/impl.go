package zkclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/samuel/go-zookeeper/zk"
	"go.uber.org/zap"
)

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

type zkClient struct {
	config Config
	log    *zap.Logger
	conn   *zk.Conn
}

// Option configures a client created with New.
type Option func(*zkClient)

// WithLogger sets the logger used for session lifecycle messages and for
// the underlying ZooKeeper protocol layer.
func WithLogger(log *zap.Logger) Option {
	return func(c *zkClient) { c.log = log }
}

// New creates an unconnected client for the given ensemble. Call Connect
// to establish the session.
func New(config Config, opts ...Option) (IClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = DefaultSessionTimeout
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	c := &zkClient{
		config: config,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// zkPrintf adapts zap to the Printf-style logger the zk package expects.
type zkPrintf struct {
	log *zap.Logger
}

func (l zkPrintf) Printf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (c *zkClient) Connect() error {
	conn, events, err := zk.Connect(
		c.config.Hosts,
		c.config.SessionTimeout,
		zk.WithLogger(zkPrintf{log: c.log.Named("zk")}),
	)
	if err != nil {
		return err
	}

	// Wait for the session to come up. The zk package connects in the
	// background and reports progress on the event channel.
	deadline := time.NewTimer(c.config.ConnectTimeout)
	defer deadline.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.Close()
				return fmt.Errorf("%w: event channel closed during connect", ErrSessionClosed)
			}
			if ev.State == zk.StateHasSession {
				c.conn = conn
				c.log.Info("zookeeper session established",
					zap.Strings("hosts", c.config.Hosts),
					zap.String("namespace", c.config.Namespace))
				// Keep draining session events so the protocol layer
				// never blocks on an unread channel.
				go func() {
					for range events {
					}
				}()
				return nil
			}
		case <-deadline.C:
			conn.Close()
			return fmt.Errorf("%w after %s", ErrConnectTimeout, c.config.ConnectTimeout)
		}
	}
}

func (c *zkClient) Close() {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
	c.log.Info("zookeeper session closed")
}

func (c *zkClient) Reconnect() error {
	c.Close()
	return c.Connect()
}

func (c *zkClient) NewLock(path string) ILock {
	return &zkLock{client: c, path: path}
}

// --------------------------------------------------------------------------
// Lock recipe
// --------------------------------------------------------------------------

// zkLock implements the standard ZooKeeper exclusive-lock recipe: create a
// protected ephemeral-sequential child under the lock path, then wait until
// the created node holds the lowest sequence number, watching only the
// immediate predecessor to avoid herd wakeups. The recipe is implemented
// here rather than with the zk package's bundled lock because the bundled
// one supports neither non-blocking attempts nor acquisition timeouts.
type zkLock struct {
	client *zkClient
	path   string
	node   string // full path of the created znode while held
}

var openACL = zk.WorldACL(zk.PermAll)

func (l *zkLock) Acquire(blocking bool, timeout time.Duration) (bool, error) {
	conn := l.client.conn
	if conn == nil {
		return false, fmt.Errorf("%w: client is not connected", ErrSessionClosed)
	}

	// The lock path doubles as the parent of the contender nodes.
	for _, p := range parentPaths(l.path) {
		if _, err := conn.Create(p, nil, 0, openACL); err != nil && err != zk.ErrNodeExists {
			return false, mapErr(err)
		}
	}

	node, err := conn.CreateProtectedEphemeralSequential(l.path+"/lock-", nil, openACL)
	if err != nil {
		return false, mapErr(err)
	}
	seq, err := parseSeq(node[strings.LastIndex(node, "/")+1:])
	if err != nil {
		l.abandon(conn, node)
		return false, err
	}

	var timeoutC <-chan time.Time
	if blocking && timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timeoutC = t.C
	}

	for {
		prev, lowest, err := l.position(conn, seq)
		if err != nil {
			l.abandon(conn, node)
			return false, err
		}
		if lowest {
			l.node = node
			return true, nil
		}
		if !blocking {
			l.abandon(conn, node)
			return false, nil
		}

		exists, _, watch, err := conn.ExistsW(l.path + "/" + prev)
		if err != nil {
			l.abandon(conn, node)
			return false, mapErr(err)
		}
		if !exists {
			// Predecessor vanished between listing and watching.
			continue
		}
		select {
		case ev := <-watch:
			if ev.Err != nil {
				l.abandon(conn, node)
				return false, mapErr(ev.Err)
			}
		case <-timeoutC:
			l.abandon(conn, node)
			return false, fmt.Errorf("%w after %s on %s", ErrAcquireTimeout, timeout, l.path)
		}
	}
}

// position lists the contenders and reports whether seq is the lowest; if
// not, it returns the name of the contender immediately preceding seq.
func (l *zkLock) position(conn *zk.Conn, seq int) (prev string, lowest bool, err error) {
	children, _, err := conn.Children(l.path)
	if err != nil {
		return "", false, mapErr(err)
	}
	prevSeq := -1
	for _, name := range children {
		s, err := parseSeq(name)
		if err != nil {
			continue // foreign child, not a contender
		}
		if s < seq && s > prevSeq {
			prevSeq = s
			prev = name
		}
	}
	return prev, prevSeq == -1, nil
}

// abandon removes a contender node after a failed or aborted attempt.
func (l *zkLock) abandon(conn *zk.Conn, node string) {
	if err := conn.Delete(node, -1); err != nil && err != zk.ErrNoNode {
		l.client.log.Warn("failed to remove abandoned lock node",
			zap.String("node", node), zap.Error(err))
	}
}

func (l *zkLock) Release() error {
	if l.node == "" {
		return fmt.Errorf("zkclient: release of a lock that is not held (%s)", l.path)
	}
	conn := l.client.conn
	if conn == nil {
		return fmt.Errorf("%w: client is not connected", ErrSessionClosed)
	}
	err := conn.Delete(l.node, -1)
	l.node = ""
	if err == zk.ErrNoNode {
		// The ephemeral node is already gone, e.g. after a session loss.
		return nil
	}
	return mapErr(err)
}
