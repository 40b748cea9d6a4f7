package httpx

import (
	"net"
	"net/url"
	"sync"
	"time"
)

// ConnectivityChecker reports device network reachability. The HTTP
// client consults it before every attempt so fully-offline calls fail
// fast instead of timing out.
type ConnectivityChecker interface {
	Online() bool
}

// DialChecker probes reachability by opening a TCP connection to the
// API host.
type DialChecker struct {
	addr    string
	timeout time.Duration
}

// NewDialChecker builds a DialChecker for the API base URL.
func NewDialChecker(baseURL string, timeout time.Duration) *DialChecker {
	addr := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		addr = u.Host
		if u.Port() == "" {
			switch u.Scheme {
			case "https", "wss":
				addr = net.JoinHostPort(u.Hostname(), "443")
			default:
				addr = net.JoinHostPort(u.Hostname(), "80")
			}
		}
	}
	return &DialChecker{addr: addr, timeout: timeout}
}

func (c *DialChecker) Online() bool {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Notifier watches a ConnectivityChecker and fires registered callbacks
// once on every offline-to-online transition. Resynchronization flows
// (socket reconnect, pending-queue flush) hang off these callbacks.
type Notifier struct {
	checker  ConnectivityChecker
	interval time.Duration

	mu        sync.Mutex
	callbacks []func()
	wasOnline bool
	onRecover []func() // internal hooks, run before callbacks
	stop      chan struct{}
	done      chan struct{}
}

// NewNotifier builds a Notifier polling checker every interval.
func NewNotifier(checker ConnectivityChecker, interval time.Duration) *Notifier {
	return &Notifier{
		checker:   checker,
		interval:  interval,
		wasOnline: true,
	}
}

// OnReconnect registers a callback for offline-to-online transitions.
func (n *Notifier) OnReconnect(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callbacks = append(n.callbacks, fn)
}

// Start begins watching connectivity. Idempotent.
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop != nil {
		return
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.watch(n.stop, n.done)
}

// Stop halts watching and waits for the watch loop to exit.
func (n *Notifier) Stop() {
	n.mu.Lock()
	stop, done := n.stop, n.done
	n.stop, n.done = nil, nil
	n.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (n *Notifier) watch(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.check()
		}
	}
}

func (n *Notifier) check() {
	online := n.checker.Online()
	n.mu.Lock()
	fire := online && !n.wasOnline
	n.wasOnline = online
	hooks := make([]func(), len(n.onRecover))
	copy(hooks, n.onRecover)
	callbacks := make([]func(), len(n.callbacks))
	copy(callbacks, n.callbacks)
	n.mu.Unlock()

	if !fire {
		return
	}
	for _, hook := range hooks {
		hook()
	}
	for _, fn := range callbacks {
		fn()
	}
}
