package stream

import (
	"errors"
	"sync"
)

var (
	errIPLimit     = errors.New("too many concurrent sessions from this address")
	errServerLimit = errors.New("server session capacity reached")
)

// sessionLimiter caps open sessions per client address and overall.
type sessionLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	open     int
	maxPerIP int
	maxTotal int
}

func newSessionLimiter(maxPerIP, maxTotal int) *sessionLimiter {
	return &sessionLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// admit reserves a slot for ip. The returned leave func frees it and is
// safe to call more than once.
func (l *sessionLimiter) admit(ip string) (leave func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.open >= l.maxTotal:
		return nil, errServerLimit
	case l.perIP[ip] >= l.maxPerIP:
		return nil, errIPLimit
	}
	l.perIP[ip]++
	l.open++

	var once sync.Once
	return func() { once.Do(func() { l.leave(ip) }) }, nil
}

func (l *sessionLimiter) leave(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.open--
	if l.perIP[ip]--; l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
}

// active returns the open session count for ip and overall.
func (l *sessionLimiter) active(ip string) (perIP, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip], l.open
}

// limitReason is the metrics label for a refused session.
func limitReason(err error) string {
	if errors.Is(err, errServerLimit) {
		return "server_limit"
	}
	return "ip_limit"
}
