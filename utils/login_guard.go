package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginGuard bans an IP for a while after too many failed logins within one clock hour.
type LoginGuard struct {
	rc          *redis.Client
	maxFailures int
	ban         time.Duration
	now         func() time.Time

	mu    sync.Mutex
	fails map[string]failWindow
	bans  map[string]time.Time
}

type failWindow struct {
	hour string
	n    int
}

// NewLoginGuard returns a guard; maxFailures <= 0 disables it. rc may be nil.
func NewLoginGuard(rc *redis.Client, maxFailures int, ban time.Duration) *LoginGuard {
	if ban <= 0 {
		ban = 15 * time.Minute
	}
	return &LoginGuard{
		rc:          rc,
		maxFailures: maxFailures,
		ban:         ban,
		now:         time.Now,
		fails:       map[string]failWindow{},
		bans:        map[string]time.Time{},
	}
}

func loginKey(parts ...string) string {
	key := "login"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (g *LoginGuard) enabled() bool { return g != nil && g.maxFailures > 0 }

// Banned reports whether ip is currently locked out. Redis errors fail open.
func (g *LoginGuard) Banned(ctx context.Context, ip string) bool {
	if !g.enabled() {
		return false
	}
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		n, err := g.rc.Exists(ctx, loginKey("ban", ip)).Result()
		if err != nil {
			return false
		}
		return n > 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.bans[ip]
	if !ok {
		return false
	}
	if !g.now().Before(until) {
		delete(g.bans, ip)
		return false
	}
	return true
}

// Fail records a failed attempt and bans ip once the hourly count reaches the limit.
// It returns true when this failure triggered the ban.
func (g *LoginGuard) Fail(ctx context.Context, ip string) bool {
	if !g.enabled() {
		return false
	}
	hour := g.now().UTC().Format("2006010215")
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		key := loginKey("failhour", ip, hour)
		n, err := g.rc.Incr(ctx, key).Result()
		if err != nil {
			return false
		}
		_ = g.rc.Expire(ctx, key, time.Hour).Err()
		if int(n) < g.maxFailures {
			return false
		}
		_ = g.rc.Set(ctx, loginKey("ban", ip), "1", g.ban).Err()
		_ = g.rc.Del(ctx, key).Err()
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	w := g.fails[ip]
	if w.hour != hour {
		w = failWindow{hour: hour}
	}
	w.n++
	if w.n < g.maxFailures {
		g.fails[ip] = w
		return false
	}
	delete(g.fails, ip)
	g.bans[ip] = g.now().Add(g.ban)
	return true
}

// Reset forgets the failures of ip after a successful login.
func (g *LoginGuard) Reset(ctx context.Context, ip string) {
	if !g.enabled() {
		return
	}
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		_ = g.rc.Del(ctx, loginKey("failhour", ip, g.now().UTC().Format("2006010215"))).Err()
		return
	}
	g.mu.Lock()
	delete(g.fails, ip)
	g.mu.Unlock()
}
