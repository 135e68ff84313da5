package rate

import "strings"

func normalizeIdentifier(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func (l *Limiter) loginUserKey(identifier string) string {
	return l.prefix + ":rl:l:" + normalizeIdentifier(identifier)
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.prefix + ":rl:li:" + ip
}

func (l *Limiter) refreshKey(sessionID string) string {
	return l.prefix + ":rl:r:" + sessionID
}
