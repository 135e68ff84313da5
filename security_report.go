package goSession

import (
	"github.com/MrEthical07/goSession/internal/security"
	"github.com/MrEthical07/goSession/session"
)

type SecurityReport = security.Report

// SecurityReport describes the running configuration: key material, store
// backend, throttling and the settings worth a second look.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil || e.codec == nil {
		return SecurityReport{}
	}

	in := security.ReportInput{
		ValidationMode:          e.config.ValidationMode.String(),
		AccessTTL:               e.config.JWT.AccessTTL,
		SessionLifetime:         e.config.Session.Lifetime,
		ReuseGrace:              e.config.Session.ReuseGrace,
		StoreKind:               storeKind(e.store),
		MaxLoginAttempts:        e.config.Security.MaxLoginAttempts,
		LoginCooldownDuration:   e.config.Security.LoginCooldownDuration,
		EnableRefreshThrottle:   e.config.Security.EnableRefreshThrottle,
		MaxRefreshAttempts:      e.config.Security.MaxRefreshAttempts,
		RefreshCooldownDuration: e.config.Security.RefreshCooldownDuration,
		AuditEnabled:            e.config.Audit.Enabled,
		Password: security.PasswordReport{
			Memory:       e.config.Password.Memory,
			Time:         e.config.Password.Time,
			Parallelism:  e.config.Password.Parallelism,
			SaltLength:   e.config.Password.SaltLength,
			KeyLength:    e.config.Password.KeyLength,
			AcceptBcrypt: e.config.Password.AcceptBcrypt,
		},
	}
	if set := e.codec.Keys(); set != nil {
		signer := set.Signer()
		in.SigningAlgorithm = string(signer.Algorithm)
		in.SigningKeyID = signer.ID
		in.VerificationKeys = set.Len()
	}
	return security.BuildReport(in)
}

func storeKind(s session.Store) string {
	switch s.(type) {
	case *session.RedisStore:
		return "redis"
	case *session.PostgresStore:
		return "postgres"
	case *session.MemoryStore:
		return "memory"
	default:
		return "custom"
	}
}
