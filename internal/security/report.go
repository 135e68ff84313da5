package security

import "time"

type PasswordReport struct {
	Memory       uint32
	Time         uint32
	Parallelism  uint8
	SaltLength   uint32
	KeyLength    uint32
	AcceptBcrypt bool
}

type Report struct {
	SigningAlgorithm      string
	SigningKeyID          string
	VerificationKeys      int
	ValidationMode        string
	AccessTTL             time.Duration
	SessionLifetime       time.Duration
	ReuseGraceEnabled     bool
	StoreKind             string
	Argon2                PasswordReport
	LoginThrottleActive   bool
	RefreshThrottleActive bool
	AuditEnabled          bool
	// Warnings lists settings that weaken the deployment, most severe first.
	Warnings []string
}

type ReportInput struct {
	SigningAlgorithm        string
	SigningKeyID            string
	VerificationKeys        int
	ValidationMode          string
	AccessTTL               time.Duration
	SessionLifetime         time.Duration
	ReuseGrace              time.Duration
	StoreKind               string
	Password                PasswordReport
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	EnableRefreshThrottle   bool
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
	AuditEnabled            bool
}

const (
	longAccessTTL = time.Hour
	weakArgonMem  = 19 * 1024
)

func BuildReport(in ReportInput) Report {
	loginThrottle := in.MaxLoginAttempts > 0 && in.LoginCooldownDuration > 0
	refreshThrottle := in.EnableRefreshThrottle &&
		in.MaxRefreshAttempts > 0 &&
		in.RefreshCooldownDuration > 0

	r := Report{
		SigningAlgorithm:      in.SigningAlgorithm,
		SigningKeyID:          in.SigningKeyID,
		VerificationKeys:      in.VerificationKeys,
		ValidationMode:        in.ValidationMode,
		AccessTTL:             in.AccessTTL,
		SessionLifetime:       in.SessionLifetime,
		ReuseGraceEnabled:     in.ReuseGrace > 0,
		StoreKind:             in.StoreKind,
		Argon2:                in.Password,
		LoginThrottleActive:   loginThrottle,
		RefreshThrottleActive: refreshThrottle,
		AuditEnabled:          in.AuditEnabled,
	}

	if in.StoreKind == "memory" {
		r.Warnings = append(r.Warnings, "sessions are held in process memory and lost on restart")
	}
	if in.SigningAlgorithm == "HS256" {
		r.Warnings = append(r.Warnings, "HS256 shares the signing secret with every verifier")
	}
	if !loginThrottle {
		r.Warnings = append(r.Warnings, "login throttling is disabled")
	}
	if in.AccessTTL > longAccessTTL {
		r.Warnings = append(r.Warnings, "access tokens outlive revocation by more than an hour in jwt_only mode")
	}
	if in.Password.Memory < weakArgonMem {
		r.Warnings = append(r.Warnings, "argon2id memory is below 19 MiB")
	}
	if in.Password.AcceptBcrypt {
		r.Warnings = append(r.Warnings, "legacy bcrypt hashes are accepted")
	}
	if !in.AuditEnabled {
		r.Warnings = append(r.Warnings, "audit events are disabled, replay detection is only visible in logs")
	}
	return r
}
