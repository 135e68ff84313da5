// Package httpapi exposes an Engine over JSON/HTTP.
//
//	POST   /auth/login          {email, password, clientLabel?}
//	POST   /auth/register       {email, password, clientLabel?}
//	POST   /auth/refresh        {sessionId, refreshToken}
//	POST   /auth/logout         {sessionId}
//	POST   /auth/logout-all     bearer
//	POST   /auth/password       bearer, {oldPassword, newPassword}
//	GET    /auth/sessions       bearer
//	DELETE /auth/sessions/{id}  bearer
//	GET    /auth/me             bearer
//	GET    /metrics             when Options.Metrics is set
//	GET    /healthz             when Options.Health is set
//
// Error bodies are {"error": code} plus "reason" for refresh failures, so
// clients can branch without parsing messages. A request-scoped slog logger
// is carried in the context; see [LoggerFrom].
package httpapi
