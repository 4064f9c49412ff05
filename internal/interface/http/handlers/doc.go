// Package handlers contains reusable HTTP pieces: bearer-token auth, health
// checks and middleware.
//
// # Health Checks
//
// The HealthChecker interface allows registering named checks that are
// executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v0.1.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("health check failed: %s", status.Message)
//	}
//
// # Authentication
//
// Every API route expects an HS256 bearer token naming its caller:
//
//	tokens := handlers.NewTokenManager(secret, "")
//	token, _ := tokens.Issue("discord-bot", 24*time.Hour)
//	router.Use(tokens.Middleware)
package handlers
