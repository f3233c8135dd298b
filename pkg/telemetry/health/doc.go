// Package health runs provider health checks.
//
// A Checker holds named CheckFuncs and runs them concurrently with a
// per-check timeout. RegisterProviders adds one check per registered
// provider: adapters that implement providers.HealthChecker are probed
// against their API, the others report the health tracked from traffic.
//
// The same checker backs the "providers --check" command and the /ready
// endpoint served next to the metrics endpoint:
//
//	checker := health.New(10 * time.Second)
//	checker.RegisterProviders(registry)
//	status := checker.CheckReadiness(ctx)
package health
