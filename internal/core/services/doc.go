// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services depend on domain and the port packages only, plus the
// cron parser used by the scheduler.
package services
