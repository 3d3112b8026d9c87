// Package scheduler turns maintenance schedules (cron, interval or HH:MM)
// into task engine submissions. It only triggers; execution, retries and
// overlap handling belong to the engine.
package scheduler
