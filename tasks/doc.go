// Package tasks manages the lifecycle of video task rows: claiming a
// pending task, marking it done, and applying the retry-or-quarantine
// decision on failure.
//
// Failure handling is two-tiered. Messages matching a configured fatal
// substring (a private video, a takedown) quarantine the task immediately,
// no matter how many retries remain. Everything else is treated as
// recoverable: the task goes back to pending with an incremented retry
// count until the budget is spent, then it is quarantined too.
package tasks
