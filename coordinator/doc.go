// Package coordinator drives the cooperative worker loop over the shared
// tables: keep the task queue fed by expanding sources, claim a task, hand
// its URL to caller-supplied processing logic, and record the outcome.
//
// A coordinator is one worker. Several processes can run the same loop
// against the same spreadsheet; they coordinate purely through the claim
// protocol, with no channel between them.
package coordinator
