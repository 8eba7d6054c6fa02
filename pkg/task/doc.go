// Package task implements the ScheduledTaskEngine: a priority-queue
// dispatcher that runs TaskDefinitions (recurring or one-shot Producers)
// at computed start times, tracks each definition's execution history and
// counters, and lets callers pause, resume, or cancel a definition
// in-flight. It is the scheduling layer built on top of pkg/future's
// RunnableFuture; each due instance runs on a goroutine the engine starts
// itself.
package task
