package core

import "pkt.systems/ecrituria/schema"

// EventSink receives viewer, tree and job events from the controller.
type EventSink interface {
	OnViewer(event schema.ViewerEvent)
	OnTree(event schema.TreeEvent)
	OnJob(status schema.JobStatus)
}

type nopSink struct{}

func (nopSink) OnViewer(schema.ViewerEvent) {}
func (nopSink) OnTree(schema.TreeEvent)     {}
func (nopSink) OnJob(schema.JobStatus)      {}

type nopReporter struct{}

func (nopReporter) Begin(string)                     {}
func (nopReporter) Succeed(string)                   {}
func (nopReporter) Fail(string)                      {}
func (nopReporter) Report(string, int)               {}
func (nopReporter) Status(string, schema.StatusMode) {}

type nopNotes struct{}

func (nopNotes) Append(msg schema.ChatMessage) schema.ChatMessage { return msg }
