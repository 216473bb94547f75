package ecrituria

import (
	"pkt.systems/ecrituria/core"
	"pkt.systems/ecrituria/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnViewer(event schema.ViewerEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnViewer(event)
	}
}

func (f eventFanout) OnTree(event schema.TreeEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTree(event)
	}
}

func (f eventFanout) OnJob(status schema.JobStatus) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnJob(status)
	}
}
