package buildpipeline

// ChannelSink forwards events into Ch. Once Done is closed, events are
// discarded so a build never blocks on a reader that went away.
type ChannelSink struct {
	Ch   chan<- Event
	Done <-chan struct{}
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	select {
	case s.Ch <- evt:
	case <-s.Done:
	}
}
