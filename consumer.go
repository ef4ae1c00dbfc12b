package duplex

// Handler consumes one captured frame batch. It is invoked from the
// dispatch worker goroutine, never from the audio callback, and may block.
// pcm is an owned buffer: the engine never touches it again after the call.
type Handler func(pcm []byte, meta CaptureFrame)

// Observer receives delivery-side notifications from the dispatch worker.
// All hooks run on the worker goroutine. Nil hooks are skipped.
type Observer struct {
	// OnDeliver fires after a frame was handed to the registered consumer.
	OnDeliver func(meta CaptureFrame, payloadLen int)

	// OnDiscard fires when a drained frame had nowhere to go because no
	// consumer was registered.
	OnDiscard func(meta CaptureFrame)

	// OnSinkWrite fires after a frame was written to the file sink.
	OnSinkWrite func(meta CaptureFrame, payloadLen int)
}

// RegisterCaptureConsumer installs the handler invoked by the dispatch
// worker for every complete captured frame. Passing nil unregisters;
// frames drained while no consumer is registered are discarded.
func (e *Engine) RegisterCaptureConsumer(h Handler) {
	e.muConsumer.Lock()
	e.consumer = h
	e.muConsumer.Unlock()
}

// SetObserver installs delivery observation hooks.
func (e *Engine) SetObserver(o Observer) {
	e.muConsumer.Lock()
	e.observer = o
	e.muConsumer.Unlock()
}
