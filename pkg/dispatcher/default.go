package dispatcher

import "github.com/SuperID/nanoservices/pkg/trace"

var defaultManager = func() *Manager {
	m, err := NewManager(NewManagerParams{})
	if err != nil {
		panic(err)
	}
	return m
}()

// Default returns the process-wide Manager used by Register and Call.
func Default() *Manager {
	return defaultManager
}

// Register registers a service on the default Manager.
func Register(name string, handler Handler) error {
	return defaultManager.Register(name, handler)
}

// Call calls a service on the default Manager.
func Call(name string, params map[string]interface{}, cb Callback) *Future {
	return defaultManager.Call(name, params, cb)
}

// SetRecorder sets the recorder of the default Manager.
func SetRecorder(r trace.Recorder) {
	defaultManager.SetRecorder(r)
}
