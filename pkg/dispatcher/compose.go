package dispatcher

import (
	"github.com/SuperID/nanoservices/pkg/svcerr"
)

// Thunk is a prepared call. input is the parameter candidate, typically the result
// of the previous step in a series.
type Thunk func(input interface{}, cb Callback)

// Next calls the named service and completes this context with whatever the child
// produces.
func (c *Context) Next(name string, params map[string]interface{}) *Future {
	return c.Call(name, params, func(result interface{}, err error) {
		if err != nil {
			c.Error(err)
			return
		}
		c.Result(result)
	})
}

// PrepareCall returns a reusable thunk calling the named service. When bound params
// are supplied they always override the input given at invocation time.
func (c *Context) PrepareCall(name string, bound ...map[string]interface{}) Thunk {
	var boundParams map[string]interface{}
	hasBound := len(bound) > 0
	if hasBound {
		boundParams = NewParams(bound[0]).Map()
	}

	return func(input interface{}, cb Callback) {
		params := boundParams
		if !hasBound {
			p, err := AsParams(input)
			if err != nil {
				settledFuture(cb, nil, err)
				return
			}
			params = p
		}
		c.Call(name, params, cb)
	}
}

// Series runs steps strictly one after another. Each step receives the previous
// step's result (seed for the first step); the first error ends the series. The
// series completes with the last step's result, or with seed when steps is empty.
func (c *Context) Series(steps []Thunk, seed interface{}, cb Callback) *Future {
	s := newSettlement(cb)
	for i, step := range steps {
		if step == nil {
			s.settle(nil, svcerr.InvalidConfiguration("series step %d is nil", i))
			return s.future
		}
	}

	rest := append([]Thunk(nil), steps...)
	var next Callback
	next = func(result interface{}, err error) {
		if err != nil {
			s.settle(nil, err)
			return
		}
		if len(rest) == 0 {
			s.settle(result, nil)
			return
		}
		step := rest[0]
		rest = rest[1:]
		step(result, next)
	}
	next(seed, nil)
	return s.future
}
