//go:build js && wasm

package main

import "syscall/js"

// rafScheduler runs callbacks on the browser's next animation frame.
type rafScheduler struct{}

func (rafScheduler) RequestFrame(fn func()) func() {
	var cb js.Func
	cb = js.FuncOf(func(this js.Value, args []js.Value) any {
		cb.Release()
		fn()
		return nil
	})
	handle := js.Global().Call("requestAnimationFrame", cb)
	return func() {
		js.Global().Call("cancelAnimationFrame", handle)
		cb.Release()
	}
}
