//go:build orizon_debug

package arc

import "unsafe"

// poisonBeforeFree overwrites every header word of a box about to be
// freed with poisonWord, so a
// subsequent retain/release through a stale payload pointer reads garbage
// into retainCount instead of silently reusing freed memory. Spec §3
// documents the post-deinit state as "undefined at the contract level
// (debug builds may detect)"; this file is the detection this runtime
// chooses under the orizon_debug build tag, and is compiled out entirely
// otherwise so the default build matches the spec exactly.
const poisonWord = uintptr(0xDEADC0DEDEADC0DE)

func poisonBeforeFree(h *box) {
	words := unsafe.Slice((*uintptr)(unsafe.Pointer(h)), headerSize/unsafe.Sizeof(uintptr(0)))
	for i := range words {
		words[i] = poisonWord
	}
}
