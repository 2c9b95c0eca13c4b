// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

// The last-error channel. Every failing operation records its error in a
// slot owned by the calling thread (platform.Platform.ThreadID); the caller
// consumes it with LastError. Reads are destructive. Slots are created
// lazily on a thread's first error; only the slot map itself needs locking.

// maxErrorLen bounds the stored message, matching the fixed-size error
// buffers of the C-era consumers of this interface.
const maxErrorLen = 79

type errSlot struct {
	available bool
	message   string
}

// setError records err in the calling thread's slot, truncating the message
// to maxErrorLen bytes. A nil err is ignored.
func (v *VFS) setError(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	tid := v.plat.ThreadID()
	v.errMu.Lock()
	slot := v.errs[tid]
	if slot == nil {
		slot = new(errSlot)
		v.errs[tid] = slot
	}
	slot.available = true
	slot.message = msg
	v.errMu.Unlock()
}

// bail records err in the calling thread's error slot and returns it.
func (v *VFS) bail(err error) error {
	v.setError(err)
	return err
}

// LastError returns the message of the last error recorded by the calling
// thread and clears it. It returns "" when no error is pending; two
// consecutive calls after a single failure return the message, then "".
func (v *VFS) LastError() string {
	tid := v.plat.ThreadID()
	v.errMu.Lock()
	defer v.errMu.Unlock()
	slot := v.errs[tid]
	if slot == nil || !slot.available {
		return ""
	}
	slot.available = false
	return slot.message
}

// clearErrors releases every thread's slot. Called from Deinit.
func (v *VFS) clearErrors() {
	v.errMu.Lock()
	v.errs = make(map[int]*errSlot)
	v.errMu.Unlock()
}
