//go:build js && wasm

package lockfile

import "os"

// WASM has no file locking and is single-process in practice, so every
// lock operation is a no-op.

func FlockExclusiveBlocking(f *os.File) error { return nil }

func FlockExclusiveNonBlock(f *os.File) error { return nil }

func FlockSharedNonBlock(f *os.File) error { return nil }

func FlockUnlock(f *os.File) error { return nil }
