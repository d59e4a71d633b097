//go:build !linux

package webcam

// probe is a no-op where the platform owns the permission prompt; gocv
// reports failures itself.
func probe(int) error { return nil }
