//go:build linux

package webcam

import (
	"fmt"
	"os"
	"syscall"
)

// probe opens the V4L2 node directly so permission, absence and exclusive
// use surface as errno values the capture taxonomy understands.
func probe(device int) error {
	path := fmt.Sprintf("/dev/video%d", device)
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return err
	}
	return f.Close()
}
