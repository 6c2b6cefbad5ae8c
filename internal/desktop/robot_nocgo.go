//go:build !cgo

package desktop

import "fmt"

func newRobot() (Desktop, error) {
	return nil, fmt.Errorf("%w: robotgo needs a cgo build", ErrUnavailable)
}
