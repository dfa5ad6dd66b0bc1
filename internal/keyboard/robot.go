package keyboard

import (
	"fmt"

	"github.com/go-vgo/robotgo"
)

// Robot injects keys in-process through robotgo.
type Robot struct {
	tracked
}

// NewRobot creates a Robot sink.
func NewRobot() *Robot {
	return &Robot{tracked: tracked{drv: robotDriver{}}}
}

type robotDriver struct{}

func (robotDriver) down(key string) error {
	if err := robotgo.KeyToggle(key, "down"); err != nil {
		return fmt.Errorf("key down %s: %w", key, err)
	}
	return nil
}

func (robotDriver) up(key string) error {
	if err := robotgo.KeyToggle(key, "up"); err != nil {
		return fmt.Errorf("key up %s: %w", key, err)
	}
	return nil
}

func (robotDriver) tap(key string) error {
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("key tap %s: %w", key, err)
	}
	return nil
}
