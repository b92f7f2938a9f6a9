package model

import "fmt"

// DeploymentColor identifies one of the two workload slots an app runs
// in. Exactly one color receives traffic at a time; a deploy rolls the
// new image onto the other color and switches.
type DeploymentColor string

const (
	Blue  DeploymentColor = "blue"
	Green DeploymentColor = "green"
)

// Toggle returns the other color.
func (c DeploymentColor) Toggle() DeploymentColor {
	if c == Blue {
		return Green
	}
	return Blue
}

func (c DeploymentColor) Valid() bool {
	return c == Blue || c == Green
}

// ParseColor validates a color string coming from outside the process
// (a routing selector, an API request). Anything but the two exact
// lowercase values is an error.
func ParseColor(s string) (DeploymentColor, error) {
	c := DeploymentColor(s)
	if !c.Valid() {
		return "", fmt.Errorf("invalid deployment color %q", s)
	}
	return c, nil
}
