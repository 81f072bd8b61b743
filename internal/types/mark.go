package types

import "github.com/moznion/go-optional"

type MarkShape string

const (
	MarkShapeCircle   MarkShape = "circle"
	MarkShapeSquare   MarkShape = "square"
	MarkShapeTriangle MarkShape = "triangle"
)

type MarkColor string

const (
	MarkColorRed    MarkColor = "red"
	MarkColorGreen  MarkColor = "green"
	MarkColorBlue   MarkColor = "blue"
	MarkColorYellow MarkColor = "yellow"
	MarkColorPurple MarkColor = "purple"
	MarkColorOrange MarkColor = "orange"
)

// Mark is a chart annotation a strategy pins to a symbol at a point in time.
type Mark struct {
	Symbol   string
	Color    MarkColor
	Shape    MarkShape
	Title    string
	Message  string
	Category string
	Signal   optional.Option[Signal]
}
