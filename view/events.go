package view

// Gesture is kind of user input on rendered page.
type Gesture int

const (
	DoubleClick Gesture = iota
	Click
)

func (g Gesture) String() string {
	switch g {
	case DoubleClick:
		return "doubleclick"
	case Click:
		return "click"
	}
	return "unknown"
}

// Event is user gesture on rendered page. Highlight is set when gesture hit
// a highlighted region, OnControl when it hit delete control of that
// region.
type Event struct {
	Gesture   Gesture
	Paragraph int
	Highlight string
	OnControl bool
}
