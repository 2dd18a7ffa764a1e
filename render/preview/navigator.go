package preview

// Action is the outcome of a key press.
type Action int

const (
	ActionNone Action = iota
	ActionMoved
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionMoved:
		return "moved"
	case ActionClose:
		return "close"
	default:
		return "none"
	}
}

// Navigator tracks the current page of a deck. Index always stays in
// [0, count), moves past either end are ignored, there is no wraparound.
// Not safe for concurrent use.
type Navigator struct {
	index int
	count int
}

func NewNavigator(count int) *Navigator {
	return &Navigator{count: max(count, 0)}
}

func (n *Navigator) Index() int { return n.index }
func (n *Navigator) Count() int { return n.count }

// Next moves to the following page, reports whether index changed.
func (n *Navigator) Next() bool {
	return n.Go(n.index + 1)
}

// Previous moves to the preceding page, reports whether index changed.
func (n *Navigator) Previous() bool {
	return n.Go(n.index - 1)
}

// Go jumps to page i. Out of range requests are no-ops.
func (n *Navigator) Go(i int) bool {
	if i < 0 || i >= n.count || i == n.index {
		return false
	}
	n.index = i
	return true
}

func (n *Navigator) IsFirst() bool { return n.index == 0 }
func (n *Navigator) IsLast() bool  { return n.count == 0 || n.index == n.count-1 }

// HandleKey maps keyboard keys (DOM KeyboardEvent.key names) to navigation.
func (n *Navigator) HandleKey(key string) Action {
	switch key {
	case "ArrowRight":
		if n.Next() {
			return ActionMoved
		}
	case "ArrowLeft":
		if n.Previous() {
			return ActionMoved
		}
	case "Escape":
		return ActionClose
	}
	return ActionNone
}
