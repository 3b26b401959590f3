package messages

// Message is the base interface for everything the router carries.
type Message interface {
	Type() string
}

// MessageType constants for type identification
const (
	TypeSetAvailability   = "SetAvailability"
	TypeStartDragRequest  = "StartDragRequest"
	TypeStartDragResponse = "StartDragResponse"
	TypeSuppressOthers    = "SuppressOthers"
	TypeEndDrag           = "EndDrag"
	TypeCancelDrag        = "CancelDrag"
	TypeTabClosed         = "TabClosed"
	TypeShutdown          = "Shutdown"
)

// TabID identifies a browser tab.
type TabID string

// FrameID identifies one frame inside a tab.
type FrameID string

// AllFrames addresses every frame of a tab except the sender.
const AllFrames FrameID = "*"

// CoordinatorFrame is the sender frame used by the tab coordinator.
const CoordinatorFrame FrameID = "coordinator"

// Address names a frame endpoint.
type Address struct {
	Tab   TabID
	Frame FrameID
}

func (a Address) String() string { return string(a.Tab) + "/" + string(a.Frame) }

// SetAvailability - sent by the coordinator to every frame when selection
// mode is turned on or off for the tab
type SetAvailability struct {
	Available bool
}

func (m SetAvailability) Type() string { return TypeSetAvailability }

// StartDragRequest - a frame asks for the tab-wide drag lock
type StartDragRequest struct{}

func (m StartDragRequest) Type() string { return TypeStartDragRequest }

// StartDragResponse - answer to StartDragRequest
type StartDragResponse struct {
	CanProceed bool
}

func (m StartDragResponse) Type() string { return TypeStartDragResponse }

// SuppressOthers - sent to every frame but the owner once a drag is granted
type SuppressOthers struct {
	OwningFrame FrameID
}

func (m SuppressOthers) Type() string { return TypeSuppressOthers }

// EndDrag - the owning frame finished its drag (extraction attempted)
type EndDrag struct{}

func (m EndDrag) Type() string { return TypeEndDrag }

// CancelDrag - the owning frame abandoned its drag
type CancelDrag struct{}

func (m CancelDrag) Type() string { return TypeCancelDrag }

// TabClosed - the tab is gone; frame hosts stop
type TabClosed struct{}

func (m TabClosed) Type() string { return TypeTabClosed }

// Shutdown - the resident is exiting
type Shutdown struct{}

func (m Shutdown) Type() string { return TypeShutdown }

// Envelope wraps messages with routing metadata.
type Envelope struct {
	From    Address
	To      Address // To.Frame == AllFrames broadcasts within To.Tab
	Message Message
}
