package agent

type State int32

const (
	StateUninitialized State = iota
	StateInstalling
	StateActive
	StateHandlingPush
	StateUnregistered
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInstalling:
		return "installing"
	case StateActive:
		return "active"
	case StateHandlingPush:
		return "handling_push"
	case StateUnregistered:
		return "unregistered"
	}
	return "unknown"
}
