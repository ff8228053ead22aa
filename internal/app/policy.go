package app

import "github.com/dkeye/Roulette/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(id domain.UserID) BackpressureAction
}

// SimplePolicy disconnects slow consumers.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.UserID) BackpressureAction {
	return KickMember
}

// DropPolicy keeps slow consumers connected and discards the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.UserID) BackpressureAction {
	return DropFrame
}

// PolicyFor maps the slow_consumer setting to a Policy.
func PolicyFor(name string) Policy {
	if name == "drop" {
		return DropPolicy{}
	}
	return SimplePolicy{}
}
