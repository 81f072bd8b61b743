package types

import "time"

type SignalType string

const (
	// SignalTypeEntryLong is a signal that tells the strategy to open a long position
	SignalTypeEntryLong SignalType = "entry_long"
	// SignalTypeExitLong is a signal that tells the strategy to close a long position
	SignalTypeExitLong SignalType = "exit_long"
	// SignalTypeEntryShort is a signal that tells the strategy to open a short position
	SignalTypeEntryShort SignalType = "entry_short"
	// SignalTypeExitShort is a signal that tells the strategy to close a short position
	SignalTypeExitShort SignalType = "exit_short"
	// SignalTypeNoAction is a signal that tells the strategy to take no action
	SignalTypeNoAction SignalType = "no_action"
	// SignalTypeWait is a signal that tells the strategy to wait for more data to confirm the entry
	SignalTypeWait SignalType = "wait"
)

type Signal struct {
	// Time is the time of the signal
	Time time.Time
	// Type is the type of the signal
	Type SignalType
	// Name is the name of the signal
	Name string
	// Reason is the reason for the signal
	Reason string
	// RawValue is the raw value of the signal
	RawValue any
	// Symbol is the symbol of the signal
	Symbol string
}
