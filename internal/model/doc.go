// Package model defines the domain types shared by all feedmux components.
//
// The two central types are:
//   - DataPoint: a normalized OHLCV record emitted on the output stream
//   - ControlMessage: a consumer command that mutates the subscription set
//
// Types here carry no behavior beyond validation and key derivation; all
// streaming logic lives in the stream package.
package model
