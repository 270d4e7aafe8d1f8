// Package schedule turns an hourly spot price series into per-hour heater
// states and keeps a per-user cursor of the next pending comfort run in
// sync as fresher prices arrive. Classification and reconciliation are
// pure and synchronous; all I/O lives in the engine and infra layers.
package schedule
