// Package host implements the host side of the queue processor: the
// progress, notification and stop callbacks an operator can inspect, and a
// failure sink that publishes chapter failures as events.
package host
