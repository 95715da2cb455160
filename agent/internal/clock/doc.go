// Package clock abstracts the two time operations the channel needs: reading
// the current time and scheduling a one-shot callback.
//
// Production code uses Real(). Tests use Fake(start), whose time only moves
// when Advance is called; due callbacks run synchronously inside Advance in
// deadline order, so timer-driven flushes can be asserted without sleeping.
package clock
