// Package prompt wraps interactive operator confirmations. Destructive
// commands require a typed phrase; anything else declines cleanly.
package prompt
