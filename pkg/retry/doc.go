/*
Package retry provides a bounded polling helper with a typed outcome.

Poll takes an interval, a maximum total wait, and a predicate, and
reports exactly how the wait ended (succeeded, timed-out, aborted) along
with the attempt count and elapsed time. The rolling restart engine and
the installer both use it to gate on service health without hand-rolled
sleep loops, and callers can distinguish "never became healthy" from
"explicitly failed" by the outcome.
*/
package retry
