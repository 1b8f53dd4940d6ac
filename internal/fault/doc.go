/*
Package fault implements the synchronous fault-injection checkpoints
checkout calls at its "checkout" and "inodeCheckout" gates: a test harness
registers a block, delay, or error for a key before driving a checkout, and
the gate applies it the next time that key is hit, then clears itself.

This is deliberately a small keyed checkpoint rather than a background
randomized failure injector: checkout needs to fail (or hang, to test
CHECKOUT_IN_PROGRESS handling) at an exact, reproducible point in its
pipeline, not at some random moment a chaos test happens to land on.
*/
package fault
