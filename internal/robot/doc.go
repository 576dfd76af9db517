// Package robot implements the session layer of the Spykee link: the TCP
// transport, the login handshake, the frame reader loop with event dispatch,
// the dock state machine, and the motor stop debounce timer.
package robot
