// Package vm implements the svm execution engine.
//
// A VM owns an instruction pointer, an operand stack and a stack of call
// frames. Each Step fetches one token, decodes it as an opcode and executes
// it, fetching one more token per immediate the opcode consumes. Binary
// operators pop the right-hand operand first, so the operand pushed earlier
// is the left-hand side.
//
// Malformed programs never panic. Every failure is returned as an *Error
// whose Kind can be tested with errors.Is against the Err* sentinels, and
// the first failure leaves the VM faulted.
//
// The engine has no budget or cancellation of its own. Callers that need
// either drive Step from outside, as runner.Run does.
package vm
