// Package dispense executes prescription drug lines against connected
// dispensers.
//
// A request carries an ordered list of drug lines. The Coordinator
// processes them strictly in order, one at a time: match the line's
// drug code to a connected device, flip the device to dispensing, send
// the job with a bounded retry budget, then hand the device back. A
// single unmatched or failed line never aborts the rest of the request;
// the request as a whole is complete only if every line succeeded.
//
// Device responses are classified by Classify alone, so the protocol's
// accept/queue/fail mapping is testable in isolation. Every line result
// is persisted to the history store.
package dispense
