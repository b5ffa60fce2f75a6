// Package numeric implements the log-space and categorical sampling
// primitives used by the label samplers.
//
// All routines operate on gonum dense matrices. Normalization helpers are
// overflow/underflow safe but do not produce a probability simplex: rows
// are only scaled so that their maximum becomes 1. Sampling accepts any
// positive, finite weight row and normalizes internally.
package numeric
