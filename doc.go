// Package ideal implements the chemical-shift-encoded (IDEAL) signal model
// used to separate multi-echo MRI images into water, fat and myelin
// components with their off-resonance and relaxation terms.
//
// A Signal evaluates the nonlinear model, its Jacobian (Forward) and the
// Hermitian adjoint of the Jacobian (Backward) for one species Topology.
// Operator binds a Signal to the current estimate of a Gauss-Newton loop,
// and Bridge maps estimates to increments for L1-type penalties. The solver
// itself and the imaging operator are supplied by the caller.
package ideal
