// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunValidate, ...) accepts a typed
// dependency struct and returns results without side effects beyond those
// dependencies. The root Engine builds the dependency structs once and maps
// flow outcomes onto its public error taxonomy.
//
// Flow functions coordinate calls to the session store, token codec, rate
// limiter, audit dispatcher and metrics. They do not own any of these
// resources; ownership stays with the Engine.
//
// Flows must not hold state between calls or import the root package.
package flows
