// Package security classifies requested actions before they run.
//
// The security controller sits between the guard façade and the effects,
// and decides the confirmation tier of every action through:
//
//   - Path classification (blocked prefixes + sensitive filenames)
//   - Sensitive data detection and masking (matcher registry)
//   - Dangerous code screening (denylist of textual patterns)
//
// Classification is pure: for fixed policy tables and inputs the result
// is always the same.
package security
