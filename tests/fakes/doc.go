// Package fakes provides hand-written test doubles for acctexport.
//
// Fakes have working in-memory behavior instead of call expectations:
// secret stores that hold a map of secrets, SDK clients that answer like
// the real services for the handful of calls the stores make, and an
// account source for the exporter.
//
//	kc := fakes.NewFakeKeychainClient()
//	kc.SetSecret("acme", "bob", "Xk92!pQ")
//	store := providers.NewKeychainProviderWithClient("kc", nil, kc)
package fakes
